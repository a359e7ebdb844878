package models

import (
	"time"

	"flowsmith/backend/pkg/flowgraph"
)

// SavedWorkflow is a generated flow persisted for its owner.
type SavedWorkflow struct {
	ID             string               `json:"id"`
	OwnerID        string               `json:"user_id"`
	Name           string               `json:"name"`
	Description    string               `json:"description"`
	WorkflowJSON   flowgraph.FlowGraph  `json:"workflow_json"`
	Explanation    *WorkflowExplanation `json:"explanation,omitempty"`
	LangflowFlowID *string              `json:"langflow_flow_id,omitempty"` // set after a successful push
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// WorkflowExplanation is the human-readable account of a generated flow.
type WorkflowExplanation struct {
	Overview       string               `json:"overview"`
	Components     []ComponentRationale `json:"components"`
	DataFlow       string               `json:"dataFlow"`
	ExpectedOutput string               `json:"expectedOutput"`
}

// ComponentRationale explains why one component is in the flow.
type ComponentRationale struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Purpose       string `json:"purpose"`
	Configuration string `json:"configuration"`
}

// NewWorkflow carries the fields of a workflow to create.
type NewWorkflow struct {
	Name         string               `json:"name"`
	Description  string               `json:"description"`
	WorkflowJSON flowgraph.FlowGraph  `json:"workflow_json"`
	Explanation  *WorkflowExplanation `json:"explanation,omitempty"`
}

// WorkflowPatch is a sparse update; nil fields are left unchanged.
type WorkflowPatch struct {
	Name           *string              `json:"name,omitempty"`
	Description    *string              `json:"description,omitempty"`
	WorkflowJSON   *flowgraph.FlowGraph `json:"workflow_json,omitempty"`
	Explanation    *WorkflowExplanation `json:"explanation,omitempty"`
	LangflowFlowID *string              `json:"langflow_flow_id,omitempty"`
}

// Apply copies the set fields of p onto w.
func (p WorkflowPatch) Apply(w *SavedWorkflow) {
	if p.Name != nil {
		w.Name = *p.Name
	}
	if p.Description != nil {
		w.Description = *p.Description
	}
	if p.WorkflowJSON != nil {
		w.WorkflowJSON = *p.WorkflowJSON
	}
	if p.Explanation != nil {
		e := *p.Explanation
		w.Explanation = &e
	}
	if p.LangflowFlowID != nil {
		id := *p.LangflowFlowID
		w.LangflowFlowID = &id
	}
}
