package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"flowsmith/backend/internal/apperr"
	"flowsmith/backend/internal/generation"
	"flowsmith/backend/internal/langflow"
	"flowsmith/backend/internal/logging"
	"flowsmith/backend/internal/repository"
	"flowsmith/backend/pkg/flowgraph"
	"flowsmith/backend/pkg/models"
)

// ErrNotLinked is returned when syncing a workflow that was never pushed.
var ErrNotLinked = errors.New("workflow is not linked to a builder flow")

const untitled = "Untitled workflow"

// WorkflowService orchestrates generation, persistence and builder sync.
type WorkflowService struct {
	store     repository.WorkflowStore
	generator Generator
	builder   Builder
	seq       *Sequencer
	logger    *logging.Logger
	metrics   *counters
}

// NewWorkflowService creates a WorkflowService.
func NewWorkflowService(store repository.WorkflowStore, generator Generator, builder Builder, logger *logging.Logger) *WorkflowService {
	return &WorkflowService{
		store:     store,
		generator: generator,
		builder:   builder,
		seq:       NewSequencer("workflow"),
		logger:    logger.With("component", "workflow_service"),
		metrics:   newCounters(),
	}
}

// List returns the owner's workflows, newest first.
func (s *WorkflowService) List(ctx context.Context, ownerID string) ([]*models.SavedWorkflow, error) {
	return s.store.ListWorkflows(ctx, ownerID)
}

// Get returns one of the owner's workflows.
func (s *WorkflowService) Get(ctx context.Context, ownerID, id string) (*models.SavedWorkflow, error) {
	return s.store.GetWorkflow(ctx, ownerID, id)
}

// Create validates and stores a workflow.
func (s *WorkflowService) Create(ctx context.Context, ownerID string, in models.NewWorkflow) (*models.SavedWorkflow, error) {
	if errs := flowgraph.Validate(&in.WorkflowJSON); len(errs) > 0 {
		return nil, errs
	}
	if strings.TrimSpace(in.Name) == "" {
		in.Name = nameOf(&in.WorkflowJSON, in.Explanation)
	}
	return s.store.CreateWorkflow(ctx, ownerID, in)
}

// Update applies patch to one of the owner's workflows.
func (s *WorkflowService) Update(ctx context.Context, ownerID, id string, patch models.WorkflowPatch) (*models.SavedWorkflow, error) {
	if patch.WorkflowJSON != nil {
		if errs := flowgraph.Validate(patch.WorkflowJSON); len(errs) > 0 {
			return nil, errs
		}
	}
	ok, err := s.store.UpdateWorkflow(ctx, ownerID, id, patch)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &apperr.NotFoundError{Resource: "workflow", ID: id}
	}
	return s.store.GetWorkflow(ctx, ownerID, id)
}

// Delete removes one of the owner's workflows.
func (s *WorkflowService) Delete(ctx context.Context, ownerID, id string) error {
	ok, err := s.store.DeleteWorkflow(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if !ok {
		return &apperr.NotFoundError{Resource: "workflow", ID: id}
	}
	return nil
}

// Generate runs one generation without saving anything.
func (s *WorkflowService) Generate(ctx context.Context, sess *generation.Session) (*generation.Result, error) {
	res, err := s.generator.Generate(ctx, sess)
	switch {
	case err != nil:
		record(ctx, s.metrics.generations, "error")
	case res.IsValid:
		record(ctx, s.metrics.generations, "valid")
	default:
		record(ctx, s.metrics.generations, "invalid")
	}
	return res, err
}

// SaveOptions controls what GenerateAndSave does with a valid graph.
type SaveOptions struct {
	Push     bool
	FolderID string
}

// GenerateOutcome reports each step of GenerateAndSave separately. A failed
// push leaves the saved workflow in place and is reported in PushErr.
type GenerateOutcome struct {
	Result   *generation.Result
	Workflow *models.SavedWorkflow
	Push     *langflow.PushResult
	PushErr  error
}

// GenerateAndSave generates a graph and, when it is valid, saves it for the
// owner and optionally pushes it to the builder. Invalid output creates no
// record.
func (s *WorkflowService) GenerateAndSave(ctx context.Context, ownerID string, sess *generation.Session, opts SaveOptions) (*GenerateOutcome, error) {
	res, err := s.Generate(ctx, sess)
	if err != nil {
		return nil, err
	}
	out := &GenerateOutcome{Result: res}
	if !res.IsValid {
		return out, nil
	}

	saved, err := s.store.CreateWorkflow(ctx, ownerID, models.NewWorkflow{
		Name:         nameOf(res.Graph, res.Explanation),
		Description:  descriptionOf(res.Graph, res.Explanation),
		WorkflowJSON: *res.Graph,
		Explanation:  res.Explanation,
	})
	if err != nil {
		return out, fmt.Errorf("save generated workflow: %w", err)
	}
	out.Workflow = saved

	if opts.Push {
		out.Push, out.PushErr = s.Push(ctx, ownerID, saved.ID, opts.FolderID)
		if out.PushErr == nil {
			saved.LangflowFlowID = &out.Push.FlowID
		}
	}
	return out, nil
}

// Push sends a saved workflow to the builder and records the new flow id on
// it. Each call creates a new remote flow.
func (s *WorkflowService) Push(ctx context.Context, ownerID, workflowID, folderID string) (*langflow.PushResult, error) {
	w, err := s.store.GetWorkflow(ctx, ownerID, workflowID)
	if err != nil {
		return nil, err
	}
	// Pushes are ordered among themselves only. A sync never writes the link,
	// so one landing mid-push must not discard the new flow id.
	key := linkKey(workflowID)
	seq := s.seq.Next(key)

	res, err := s.PushGraph(ctx, &w.WorkflowJSON, folderID)
	if err != nil {
		return nil, err
	}

	err = s.seq.Apply(key, seq, func() error {
		_, err := s.store.UpdateWorkflow(ctx, ownerID, workflowID, models.WorkflowPatch{LangflowFlowID: &res.FlowID})
		return err
	})
	if err != nil {
		s.logger.Warn("push result not recorded", "workflow_id", workflowID, "flow_id", res.FlowID, "error", err)
		return res, err
	}
	return res, nil
}

// PushGraph validates g and creates it on the builder without touching the
// store.
func (s *WorkflowService) PushGraph(ctx context.Context, g *flowgraph.FlowGraph, folderID string) (*langflow.PushResult, error) {
	if errs := flowgraph.Validate(g); len(errs) > 0 {
		return nil, errs
	}
	res, err := s.builder.Push(ctx, g, folderID)
	record(ctx, s.metrics.pushes, outcomeOf(err))
	if err != nil {
		return nil, fmt.Errorf("push workflow: %w", err)
	}
	s.logger.Info("flow pushed", "flow_id", res.FlowID, "folder_id", folderID)
	return res, nil
}

// PullFlow fetches a remote flow and decodes its graph. The remote copy is
// authoritative: structural and referential defects reject it, semantic ones
// are only logged.
func (s *WorkflowService) PullFlow(ctx context.Context, flowID string) (*langflow.RemoteFlow, *flowgraph.FlowGraph, error) {
	remote, err := s.builder.Pull(ctx, flowID)
	record(ctx, s.metrics.pulls, outcomeOf(err))
	if err != nil {
		return nil, nil, fmt.Errorf("pull flow: %w", err)
	}
	g, err := remote.Graph()
	if err != nil {
		// Undecodable data is the builder's fault, not a local validation failure.
		return nil, nil, &apperr.UpstreamError{Service: "builder", Op: "pull", Kind: apperr.KindMalformed, Status: http.StatusOK, Body: err.Error()}
	}
	if errs := flowgraph.Validate(g); len(errs) > 0 {
		if errs.Stage() != flowgraph.StageSemantic {
			return nil, nil, errs
		}
		s.logger.Warn("pulled flow has semantic issues", "flow_id", flowID, "errors", errs.Error())
	}
	return remote, g, nil
}

// Sync replaces a saved workflow's graph, name and description with the
// builder's current copy.
func (s *WorkflowService) Sync(ctx context.Context, ownerID, workflowID string) (*models.SavedWorkflow, error) {
	w, err := s.store.GetWorkflow(ctx, ownerID, workflowID)
	if err != nil {
		return nil, err
	}
	if w.LangflowFlowID == nil || *w.LangflowFlowID == "" {
		return nil, ErrNotLinked
	}
	seq := s.seq.Next(workflowID)

	remote, g, err := s.PullFlow(ctx, *w.LangflowFlowID)
	if err != nil {
		return nil, err
	}

	patch := models.WorkflowPatch{WorkflowJSON: g}
	if remote.Name != "" {
		patch.Name = &remote.Name
	}
	patch.Description = &remote.Description

	err = s.seq.Apply(workflowID, seq, func() error {
		ok, err := s.store.UpdateWorkflow(ctx, ownerID, workflowID, patch)
		if err == nil && !ok {
			err = &apperr.NotFoundError{Resource: "workflow", ID: workflowID}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.store.GetWorkflow(ctx, ownerID, workflowID)
}

func linkKey(workflowID string) string { return workflowID + "/link" }

func nameOf(g *flowgraph.FlowGraph, e *models.WorkflowExplanation) string {
	if g != nil && strings.TrimSpace(g.Name) != "" {
		return strings.TrimSpace(g.Name)
	}
	if e != nil && e.Overview != "" {
		return truncateWords(e.Overview, 60)
	}
	return untitled
}

func descriptionOf(g *flowgraph.FlowGraph, e *models.WorkflowExplanation) string {
	if g != nil && strings.TrimSpace(g.Description) != "" {
		return strings.TrimSpace(g.Description)
	}
	if e != nil {
		return e.Overview
	}
	return ""
}

func truncateWords(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	cut := strings.LastIndex(s[:limit], " ")
	if cut <= 0 {
		cut = limit
	}
	return s[:cut] + "..."
}
