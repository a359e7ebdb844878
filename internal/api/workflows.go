package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"flowsmith/backend/internal/langflow"
	"flowsmith/backend/pkg/models"
)

// ListWorkflows returns the caller's workflows, newest first
// (GET /api/v1/workflows)
func (s *Server) ListWorkflows(c echo.Context) error {
	owner, err := callerID(c)
	if err != nil {
		return s.writeError(c, err)
	}
	workflows, err := s.workflows.List(c.Request().Context(), owner)
	if err != nil {
		return s.writeError(c, err)
	}
	if workflows == nil {
		workflows = []*models.SavedWorkflow{}
	}
	return c.JSON(http.StatusOK, workflows)
}

// CreateWorkflow validates and stores a workflow
// (POST /api/v1/workflows)
func (s *Server) CreateWorkflow(c echo.Context) error {
	owner, err := callerID(c)
	if err != nil {
		return s.writeError(c, err)
	}
	var in models.NewWorkflow
	if err := c.Bind(&in); err != nil {
		return s.writeError(c, err)
	}
	saved, err := s.workflows.Create(c.Request().Context(), owner, in)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, saved)
}

// GetWorkflow returns one workflow
// (GET /api/v1/workflows/:id)
func (s *Server) GetWorkflow(c echo.Context) error {
	owner, err := callerID(c)
	if err != nil {
		return s.writeError(c, err)
	}
	w, err := s.workflows.Get(c.Request().Context(), owner, c.Param("id"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, w)
}

// UpdateWorkflow applies a sparse patch
// (PATCH /api/v1/workflows/:id)
func (s *Server) UpdateWorkflow(c echo.Context) error {
	owner, err := callerID(c)
	if err != nil {
		return s.writeError(c, err)
	}
	var patch models.WorkflowPatch
	if err := c.Bind(&patch); err != nil {
		return s.writeError(c, err)
	}
	// The flow id only changes through push.
	patch.LangflowFlowID = nil

	w, err := s.workflows.Update(c.Request().Context(), owner, c.Param("id"), patch)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, w)
}

// DeleteWorkflow removes a workflow
// (DELETE /api/v1/workflows/:id)
func (s *Server) DeleteWorkflow(c echo.Context) error {
	owner, err := callerID(c)
	if err != nil {
		return s.writeError(c, err)
	}
	if err := s.workflows.Delete(c.Request().Context(), owner, c.Param("id")); err != nil {
		return s.writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// PushWorkflowRequest optionally names the target folder. Without one the
// caller's workspace folder is used.
type PushWorkflowRequest struct {
	FolderID string `json:"folderId,omitempty"`
}

// PushWorkflow creates a new builder flow from a saved workflow
// (POST /api/v1/workflows/:id/push)
func (s *Server) PushWorkflow(c echo.Context) error {
	owner, err := callerID(c)
	if err != nil {
		return s.writeError(c, err)
	}
	var req PushWorkflowRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return s.writeError(c, err)
		}
	}
	ctx := c.Request().Context()
	if req.FolderID == "" {
		req.FolderID = s.workspaceFolder(c)
	}
	res, err := s.workflows.Push(ctx, owner, c.Param("id"), req.FolderID)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, pushResponse(res))
}

// SyncWorkflow replaces a saved workflow with the builder's copy
// (POST /api/v1/workflows/:id/sync)
func (s *Server) SyncWorkflow(c echo.Context) error {
	owner, err := callerID(c)
	if err != nil {
		return s.writeError(c, err)
	}
	w, err := s.workflows.Sync(c.Request().Context(), owner, c.Param("id"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, w)
}

// ImportResponse is the success body of a push.
type ImportResponse struct {
	Success bool   `json:"success"`
	FlowID  string `json:"flowId"`
	FlowURL string `json:"flowUrl"`
}

func pushResponse(res *langflow.PushResult) ImportResponse {
	return ImportResponse{Success: true, FlowID: res.FlowID, FlowURL: res.FlowURL}
}
