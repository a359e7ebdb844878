package api

import (
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v4"

	"flowsmith/backend/internal/apperr"
	"flowsmith/backend/internal/auth"
	"flowsmith/backend/pkg/flowgraph"
)

// ImportRequest pushes a graph to the builder
// (POST /api/v1/langflow/import)
type ImportRequest struct {
	Workflow       json.RawMessage `json:"workflow"`
	BuilderBaseURL string          `json:"builderBaseUrl"`
	FolderID       string          `json:"folderId,omitempty"`
}

// ImportFlow creates a new builder flow from the submitted graph. Every call
// creates a new flow.
func (s *Server) ImportFlow(c echo.Context) error {
	var req ImportRequest
	if err := c.Bind(&req); err != nil {
		return s.writeBuilderError(c, err)
	}
	if normalizeBaseURL(req.BuilderBaseURL) != s.builderBaseURL {
		return s.writeBuilderError(c, echo.NewHTTPError(http.StatusBadRequest,
			"builderBaseUrl must be the configured builder "+s.builderBaseURL))
	}
	if len(req.Workflow) == 0 {
		return s.writeBuilderError(c, echo.NewHTTPError(http.StatusBadRequest, "workflow is required"))
	}
	g, err := flowgraph.Parse(req.Workflow)
	if err != nil {
		return s.writeBuilderError(c, err)
	}

	res, err := s.workflows.PushGraph(c.Request().Context(), g, req.FolderID)
	if err != nil {
		return s.writeBuilderError(c, err)
	}
	return c.JSON(http.StatusOK, pushResponse(res))
}

// SyncRequest names the builder flow to fetch
// (POST /api/v1/langflow/sync)
type SyncRequest struct {
	FlowID string `json:"flowId"`
}

// SyncedFlow is the builder's copy of a flow.
type SyncedFlow struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Data        flowgraph.GraphData `json:"data"`
	UpdatedAt   string              `json:"updated_at,omitempty"`
}

// SyncResponse is the success body of a pull.
type SyncResponse struct {
	Success  bool       `json:"success"`
	Workflow SyncedFlow `json:"workflow"`
}

// SyncFlow fetches the builder's authoritative copy of a flow. Nothing is
// written locally.
func (s *Server) SyncFlow(c echo.Context) error {
	var req SyncRequest
	if err := c.Bind(&req); err != nil {
		return s.writeBuilderError(c, err)
	}
	if strings.TrimSpace(req.FlowID) == "" {
		return s.writeBuilderError(c, echo.NewHTTPError(http.StatusBadRequest, "flowId is required"))
	}

	remote, g, err := s.workflows.PullFlow(c.Request().Context(), req.FlowID)
	if err != nil {
		return s.writeBuilderError(c, err)
	}
	return c.JSON(http.StatusOK, SyncResponse{
		Success: true,
		Workflow: SyncedFlow{
			Name:        remote.Name,
			Description: remote.Description,
			Data:        g.Data,
			UpdatedAt:   remote.UpdatedAt,
		},
	})
}

// FolderRequest asks for the caller's workspace folder
// (POST /api/v1/langflow/folder)
type FolderRequest struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
}

// FolderResponse reports the folder. FolderID is null when provisioning
// degraded.
type FolderResponse struct {
	Success  bool    `json:"success"`
	FolderID *string `json:"folderId"`
	IsNew    bool    `json:"isNew"`
}

// ProvisionFolder returns the caller's folder, creating it on first use.
// Builder failures degrade to a null folder and never fail the request.
func (s *Server) ProvisionFolder(c echo.Context) error {
	p, ok := auth.PrincipalFrom(c.Request().Context())
	if !ok {
		return s.writeBuilderError(c, echo.NewHTTPError(http.StatusUnauthorized, "no authenticated user in request"))
	}
	var req FolderRequest
	if err := c.Bind(&req); err != nil {
		return s.writeBuilderError(c, err)
	}
	if req.UserID == "" {
		return s.writeBuilderError(c, echo.NewHTTPError(http.StatusBadRequest, "userId is required"))
	}
	if req.UserID != p.UserID {
		return s.writeBuilderError(c, &apperr.AuthorizationError{Reason: "userId does not match the authenticated user"})
	}
	username := req.Username
	if username == "" {
		username = p.Username
	}

	res, err := s.provisioner.Provision(c.Request().Context(), p.UserID, username)
	if err != nil {
		return s.writeBuilderError(c, err)
	}
	out := FolderResponse{Success: true, IsNew: res.IsNew}
	if res.FolderID != "" {
		out.FolderID = &res.FolderID
	}
	return c.JSON(http.StatusOK, out)
}

// workspaceFolder provisions the caller's folder for a push. Failures fall
// back to the unscoped namespace.
func (s *Server) workspaceFolder(c echo.Context) string {
	p, ok := auth.PrincipalFrom(c.Request().Context())
	if !ok || s.provisioner == nil {
		return ""
	}
	res, err := s.provisioner.Provision(c.Request().Context(), p.UserID, p.Username)
	if err != nil {
		s.logger.Warn("workspace folder unavailable", "user_id", p.UserID, "error", err)
		return ""
	}
	return res.FolderID
}

func normalizeBaseURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}
