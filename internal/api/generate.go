package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"flowsmith/backend/internal/auth"
	"flowsmith/backend/internal/generation"
	"flowsmith/backend/internal/services"
	"flowsmith/backend/pkg/flowgraph"
	"flowsmith/backend/pkg/models"
)

// SessionHeader scopes the one-generation-at-a-time guard.
const SessionHeader = "X-Session-ID"

// GenerateRequest is the design conversation so far, oldest turn first.
type GenerateRequest struct {
	Messages []generation.Message `json:"messages" validate:"required,min=1,dive"`
}

// GenerateResponse is the outcome of one generation. Content always holds the
// raw reply, even when no usable workflow came out of it.
type GenerateResponse struct {
	Content     string                      `json:"content"`
	Workflow    *flowgraph.FlowGraph        `json:"workflow"`
	IsValid     bool                        `json:"isValid"`
	Explanation *models.WorkflowExplanation `json:"explanation,omitempty"`
	Errors      flowgraph.ValidationErrors  `json:"errors,omitempty"`
}

func generateResponse(res *generation.Result) GenerateResponse {
	return GenerateResponse{
		Content:     res.RawText,
		Workflow:    res.Graph,
		IsValid:     res.IsValid,
		Explanation: res.Explanation,
		Errors:      res.Errors,
	}
}

func (s *Server) bindConversation(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	return nil
}

func sessionOf(c echo.Context, messages []generation.Message) *generation.Session {
	history := make([]generation.Message, len(messages))
	copy(history, messages)
	return &generation.Session{
		ID:      sessionKey(c),
		History: history,
	}
}

// sessionKey scopes the in-flight guard to the caller. Without a session
// header every request of the caller shares one conversation.
func sessionKey(c echo.Context) string {
	owner := ""
	if p, ok := auth.PrincipalFrom(c.Request().Context()); ok {
		owner = p.UserID
	}
	if id := strings.TrimSpace(c.Request().Header.Get(SessionHeader)); id != "" {
		return owner + "/" + id
	}
	return owner
}

// Generate turns the conversation into a workflow without saving it
// (POST /api/v1/generate)
func (s *Server) Generate(c echo.Context) error {
	var req GenerateRequest
	if err := s.bindConversation(c, &req); err != nil {
		return s.writeError(c, err)
	}
	res, err := s.workflows.Generate(c.Request().Context(), sessionOf(c, req.Messages))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, generateResponse(res))
}

// GenerateAndSaveRequest generates, saves and optionally pushes a workflow.
type GenerateAndSaveRequest struct {
	GenerateRequest
	Push     bool   `json:"push,omitempty"`
	FolderID string `json:"folderId,omitempty"`
}

// GenerateAndSaveResponse reports each step separately. A failed push leaves
// the saved workflow in place and is reported in PushError.
type GenerateAndSaveResponse struct {
	GenerateResponse
	Saved     *models.SavedWorkflow `json:"saved,omitempty"`
	Push      *ImportResponse       `json:"push,omitempty"`
	PushError *BuilderError         `json:"pushError,omitempty"`
}

// GenerateAndSave generates a workflow and saves it when valid
// (POST /api/v1/workflows/generate)
func (s *Server) GenerateAndSave(c echo.Context) error {
	owner, err := callerID(c)
	if err != nil {
		return s.writeError(c, err)
	}
	var req GenerateAndSaveRequest
	if err := s.bindConversation(c, &req); err != nil {
		return s.writeError(c, err)
	}
	opts := services.SaveOptions{Push: req.Push, FolderID: req.FolderID}
	if opts.Push && opts.FolderID == "" {
		opts.FolderID = s.workspaceFolder(c)
	}

	out, err := s.workflows.GenerateAndSave(c.Request().Context(), owner, sessionOf(c, req.Messages), opts)
	if err != nil {
		return s.writeError(c, err)
	}

	resp := GenerateAndSaveResponse{GenerateResponse: generateResponse(out.Result), Saved: out.Workflow}
	if out.Push != nil {
		p := pushResponse(out.Push)
		resp.Push = &p
	}
	if out.PushErr != nil {
		status, title := statusOf(out.PushErr)
		resp.PushError = &BuilderError{Error: title, Status: status, Details: out.PushErr.Error()}
	}

	status := http.StatusOK
	if out.Workflow != nil {
		status = http.StatusCreated
	}
	return c.JSON(status, resp)
}

// ValidateResponse lists every defect found in a graph.
type ValidateResponse struct {
	Valid  bool                       `json:"valid"`
	Errors flowgraph.ValidationErrors `json:"errors"`
}

// ValidateWorkflow checks a graph without storing it. With ?strict=true the
// graph is also held to the component catalog.
// (POST /api/v1/validate)
func (s *Server) ValidateWorkflow(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return s.writeError(c, echo.NewHTTPError(http.StatusBadRequest, err.Error()))
	}
	errs := s.validate(raw, c.QueryParam("strict") == "true")
	if errs == nil {
		errs = flowgraph.ValidationErrors{}
	}
	return c.JSON(http.StatusOK, ValidateResponse{Valid: len(errs) == 0, Errors: errs})
}

func (s *Server) validate(raw []byte, strict bool) flowgraph.ValidationErrors {
	g, err := flowgraph.Parse(raw)
	if err != nil {
		if verrs, ok := err.(flowgraph.ValidationErrors); ok {
			return verrs
		}
		return flowgraph.ValidationErrors{{Stage: flowgraph.StageStructural, Path: "$", Message: err.Error()}}
	}
	var opts []flowgraph.Option
	if strict && s.catalog != nil {
		opts = append(opts, flowgraph.WithCatalog(s.catalog))
	}
	return flowgraph.Validate(g, opts...)
}
