// Package mcp exposes workflow generation and sync as MCP tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"flowsmith/backend/internal/auth"
	"flowsmith/backend/internal/generation"
	"flowsmith/backend/internal/services"
	"flowsmith/backend/pkg/flowgraph"
)

const instructions = `Design Langflow flows from plain-language requests.
Call generate_workflow with a description; set save=true to keep the result.
Use validate_workflow to check a flow document before importing it elsewhere,
list_workflows to see saved flows and sync_workflow to refresh one from the builder.`

type Server struct {
	mcpServer *server.MCPServer
	workflows *services.WorkflowService
	catalog   flowgraph.Catalog
}

func NewServer(workflows *services.WorkflowService, cat flowgraph.Catalog) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Flowsmith",
			"1.0.0",
			server.WithToolCapabilities(true),
			server.WithRecovery(),
			server.WithInstructions(instructions),
		),
		workflows: workflows,
		catalog:   cat,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"generate_workflow",
			mcp.WithDescription("Generate a Langflow flow from a description"),
			mcp.WithString("prompt", mcp.Required(), mcp.Description("What the flow should do")),
			mcp.WithString("session_id", mcp.Description("Conversation id; one generation runs per session at a time")),
			mcp.WithBoolean("save", mcp.Description("Save the flow when it is valid")),
		),
		s.handleGenerate,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"validate_workflow",
			mcp.WithDescription("Validate a Langflow flow document"),
			mcp.WithString("workflow_json", mcp.Required(), mcp.Description("The flow document as JSON")),
			mcp.WithBoolean("strict", mcp.Description("Also reject components outside the catalog")),
		),
		s.handleValidate,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_workflows",
			mcp.WithDescription("List your saved flows, newest first"),
		),
		s.handleList,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"sync_workflow",
			mcp.WithDescription("Replace a saved flow with the builder's current copy"),
			mcp.WithString("id", mcp.Required(), mcp.Description("The ID of the saved flow")),
		),
		s.handleSync,
	)
}

func owner(ctx context.Context) (string, *mcp.CallToolResult) {
	p, ok := auth.PrincipalFrom(ctx)
	if !ok {
		return "", mcp.NewToolResultError("Not authenticated")
	}
	return p.UserID, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalNoEscape(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

type generateResult struct {
	Content     string                     `json:"content"`
	IsValid     bool                       `json:"isValid"`
	Workflow    *flowgraph.FlowGraph       `json:"workflow"`
	Errors      flowgraph.ValidationErrors `json:"errors,omitempty"`
	SavedID     string                     `json:"savedId,omitempty"`
	Explanation any                        `json:"explanation,omitempty"`
}

func (s *Server) handleGenerate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ownerID, denied := owner(ctx)
	if denied != nil {
		return denied, nil
	}
	prompt, err := request.RequireString("prompt")
	if err != nil || prompt == "" {
		return mcp.NewToolResultError("Missing required parameter: prompt"), nil
	}
	sessionID := ownerID
	if id := request.GetString("session_id", ""); id != "" {
		sessionID = ownerID + "/" + id
	}
	sess := &generation.Session{
		ID:      sessionID,
		History: []generation.Message{{Role: generation.RoleUser, Content: prompt}},
	}

	var (
		res     *generation.Result
		savedID string
	)
	if request.GetBool("save", false) {
		out, genErr := s.workflows.GenerateAndSave(ctx, ownerID, sess, services.SaveOptions{})
		if genErr == nil {
			res = out.Result
			if out.Workflow != nil {
				savedID = out.Workflow.ID
			}
		}
		err = genErr
	} else {
		res, err = s.workflows.Generate(ctx, sess)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to generate: %v", err)), nil
	}

	out := generateResult{
		Content:  res.RawText,
		IsValid:  res.IsValid,
		Workflow: res.Graph,
		Errors:   res.Errors,
		SavedID:  savedID,
	}
	if res.Explanation != nil {
		out.Explanation = res.Explanation
	}
	return jsonResult(out)
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("workflow_json")
	if err != nil || raw == "" {
		return mcp.NewToolResultError("Missing required parameter: workflow_json"), nil
	}

	var errs flowgraph.ValidationErrors
	g, err := flowgraph.Parse([]byte(raw))
	if err != nil {
		if !errors.As(err, &errs) {
			errs = flowgraph.ValidationErrors{{Stage: flowgraph.StageStructural, Path: "$", Message: err.Error()}}
		}
	} else {
		var opts []flowgraph.Option
		if request.GetBool("strict", false) && s.catalog != nil {
			opts = append(opts, flowgraph.WithCatalog(s.catalog))
		}
		errs = flowgraph.Validate(g, opts...)
	}
	if errs == nil {
		errs = flowgraph.ValidationErrors{}
	}
	return jsonResult(map[string]any{"valid": len(errs) == 0, "errors": errs})
}

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ownerID, denied := owner(ctx)
	if denied != nil {
		return denied, nil
	}
	workflows, err := s.workflows.List(ctx, ownerID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list workflows: %v", err)), nil
	}

	type summary struct {
		ID             string  `json:"id"`
		Name           string  `json:"name"`
		Description    string  `json:"description"`
		LangflowFlowID *string `json:"langflow_flow_id,omitempty"`
		UpdatedAt      string  `json:"updated_at"`
	}
	out := make([]summary, 0, len(workflows))
	for _, w := range workflows {
		out = append(out, summary{
			ID:             w.ID,
			Name:           w.Name,
			Description:    w.Description,
			LangflowFlowID: w.LangflowFlowID,
			UpdatedAt:      w.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	return jsonResult(out)
}

func (s *Server) handleSync(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ownerID, denied := owner(ctx)
	if denied != nil {
		return denied, nil
	}
	id, err := request.RequireString("id")
	if err != nil || id == "" {
		return mcp.NewToolResultError("Missing required parameter: id"), nil
	}

	w, err := s.workflows.Sync(ctx, ownerID, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to sync: %v", err)), nil
	}
	return jsonResult(w)
}

// NewSSEHandler serves mcpServer over SSE below basePath. The authenticated
// caller of the HTTP request is carried into every tool call.
func NewSSEHandler(mcpServer *server.MCPServer, basePath string) http.Handler {
	return withoutWriteDeadline(server.NewSSEServer(mcpServer,
		server.WithStaticBasePath(basePath),
		server.WithSSEContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if p, ok := auth.PrincipalFrom(r.Context()); ok {
				return auth.WithPrincipal(ctx, p)
			}
			return ctx
		}),
	))
}

// withoutWriteDeadline lifts the server-wide write timeout for h. Event
// streams stay open far longer than any single response.
func withoutWriteDeadline(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
			http.Error(w, "stream setup failed", http.StatusInternalServerError)
			return
		}
		h.ServeHTTP(w, r)
	})
}
