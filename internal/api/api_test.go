package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowsmith/backend/internal/apperr"
	"flowsmith/backend/internal/auth"
	"flowsmith/backend/internal/generation"
	"flowsmith/backend/internal/langflow"
	"flowsmith/backend/internal/logging"
	"flowsmith/backend/internal/repository"
	"flowsmith/backend/internal/services"
	"flowsmith/backend/internal/testsupport"
	"flowsmith/backend/pkg/catalog"
	"flowsmith/backend/pkg/flowgraph"
	"flowsmith/backend/pkg/models"
)

const testUserHeader = "X-Test-User"

// builderStub is an in-memory builder REST API.
type builderStub struct {
	mu           sync.Mutex
	flows        map[string][]byte
	folders      int
	flowStatus   int
	folderStatus int
	lastFolderID string
}

func (b *builderStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/flows/":
		if b.flowStatus != 0 {
			w.WriteHeader(b.flowStatus)
			return
		}
		var body map[string]json.RawMessage
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		b.lastFolderID = ""
		if f, ok := body["folder_id"]; ok {
			_ = json.Unmarshal(f, &b.lastFolderID)
		}
		id := fmt.Sprintf("flow-%d", len(b.flows)+1)
		body["id"], _ = json.Marshal(id)
		body["updated_at"] = json.RawMessage(`"2025-01-01T00:00:00"`)
		b.flows[id], _ = json.Marshal(body)
		w.WriteHeader(http.StatusCreated)
		_, _ = fmt.Fprintf(w, `{"id":%q}`, id)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/v1/flows/"):
		body, ok := b.flows[strings.TrimPrefix(r.URL.Path, "/api/v1/flows/")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(body)
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/projects/":
		if b.folderStatus != 0 {
			w.WriteHeader(b.folderStatus)
			return
		}
		b.folders++
		_, _ = fmt.Fprintf(w, `{"id":"folder-%d"}`, b.folders)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type testEnv struct {
	e          *echo.Echo
	store      *repository.MemoryStore
	builder    *builderStub
	builderURL string
	reply      func() (string, error)
	userID     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:   repository.NewMemoryStore(),
		builder: &builderStub{flows: map[string][]byte{}},
		reply:   func() (string, error) { return testsupport.ChatbotJSON(), nil },
	}
	srv := httptest.NewServer(env.builder)
	t.Cleanup(srv.Close)
	env.builderURL = srv.URL

	u, err := env.store.CreateUser(context.Background(), &models.User{ExternalID: "alice@example.com", Username: "alice"})
	require.NoError(t, err)
	env.userID = u.ID

	logger := logging.Nop()
	backend := generation.BackendFunc(func(ctx context.Context, system string, messages []generation.Message) (string, error) {
		return env.reply()
	})
	adapter := generation.NewAdapter(backend, catalog.Default(), logger)
	client := langflow.NewClient(srv.URL, "", time.Second, srv.Client())

	workflows := services.NewWorkflowService(env.store, adapter, client, logger)
	provisioner := services.NewWorkspaceProvisioner(env.store, client, logger)
	s := NewServer(workflows, provisioner, srv.URL+"/", catalog.Default(), logger)

	env.e = NewEcho()
	env.e.GET("/health", s.HandleHealth)
	g := env.e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if id := c.Request().Header.Get(testUserHeader); id != "" {
				ctx := auth.WithPrincipal(c.Request().Context(), auth.Principal{UserID: id, Username: "alice"})
				c.SetRequest(c.Request().WithContext(ctx))
			}
			return next(c)
		}
	})
	RegisterHandlers(g, s)
	return env
}

func (env *testEnv) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, r)
	if r != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if user != "" {
		req.Header.Set(testUserHeader, user)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func conversation(text string) map[string]any {
	return map[string]any{"messages": []map[string]string{{"role": "user", "content": text}}}
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[HealthStatus](t, rec).Status)
}

func TestGenerate_ValidWorkflow(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/generate", env.userID, conversation("search the web and summarize"))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[GenerateResponse](t, rec)
	assert.True(t, res.IsValid)
	require.NotNil(t, res.Workflow)
	assert.Len(t, res.Workflow.Nodes(), 4)
	assert.Equal(t, testsupport.ChatbotJSON(), res.Content)
	require.NotNil(t, res.Explanation)
	assert.NotEmpty(t, res.Explanation.Overview)
	assert.Contains(t, rec.Body.String(), "œdataTypeœ")
}

func TestGenerate_ProseKeepsRawText(t *testing.T) {
	env := newTestEnv(t)
	env.reply = func() (string, error) { return "I can't build that, could you say more?", nil }

	rec := env.do(t, http.MethodPost, "/api/v1/generate", env.userID, conversation("hello"))

	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[GenerateResponse](t, rec)
	assert.False(t, res.IsValid)
	assert.Nil(t, res.Workflow)
	assert.Equal(t, "I can't build that, could you say more?", res.Content)
}

func TestGenerate_BadRequests(t *testing.T) {
	env := newTestEnv(t)
	for name, body := range map[string]any{
		"no messages":  map[string]any{"messages": []any{}},
		"unknown role": map[string]any{"messages": []map[string]string{{"role": "system", "content": "x"}}},
		"not json":     "{",
	} {
		t.Run(name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/generate", env.userID, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, "application/problem+json", rec.Header().Get(echo.HeaderContentType))
		})
	}
}

func TestGenerate_UpstreamFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"application", &apperr.UpstreamError{Service: "generator", Op: "complete", Kind: apperr.KindApplication, Status: 500}, http.StatusBadGateway},
		{"rate limited", &apperr.UpstreamError{Service: "generator", Op: "complete", Kind: apperr.KindRateLimited, Status: 429}, http.StatusTooManyRequests},
		{"timeout", &apperr.TimeoutError{Service: "generator", Op: "complete"}, http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.reply = func() (string, error) { return "", tc.err }

			rec := env.do(t, http.MethodPost, "/api/v1/generate", env.userID, conversation("x"))

			assert.Equal(t, tc.code, rec.Code)
			p := decode[ProblemDetails](t, rec)
			assert.Equal(t, tc.code, p.Status)
			assert.Equal(t, "/api/v1/generate", p.Instance)
		})
	}
}

func TestGenerate_OverlappingSessionIsRejected(t *testing.T) {
	// Without a session header the caller's requests share one conversation.
	for name, session := range map[string]string{"session header": "session-1", "no session header": ""} {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)
			started := make(chan struct{})
			release := make(chan struct{})
			env.reply = func() (string, error) {
				close(started)
				<-release
				return testsupport.ChatbotJSON(), nil
			}

			send := func() *httptest.ResponseRecorder {
				raw, _ := json.Marshal(conversation("x"))
				req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", strings.NewReader(string(raw)))
				req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
				req.Header.Set(testUserHeader, env.userID)
				if session != "" {
					req.Header.Set(SessionHeader, session)
				}
				rec := httptest.NewRecorder()
				env.e.ServeHTTP(rec, req)
				return rec
			}

			first := make(chan *httptest.ResponseRecorder, 1)
			go func() { first <- send() }()
			<-started

			second := send()
			close(release)

			assert.Equal(t, http.StatusConflict, second.Code)
			assert.Equal(t, http.StatusOK, (<-first).Code)
		})
	}
}

func TestGenerate_InvalidGraphIsNotReturned(t *testing.T) {
	env := newTestEnv(t)
	env.reply = func() (string, error) {
		return `{"workflow":{"name":"bad","data":{"nodes":[
		  {"id":"ChatInput-aaaaaa","type":"genericNode","data":{"type":"ChatInput","node":{"template":{}}}}],
		 "edges":[{"source":"ChatInput-aaaaaa","target":"Agent-zzzzzz",
		  "sourceHandle":"{œdataTypeœ:œChatInputœ,œidœ:œChatInput-aaaaaaœ,œnameœ:œmessageœ,œoutput_typesœ:[œMessageœ]}",
		  "targetHandle":"{œfieldNameœ:œinput_valueœ,œidœ:œAgent-zzzzzzœ,œinputTypesœ:[œMessageœ],œtypeœ:œstrœ}"}]}}}`, nil
	}

	rec := env.do(t, http.MethodPost, "/api/v1/generate", env.userID, conversation("x"))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "workflow")
	assert.Nil(t, body["workflow"])
	assert.Equal(t, false, body["isValid"])
	assert.NotEmpty(t, body["errors"])
}

func TestGenerateAndSave_SavesAndPushesToWorkspace(t *testing.T) {
	env := newTestEnv(t)
	body := conversation("search the web")
	body["push"] = true

	rec := env.do(t, http.MethodPost, "/api/v1/workflows/generate", env.userID, body)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[GenerateAndSaveResponse](t, rec)
	require.NotNil(t, res.Saved)
	require.NotNil(t, res.Push)
	assert.Nil(t, res.PushError)
	assert.Equal(t, env.builderURL+"/flow/"+res.Push.FlowID, res.Push.FlowURL)
	assert.Equal(t, "folder-1", env.builder.lastFolderID)

	stored, err := env.store.GetWorkflow(context.Background(), env.userID, res.Saved.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LangflowFlowID)
	assert.Equal(t, res.Push.FlowID, *stored.LangflowFlowID)
}

func TestGenerateAndSave_PushFailureKeepsRecord(t *testing.T) {
	env := newTestEnv(t)
	env.builder.flowStatus = http.StatusInternalServerError
	body := conversation("search the web")
	body["push"] = true
	body["folderId"] = "explicit-folder"

	rec := env.do(t, http.MethodPost, "/api/v1/workflows/generate", env.userID, body)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[GenerateAndSaveResponse](t, rec)
	require.NotNil(t, res.Saved)
	assert.Nil(t, res.Push)
	require.NotNil(t, res.PushError)
	assert.Equal(t, http.StatusBadGateway, res.PushError.Status)
	assert.Zero(t, env.builder.folders, "an explicit folder skips provisioning")

	list, err := env.store.ListWorkflows(context.Background(), env.userID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestGenerateAndSave_InvalidOutputSavesNothing(t *testing.T) {
	env := newTestEnv(t)
	env.reply = func() (string, error) { return "no graph here", nil }

	rec := env.do(t, http.MethodPost, "/api/v1/workflows/generate", env.userID, conversation("x"))

	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[GenerateAndSaveResponse](t, rec)
	assert.False(t, res.IsValid)
	assert.Nil(t, res.Saved)

	list, err := env.store.ListWorkflows(context.Background(), env.userID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func importBody(env *testEnv, base string) map[string]any {
	return map[string]any{"workflow": testsupport.ChatbotGraph(), "builderBaseUrl": base}
}

func TestImportFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/langflow/import", env.userID, importBody(env, env.builderURL))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[ImportResponse](t, rec)
	assert.True(t, res.Success)
	assert.Equal(t, env.builderURL+"/flow/"+res.FlowID, res.FlowURL)

	again := decode[ImportResponse](t, env.do(t, http.MethodPost, "/api/v1/langflow/import", env.userID, importBody(env, env.builderURL+"/")))
	assert.NotEqual(t, res.FlowID, again.FlowID, "every import creates a new flow")
}

func TestImportFlow_Errors(t *testing.T) {
	t.Run("foreign builder", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodPost, "/api/v1/langflow/import", env.userID, importBody(env, "http://evil.example"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		be := decode[BuilderError](t, rec)
		assert.Equal(t, http.StatusBadRequest, be.Status)
		assert.NotEmpty(t, be.Error)
		assert.Empty(t, env.builder.flows)
	})

	t.Run("invalid graph", func(t *testing.T) {
		env := newTestEnv(t)
		g := testsupport.ChatbotGraph()
		g.Data.Nodes = g.Data.Nodes[:3]
		rec := env.do(t, http.MethodPost, "/api/v1/langflow/import", env.userID,
			map[string]any{"workflow": g, "builderBaseUrl": env.builderURL})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Empty(t, env.builder.flows)
	})

	t.Run("builder failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.builder.flowStatus = http.StatusInternalServerError
		rec := env.do(t, http.MethodPost, "/api/v1/langflow/import", env.userID, importBody(env, env.builderURL))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, http.StatusBadGateway, decode[BuilderError](t, rec).Status)
	})
}

func TestSyncFlow(t *testing.T) {
	env := newTestEnv(t)
	pushed := decode[ImportResponse](t, env.do(t, http.MethodPost, "/api/v1/langflow/import", env.userID, importBody(env, env.builderURL)))

	rec := env.do(t, http.MethodPost, "/api/v1/langflow/sync", env.userID, map[string]string{"flowId": pushed.FlowID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[SyncResponse](t, rec)
	assert.True(t, res.Success)
	assert.Equal(t, "Web Search Chatbot", res.Workflow.Name)
	assert.Len(t, res.Workflow.Data.Nodes, 4)
	assert.Equal(t, "2025-01-01T00:00:00", res.Workflow.UpdatedAt)

	missing := env.do(t, http.MethodPost, "/api/v1/langflow/sync", env.userID, map[string]string{"flowId": "nope"})
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, http.StatusNotFound, decode[BuilderError](t, missing).Status)

	empty := env.do(t, http.MethodPost, "/api/v1/langflow/sync", env.userID, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, empty.Code)

	env.builder.mu.Lock()
	env.builder.flows["garbled"] = []byte(`{"id":"garbled","data":{"nodes":"oops"}}`)
	env.builder.mu.Unlock()
	garbled := env.do(t, http.MethodPost, "/api/v1/langflow/sync", env.userID, map[string]string{"flowId": "garbled"})
	assert.Equal(t, http.StatusBadGateway, garbled.Code)
	assert.Equal(t, http.StatusBadGateway, decode[BuilderError](t, garbled).Status)
}

func TestProvisionFolder(t *testing.T) {
	env := newTestEnv(t)

	first := decode[FolderResponse](t, env.do(t, http.MethodPost, "/api/v1/langflow/folder", env.userID, map[string]string{"userId": env.userID}))
	require.NotNil(t, first.FolderID)
	assert.True(t, first.IsNew)

	second := decode[FolderResponse](t, env.do(t, http.MethodPost, "/api/v1/langflow/folder", env.userID, map[string]string{"userId": env.userID}))
	require.NotNil(t, second.FolderID)
	assert.Equal(t, *first.FolderID, *second.FolderID)
	assert.False(t, second.IsNew)
	assert.Equal(t, 1, env.builder.folders)
}

func TestProvisionFolder_OtherUserIsForbidden(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/langflow/folder", env.userID, map[string]string{"userId": "someone-else"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, env.builder.folders)
}

func TestProvisionFolder_DegradesToNull(t *testing.T) {
	env := newTestEnv(t)
	env.builder.folderStatus = http.StatusInternalServerError

	rec := env.do(t, http.MethodPost, "/api/v1/langflow/folder", env.userID, map[string]string{"userId": env.userID})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"folderId":null,"isNew":false}`, rec.Body.String())
}

func TestWorkflowCRUD(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/workflows", env.userID,
		map[string]any{"name": "Chatbot", "workflow_json": testsupport.ChatbotGraph()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.SavedWorkflow](t, rec)
	assert.Equal(t, env.userID, created.OwnerID)

	list := decode[[]models.SavedWorkflow](t, env.do(t, http.MethodGet, "/api/v1/workflows", env.userID, nil))
	require.Len(t, list, 1)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/workflows/"+created.ID, "intruder", nil).Code)
	assert.JSONEq(t, `[]`, env.do(t, http.MethodGet, "/api/v1/workflows", "intruder", nil).Body.String())

	rec = env.do(t, http.MethodPatch, "/api/v1/workflows/"+created.ID, env.userID,
		map[string]any{"name": "Renamed", "langflow_flow_id": "forged"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[models.SavedWorkflow](t, rec)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Nil(t, updated.LangflowFlowID)
	assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/v1/workflows/"+created.ID, env.userID, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/workflows/"+created.ID, env.userID, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/v1/workflows/"+created.ID, env.userID, nil).Code)
}

func TestCreateWorkflow_InvalidGraph(t *testing.T) {
	env := newTestEnv(t)
	g := testsupport.ChatbotGraph()
	g.Data.Edges[0].SourceHandle = "garbage"

	rec := env.do(t, http.MethodPost, "/api/v1/workflows", env.userID, map[string]any{"workflow_json": g})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	p := decode[ProblemDetails](t, rec)
	require.NotEmpty(t, p.Errors)
	assert.Equal(t, "structural", p.Errors[0].Stage)
}

func TestPushAndSyncSavedWorkflow(t *testing.T) {
	env := newTestEnv(t)
	created := decode[models.SavedWorkflow](t, env.do(t, http.MethodPost, "/api/v1/workflows", env.userID,
		map[string]any{"name": "Chatbot", "workflow_json": testsupport.ChatbotGraph()}))

	notLinked := env.do(t, http.MethodPost, "/api/v1/workflows/"+created.ID+"/sync", env.userID, nil)
	assert.Equal(t, http.StatusConflict, notLinked.Code)

	rec := env.do(t, http.MethodPost, "/api/v1/workflows/"+created.ID+"/push", env.userID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pushed := decode[ImportResponse](t, rec)
	assert.Equal(t, "folder-1", env.builder.lastFolderID)

	rec = env.do(t, http.MethodPost, "/api/v1/workflows/"+created.ID+"/sync", env.userID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	synced := decode[models.SavedWorkflow](t, rec)
	require.NotNil(t, synced.LangflowFlowID)
	assert.Equal(t, pushed.FlowID, *synced.LangflowFlowID)
	assert.Equal(t, "Web Search Chatbot", synced.Name)
}

func TestValidateWorkflow(t *testing.T) {
	env := newTestEnv(t)

	ok := decode[ValidateResponse](t, env.do(t, http.MethodPost, "/api/v1/validate", env.userID, testsupport.ChatbotGraph()))
	assert.True(t, ok.Valid)
	assert.Empty(t, ok.Errors)

	bad := decode[ValidateResponse](t, env.do(t, http.MethodPost, "/api/v1/validate", env.userID, "Sure! Here is your flow."))
	assert.False(t, bad.Valid)
	require.NotEmpty(t, bad.Errors)
	assert.Equal(t, "structural", bad.Errors[0].Stage)

	g := testsupport.ChatbotGraph()
	g.Data.Nodes = append(g.Data.Nodes, testsupport.NewNode("MysteryBox-abc123", "MysteryBox"))
	g.Data.Nodes[len(g.Data.Nodes)-1].Data.Node.Template = map[string]flowgraph.TemplateField{}
	assert.True(t, decode[ValidateResponse](t, env.do(t, http.MethodPost, "/api/v1/validate", env.userID, g)).Valid)
	assert.False(t, decode[ValidateResponse](t, env.do(t, http.MethodPost, "/api/v1/validate?strict=true", env.userID, g)).Valid)
}

func TestUnauthenticatedRequest(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/workflows", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, http.StatusUnauthorized, decode[ProblemDetails](t, rec).Status)
}
