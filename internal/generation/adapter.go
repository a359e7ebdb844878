// Package generation turns a design conversation into a validated flow graph
// by way of a generative backend.
package generation

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"regexp"
	"strings"
	"sync"

	json "github.com/goccy/go-json"

	"flowsmith/backend/internal/logging"
	"flowsmith/backend/pkg/catalog"
	"flowsmith/backend/pkg/flowgraph"
	"flowsmith/backend/pkg/models"
)

// ErrGenerationInFlight is returned when a session already has a generation
// running.
var ErrGenerationInFlight = errors.New("a generation is already in flight for this session")

// Session is the conversation state threaded through generation calls.
type Session struct {
	ID      string
	History []Message
	// Graph is the last valid graph produced in this session.
	Graph *flowgraph.FlowGraph
}

// Result is the outcome of one generation. A reply that is not a usable graph
// is not an error: IsValid is false and RawText keeps the reply.
type Result struct {
	RawText     string
	Graph       *flowgraph.FlowGraph
	Explanation *models.WorkflowExplanation
	IsValid     bool
	Errors      flowgraph.ValidationErrors
}

// Adapter calls the backend and validates what comes back.
type Adapter struct {
	backend Backend
	catalog *catalog.Catalog
	prompt  string
	logger  *logging.Logger
	rand    io.Reader

	mu       sync.Mutex
	inflight map[string]uint64
	tokens   uint64
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithRand sets the entropy source for generated node ids.
func WithRand(r io.Reader) Option {
	return func(a *Adapter) { a.rand = r }
}

// NewAdapter creates an Adapter that restricts output to cat.
func NewAdapter(backend Backend, cat *catalog.Catalog, logger *logging.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		backend:  backend,
		catalog:  cat,
		prompt:   cat.Prompt(),
		logger:   logger,
		rand:     rand.Reader,
		inflight: make(map[string]uint64),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Generate asks the backend for a flow answering sess.History. Upstream and
// timeout failures are returned as errors; everything else yields a Result.
// On return the assistant reply is appended to the session history.
func (a *Adapter) Generate(ctx context.Context, sess *Session) (*Result, error) {
	release, err := a.acquire(sess.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	log := a.logger.With("session_id", sess.ID)
	log.Debug("generating workflow", "turns", len(sess.History))

	text, err := a.backend.Complete(ctx, a.prompt, sess.History)
	if err != nil {
		log.Error("generation backend failed", "error", err)
		return nil, err
	}

	res := a.interpret(text)
	sess.History = append(sess.History, Message{Role: RoleAssistant, Content: text})
	if res.IsValid {
		sess.Graph = res.Graph
	}
	log.Info("generation finished", "valid", res.IsValid, "errors", len(res.Errors))
	return res, nil
}

// Interpret parses and validates a backend reply without calling the backend.
func (a *Adapter) Interpret(text string) *Result {
	return a.interpret(text)
}

func (a *Adapter) interpret(text string) *Result {
	res := &Result{RawText: text}

	graphRaw, explanationRaw, ok := splitReply(text)
	if !ok {
		return res
	}

	g, err := flowgraph.Parse(graphRaw)
	if err != nil {
		var verrs flowgraph.ValidationErrors
		if errors.As(err, &verrs) {
			res.Errors = verrs
		}
		return res
	}
	if len(explanationRaw) > 0 {
		var e models.WorkflowExplanation
		if err := json.Unmarshal(explanationRaw, &e); err == nil {
			res.Explanation = &e
		} else {
			a.logger.Warn("discarding undecodable explanation", "error", err)
		}
	}

	if err := flowgraph.NormalizeWithRand(g, a.rand, flowgraph.WithCatalog(a.catalog)); err != nil {
		a.logger.Error("normalize generated graph", "error", err)
		res.Errors = flowgraph.ValidationErrors{{Stage: flowgraph.StageStructural, Message: err.Error()}}
		return res
	}
	res.Errors = flowgraph.Validate(g, flowgraph.WithCatalog(a.catalog))
	res.IsValid = len(res.Errors) == 0
	if res.IsValid {
		res.Graph = g
	}
	return res
}

// acquire claims the in-flight slot of sessionID. Calls without a session id
// share one slot.
func (a *Adapter) acquire(sessionID string) (func(), error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, busy := a.inflight[sessionID]; busy {
		return nil, ErrGenerationInFlight
	}
	a.tokens++
	token := a.tokens
	a.inflight[sessionID] = token
	return func() {
		a.mu.Lock()
		if a.inflight[sessionID] == token {
			delete(a.inflight, sessionID)
		}
		a.mu.Unlock()
	}, nil
}

var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)```")

// extractJSON returns the JSON object embedded in a reply, if any.
func extractJSON(text string) []byte {
	s := strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	if strings.HasPrefix(s, "{") {
		return []byte(s)
	}
	start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil
	}
	return []byte(s[start : end+1])
}

// splitReply separates the graph from the optional explanation. Replies are
// either {"workflow": ..., "explanation": ...} or a bare graph.
func splitReply(text string) (graph, explanation []byte, ok bool) {
	raw := extractJSON(text)
	if raw == nil {
		return nil, nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, nil, false
	}
	if wf, found := fields["workflow"]; found && !bytes.Equal(bytes.TrimSpace(wf), []byte("null")) {
		return wf, fields["explanation"], true
	}
	return raw, nil, true
}
