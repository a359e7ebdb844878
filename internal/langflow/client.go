// Package langflow talks to the remote Langflow builder: it pushes flows,
// pulls their current state and creates workspace folders.
package langflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"flowsmith/backend/internal/apperr"
	"flowsmith/backend/pkg/flowgraph"
)

const (
	serviceName    = "builder"
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 16 << 20
)

// PushResult identifies a flow created on the builder.
type PushResult struct {
	FlowID  string `json:"flowId"`
	FlowURL string `json:"flowUrl"`
}

// RemoteFlow is the builder's authoritative copy of a flow.
type RemoteFlow struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Data        json.RawMessage `json:"data"`
	UpdatedAt   string          `json:"updated_at"`
}

// Graph decodes the remote flow into a FlowGraph.
func (f *RemoteFlow) Graph() (*flowgraph.FlowGraph, error) {
	if len(f.Data) == 0 || string(f.Data) == "null" {
		return nil, flowgraph.ValidationErrors{{Stage: flowgraph.StageStructural, Path: "data", Message: "remote flow has no data"}}
	}
	doc, err := json.Marshal(struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Data        json.RawMessage `json:"data"`
	}{f.ID, f.Name, f.Description, f.Data})
	if err != nil {
		return nil, err
	}
	return flowgraph.Parse(doc)
}

// Client is an HTTP client for the builder REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	timeout time.Duration
}

// NewClient creates a client for the builder at baseURL. A zero timeout
// means thirty seconds; a nil httpClient means http.DefaultClient.
func NewClient(baseURL, apiKey string, timeout time.Duration, httpClient *http.Client) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpClient,
		timeout: timeout,
	}
}

// BaseURL returns the normalized builder address.
func (c *Client) BaseURL() string { return c.baseURL }

// FlowURL returns the editor URL of flowID.
func (c *Client) FlowURL(flowID string) string {
	return c.baseURL + "/flow/" + flowID
}

type createFlowRequest struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Data        flowgraph.GraphData `json:"data"`
	IsComponent bool                `json:"is_component"`
	FolderID    *string             `json:"folder_id,omitempty"`
}

// Push creates a new remote flow from g. Every call creates a new flow.
func (c *Client) Push(ctx context.Context, g *flowgraph.FlowGraph, folderID string) (*PushResult, error) {
	body := createFlowRequest{
		Name:        g.Name,
		Description: g.Description,
		Data:        g.Data,
		IsComponent: g.IsComponent,
	}
	if folderID != "" {
		body.FolderID = &folderID
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/flows/", "push", body, &created, ""); err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, &apperr.UpstreamError{Service: serviceName, Op: "push", Kind: apperr.KindMalformed, Status: http.StatusOK, Body: "response has no flow id"}
	}
	return &PushResult{FlowID: created.ID, FlowURL: c.FlowURL(created.ID)}, nil
}

// Pull fetches the current state of flowID. A missing flow yields
// *apperr.NotFoundError; a success body whose data is not a flow graph is
// reported as a malformed upstream response.
func (c *Client) Pull(ctx context.Context, flowID string) (*RemoteFlow, error) {
	var flow RemoteFlow
	if err := c.do(ctx, http.MethodGet, "/api/v1/flows/"+url.PathEscape(flowID), "pull", nil, &flow, flowID); err != nil {
		return nil, err
	}
	if flow.ID == "" {
		flow.ID = flowID
	}
	if _, err := flow.Graph(); err != nil {
		return nil, &apperr.UpstreamError{Service: serviceName, Op: "pull", Kind: apperr.KindMalformed, Status: http.StatusOK, Body: err.Error()}
	}
	return &flow, nil
}

type folderRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateProject creates a project and returns its id.
func (c *Client) CreateProject(ctx context.Context, name, description string) (string, error) {
	return c.createFolder(ctx, "/api/v1/projects/", "create project", name, description)
}

// CreateFolder creates a folder through the legacy endpoint.
func (c *Client) CreateFolder(ctx context.Context, name, description string) (string, error) {
	return c.createFolder(ctx, "/api/v1/folders/", "create folder", name, description)
}

func (c *Client) createFolder(ctx context.Context, path, op, name, description string) (string, error) {
	var created struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, path, op, folderRequest{Name: name, Description: description}, &created, ""); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", &apperr.UpstreamError{Service: serviceName, Op: op, Kind: apperr.KindMalformed, Status: http.StatusOK, Body: "response has no id"}
	}
	return created.ID, nil
}

// do performs one bounded request. A non-empty notFoundID turns a 404 into a
// NotFoundError for that flow.
func (c *Client) do(ctx context.Context, method, path, op string, in, out any, notFoundID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		raw, err := json.MarshalNoEscape(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportError(ctx, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return c.transportError(ctx, op, err)
	}

	if resp.StatusCode == http.StatusNotFound && notFoundID != "" {
		return &apperr.NotFoundError{Resource: "flow", ID: notFoundID}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		kind := apperr.KindApplication
		if resp.StatusCode == http.StatusTooManyRequests {
			kind = apperr.KindRateLimited
		}
		return &apperr.UpstreamError{Service: serviceName, Op: op, Kind: kind, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &apperr.UpstreamError{Service: serviceName, Op: op, Kind: apperr.KindMalformed, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw)), Err: err}
		}
	}
	return nil
}

func (c *Client) transportError(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &apperr.TimeoutError{Service: serviceName, Op: op, Err: err}
	}
	return &apperr.UpstreamError{Service: serviceName, Op: op, Kind: apperr.KindConnectivity, Err: err}
}
