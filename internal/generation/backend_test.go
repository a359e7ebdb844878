package generation

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowsmith/backend/internal/apperr"
)

func newTestBackend(t *testing.T, h http.HandlerFunc, timeout time.Duration) *OpenAIBackend {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewOpenAIBackend(OpenAIConfig{BaseURL: srv.URL + "/v1", APIKey: "sk-test", Model: "gpt-test", Timeout: timeout})
}

func TestOpenAIBackend_Complete(t *testing.T) {
	var req struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &req))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}]}`))
	}, time.Second)

	out, err := b.Complete(context.Background(), "system text", []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	assert.Equal(t, "gpt-test", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "system text", req.Messages[0].Content)
	assert.Equal(t, "hi", req.Messages[1].Content)
}

func TestOpenAIBackend_RateLimited(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`))
	}, time.Second)

	_, err := b.Complete(context.Background(), "s", nil)
	var ue *apperr.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, apperr.KindRateLimited, ue.Kind)
	assert.Equal(t, http.StatusTooManyRequests, ue.Status)
	assert.True(t, ue.Retryable())
}

func TestOpenAIBackend_ApplicationError(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad model","type":"invalid_request_error"}}`))
	}, time.Second)

	_, err := b.Complete(context.Background(), "s", nil)
	var ue *apperr.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, apperr.KindApplication, ue.Kind)
	assert.Equal(t, "bad model", ue.Body)
	assert.False(t, ue.Retryable())
}

func TestOpenAIBackend_Timeout(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, 50*time.Millisecond)

	_, err := b.Complete(context.Background(), "s", nil)
	var te *apperr.TimeoutError
	require.ErrorAs(t, err, &te)
	var ue *apperr.UpstreamError
	assert.False(t, errors.As(err, &ue), "timeouts are not upstream errors")
}

func TestOpenAIBackend_ConnectivityFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	b := NewOpenAIBackend(OpenAIConfig{BaseURL: url, Timeout: time.Second})

	_, err := b.Complete(context.Background(), "s", nil)
	var ue *apperr.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, apperr.KindConnectivity, ue.Kind)
}

func TestOpenAIBackend_NoChoices(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"c1","choices":[]}`))
	}, time.Second)

	_, err := b.Complete(context.Background(), "s", nil)
	var ue *apperr.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, apperr.KindMalformed, ue.Kind)
}
