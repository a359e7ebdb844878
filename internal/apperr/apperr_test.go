package apperr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestUpstreamError_Retryable(t *testing.T) {
	cases := []struct {
		err  *UpstreamError
		want bool
	}{
		{&UpstreamError{Kind: KindConnectivity}, true},
		{&UpstreamError{Kind: KindRateLimited, Status: 429}, true},
		{&UpstreamError{Kind: KindApplication, Status: 503}, true},
		{&UpstreamError{Kind: KindApplication, Status: 400}, false},
		{&UpstreamError{Kind: KindMalformed, Status: 200}, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.err.Retryable(), tc.err.Error())
	}
}

func TestIsRetryable_Wrapped(t *testing.T) {
	err := fmt.Errorf("push: %w", &TimeoutError{Service: "builder", Op: "push", Err: context.DeadlineExceeded})
	assert.True(t, IsRetryable(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	var ue *UpstreamError
	assert.False(t, errors.As(err, &ue))
	assert.False(t, IsRetryable(errors.New("boom")))
}

func TestIsMethodNotAllowed(t *testing.T) {
	assert.True(t, IsMethodNotAllowed(&UpstreamError{Kind: KindApplication, Status: 405}))
	assert.False(t, IsMethodNotAllowed(&UpstreamError{Kind: KindApplication, Status: 404}))
	assert.False(t, IsMethodNotAllowed(&NotFoundError{Resource: "flow", ID: "x"}))
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, `flow "abc" not found`, (&NotFoundError{Resource: "flow", ID: "abc"}).Error())
	assert.Equal(t, "builder pull: application (status 500): oops", (&UpstreamError{Service: "builder", Op: "pull", Kind: KindApplication, Status: 500, Body: "oops"}).Error())
	assert.Contains(t, (&RaceError{Entity: "workflow", ID: "w1", Seq: 1, Applied: 2}).Error(), "seq 1 <= applied 2")
	assert.True(t, IsNotFound(fmt.Errorf("x: %w", &NotFoundError{})))
}

func TestErrorMessages_LongBodyKeepsWholeCharacters(t *testing.T) {
	body := "a" + strings.Repeat("é", 200)
	msg := (&UpstreamError{Service: "builder", Op: "push", Kind: KindApplication, Status: 400, Body: body}).Error()
	assert.True(t, utf8.ValidString(msg), "cut inside a character")
	assert.True(t, strings.HasSuffix(msg, "..."))
	assert.Less(t, len(msg), len(body))
}
