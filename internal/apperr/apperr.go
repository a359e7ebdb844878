// Package apperr defines the failure kinds shared by the service layers and
// the HTTP edge.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"
)

// Kind classifies an upstream failure.
type Kind string

const (
	// KindConnectivity means no response was received.
	KindConnectivity Kind = "connectivity"
	// KindApplication means the upstream answered with a non-success status.
	KindApplication Kind = "application"
	// KindMalformed means a success status carried an undecodable body.
	KindMalformed Kind = "malformed"
	// KindRateLimited means the upstream answered 429.
	KindRateLimited Kind = "rate_limited"
)

// UpstreamError is a failed call to the generative backend or the builder.
type UpstreamError struct {
	Service string
	Op      string
	Kind    Kind
	Status  int
	Body    string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return "upstream error"
	}
	msg := fmt.Sprintf("%s %s: %s", e.Service, e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	} else if e.Body != "" {
		msg += ": " + truncate(e.Body, 256)
	}
	return msg
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Retryable reports whether repeating the call may succeed.
func (e *UpstreamError) Retryable() bool {
	switch e.Kind {
	case KindConnectivity, KindRateLimited:
		return true
	case KindApplication:
		return e.Status >= 500
	default:
		return false
	}
}

// TimeoutError is an outbound call that exceeded its deadline.
type TimeoutError struct {
	Service string
	Op      string
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %s: timed out", e.Service, e.Op)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// Retryable is always true for timeouts.
func (e *TimeoutError) Retryable() bool { return true }

// NotFoundError reports a missing resource, locally or remotely.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// AuthorizationError is an attempt to act on behalf of another owner.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	if e.Reason == "" {
		return "forbidden"
	}
	return "forbidden: " + e.Reason
}

// RaceError reports a response discarded because a newer request for the
// same entity was already applied.
type RaceError struct {
	Entity  string
	ID      string
	Seq     uint64
	Applied uint64
}

func (e *RaceError) Error() string {
	return fmt.Sprintf("stale %s response for %s: seq %d <= applied %d", e.Entity, e.ID, e.Seq, e.Applied)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsMethodNotAllowed reports whether err is an upstream 405.
func IsMethodNotAllowed(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Kind == KindApplication && ue.Status == http.StatusMethodNotAllowed
}

// IsRetryable reports whether err carries a retryable failure.
func IsRetryable(err error) bool {
	var r interface{ Retryable() bool }
	return errors.As(err, &r) && r.Retryable()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
