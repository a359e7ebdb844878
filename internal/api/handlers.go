// Package api contains the HTTP handlers for the flow generation service.
package api

import (
	"errors"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v4"

	"flowsmith/backend/internal/apperr"
	"flowsmith/backend/internal/auth"
	"flowsmith/backend/internal/generation"
	"flowsmith/backend/internal/logging"
	"flowsmith/backend/internal/services"
	"flowsmith/backend/pkg/flowgraph"
)

// Server holds the dependencies for the API server.
type Server struct {
	workflows      *services.WorkflowService
	provisioner    *services.WorkspaceProvisioner
	builderBaseURL string
	catalog        flowgraph.Catalog
	logger         *logging.Logger
	now            func() time.Time
}

// NewServer creates a new Server. builderBaseURL is the only builder the
// import endpoint will talk to.
func NewServer(workflows *services.WorkflowService, provisioner *services.WorkspaceProvisioner, builderBaseURL string, cat flowgraph.Catalog, logger *logging.Logger) *Server {
	return &Server{
		workflows:      workflows,
		provisioner:    provisioner,
		builderBaseURL: normalizeBaseURL(builderBaseURL),
		catalog:        cat,
		logger:         logger.With("component", "api"),
		now:            time.Now,
	}
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// HandleHealth returns basic health status (always returns 200 OK)
func (s *Server) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthStatus{
		Status:    "ok",
		Timestamp: s.now(),
		Service:   "flowsmith",
		Version:   "1.0.0",
	})
}

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string                     `json:"type"`
	Title    string                     `json:"title"`
	Status   int                        `json:"status"`
	Detail   string                     `json:"detail"`
	Instance string                     `json:"instance,omitempty"`
	Errors   flowgraph.ValidationErrors `json:"errors,omitempty"`
}

// statusOf maps a service error onto an HTTP status and title.
func statusOf(err error) (int, string) {
	var (
		verrs    flowgraph.ValidationErrors
		notFound *apperr.NotFoundError
		denied   *apperr.AuthorizationError
		timeout  *apperr.TimeoutError
		upstream *apperr.UpstreamError
		race     *apperr.RaceError
		httpErr  *echo.HTTPError
	)
	switch {
	case errors.As(err, &verrs):
		return http.StatusUnprocessableEntity, "Invalid workflow"
	case errors.As(err, &notFound):
		return http.StatusNotFound, "Not found"
	case errors.As(err, &denied):
		return http.StatusForbidden, "Forbidden"
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout, "Upstream timeout"
	case errors.As(err, &upstream):
		if upstream.Kind == apperr.KindRateLimited {
			return http.StatusTooManyRequests, "Upstream rate limited"
		}
		return http.StatusBadGateway, "Upstream failure"
	case errors.As(err, &race), errors.Is(err, generation.ErrGenerationInFlight), errors.Is(err, services.ErrNotLinked):
		return http.StatusConflict, "Conflict"
	case errors.As(err, &httpErr):
		return httpErr.Code, http.StatusText(httpErr.Code)
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

func detailOf(err error) string {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		if msg, ok := httpErr.Message.(string); ok {
			return msg
		}
	}
	return err.Error()
}

// writeError writes an RFC 7807 Problem Details JSON error response
func (s *Server) writeError(c echo.Context, err error) error {
	status, title := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "status", status, "error", err)
	}
	problem := ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detailOf(err),
		Instance: c.Request().URL.Path,
	}
	var verrs flowgraph.ValidationErrors
	if errors.As(err, &verrs) {
		problem.Errors = verrs
	}
	return writeJSONType(c, status, "application/problem+json", problem)
}

// BuilderError is the error body of the builder-facing endpoints.
type BuilderError struct {
	Error   string `json:"error"`
	Status  int    `json:"status"`
	Details string `json:"details,omitempty"`
}

// writeBuilderError writes err in the {error, status, details} shape the
// builder endpoints promise.
func (s *Server) writeBuilderError(c echo.Context, err error) error {
	status, title := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("builder request failed", "path", c.Path(), "status", status, "error", err)
	}
	return c.JSON(status, BuilderError{Error: title, Status: status, Details: detailOf(err)})
}

func writeJSONType(c echo.Context, status int, contentType string, v any) error {
	body, err := json.MarshalNoEscape(v)
	if err != nil {
		return err
	}
	return c.Blob(status, contentType, body)
}

// callerID returns the authenticated user id or a 401.
func callerID(c echo.Context) (string, error) {
	p, ok := auth.PrincipalFrom(c.Request().Context())
	if !ok {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "no authenticated user in request")
	}
	return p.UserID, nil
}
