package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// RequestValidator runs go-playground validation on bound request bodies.
type RequestValidator struct {
	validate *validator.Validate
}

// NewRequestValidator creates a RequestValidator.
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate implements echo.Validator.
func (v *RequestValidator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return echo.NewHTTPError(http.StatusBadRequest, fieldErrs.Error()).SetInternal(err)
	}
	return err
}

// NewEcho returns an echo instance configured for this API's JSON handling
// and request validation.
func NewEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.JSONSerializer = JSONSerializer{}
	e.Validator = NewRequestValidator()
	return e
}

// RegisterHandlers mounts the API under g, which is expected to sit behind
// authentication.
func RegisterHandlers(g *echo.Group, s *Server) {
	g.POST("/generate", s.Generate)
	g.POST("/validate", s.ValidateWorkflow)

	g.POST("/langflow/import", s.ImportFlow)
	g.POST("/langflow/sync", s.SyncFlow)
	g.POST("/langflow/folder", s.ProvisionFolder)

	g.GET("/workflows", s.ListWorkflows)
	g.POST("/workflows", s.CreateWorkflow)
	g.POST("/workflows/generate", s.GenerateAndSave)
	g.GET("/workflows/:id", s.GetWorkflow)
	g.PATCH("/workflows/:id", s.UpdateWorkflow)
	g.DELETE("/workflows/:id", s.DeleteWorkflow)
	g.POST("/workflows/:id/push", s.PushWorkflow)
	g.POST("/workflows/:id/sync", s.SyncWorkflow)
}
