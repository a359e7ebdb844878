package flowgraph

import (
	"fmt"
	"strings"
)

// Validation stages, in the order Validate runs them.
const (
	StageStructural  = "structural"
	StageReferential = "referential"
	StageSemantic    = "semantic"
)

// ValidationError is a single structural or semantic defect of a graph.
type ValidationError struct {
	Stage   string `json:"stage"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Stage, e.Path, e.Message)
}

// ValidationErrors collects every defect found in one stage.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Stage returns the stage the errors were raised in, or "" if empty.
func (e ValidationErrors) Stage() string {
	if len(e) == 0 {
		return ""
	}
	return e[0].Stage
}
