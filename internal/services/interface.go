package services

import (
	"context"

	"flowsmith/backend/internal/generation"
	"flowsmith/backend/internal/langflow"
	"flowsmith/backend/pkg/flowgraph"
)

// Builder is the remote builder surface the services depend on.
type Builder interface {
	Push(ctx context.Context, g *flowgraph.FlowGraph, folderID string) (*langflow.PushResult, error)
	Pull(ctx context.Context, flowID string) (*langflow.RemoteFlow, error)
	CreateProject(ctx context.Context, name, description string) (string, error)
	CreateFolder(ctx context.Context, name, description string) (string, error)
}

// Generator produces flow graphs from a conversation.
type Generator interface {
	Generate(ctx context.Context, sess *generation.Session) (*generation.Result, error)
}
