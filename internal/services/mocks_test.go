package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"flowsmith/backend/internal/generation"
	"flowsmith/backend/internal/langflow"
	"flowsmith/backend/pkg/flowgraph"
)

type mockBuilder struct {
	mock.Mock
}

func (m *mockBuilder) Push(ctx context.Context, g *flowgraph.FlowGraph, folderID string) (*langflow.PushResult, error) {
	args := m.Called(ctx, g, folderID)
	res, _ := args.Get(0).(*langflow.PushResult)
	return res, args.Error(1)
}

func (m *mockBuilder) Pull(ctx context.Context, flowID string) (*langflow.RemoteFlow, error) {
	args := m.Called(ctx, flowID)
	res, _ := args.Get(0).(*langflow.RemoteFlow)
	return res, args.Error(1)
}

func (m *mockBuilder) CreateProject(ctx context.Context, name, description string) (string, error) {
	args := m.Called(ctx, name, description)
	return args.String(0), args.Error(1)
}

func (m *mockBuilder) CreateFolder(ctx context.Context, name, description string) (string, error) {
	args := m.Called(ctx, name, description)
	return args.String(0), args.Error(1)
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, sess *generation.Session) (*generation.Result, error) {
	args := m.Called(ctx, sess)
	res, _ := args.Get(0).(*generation.Result)
	return res, args.Error(1)
}
