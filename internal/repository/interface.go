// Package repository persists saved workflows and user records. Every
// workflow operation is scoped to an owner; a record that belongs to someone
// else is reported exactly like a missing one.
package repository

import (
	"context"

	"flowsmith/backend/pkg/models"
)

// WorkflowStore is owner-scoped CRUD over saved workflows.
type WorkflowStore interface {
	// ListWorkflows returns the owner's workflows, newest first.
	ListWorkflows(ctx context.Context, ownerID string) ([]*models.SavedWorkflow, error)
	// CreateWorkflow assigns id and timestamps and stores the record.
	CreateWorkflow(ctx context.Context, ownerID string, in models.NewWorkflow) (*models.SavedWorkflow, error)
	// GetWorkflow returns *apperr.NotFoundError when absent or not owned.
	GetWorkflow(ctx context.Context, ownerID, id string) (*models.SavedWorkflow, error)
	// UpdateWorkflow applies a sparse patch and always refreshes updated_at.
	// It reports false when the record is absent or not owned.
	UpdateWorkflow(ctx context.Context, ownerID, id string, patch models.WorkflowPatch) (bool, error)
	// DeleteWorkflow reports false when the record is absent or not owned.
	DeleteWorkflow(ctx context.Context, ownerID, id string) (bool, error)
}

// UserStore keeps the local user records.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error)
	// CreateUser inserts u, or returns the existing record with the same
	// external id.
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	// SetFolderID stores folderID unless the user already has one and
	// returns the folder id in effect afterwards.
	SetFolderID(ctx context.Context, userID, folderID string) (string, error)
}

// Store is the full persistence surface.
type Store interface {
	WorkflowStore
	UserStore
}
