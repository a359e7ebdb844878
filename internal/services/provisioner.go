package services

import (
	"context"

	"golang.org/x/sync/singleflight"

	"flowsmith/backend/internal/apperr"
	"flowsmith/backend/internal/logging"
	"flowsmith/backend/internal/repository"
)

const folderNamePrefixLen = 8

// ProvisionResult reports the user's workspace folder. An empty FolderID
// means provisioning failed and flows go to the unscoped namespace.
type ProvisionResult struct {
	FolderID string `json:"folderId"`
	IsNew    bool   `json:"isNew"`
}

// WorkspaceProvisioner lazily creates one builder folder per user.
type WorkspaceProvisioner struct {
	users   repository.UserStore
	builder Builder
	logger  *logging.Logger
	metrics *counters
	flight  singleflight.Group
}

// NewWorkspaceProvisioner creates a WorkspaceProvisioner.
func NewWorkspaceProvisioner(users repository.UserStore, builder Builder, logger *logging.Logger) *WorkspaceProvisioner {
	return &WorkspaceProvisioner{
		users:   users,
		builder: builder,
		logger:  logger.With("component", "provisioner"),
		metrics: newCounters(),
	}
}

// Provision returns the user's folder, creating it on first use. A stored
// folder is returned without any remote call. Remote failures degrade to an
// empty result and are logged, never returned; only a failing user lookup
// is an error.
func (p *WorkspaceProvisioner) Provision(ctx context.Context, userID, username string) (ProvisionResult, error) {
	u, err := p.users.GetUser(ctx, userID)
	if err != nil {
		return ProvisionResult{}, err
	}
	if u.HasFolder() {
		return ProvisionResult{FolderID: *u.FolderID}, nil
	}
	if username == "" {
		username = u.Username
	}

	// Concurrent first use within this process shares one remote creation.
	v, _, _ := p.flight.Do(userID, func() (any, error) {
		return p.create(context.WithoutCancel(ctx), userID, username), nil
	})
	return v.(ProvisionResult), nil
}

func (p *WorkspaceProvisioner) create(ctx context.Context, userID, username string) ProvisionResult {
	log := p.logger.With("user_id", userID)

	// The record may have been completed while this call waited.
	if u, err := p.users.GetUser(ctx, userID); err == nil && u.HasFolder() {
		return ProvisionResult{FolderID: *u.FolderID}
	}

	name := FolderName(userID, username)
	const description = "Flows generated by flowsmith"

	id, err := p.builder.CreateProject(ctx, name, description)
	if apperr.IsMethodNotAllowed(err) {
		log.Debug("projects endpoint not allowed, using folders endpoint")
		id, err = p.builder.CreateFolder(ctx, name, description)
	}
	if err != nil {
		record(ctx, p.metrics.provisions, "degraded")
		log.Warn("folder provisioning failed, using unscoped namespace", "error", err)
		return ProvisionResult{}
	}

	stored, err := p.users.SetFolderID(ctx, userID, id)
	if err != nil {
		record(ctx, p.metrics.provisions, "unsaved")
		log.Error("failed to store folder id", "folder_id", id, "error", err)
		return ProvisionResult{FolderID: id, IsNew: true}
	}
	if stored != id {
		// Another process stored a folder first; ours is orphaned remotely.
		log.Warn("folder already provisioned elsewhere", "orphan_folder_id", id, "folder_id", stored)
		record(ctx, p.metrics.provisions, "raced")
		return ProvisionResult{FolderID: stored}
	}
	record(ctx, p.metrics.provisions, "created")
	log.Info("workspace folder created", "folder_id", id, "name", name)
	return ProvisionResult{FolderID: id, IsNew: true}
}

// FolderName is username, or the first eight characters of userID when no
// username is known.
func FolderName(userID, username string) string {
	if username != "" {
		return username
	}
	if len(userID) > folderNamePrefixLen {
		return userID[:folderNamePrefixLen]
	}
	return userID
}
