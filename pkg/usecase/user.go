package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/slackdir/pkg/domain/interfaces"
	"github.com/secmon-lab/slackdir/pkg/domain/model"
	"github.com/secmon-lab/slackdir/pkg/service/usercache"
)

// UserUseCase exposes the user cache to controllers
type UserUseCase struct {
	cache    *usercache.Cache
	registry *model.WorkspaceRegistry
	syncer   interfaces.WorkspaceSyncer
}

// NewUserUseCase creates a UserUseCase. registry may be nil to accept any workspace ID.
func NewUserUseCase(cache *usercache.Cache, registry *model.WorkspaceRegistry, syncer interfaces.WorkspaceSyncer) *UserUseCase {
	return &UserUseCase{
		cache:    cache,
		registry: registry,
		syncer:   syncer,
	}
}

// CheckWorkspace rejects an empty workspace ID and, when a registry is set, unknown workspaces
func (uc *UserUseCase) CheckWorkspace(workspaceID string) error {
	if workspaceID == "" {
		return model.ErrInvalidWorkspaceContext
	}
	if uc.registry != nil && !uc.registry.Has(workspaceID) {
		return goerr.Wrap(model.ErrWorkspaceNotFound, "workspace is not configured",
			goerr.V(WorkspaceIDKey, workspaceID))
	}
	return nil
}

// ListWorkspaces returns the configured workspaces
func (uc *UserUseCase) ListWorkspaces() []model.Workspace {
	if uc.registry == nil {
		return []model.Workspace{}
	}
	return uc.registry.Workspaces()
}

// GetUser returns a user or nil when unknown
func (uc *UserUseCase) GetUser(ctx context.Context, workspaceID string, userID model.SlackUserID) (*model.SlackUser, error) {
	if err := uc.CheckWorkspace(workspaceID); err != nil {
		return nil, err
	}
	return uc.cache.Get(ctx, workspaceID, userID)
}

// ListUsers returns the users of a workspace
func (uc *UserUseCase) ListUsers(ctx context.Context, workspaceID string) ([]*model.SlackUser, error) {
	if err := uc.CheckWorkspace(workspaceID); err != nil {
		return nil, err
	}
	return uc.cache.GetWorkspaceUsers(ctx, workspaceID)
}

// RefreshUser re-reads one user into the cache
func (uc *UserUseCase) RefreshUser(ctx context.Context, workspaceID string, userID model.SlackUserID) (*model.SlackUser, error) {
	if err := uc.CheckWorkspace(workspaceID); err != nil {
		return nil, err
	}
	return uc.cache.RefreshUser(ctx, workspaceID, userID)
}

// RefreshWorkspace replaces the cached users of a workspace
func (uc *UserUseCase) RefreshWorkspace(ctx context.Context, workspaceID string) ([]*model.SlackUser, error) {
	if err := uc.CheckWorkspace(workspaceID); err != nil {
		return nil, err
	}
	return uc.cache.RefreshWorkspace(ctx, workspaceID)
}

// SyncWorkspace pulls the workspace from Slack into the repository and the cache
func (uc *UserUseCase) SyncWorkspace(ctx context.Context, workspaceID string) (*model.SyncResult, error) {
	if err := uc.CheckWorkspace(workspaceID); err != nil {
		return nil, err
	}
	if uc.syncer == nil {
		return nil, ErrSyncUnavailable
	}
	return uc.syncer.SyncWorkspace(ctx, workspaceID)
}

// CacheStats reports the cache state
func (uc *UserUseCase) CacheStats() usercache.Stats {
	return uc.cache.Stats()
}

// SetCacheTTL changes the cache freshness window
func (uc *UserUseCase) SetCacheTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return goerr.Wrap(ErrInvalidTTL, "invalid TTL", goerr.V("ttl", ttl))
	}
	uc.cache.SetTTL(ttl)
	return nil
}
