package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/slackdir/pkg/domain/interfaces"
	"github.com/secmon-lab/slackdir/pkg/domain/model"
	"github.com/secmon-lab/slackdir/pkg/utils/logging"
)

// CacheRefresher is the part of the user cache the worker invalidates after a sync
type CacheRefresher interface {
	RefreshWorkspace(ctx context.Context, workspaceID string) ([]*model.SlackUser, error)
}

// SlackUserRefreshWorker mirrors Slack members of every configured workspace into the repository
// on an interval, then replaces the cached entries of the workspace.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - Upsert only: users missing from a sync stay in the repository
type SlackUserRefreshWorker struct {
	repo     interfaces.Repository
	client   interfaces.UserSyncClient
	cache    CacheRefresher
	registry *model.WorkspaceRegistry
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
}

var _ interfaces.WorkspaceSyncer = &SlackUserRefreshWorker{}

// Option configures the worker
type Option func(*SlackUserRefreshWorker)

// WithCache sets the cache refreshed after each successful sync
func WithCache(cache CacheRefresher) Option {
	return func(w *SlackUserRefreshWorker) {
		w.cache = cache
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(w *SlackUserRefreshWorker) {
		w.now = now
	}
}

// NewSlackUserRefreshWorker creates a new worker for syncing Slack users of registry's workspaces
func NewSlackUserRefreshWorker(repo interfaces.Repository, client interfaces.UserSyncClient, registry *model.WorkspaceRegistry, interval time.Duration, opts ...Option) *SlackUserRefreshWorker {
	w := &SlackUserRefreshWorker{
		repo:     repo,
		client:   client,
		registry: registry,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins the background refresh loop
// - Initial sync and periodic refresh both run in a background goroutine
// - Does not block server startup
func (w *SlackUserRefreshWorker) Start(ctx context.Context) error {
	if w.interval <= 0 {
		return goerr.New("sync interval must be positive", goerr.V("interval", w.interval))
	}

	logging.Default().Info("Slack user refresh worker starting",
		"interval", w.interval.String(),
		"workspaces", len(w.registry.List()))

	go w.run(ctx)

	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *SlackUserRefreshWorker) Stop() {
	logging.Default().Info("Slack user refresh worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("Slack user refresh worker stopped")
}

// run is the main worker loop (runs in goroutine)
func (w *SlackUserRefreshWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	// Initial sync (does not block server startup)
	if err := w.SyncAll(ctx); err != nil {
		logging.Default().Error("Initial Slack user refresh failed (will retry next interval)",
			"error", err.Error())
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.SyncAll(ctx); err != nil {
				logging.Default().Error("Slack user refresh failed (will retry next interval)",
					"error", err.Error())
			}

		case <-w.stopCh:
			logging.Default().Info("Slack user refresh worker received stop signal")
			return

		case <-ctx.Done():
			logging.Default().Info("Slack user refresh worker context cancelled")
			return
		}
	}
}

// SyncAll syncs every registered workspace. A failing workspace does not stop the others.
func (w *SlackUserRefreshWorker) SyncAll(ctx context.Context) error {
	var failed []string
	for _, ws := range w.registry.Workspaces() {
		if _, err := w.SyncWorkspace(ctx, ws.ID); err != nil {
			logging.From(ctx).Error("Slack user refresh of workspace failed",
				"workspace_id", ws.ID,
				"error", err.Error())
			failed = append(failed, ws.ID)
		}
	}

	if len(failed) > 0 {
		return goerr.New("Slack user refresh failed for some workspaces", goerr.V("workspaces", failed))
	}
	return nil
}

// SyncWorkspace performs one refresh cycle of a workspace: Slack → SaveMany → metadata → cache.
// On failure the stored users and LastRefreshSuccess are preserved.
func (w *SlackUserRefreshWorker) SyncWorkspace(ctx context.Context, workspaceID string) (*model.SyncResult, error) {
	if workspaceID == "" {
		return nil, model.ErrInvalidWorkspaceContext
	}

	syncID, err := uuid.NewV7()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate sync ID")
	}
	startTime := w.now()
	logger := logging.From(ctx).With("sync_id", syncID.String(), "workspace_id", workspaceID)
	logger.Info("Starting Slack user refresh")

	existing, err := w.repo.SlackUser().GetMetadata(ctx, workspaceID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get existing metadata", goerr.V("workspace_id", workspaceID))
	}

	attempt := &model.SlackUserMetadata{
		WorkspaceID:        workspaceID,
		LastRefreshSuccess: existing.LastRefreshSuccess,
		LastRefreshAttempt: startTime,
		UserCount:          existing.UserCount,
	}
	if err := w.repo.SlackUser().SaveMetadata(ctx, attempt); err != nil {
		return nil, goerr.Wrap(err, "failed to save refresh attempt metadata", goerr.V("workspace_id", workspaceID))
	}

	users, err := w.client.FetchAllUsers(ctx, workspaceID)
	if err != nil {
		// keep the old data (graceful degradation)
		return nil, goerr.Wrap(err, "failed to fetch Slack users", goerr.V("workspace_id", workspaceID))
	}

	if err := w.repo.SlackUser().SaveMany(ctx, users); err != nil {
		return nil, goerr.Wrap(err, "failed to save Slack users",
			goerr.V("workspace_id", workspaceID), goerr.V("count", len(users)))
	}

	success := &model.SlackUserMetadata{
		WorkspaceID:        workspaceID,
		LastRefreshSuccess: startTime,
		LastRefreshAttempt: startTime,
		UserCount:          len(users),
	}
	if err := w.repo.SlackUser().SaveMetadata(ctx, success); err != nil {
		return nil, goerr.Wrap(err, "failed to save refresh success metadata", goerr.V("workspace_id", workspaceID))
	}

	if w.cache != nil {
		if _, err := w.cache.RefreshWorkspace(ctx, workspaceID); err != nil {
			return nil, goerr.Wrap(err, "failed to refresh user cache", goerr.V("workspace_id", workspaceID))
		}
	}

	result := &model.SyncResult{
		SyncID:      syncID.String(),
		WorkspaceID: workspaceID,
		UserCount:   len(users),
		StartedAt:   startTime,
		Duration:    w.now().Sub(startTime),
	}
	logger.Info("Slack user refresh completed", "result", result)

	return result, nil
}
