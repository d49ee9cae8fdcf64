package usecase

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/slackdir/pkg/domain/interfaces"
	"github.com/secmon-lab/slackdir/pkg/domain/model"
	"github.com/secmon-lab/slackdir/pkg/utils/logging"
)

// Directory is the user directory behind the cache. It reads the repository and, when the
// repository has nothing, falls back to Slack and stores what it got.
type Directory struct {
	repo interfaces.Repository
	sync interfaces.UserSyncClient
}

var _ interfaces.UserDirectory = &Directory{}

// NewDirectory creates a Directory. sync may be nil to disable the Slack fallback.
func NewDirectory(repo interfaces.Repository, sync interfaces.UserSyncClient) *Directory {
	return &Directory{
		repo: repo,
		sync: sync,
	}
}

// GetUser returns one user, or nil when neither the repository nor Slack knows it
func (d *Directory) GetUser(ctx context.Context, workspaceID string, userID model.SlackUserID) (*model.SlackUser, error) {
	user, err := d.repo.SlackUser().GetByID(ctx, workspaceID, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get user from repository",
			goerr.V(WorkspaceIDKey, workspaceID), goerr.V(UserIDKey, userID))
	}
	if user != nil || d.sync == nil {
		return user, nil
	}

	user, err = d.sync.FetchUser(ctx, workspaceID, userID)
	if err != nil {
		if errors.Is(err, model.ErrWorkspaceNotFound) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to fetch user from Slack",
			goerr.V(WorkspaceIDKey, workspaceID), goerr.V(UserIDKey, userID))
	}
	if user == nil {
		return nil, nil
	}

	if err := d.repo.SlackUser().SaveMany(ctx, []*model.SlackUser{user}); err != nil {
		return nil, goerr.Wrap(err, "failed to store fetched user",
			goerr.V(WorkspaceIDKey, workspaceID), goerr.V(UserIDKey, userID))
	}
	logging.From(ctx).Debug("user fetched from Slack", "workspace_id", workspaceID, "user_id", userID)

	return user, nil
}

// GetWorkspaceUsers returns every stored user of a workspace. An empty workspace is populated
// from Slack first.
func (d *Directory) GetWorkspaceUsers(ctx context.Context, workspaceID string) ([]*model.SlackUser, error) {
	users, err := d.repo.SlackUser().GetByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get workspace users from repository",
			goerr.V(WorkspaceIDKey, workspaceID))
	}
	if len(users) > 0 || d.sync == nil {
		return users, nil
	}

	users, err = d.sync.FetchAllUsers(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, model.ErrWorkspaceNotFound) {
			return []*model.SlackUser{}, nil
		}
		return nil, goerr.Wrap(err, "failed to fetch workspace users from Slack",
			goerr.V(WorkspaceIDKey, workspaceID))
	}

	if err := d.repo.SlackUser().SaveMany(ctx, users); err != nil {
		return nil, goerr.Wrap(err, "failed to store fetched workspace users",
			goerr.V(WorkspaceIDKey, workspaceID), goerr.V("count", len(users)))
	}
	logging.From(ctx).Info("workspace users fetched from Slack", "workspace_id", workspaceID, "count", len(users))

	return users, nil
}
