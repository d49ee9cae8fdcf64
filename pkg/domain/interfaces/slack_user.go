package interfaces

import (
	"context"

	"github.com/secmon-lab/slackdir/pkg/domain/model"
)

// SlackUserRepository provides database operations for Slack users.
// Records are keyed by (workspace ID, user ID) and written only through SaveMany (upsert).
//
// N+1 Prevention Policy:
// - NO individual Save(user) method - always use SaveMany for batch writes
// - GetByID is minimal - prefer GetByIDs or GetByWorkspace for bulk reads
// - Absence from a synced batch is not a deletion; there is no delete operation
type SlackUserRepository interface {
	// GetByWorkspace retrieves all Slack users of a workspace
	GetByWorkspace(ctx context.Context, workspaceID string) ([]*model.SlackUser, error)

	// GetByID retrieves a single Slack user. Returns (nil, nil) when the user does not exist.
	GetByID(ctx context.Context, workspaceID string, id model.SlackUserID) (*model.SlackUser, error)

	// GetByIDs retrieves multiple Slack users of a workspace.
	// Missing users are not included in the map.
	GetByIDs(ctx context.Context, workspaceID string, ids []model.SlackUserID) (map[model.SlackUserID]*model.SlackUser, error)

	// SaveMany saves multiple Slack users (upsert operation). Users may span workspaces.
	SaveMany(ctx context.Context, users []*model.SlackUser) error

	// GetMetadata retrieves refresh metadata of a workspace (zero value if never refreshed)
	GetMetadata(ctx context.Context, workspaceID string) (*model.SlackUserMetadata, error)

	// SaveMetadata saves refresh metadata of metadata.WorkspaceID
	SaveMetadata(ctx context.Context, metadata *model.SlackUserMetadata) error
}

// UserDirectory is the read side the user cache sits in front of.
// Any returned error means the directory could not be reached; a missing user is (nil, nil).
type UserDirectory interface {
	GetUser(ctx context.Context, workspaceID string, userID model.SlackUserID) (*model.SlackUser, error)
	GetWorkspaceUsers(ctx context.Context, workspaceID string) ([]*model.SlackUser, error)
}

// UserSyncClient pulls the authoritative member list from Slack
type UserSyncClient interface {
	// FetchAllUsers returns every member of the workspace, following pagination
	FetchAllUsers(ctx context.Context, workspaceID string) ([]*model.SlackUser, error)

	// FetchUser returns a single member, or (nil, nil) when Slack does not know the user
	FetchUser(ctx context.Context, workspaceID string, userID model.SlackUserID) (*model.SlackUser, error)
}

// WorkspaceSyncer mirrors one workspace from Slack into the repository
type WorkspaceSyncer interface {
	SyncWorkspace(ctx context.Context, workspaceID string) (*model.SyncResult, error)
}
