package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/slackdir/pkg/domain/interfaces"
	"github.com/secmon-lab/slackdir/pkg/domain/model"
)

type slackUserRepository struct {
	mu       sync.RWMutex
	users    map[string]map[model.SlackUserID]*model.SlackUser
	metadata map[string]*model.SlackUserMetadata
}

var _ interfaces.SlackUserRepository = &slackUserRepository{}

func newSlackUserRepository() *slackUserRepository {
	return &slackUserRepository{
		users:    make(map[string]map[model.SlackUserID]*model.SlackUser),
		metadata: make(map[string]*model.SlackUserMetadata),
	}
}

// GetByWorkspace retrieves all Slack users of a workspace, ordered by user ID
func (r *slackUserRepository) GetByWorkspace(ctx context.Context, workspaceID string) ([]*model.SlackUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ws := r.users[workspaceID]
	users := make([]*model.SlackUser, 0, len(ws))
	for _, user := range ws {
		// Return a deep copy to prevent external modifications
		users = append(users, user.Clone())
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

	return users, nil
}

// GetByID retrieves a single Slack user
func (r *slackUserRepository) GetByID(ctx context.Context, workspaceID string, id model.SlackUserID) (*model.SlackUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[workspaceID][id]
	if !ok {
		return nil, nil
	}

	return user.Clone(), nil
}

// GetByIDs retrieves multiple Slack users by IDs
func (r *slackUserRepository) GetByIDs(ctx context.Context, workspaceID string, ids []model.SlackUserID) (map[model.SlackUserID]*model.SlackUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[model.SlackUserID]*model.SlackUser, len(ids))
	for _, id := range ids {
		if user, ok := r.users[workspaceID][id]; ok {
			result[id] = user.Clone()
		}
		// Missing users are not included in the result map (not an error)
	}

	return result, nil
}

// SaveMany saves multiple Slack users (upsert operation)
func (r *slackUserRepository) SaveMany(ctx context.Context, users []*model.SlackUser) error {
	for _, user := range users {
		if user.WorkspaceID == "" || user.ID == "" {
			return goerr.New("slack user requires workspace ID and user ID",
				goerr.V("workspace_id", user.WorkspaceID), goerr.V("user_id", user.ID))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range users {
		ws, ok := r.users[user.WorkspaceID]
		if !ok {
			ws = make(map[model.SlackUserID]*model.SlackUser)
			r.users[user.WorkspaceID] = ws
		}
		// Store a deep copy to prevent external modifications
		ws[user.ID] = user.Clone()
	}

	return nil
}

// GetMetadata retrieves refresh metadata
func (r *slackUserRepository) GetMetadata(ctx context.Context, workspaceID string) (*model.SlackUserMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metadata, ok := r.metadata[workspaceID]
	if !ok {
		return &model.SlackUserMetadata{WorkspaceID: workspaceID}, nil
	}

	metadataCopy := *metadata
	return &metadataCopy, nil
}

// SaveMetadata saves refresh metadata
func (r *slackUserRepository) SaveMetadata(ctx context.Context, metadata *model.SlackUserMetadata) error {
	if metadata.WorkspaceID == "" {
		return goerr.New("metadata requires workspace ID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	metadataCopy := *metadata
	r.metadata[metadata.WorkspaceID] = &metadataCopy
	return nil
}
