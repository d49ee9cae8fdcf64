package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
	"github.com/secmon-lab/slackdir/pkg/domain/interfaces"
	"github.com/secmon-lab/slackdir/pkg/domain/model"
)

// Key layout:
//
//	{prefix}users:{workspace}  hash, field = user ID, value = JSON record
//	{prefix}meta:{workspace}   hash with refresh metadata fields
type slackUserRepository struct {
	client    *redis.Client
	keyPrefix string
}

var _ interfaces.SlackUserRepository = &slackUserRepository{}

func newSlackUserRepository(client *redis.Client, keyPrefix string) *slackUserRepository {
	return &slackUserRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (r *slackUserRepository) usersKey(workspaceID string) string {
	return r.keyPrefix + "users:" + workspaceID
}

func (r *slackUserRepository) metaKey(workspaceID string) string {
	return r.keyPrefix + "meta:" + workspaceID
}

type slackUserRecord struct {
	Name        string    `json:"name"`
	RealName    string    `json:"real_name"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	IsAdmin     bool      `json:"is_admin"`
	IsOwner     bool      `json:"is_owner"`
	IsBot       bool      `json:"is_bot"`
	IsActive    bool      `json:"is_active"`
	Timezone    string    `json:"timezone,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func encodeUser(user *model.SlackUser) ([]byte, error) {
	raw, err := json.Marshal(slackUserRecord{
		Name:        user.Name,
		RealName:    user.RealName,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		ImageURL:    user.ImageURL,
		IsAdmin:     user.IsAdmin,
		IsOwner:     user.IsOwner,
		IsBot:       user.IsBot,
		IsActive:    user.IsActive,
		Timezone:    user.Timezone,
		UpdatedAt:   user.UpdatedAt.UTC(),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode Slack user", goerr.V("id", user.ID))
	}
	return raw, nil
}

func decodeUser(workspaceID, id, raw string) (*model.SlackUser, error) {
	var rec slackUserRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, goerr.Wrap(err, "failed to decode Slack user",
			goerr.V("workspace_id", workspaceID), goerr.V("id", id))
	}
	return &model.SlackUser{
		WorkspaceID: workspaceID,
		ID:          model.SlackUserID(id),
		Name:        rec.Name,
		RealName:    rec.RealName,
		DisplayName: rec.DisplayName,
		Email:       rec.Email,
		ImageURL:    rec.ImageURL,
		IsAdmin:     rec.IsAdmin,
		IsOwner:     rec.IsOwner,
		IsBot:       rec.IsBot,
		IsActive:    rec.IsActive,
		Timezone:    rec.Timezone,
		UpdatedAt:   rec.UpdatedAt,
	}, nil
}

// GetByWorkspace retrieves all Slack users of a workspace, ordered by user ID
func (r *slackUserRepository) GetByWorkspace(ctx context.Context, workspaceID string) ([]*model.SlackUser, error) {
	entries, err := r.client.HGetAll(ctx, r.usersKey(workspaceID)).Result()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get Slack users", goerr.V("workspace_id", workspaceID))
	}

	users := make([]*model.SlackUser, 0, len(entries))
	for id, raw := range entries {
		user, err := decodeUser(workspaceID, id, raw)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

	return users, nil
}

// GetByID retrieves a single Slack user by ID
func (r *slackUserRepository) GetByID(ctx context.Context, workspaceID string, id model.SlackUserID) (*model.SlackUser, error) {
	raw, err := r.client.HGet(ctx, r.usersKey(workspaceID), string(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get Slack user",
			goerr.V("workspace_id", workspaceID), goerr.V("id", id))
	}
	return decodeUser(workspaceID, string(id), raw)
}

// GetByIDs retrieves multiple Slack users with a single HMGET
func (r *slackUserRepository) GetByIDs(ctx context.Context, workspaceID string, ids []model.SlackUserID) (map[model.SlackUserID]*model.SlackUser, error) {
	result := make(map[model.SlackUserID]*model.SlackUser, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	fields := make([]string, len(ids))
	for i, id := range ids {
		fields[i] = string(id)
	}

	values, err := r.client.HMGet(ctx, r.usersKey(workspaceID), fields...).Result()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get Slack users by IDs",
			goerr.V("workspace_id", workspaceID), goerr.V("count", len(ids)))
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // missing field
		}
		user, err := decodeUser(workspaceID, fields[i], raw)
		if err != nil {
			return nil, err
		}
		result[user.ID] = user
	}
	return result, nil
}

// SaveMany upserts users in one pipeline
func (r *slackUserRepository) SaveMany(ctx context.Context, users []*model.SlackUser) error {
	if len(users) == 0 {
		return nil
	}

	byWorkspace := make(map[string][]any)
	for _, user := range users {
		if user.WorkspaceID == "" || user.ID == "" {
			return goerr.New("slack user requires workspace ID and user ID",
				goerr.V("workspace_id", user.WorkspaceID), goerr.V("user_id", user.ID))
		}
		raw, err := encodeUser(user)
		if err != nil {
			return err
		}
		byWorkspace[user.WorkspaceID] = append(byWorkspace[user.WorkspaceID], string(user.ID), raw)
	}

	pipe := r.client.TxPipeline()
	for workspaceID, values := range byWorkspace {
		pipe.HSet(ctx, r.usersKey(workspaceID), values...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return goerr.Wrap(err, "failed to save Slack users", goerr.V("count", len(users)))
	}

	return nil
}

const (
	metaFieldLastSuccess = "last_refresh_success"
	metaFieldLastAttempt = "last_refresh_attempt"
	metaFieldUserCount   = "user_count"
)

// GetMetadata retrieves refresh metadata
func (r *slackUserRepository) GetMetadata(ctx context.Context, workspaceID string) (*model.SlackUserMetadata, error) {
	fields, err := r.client.HGetAll(ctx, r.metaKey(workspaceID)).Result()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get Slack user metadata", goerr.V("workspace_id", workspaceID))
	}

	metadata := &model.SlackUserMetadata{WorkspaceID: workspaceID}
	if v, ok := fields[metaFieldLastSuccess]; ok {
		if metadata.LastRefreshSuccess, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return nil, goerr.Wrap(err, "invalid last_refresh_success", goerr.V("workspace_id", workspaceID))
		}
	}
	if v, ok := fields[metaFieldLastAttempt]; ok {
		if metadata.LastRefreshAttempt, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return nil, goerr.Wrap(err, "invalid last_refresh_attempt", goerr.V("workspace_id", workspaceID))
		}
	}
	if v, ok := fields[metaFieldUserCount]; ok {
		if metadata.UserCount, err = strconv.Atoi(v); err != nil {
			return nil, goerr.Wrap(err, "invalid user_count", goerr.V("workspace_id", workspaceID))
		}
	}

	return metadata, nil
}

// SaveMetadata saves refresh metadata
func (r *slackUserRepository) SaveMetadata(ctx context.Context, metadata *model.SlackUserMetadata) error {
	if metadata.WorkspaceID == "" {
		return goerr.New("metadata requires workspace ID")
	}

	err := r.client.HSet(ctx, r.metaKey(metadata.WorkspaceID),
		metaFieldLastSuccess, metadata.LastRefreshSuccess.UTC().Format(time.RFC3339Nano),
		metaFieldLastAttempt, metadata.LastRefreshAttempt.UTC().Format(time.RFC3339Nano),
		metaFieldUserCount, strconv.Itoa(metadata.UserCount),
	).Err()
	if err != nil {
		return goerr.Wrap(err, "failed to save Slack user metadata", goerr.V("workspace_id", metadata.WorkspaceID))
	}
	return nil
}
