package mongodb

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/slackdir/pkg/domain/interfaces"
	"github.com/secmon-lab/slackdir/pkg/domain/model"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// bulkWriteBatchSize bounds the number of write models sent per BulkWrite call
const bulkWriteBatchSize = 500

type slackUserRepository struct {
	users    *mongo.Collection
	metadata *mongo.Collection
}

var _ interfaces.SlackUserRepository = &slackUserRepository{}

func newSlackUserRepository(users, metadata *mongo.Collection) *slackUserRepository {
	return &slackUserRepository{
		users:    users,
		metadata: metadata,
	}
}

// slackUserDocument is the MongoDB persistence model
type slackUserDocument struct {
	WorkspaceID string    `bson:"workspace_id"`
	UserID      string    `bson:"user_id"`
	Name        string    `bson:"name"`
	RealName    string    `bson:"real_name"`
	DisplayName string    `bson:"display_name"`
	Email       string    `bson:"email,omitempty"`
	ImageURL    string    `bson:"image_url,omitempty"`
	IsAdmin     bool      `bson:"is_admin"`
	IsOwner     bool      `bson:"is_owner"`
	IsBot       bool      `bson:"is_bot"`
	IsActive    bool      `bson:"is_active"`
	Timezone    string    `bson:"timezone,omitempty"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

type slackUserMetadataDocument struct {
	WorkspaceID        string    `bson:"workspace_id"`
	LastRefreshSuccess time.Time `bson:"last_refresh_success"`
	LastRefreshAttempt time.Time `bson:"last_refresh_attempt"`
	UserCount          int       `bson:"user_count"`
}

func userToDocument(user *model.SlackUser) slackUserDocument {
	return slackUserDocument{
		WorkspaceID: user.WorkspaceID,
		UserID:      string(user.ID),
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
	}
}

func documentToUser(doc *slackUserDocument) *model.SlackUser {
	return &model.SlackUser{
		WorkspaceID: doc.WorkspaceID,
		ID:          model.SlackUserID(doc.UserID),
		Name:        doc.Name,
		RealName:    doc.RealName,
		DisplayName: doc.DisplayName,
		Email:       doc.Email,
		ImageURL:    doc.ImageURL,
		IsAdmin:     doc.IsAdmin,
		IsOwner:     doc.IsOwner,
		IsBot:       doc.IsBot,
		IsActive:    doc.IsActive,
		Timezone:    doc.Timezone,
		UpdatedAt:   doc.UpdatedAt,
	}
}

func userFilter(workspaceID string, id model.SlackUserID) bson.M {
	return bson.M{"workspace_id": workspaceID, "user_id": string(id)}
}

// GetByWorkspace retrieves all Slack users of a workspace, ordered by user ID
func (r *slackUserRepository) GetByWorkspace(ctx context.Context, workspaceID string) ([]*model.SlackUser, error) {
	opts := options.Find().SetSort(bson.D{{Key: "user_id", Value: 1}})
	return r.find(ctx, bson.M{"workspace_id": workspaceID}, opts)
}

func (r *slackUserRepository) find(ctx context.Context, filter bson.M, opts ...options.Lister[options.FindOptions]) ([]*model.SlackUser, error) {
	cursor, err := r.users.Find(ctx, filter, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find Slack users", goerr.V("filter", filter))
	}
	defer func() { _ = cursor.Close(ctx) }()

	var docs []slackUserDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, goerr.Wrap(err, "failed to decode Slack users", goerr.V("filter", filter))
	}

	users := make([]*model.SlackUser, len(docs))
	for i := range docs {
		users[i] = documentToUser(&docs[i])
	}
	return users, nil
}

// GetByID retrieves a single Slack user by ID
func (r *slackUserRepository) GetByID(ctx context.Context, workspaceID string, id model.SlackUserID) (*model.SlackUser, error) {
	var doc slackUserDocument
	err := r.users.FindOne(ctx, userFilter(workspaceID, id)).Decode(&doc)
	if err != nil {
		return nil, handleMongoError(err, "failed to get Slack user",
			goerr.V("workspace_id", workspaceID), goerr.V("id", id))
	}

	return documentToUser(&doc), nil
}

// GetByIDs retrieves multiple Slack users by IDs with a single $in query
func (r *slackUserRepository) GetByIDs(ctx context.Context, workspaceID string, ids []model.SlackUserID) (map[model.SlackUserID]*model.SlackUser, error) {
	result := make(map[model.SlackUserID]*model.SlackUser, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}

	users, err := r.find(ctx, bson.M{"workspace_id": workspaceID, "user_id": bson.M{"$in": raw}})
	if err != nil {
		return nil, err
	}
	for _, user := range users {
		result[user.ID] = user
	}
	return result, nil
}

// SaveMany upserts users in unordered bulk writes of bulkWriteBatchSize
func (r *slackUserRepository) SaveMany(ctx context.Context, users []*model.SlackUser) error {
	if len(users) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(users))
	for _, user := range users {
		if user.WorkspaceID == "" || user.ID == "" {
			return goerr.New("slack user requires workspace ID and user ID",
				goerr.V("workspace_id", user.WorkspaceID), goerr.V("user_id", user.ID))
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(userFilter(user.WorkspaceID, user.ID)).
			SetReplacement(userToDocument(user)).
			SetUpsert(true))
	}

	for i := 0; i < len(models); i += bulkWriteBatchSize {
		end := min(i+bulkWriteBatchSize, len(models))
		if _, err := r.users.BulkWrite(ctx, models[i:end], options.BulkWrite().SetOrdered(false)); err != nil {
			return goerr.Wrap(err, "failed to bulk upsert Slack users", goerr.V("offset", i), goerr.V("count", end-i))
		}
	}

	return nil
}

// GetMetadata retrieves refresh metadata
func (r *slackUserRepository) GetMetadata(ctx context.Context, workspaceID string) (*model.SlackUserMetadata, error) {
	var doc slackUserMetadataDocument
	err := r.metadata.FindOne(ctx, bson.M{"workspace_id": workspaceID}).Decode(&doc)
	if err != nil {
		if wrapped := handleMongoError(err, "failed to get Slack user metadata", goerr.V("workspace_id", workspaceID)); wrapped != nil {
			return nil, wrapped
		}
		return &model.SlackUserMetadata{WorkspaceID: workspaceID}, nil
	}

	return &model.SlackUserMetadata{
		WorkspaceID:        doc.WorkspaceID,
		LastRefreshSuccess: doc.LastRefreshSuccess,
		LastRefreshAttempt: doc.LastRefreshAttempt,
		UserCount:          doc.UserCount,
	}, nil
}

// SaveMetadata saves refresh metadata
func (r *slackUserRepository) SaveMetadata(ctx context.Context, metadata *model.SlackUserMetadata) error {
	if metadata.WorkspaceID == "" {
		return goerr.New("metadata requires workspace ID")
	}

	doc := slackUserMetadataDocument{
		WorkspaceID:        metadata.WorkspaceID,
		LastRefreshSuccess: metadata.LastRefreshSuccess.UTC(),
		LastRefreshAttempt: metadata.LastRefreshAttempt.UTC(),
		UserCount:          metadata.UserCount,
	}
	_, err := r.metadata.ReplaceOne(ctx, bson.M{"workspace_id": metadata.WorkspaceID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return goerr.Wrap(err, "failed to save Slack user metadata", goerr.V("workspace_id", metadata.WorkspaceID))
	}
	return nil
}
