package firestore

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/slackdir/pkg/domain/interfaces"
	"github.com/secmon-lab/slackdir/pkg/domain/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	slackWorkspacesCollection = "slack_workspaces"
	slackUsersCollection      = "users"
	slackMetadataCollection   = "slack_metadata"

	// Firestore batch operation limits
	// Reference: https://cloud.google.com/firestore/docs/query-data/get-data#go
	firestoreGetAllLimit = 30 // Maximum document references per GetAll
)

type slackUserRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.SlackUserRepository = &slackUserRepository{}

func newSlackUserRepository(client *firestore.Client) *slackUserRepository {
	return &slackUserRepository{
		client: client,
	}
}

// slackUserDoc is the Firestore persistence model
type slackUserDoc struct {
	WorkspaceID string    `firestore:"workspace_id"`
	ID          string    `firestore:"id"`
	Name        string    `firestore:"name"`
	RealName    string    `firestore:"real_name"`
	DisplayName string    `firestore:"display_name"`
	Email       string    `firestore:"email"`
	ImageURL    string    `firestore:"image_url"`
	IsAdmin     bool      `firestore:"is_admin"`
	IsOwner     bool      `firestore:"is_owner"`
	IsBot       bool      `firestore:"is_bot"`
	IsActive    bool      `firestore:"is_active"`
	Timezone    string    `firestore:"timezone"`
	UpdatedAt   time.Time `firestore:"updated_at"`
}

// slackUserMetadataDoc is the Firestore persistence model for metadata
type slackUserMetadataDoc struct {
	WorkspaceID        string    `firestore:"workspace_id"`
	LastRefreshSuccess time.Time `firestore:"last_refresh_success"`
	LastRefreshAttempt time.Time `firestore:"last_refresh_attempt"`
	UserCount          int       `firestore:"user_count"`
}

func (r *slackUserRepository) prefixed(name string) string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_" + name
	}
	return name
}

// collection returns slack_workspaces/{workspaceID}/users
func (r *slackUserRepository) collection(workspaceID string) *firestore.CollectionRef {
	return r.client.Collection(r.prefixed(slackWorkspacesCollection)).
		Doc(workspaceID).
		Collection(slackUsersCollection)
}

func (r *slackUserRepository) metadataCollection() *firestore.CollectionRef {
	return r.client.Collection(r.prefixed(slackMetadataCollection))
}

func (r *slackUserRepository) toDoc(user *model.SlackUser) *slackUserDoc {
	return &slackUserDoc{
		WorkspaceID: user.WorkspaceID,
		ID:          string(user.ID),
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
		UpdatedAt:   user.UpdatedAt,
	}
}

func (r *slackUserRepository) fromDoc(doc *slackUserDoc) *model.SlackUser {
	return &model.SlackUser{
		WorkspaceID: doc.WorkspaceID,
		ID:          model.SlackUserID(doc.ID),
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

// GetByWorkspace retrieves all Slack users of a workspace from Firestore
func (r *slackUserRepository) GetByWorkspace(ctx context.Context, workspaceID string) ([]*model.SlackUser, error) {
	iter := r.collection(workspaceID).Documents(ctx)
	defer iter.Stop()

	users := []*model.SlackUser{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate Slack users", goerr.V("workspace_id", workspaceID))
		}

		var userDoc slackUserDoc
		if err := doc.DataTo(&userDoc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal Slack user", goerr.V("docID", doc.Ref.ID))
		}

		users = append(users, r.fromDoc(&userDoc))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

	return users, nil
}

// GetByID retrieves a single Slack user by ID
func (r *slackUserRepository) GetByID(ctx context.Context, workspaceID string, id model.SlackUserID) (*model.SlackUser, error) {
	doc, err := r.collection(workspaceID).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get Slack user",
			goerr.V("workspace_id", workspaceID), goerr.V("id", id))
	}

	var userDoc slackUserDoc
	if err := doc.DataTo(&userDoc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal Slack user", goerr.V("id", id))
	}

	return r.fromDoc(&userDoc), nil
}

// GetByIDs retrieves multiple Slack users by IDs
// Splits the request by firestoreGetAllLimit to stay under the GetAll limit
func (r *slackUserRepository) GetByIDs(ctx context.Context, workspaceID string, ids []model.SlackUserID) (map[model.SlackUserID]*model.SlackUser, error) {
	result := make(map[model.SlackUserID]*model.SlackUser, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	for i := 0; i < len(ids); i += firestoreGetAllLimit {
		end := min(i+firestoreGetAllLimit, len(ids))
		batch := ids[i:end]

		refs := make([]*firestore.DocumentRef, len(batch))
		for j, id := range batch {
			refs[j] = r.collection(workspaceID).Doc(string(id))
		}

		docs, err := r.client.GetAll(ctx, refs)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to batch get Slack users",
				goerr.V("workspace_id", workspaceID), goerr.V("count", len(batch)))
		}

		for idx, doc := range docs {
			if !doc.Exists() {
				// Missing users are not included in the result map (not an error)
				continue
			}

			var userDoc slackUserDoc
			if err := doc.DataTo(&userDoc); err != nil {
				return nil, goerr.Wrap(err, "failed to unmarshal Slack user", goerr.V("id", batch[idx]))
			}

			result[batch[idx]] = r.fromDoc(&userDoc)
		}
	}

	return result, nil
}

// SaveMany saves multiple Slack users (upsert operation)
// BulkWriter takes care of the 500 writes per batch limit
func (r *slackUserRepository) SaveMany(ctx context.Context, users []*model.SlackUser) error {
	if len(users) == 0 {
		return nil
	}

	bulkWriter := r.client.BulkWriter(ctx)

	jobs := make([]*firestore.BulkWriterJob, 0, len(users))
	for _, user := range users {
		if user.WorkspaceID == "" || user.ID == "" {
			bulkWriter.End()
			return goerr.New("slack user requires workspace ID and user ID",
				goerr.V("workspace_id", user.WorkspaceID), goerr.V("user_id", user.ID))
		}

		docRef := r.collection(user.WorkspaceID).Doc(string(user.ID))
		job, err := bulkWriter.Set(docRef, r.toDoc(user))
		if err != nil {
			bulkWriter.End()
			return goerr.Wrap(err, "failed to add Set operation to bulk writer", goerr.V("user_id", user.ID))
		}
		jobs = append(jobs, job)
	}

	// Flush and wait for all operations to complete
	bulkWriter.End()

	for i, job := range jobs {
		if _, err := job.Results(); err != nil {
			return goerr.Wrap(err, "failed to write Slack user",
				goerr.V("workspace_id", users[i].WorkspaceID), goerr.V("user_id", users[i].ID))
		}
	}

	return nil
}

// GetMetadata retrieves refresh metadata
func (r *slackUserRepository) GetMetadata(ctx context.Context, workspaceID string) (*model.SlackUserMetadata, error) {
	doc, err := r.metadataCollection().Doc(workspaceID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			// Return zero value if metadata doesn't exist yet
			return &model.SlackUserMetadata{WorkspaceID: workspaceID}, nil
		}
		return nil, goerr.Wrap(err, "failed to get Slack user metadata", goerr.V("workspace_id", workspaceID))
	}

	var metadataDoc slackUserMetadataDoc
	if err := doc.DataTo(&metadataDoc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal Slack user metadata")
	}

	return &model.SlackUserMetadata{
		WorkspaceID:        workspaceID,
		LastRefreshSuccess: metadataDoc.LastRefreshSuccess,
		LastRefreshAttempt: metadataDoc.LastRefreshAttempt,
		UserCount:          metadataDoc.UserCount,
	}, nil
}

// SaveMetadata saves refresh metadata
func (r *slackUserRepository) SaveMetadata(ctx context.Context, metadata *model.SlackUserMetadata) error {
	if metadata.WorkspaceID == "" {
		return goerr.New("metadata requires workspace ID")
	}

	doc := &slackUserMetadataDoc{
		WorkspaceID:        metadata.WorkspaceID,
		LastRefreshSuccess: metadata.LastRefreshSuccess,
		LastRefreshAttempt: metadata.LastRefreshAttempt,
		UserCount:          metadata.UserCount,
	}
	if _, err := r.metadataCollection().Doc(metadata.WorkspaceID).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to save Slack user metadata", goerr.V("workspace_id", metadata.WorkspaceID))
	}
	return nil
}
