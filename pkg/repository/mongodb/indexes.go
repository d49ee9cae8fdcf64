package mongodb

import (
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection names
const (
	CollectionSlackUsers    = "slack_users"
	CollectionSlackMetadata = "slack_metadata"
)

// IndexDefinition describes a MongoDB index to be created
type IndexDefinition struct {
	Collection string
	Name       string
	Keys       bson.D
	Options    *options.IndexOptionsBuilder
}

// IndexDefinitions returns every index of the repository
func IndexDefinitions() []IndexDefinition {
	return []IndexDefinition{
		{
			// Composite key: one document per (workspace, user)
			Collection: CollectionSlackUsers,
			Name:       "workspace_user_unique",
			Keys:       bson.D{{Key: "workspace_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options:    options.Index().SetUnique(true).SetName("workspace_user_unique"),
		},
		{
			Collection: CollectionSlackMetadata,
			Name:       "workspace_unique",
			Keys:       bson.D{{Key: "workspace_id", Value: 1}},
			Options:    options.Index().SetUnique(true).SetName("workspace_unique"),
		},
	}
}
