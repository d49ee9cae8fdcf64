package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/slackdir/pkg/domain/interfaces"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	defaultDatabase = "slackdir"
	pingTimeout     = 5 * time.Second
)

// MongoDB is a repository backed by a MongoDB database
type MongoDB struct {
	client           *mongo.Client
	database         string
	collectionPrefix string
	slackUser        *slackUserRepository
}

var _ interfaces.Repository = &MongoDB{}

type Option func(*MongoDB)

// WithDatabase selects the database name (default "slackdir")
func WithDatabase(name string) Option {
	return func(m *MongoDB) {
		if name != "" {
			m.database = name
		}
	}
}

// WithCollectionPrefix isolates collections, mainly for tests sharing one database
func WithCollectionPrefix(prefix string) Option {
	return func(m *MongoDB) {
		m.collectionPrefix = prefix
	}
}

// New connects to MongoDB at uri and verifies the connection with a ping
func New(ctx context.Context, uri string, opts ...Option) (*MongoDB, error) {
	if uri == "" {
		return nil, goerr.New("mongodb URI is required")
	}

	m := &MongoDB{database: defaultDatabase}
	for _, opt := range opts {
		opt(m)
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect to mongodb")
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, goerr.Wrap(err, "failed to ping mongodb", goerr.V("database", m.database))
	}

	m.client = client
	m.slackUser = newSlackUserRepository(
		m.db().Collection(m.collectionName(CollectionSlackUsers)),
		m.db().Collection(m.collectionName(CollectionSlackMetadata)),
	)

	return m, nil
}

func (m *MongoDB) db() *mongo.Database {
	return m.client.Database(m.database)
}

func (m *MongoDB) collectionName(name string) string {
	if m.collectionPrefix != "" {
		return m.collectionPrefix + "_" + name
	}
	return name
}

func (m *MongoDB) SlackUser() interfaces.SlackUserRepository {
	return m.slackUser
}

// Migrate creates the indexes the repository relies on. Safe to run repeatedly.
func (m *MongoDB) Migrate(ctx context.Context) error {
	for _, idx := range IndexDefinitions() {
		coll := m.db().Collection(m.collectionName(idx.Collection))
		if _, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: idx.Keys, Options: idx.Options}); err != nil {
			return goerr.Wrap(err, "failed to create index", goerr.V("collection", idx.Collection), goerr.V("name", idx.Name))
		}
	}
	return nil
}

func (m *MongoDB) Close() error {
	if m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}

// handleMongoError converts driver errors. ErrNoDocuments maps to (nil) so callers can return (nil, nil).
func handleMongoError(err error, msg string, values ...goerr.Option) error {
	if err == nil || errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	return goerr.Wrap(err, msg, values...)
}
