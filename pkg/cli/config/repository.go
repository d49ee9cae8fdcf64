package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/slackdir/pkg/domain/interfaces"
	"github.com/secmon-lab/slackdir/pkg/repository/firestore"
	"github.com/secmon-lab/slackdir/pkg/repository/memory"
	"github.com/secmon-lab/slackdir/pkg/repository/mongodb"
	"github.com/secmon-lab/slackdir/pkg/repository/redis"
	"github.com/secmon-lab/slackdir/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const (
	BackendMemory    = "memory"
	BackendFirestore = "firestore"
	BackendMongoDB   = "mongodb"
	BackendRedis     = "redis"
)

// Repository holds CLI flags for repository backend configuration
type Repository struct {
	backend string
	prefix  string

	projectID  string
	databaseID string

	mongoURI      string
	mongoDatabase string

	redisAddr     string
	redisPassword string
	redisDB       int
}

// Flags returns CLI flags for repository configuration
func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "repository-backend",
			Usage:       "Repository backend type (memory, firestore, mongodb or redis)",
			Category:    "Repository",
			Value:       BackendMemory,
			Sources:     cli.EnvVars("SLACKDIR_REPOSITORY_BACKEND"),
			Destination: &r.backend,
		},
		&cli.StringFlag{
			Name:        "repository-prefix",
			Usage:       "Collection or key prefix, for sharing one database between deployments",
			Category:    "Repository",
			Sources:     cli.EnvVars("SLACKDIR_REPOSITORY_PREFIX"),
			Destination: &r.prefix,
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore Project ID (required when using firestore backend)",
			Category:    "Repository",
			Sources:     cli.EnvVars("SLACKDIR_FIRESTORE_PROJECT_ID"),
			Destination: &r.projectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore Database ID",
			Category:    "Repository",
			Sources:     cli.EnvVars("SLACKDIR_FIRESTORE_DATABASE_ID"),
			Destination: &r.databaseID,
		},
		&cli.StringFlag{
			Name:        "mongodb-uri",
			Usage:       "MongoDB connection URI (required when using mongodb backend)",
			Category:    "Repository",
			Sources:     cli.EnvVars("SLACKDIR_MONGODB_URI"),
			Destination: &r.mongoURI,
		},
		&cli.StringFlag{
			Name:        "mongodb-database",
			Usage:       "MongoDB database name",
			Category:    "Repository",
			Value:       "slackdir",
			Sources:     cli.EnvVars("SLACKDIR_MONGODB_DATABASE"),
			Destination: &r.mongoDatabase,
		},
		&cli.StringFlag{
			Name:        "redis-addr",
			Usage:       "Redis address host:port (required when using redis backend)",
			Category:    "Repository",
			Sources:     cli.EnvVars("SLACKDIR_REDIS_ADDR"),
			Destination: &r.redisAddr,
		},
		&cli.StringFlag{
			Name:        "redis-password",
			Usage:       "Redis password",
			Category:    "Repository",
			Sources:     cli.EnvVars("SLACKDIR_REDIS_PASSWORD"),
			Destination: &r.redisPassword,
		},
		&cli.IntFlag{
			Name:        "redis-db",
			Usage:       "Redis database number",
			Category:    "Repository",
			Sources:     cli.EnvVars("SLACKDIR_REDIS_DB"),
			Destination: &r.redisDB,
		},
	}
}

func (r Repository) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("backend", r.backend),
		slog.String("prefix", r.prefix),
		slog.String("firestore_project_id", r.projectID),
		slog.String("firestore_database_id", r.databaseID),
		slog.Bool("mongodb_uri.set", r.mongoURI != ""),
		slog.String("mongodb_database", r.mongoDatabase),
		slog.String("redis_addr", r.redisAddr),
		slog.Int("redis_db", r.redisDB),
	)
}

// Backend returns the configured backend type
func (r *Repository) Backend() string {
	return r.backend
}

// ProjectID returns the Firestore project ID
func (r *Repository) ProjectID() string {
	return r.projectID
}

// DatabaseID returns the Firestore database ID
func (r *Repository) DatabaseID() string {
	return r.databaseID
}

// Validate checks that the selected backend has its required settings
func (r *Repository) Validate() error {
	switch r.backend {
	case BackendMemory:
		return nil
	case BackendFirestore:
		if r.projectID == "" {
			return goerr.Wrap(ErrInvalidConfig, "firestore-project-id is required when using firestore backend")
		}
	case BackendMongoDB:
		if r.mongoURI == "" {
			return goerr.Wrap(ErrInvalidConfig, "mongodb-uri is required when using mongodb backend")
		}
	case BackendRedis:
		if r.redisAddr == "" {
			return goerr.Wrap(ErrInvalidConfig, "redis-addr is required when using redis backend")
		}
	default:
		return goerr.Wrap(ErrInvalidBackend, "unknown backend", goerr.V(BackendKey, r.backend))
	}
	return nil
}

// Configure initializes and returns a repository based on the configured backend.
// The caller is responsible for calling Close() on the returned repository.
func (r *Repository) Configure(ctx context.Context) (interfaces.Repository, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	logger := logging.From(ctx)

	switch r.backend {
	case BackendFirestore:
		var opts []firestore.Option
		if r.prefix != "" {
			opts = append(opts, firestore.WithCollectionPrefix(r.prefix))
		}
		repo, err := firestore.New(ctx, r.projectID, r.databaseID, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize firestore repository")
		}
		logger.Info("Using Firestore repository", "project_id", r.projectID, "database_id", r.databaseID)
		return repo, nil

	case BackendMongoDB:
		repo, err := r.ConfigureMongoDB(ctx)
		if err != nil {
			return nil, err
		}
		logger.Info("Using MongoDB repository", "database", r.mongoDatabase)
		return repo, nil

	case BackendRedis:
		var opts []redis.Option
		if r.prefix != "" {
			opts = append(opts, redis.WithKeyPrefix(r.prefix))
		}
		repo, err := redis.New(ctx, r.redisAddr, r.redisPassword, r.redisDB, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize redis repository")
		}
		logger.Info("Using Redis repository", "addr", r.redisAddr, "db", r.redisDB)
		return repo, nil

	default:
		logger.Info("Using in-memory repository (development mode)")
		return memory.New(), nil
	}
}

// ConfigureMongoDB connects the MongoDB backend regardless of the selected backend. migrate
// uses it to create indexes.
func (r *Repository) ConfigureMongoDB(ctx context.Context) (*mongodb.MongoDB, error) {
	if r.mongoURI == "" {
		return nil, goerr.Wrap(ErrInvalidConfig, "mongodb-uri is required")
	}

	opts := []mongodb.Option{mongodb.WithDatabase(r.mongoDatabase)}
	if r.prefix != "" {
		opts = append(opts, mongodb.WithCollectionPrefix(r.prefix))
	}
	repo, err := mongodb.New(ctx, r.mongoURI, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize mongodb repository")
	}
	return repo, nil
}
