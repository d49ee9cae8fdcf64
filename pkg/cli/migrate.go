package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/slackdir/pkg/cli/config"
	"github.com/secmon-lab/slackdir/pkg/repository/mongodb"
	"github.com/secmon-lab/slackdir/pkg/utils/logging"
	"github.com/secmon-lab/slackdir/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdMigrate() *cli.Command {
	var repoCfg config.Repository
	var dryRun bool

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "Preview changes without applying",
			Destination: &dryRun,
		},
	}
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Create the indexes of the Firestore or MongoDB backend",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := repoCfg.Validate(); err != nil {
				return err
			}
			logging.From(ctx).Info("Migrate configuration", "repository", repoCfg, "dryRun", dryRun)

			switch repoCfg.Backend() {
			case config.BackendFirestore:
				return migrateFirestore(ctx, repoCfg.ProjectID(), repoCfg.DatabaseID(), dryRun)
			case config.BackendMongoDB:
				return migrateMongoDB(ctx, &repoCfg, dryRun)
			default:
				logging.From(ctx).Info("Backend has no indexes to migrate", "backend", repoCfg.Backend())
				return nil
			}
		},
	}
}

func migrateFirestore(ctx context.Context, projectID, databaseID string, dryRun bool) error {
	logger := logging.From(ctx)
	indexConfig := getIndexConfig()

	if dryRun {
		logger.Info("Dry run mode - listing indexes without connecting")
		for _, coll := range indexConfig.Collections {
			for _, idx := range coll.Indexes {
				fields := make([]string, 0, len(idx.Fields))
				for _, f := range idx.Fields {
					fields = append(fields, fmt.Sprintf("%s %v", f.Path, f.Order))
				}
				logger.Info("Migration step", "collection", coll.Name, "fields", fields)
			}
		}
		return nil
	}

	client, err := fireconf.New(ctx, projectID, databaseID, indexConfig)
	if err != nil {
		return goerr.Wrap(err, "failed to create fireconf client",
			goerr.V("project_id", projectID), goerr.V("database_id", databaseID))
	}
	defer safe.Close(ctx, client)

	logger.Info("Applying migrations")
	if err := client.Migrate(ctx); err != nil {
		return goerr.Wrap(err, "failed to apply migrations")
	}
	logger.Info("Migrations applied successfully")
	return nil
}

// getIndexConfig returns the Firestore index configuration. The users collection lives under
// slack_workspaces/{workspace}; the index serves console and export queries over active members.
func getIndexConfig() *fireconf.Config {
	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: "users",
				Indexes: []fireconf.Index{
					// is_active ASC, name ASC
					{
						Fields: []fireconf.IndexField{
							{Path: "is_active", Order: fireconf.OrderAscending},
							{Path: "name", Order: fireconf.OrderAscending},
						},
					},
					// is_bot ASC, updated_at DESC
					{
						Fields: []fireconf.IndexField{
							{Path: "is_bot", Order: fireconf.OrderAscending},
							{Path: "updated_at", Order: fireconf.OrderDescending},
						},
					},
				},
			},
		},
	}
}

func migrateMongoDB(ctx context.Context, repoCfg *config.Repository, dryRun bool) error {
	logger := logging.From(ctx)

	if dryRun {
		for _, idx := range mongodb.IndexDefinitions() {
			logger.Info("Migration step", "collection", idx.Collection, "index", idx.Name)
		}
		return nil
	}

	repo, err := repoCfg.ConfigureMongoDB(ctx)
	if err != nil {
		return err
	}
	defer safe.Close(ctx, repo)

	if err := repo.Migrate(ctx); err != nil {
		return goerr.Wrap(err, "failed to create mongodb indexes")
	}
	logger.Info("MongoDB indexes created", "count", len(mongodb.IndexDefinitions()))
	return nil
}
