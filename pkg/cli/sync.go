package cli

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/slackdir/pkg/cli/config"
	"github.com/secmon-lab/slackdir/pkg/domain/model"
	"github.com/secmon-lab/slackdir/pkg/service/usercache"
	"github.com/secmon-lab/slackdir/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdSync() *cli.Command {
	var workspaceID string
	var repoCfg config.Repository
	var wsCfg config.Workspace

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "workspace-id",
			Usage:       "Sync only this workspace (default: every configured workspace)",
			Sources:     cli.EnvVars("SLACKDIR_WORKSPACE_ID"),
			Destination: &workspaceID,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, wsCfg.Flags()...)

	return &cli.Command{
		Name:  "sync",
		Usage: "Mirror Slack workspace members into the repository once",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			rt, closer, err := setup(ctx, &repoCfg, &wsCfg, usercache.DefaultTTL, 0)
			if err != nil {
				return err
			}
			defer closer()

			if rt.worker == nil {
				return goerr.Wrap(config.ErrInvalidConfig, "no workspace configured, set --workspace-config")
			}

			var results []*model.SyncResult
			if workspaceID != "" {
				if !rt.registry.Has(workspaceID) {
					return goerr.Wrap(model.ErrWorkspaceNotFound, "workspace is not configured",
						goerr.V("workspace_id", workspaceID))
				}
				result, err := rt.worker.SyncWorkspace(ctx, workspaceID)
				if err != nil {
					return err
				}
				results = append(results, result)
			} else {
				for _, ws := range rt.registry.Workspaces() {
					result, err := rt.worker.SyncWorkspace(ctx, ws.ID)
					if err != nil {
						return goerr.Wrap(err, "sync failed", goerr.V("workspace_id", ws.ID))
					}
					results = append(results, result)
				}
			}

			for _, r := range results {
				logging.From(ctx).Info("Workspace synced", "result", r)
			}

			enc := json.NewEncoder(c.Root().Writer)
			enc.SetIndent("", "  ")
			if err := enc.Encode(results); err != nil {
				return goerr.Wrap(err, "failed to write sync results")
			}
			return nil
		},
	}
}
