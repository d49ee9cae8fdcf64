package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/slackdir/pkg/cli/config"
	mcpctrl "github.com/secmon-lab/slackdir/pkg/controller/mcp"
	"github.com/secmon-lab/slackdir/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdMCP() *cli.Command {
	var repoCfg config.Repository
	var wsCfg config.Workspace
	var cacheCfg config.Cache

	var flags []cli.Flag
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, wsCfg.Flags()...)
	flags = append(flags, cacheCfg.Flags()...)

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve user lookup and message rendering as MCP tools over stdio",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := cacheCfg.Validate(); err != nil {
				return err
			}

			// Background sync is left to `serve`; the MCP process only reads
			rt, closer, err := setup(ctx, &repoCfg, &wsCfg, cacheCfg.TTL(), 0)
			if err != nil {
				return err
			}
			defer closer()

			logging.From(ctx).Info("Starting MCP server", "workspaces", len(rt.registry.List()))
			if err := mcpctrl.New(rt.uc).Run(); err != nil {
				return goerr.Wrap(err, "mcp server stopped")
			}
			return nil
		},
	}
}
