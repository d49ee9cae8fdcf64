package cli

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/slackdir/pkg/cli/config"
	"github.com/secmon-lab/slackdir/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdRender() *cli.Command {
	var workspaceID string
	var markdown bool
	var asJSON bool
	var repoCfg config.Repository
	var wsCfg config.Workspace
	var cacheCfg config.Cache

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "workspace-id",
			Usage:       "Workspace the message belongs to",
			Required:    true,
			Sources:     cli.EnvVars("SLACKDIR_WORKSPACE_ID"),
			Destination: &workspaceID,
		},
		&cli.BoolFlag{
			Name:        "markdown",
			Usage:       "Print the markdown form",
			Destination: &markdown,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print segments and both forms as JSON",
			Destination: &asJSON,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, wsCfg.Flags()...)
	flags = append(flags, cacheCfg.Flags()...)

	return &cli.Command{
		Name:      "render",
		Usage:     "Render Slack message markup; reads stdin when no text is given",
		ArgsUsage: "[text]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			text := strings.Join(c.Args().Slice(), " ")
			if text == "" {
				data, err := io.ReadAll(c.Root().Reader)
				if err != nil {
					return goerr.Wrap(err, "failed to read message from stdin")
				}
				text = strings.TrimRight(string(data), "\n")
			}

			rt, closer, err := setup(ctx, &repoCfg, &wsCfg, cacheCfg.TTL(), 0)
			if err != nil {
				return err
			}
			defer closer()

			if err := rt.uc.User.CheckWorkspace(workspaceID); err != nil {
				return err
			}

			rendered := rt.uc.Mention.RenderMessage(ctx, workspaceID, text)
			w := c.Root().Writer

			switch {
			case asJSON:
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(rendered); err != nil {
					return goerr.Wrap(err, "failed to write rendered message")
				}
			case markdown:
				safe.Write(ctx, w, []byte(rendered.Markdown+"\n"))
			default:
				safe.Write(ctx, w, []byte(rendered.Text+"\n"))
			}
			return nil
		},
	}
}
