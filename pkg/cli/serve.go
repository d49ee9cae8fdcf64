package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/slackdir/pkg/cli/config"
	httpctrl "github.com/secmon-lab/slackdir/pkg/controller/http"
	"github.com/secmon-lab/slackdir/pkg/utils/logging"
	"github.com/secmon-lab/slackdir/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var repoCfg config.Repository
	var wsCfg config.Workspace
	var slackCfg config.Slack
	var cacheCfg config.Cache

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("SLACKDIR_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, wsCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)
	flags = append(flags, cacheCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := cacheCfg.Validate(); err != nil {
				return err
			}
			logging.From(ctx).Info("Serve configuration",
				"repository", repoCfg,
				"workspace", wsCfg,
				"slack", slackCfg,
				"cache", cacheCfg,
			)

			rt, closer, err := setup(ctx, &repoCfg, &wsCfg, cacheCfg.TTL(), cacheCfg.SyncInterval())
			if err != nil {
				return err
			}
			defer closer()

			if cacheCfg.SyncInterval() > 0 {
				stopWorker, err := rt.startWorker(ctx)
				if err != nil {
					return err
				}
				defer stopWorker()
			}

			var httpOpts []httpctrl.Options
			if slackCfg.IsWebhookConfigured() {
				httpOpts = append(httpOpts, httpctrl.WithSlackWebhook(
					httpctrl.NewSlackWebhookHandler(rt.uc.Slack), slackCfg.SigningSecret()))
				logging.From(ctx).Info("Slack webhook handler enabled")
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(rt.uc, httpOpts...),
				ReadHeaderTimeout: 30 * time.Second,
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			errCh := make(chan error, 1)
			go func() {
				logging.From(ctx).Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				logging.From(ctx).Info("Context cancelled")
			case sig := <-sigCh:
				logging.From(ctx).Info("Received shutdown signal", "signal", sig)
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			safe.CloseFunc(shutdownCtx, "http server", server.Shutdown)

			logging.From(ctx).Info("Server shutdown completed")
			return nil
		},
	}
}
