package cli

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/slackdir/pkg/cli/config"
	"github.com/secmon-lab/slackdir/pkg/domain/interfaces"
	"github.com/secmon-lab/slackdir/pkg/domain/model"
	"github.com/secmon-lab/slackdir/pkg/service/usercache"
	"github.com/secmon-lab/slackdir/pkg/service/worker"
	"github.com/secmon-lab/slackdir/pkg/usecase"
	"github.com/secmon-lab/slackdir/pkg/utils/logging"
	"github.com/secmon-lab/slackdir/pkg/utils/safe"
)

// runtime is the object graph shared by the commands
type runtime struct {
	repo     interfaces.Repository
	registry *model.WorkspaceRegistry
	cache    *usercache.Cache
	worker   *worker.SlackUserRefreshWorker
	uc       *usecase.UseCases
}

// setup wires repository, Slack clients, cache, sync worker and use cases. Without configured
// workspaces there is no Slack access and the cache reads the repository only.
func setup(ctx context.Context, repoCfg *config.Repository, wsCfg *config.Workspace, ttl, syncInterval time.Duration) (*runtime, func(), error) {
	registry, slackDir, err := wsCfg.Configure()
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to load workspace configurations")
	}

	repo, err := repoCfg.Configure(ctx)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to initialize repository")
	}
	closer := func() { safe.Close(ctx, repo) }

	var sync interfaces.UserSyncClient
	if len(registry.List()) > 0 {
		sync = slackDir
	} else {
		logging.From(ctx).Warn("No workspace configured, Slack fallback and sync are disabled")
	}

	cache := usercache.New(usecase.NewDirectory(repo, sync), usercache.WithTTL(ttl))

	rt := &runtime{
		repo:     repo,
		registry: registry,
		cache:    cache,
	}

	var opts []usecase.Option
	if sync != nil {
		opts = append(opts, usecase.WithRegistry(registry))
		rt.worker = worker.NewSlackUserRefreshWorker(repo, sync, registry, syncInterval, worker.WithCache(cache))
		opts = append(opts, usecase.WithSyncer(rt.worker))
	}
	rt.uc = usecase.New(repo, cache, opts...)

	return rt, closer, nil
}

// startWorker runs the sync worker on a context detached from ctx, since it outlives request
// handling. The returned stop cancels an in-flight sync, such as a rate limit wait, before
// waiting for the worker to exit.
func (rt *runtime) startWorker(ctx context.Context) (func(), error) {
	if rt.worker == nil {
		return func() {}, nil
	}

	workerCtx, cancel := context.WithCancel(logging.With(context.Background(), logging.From(ctx)))
	if err := rt.worker.Start(workerCtx); err != nil {
		cancel()
		return nil, goerr.Wrap(err, "failed to start Slack user refresh worker")
	}

	return func() {
		cancel()
		rt.worker.Stop()
	}, nil
}
