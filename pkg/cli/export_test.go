package cli

import (
	"context"
	"io"
	"time"

	"github.com/secmon-lab/slackdir/pkg/domain/interfaces"
	"github.com/secmon-lab/slackdir/pkg/domain/model"
	"github.com/secmon-lab/slackdir/pkg/repository/memory"
	"github.com/secmon-lab/slackdir/pkg/service/worker"
)

// RunForTest runs the app with the given stdin and stdout
func RunForTest(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	app := newApp("test")
	app.Reader = stdin
	app.Writer = stdout
	return app.Run(ctx, args)
}

// IndexConfig exposes the Firestore index configuration applied by migrate
var IndexConfig = getIndexConfig

// StartWorkerForTest starts a sync worker for workspaceID the way serve does
func StartWorkerForTest(ctx context.Context, client interfaces.UserSyncClient, workspaceID string, interval time.Duration) (func(), error) {
	registry := model.NewWorkspaceRegistry()
	registry.Register(&model.WorkspaceEntry{Workspace: model.Workspace{ID: workspaceID, Name: workspaceID}})

	repo := memory.New()
	rt := &runtime{
		repo:     repo,
		registry: registry,
		worker:   worker.NewSlackUserRefreshWorker(repo, client, registry, interval),
	}
	return rt.startWorker(ctx)
}
