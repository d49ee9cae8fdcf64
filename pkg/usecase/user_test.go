package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/slackdir/pkg/domain/model"
	"github.com/secmon-lab/slackdir/pkg/repository/memory"
	"github.com/secmon-lab/slackdir/pkg/service/usercache"
	"github.com/secmon-lab/slackdir/pkg/usecase"
)

func setupUseCases(t *testing.T, opts ...usecase.Option) (*usecase.UseCases, *memory.Memory) {
	t.Helper()
	repo := memory.New()
	gt.NoError(t, repo.SlackUser().SaveMany(context.Background(), []*model.SlackUser{
		newUser("T1", "U1", "alice"),
		newUser("T1", "U2", "bob"),
	})).Required()

	cache := usercache.New(usecase.NewDirectory(repo, nil), usercache.WithTTL(time.Minute))
	return usecase.New(repo, cache, opts...), repo
}

func TestUserUseCase(t *testing.T) {
	ctx := context.Background()

	t.Run("lookups on a registered workspace", func(t *testing.T) {
		uc, _ := setupUseCases(t, usecase.WithRegistry(newRegistry("T1")))

		user, err := uc.User.GetUser(ctx, "T1", "U1")
		gt.NoError(t, err).Required()
		gt.Value(t, user.Name).Equal("alice")

		users, err := uc.User.ListUsers(ctx, "T1")
		gt.NoError(t, err).Required()
		gt.Array(t, users).Length(1) // only U1 is cached and fresh

		users, err = uc.User.RefreshWorkspace(ctx, "T1")
		gt.NoError(t, err).Required()
		gt.Array(t, users).Length(2)
		gt.Number(t, uc.User.CacheStats().Size).Equal(2)

		gt.Array(t, uc.User.ListWorkspaces()).Length(1)
	})

	t.Run("unknown workspace", func(t *testing.T) {
		uc, _ := setupUseCases(t, usecase.WithRegistry(newRegistry("T1")))
		_, err := uc.User.GetUser(ctx, "T2", "U1")
		gt.Bool(t, errors.Is(err, model.ErrWorkspaceNotFound)).True()
	})

	t.Run("empty workspace", func(t *testing.T) {
		uc, _ := setupUseCases(t)
		_, err := uc.User.ListUsers(ctx, "")
		gt.Bool(t, errors.Is(err, model.ErrInvalidWorkspaceContext)).True()
	})

	t.Run("refresh user sees repository changes", func(t *testing.T) {
		uc, repo := setupUseCases(t)
		_, err := uc.User.GetUser(ctx, "T1", "U1")
		gt.NoError(t, err).Required()

		gt.NoError(t, repo.SlackUser().SaveMany(ctx, []*model.SlackUser{newUser("T1", "U1", "alice2")})).Required()
		user, err := uc.User.RefreshUser(ctx, "T1", "U1")
		gt.NoError(t, err).Required()
		gt.Value(t, user.Name).Equal("alice2")
	})

	t.Run("sync requires a syncer", func(t *testing.T) {
		uc, _ := setupUseCases(t)
		_, err := uc.User.SyncWorkspace(ctx, "T1")
		gt.Bool(t, errors.Is(err, usecase.ErrSyncUnavailable)).True()

		syncer := &mockSyncer{}
		uc, _ = setupUseCases(t, usecase.WithSyncer(syncer))
		result, err := uc.User.SyncWorkspace(ctx, "T1")
		gt.NoError(t, err).Required()
		gt.Value(t, result.WorkspaceID).Equal("T1")
		gt.Value(t, syncer.synced).Equal([]string{"T1"})
	})

	t.Run("set TTL", func(t *testing.T) {
		uc, _ := setupUseCases(t)
		gt.NoError(t, uc.User.SetCacheTTL(90*time.Second)).Required()
		gt.Value(t, uc.User.CacheStats().TTL).Equal(90 * time.Second)

		err := uc.User.SetCacheTTL(0)
		gt.Bool(t, errors.Is(err, usecase.ErrInvalidTTL)).True()
	})

	t.Run("no registry accepts any workspace", func(t *testing.T) {
		uc, _ := setupUseCases(t)
		gt.Array(t, uc.User.ListWorkspaces()).Length(0)
		user, err := uc.User.GetUser(ctx, "T1", "U2")
		gt.NoError(t, err).Required()
		gt.Value(t, user.Name).Equal("bob")
	})
}
