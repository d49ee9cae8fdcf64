package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/slackdir/pkg/domain/model"
	"github.com/secmon-lab/slackdir/pkg/repository/memory"
	"github.com/secmon-lab/slackdir/pkg/service/worker"
)

// mockSyncClient serves users per workspace
type mockSyncClient struct {
	mu     sync.Mutex
	users  map[string][]*model.SlackUser
	errs   map[string]error
	called map[string]int
}

func newMockSyncClient() *mockSyncClient {
	return &mockSyncClient{
		users:  make(map[string][]*model.SlackUser),
		errs:   make(map[string]error),
		called: make(map[string]int),
	}
}

func (m *mockSyncClient) setUsers(workspaceID string, users ...*model.SlackUser) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[workspaceID] = users
}

func (m *mockSyncClient) setError(workspaceID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[workspaceID] = err
}

func (m *mockSyncClient) calls(workspaceID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.called[workspaceID]
}

func (m *mockSyncClient) FetchAllUsers(_ context.Context, workspaceID string) ([]*model.SlackUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.called[workspaceID]++
	if err := m.errs[workspaceID]; err != nil {
		return nil, err
	}
	result := make([]*model.SlackUser, len(m.users[workspaceID]))
	for i, u := range m.users[workspaceID] {
		result[i] = u.Clone()
	}
	return result, nil
}

func (m *mockSyncClient) FetchUser(_ context.Context, workspaceID string, userID model.SlackUserID) (*model.SlackUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users[workspaceID] {
		if u.ID == userID {
			return u.Clone(), nil
		}
	}
	return nil, nil
}

// mockCache records refreshed workspaces
type mockCache struct {
	mu        sync.Mutex
	refreshed []string
}

func (c *mockCache) RefreshWorkspace(_ context.Context, workspaceID string) ([]*model.SlackUser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshed = append(c.refreshed, workspaceID)
	return nil, nil
}

func newRegistry(ids ...string) *model.WorkspaceRegistry {
	reg := model.NewWorkspaceRegistry()
	for _, id := range ids {
		reg.Register(&model.WorkspaceEntry{Workspace: model.Workspace{ID: id, Name: id}})
	}
	return reg
}

func slackUser(ws, id, name string) *model.SlackUser {
	return &model.SlackUser{WorkspaceID: ws, ID: model.SlackUserID(id), Name: name, IsActive: true}
}

// waitFor polls cond until it holds or the deadline passes
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestSyncWorkspace(t *testing.T) {
	ctx := context.Background()

	t.Run("saves users, metadata and refreshes the cache", func(t *testing.T) {
		repo := memory.New()
		client := newMockSyncClient()
		client.setUsers("T1", slackUser("T1", "U1", "alice"), slackUser("T1", "U2", "bob"))
		cache := &mockCache{}
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		w := worker.NewSlackUserRefreshWorker(repo, client, newRegistry("T1"), time.Minute,
			worker.WithCache(cache), worker.WithClock(func() time.Time { return now }))

		result, err := w.SyncWorkspace(ctx, "T1")
		gt.NoError(t, err).Required()
		gt.Value(t, result.WorkspaceID).Equal("T1")
		gt.Number(t, result.UserCount).Equal(2)
		gt.String(t, result.SyncID).NotEqual("")

		users, err := repo.SlackUser().GetByWorkspace(ctx, "T1")
		gt.NoError(t, err).Required()
		gt.Array(t, users).Length(2)

		md, err := repo.SlackUser().GetMetadata(ctx, "T1")
		gt.NoError(t, err).Required()
		gt.Number(t, md.UserCount).Equal(2)
		gt.Value(t, md.LastRefreshSuccess).Equal(now)
		gt.Value(t, md.LastRefreshAttempt).Equal(now)

		gt.Value(t, cache.refreshed).Equal([]string{"T1"})
	})

	t.Run("users missing from a later sync are kept", func(t *testing.T) {
		repo := memory.New()
		client := newMockSyncClient()
		client.setUsers("T1", slackUser("T1", "U1", "alice"), slackUser("T1", "U2", "bob"))
		w := worker.NewSlackUserRefreshWorker(repo, client, newRegistry("T1"), time.Minute)

		_, err := w.SyncWorkspace(ctx, "T1")
		gt.NoError(t, err).Required()

		client.setUsers("T1", slackUser("T1", "U1", "alice.renamed"))
		_, err = w.SyncWorkspace(ctx, "T1")
		gt.NoError(t, err).Required()

		users, err := repo.SlackUser().GetByWorkspace(ctx, "T1")
		gt.NoError(t, err).Required()
		gt.Array(t, users).Length(2).Required()
		gt.Value(t, users[0].Name).Equal("alice.renamed")
	})

	t.Run("Slack error keeps data and records the attempt", func(t *testing.T) {
		repo := memory.New()
		client := newMockSyncClient()
		client.setUsers("T1", slackUser("T1", "U1", "alice"))
		cache := &mockCache{}

		clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		var mu sync.Mutex
		now := func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return clock
		}
		w := worker.NewSlackUserRefreshWorker(repo, client, newRegistry("T1"), time.Minute,
			worker.WithCache(cache), worker.WithClock(now))

		_, err := w.SyncWorkspace(ctx, "T1")
		gt.NoError(t, err).Required()

		mu.Lock()
		clock = clock.Add(time.Hour)
		mu.Unlock()
		client.setError("T1", errors.New("slack API error"))

		_, err = w.SyncWorkspace(ctx, "T1")
		gt.Value(t, err).NotNil()

		users, err := repo.SlackUser().GetByWorkspace(ctx, "T1")
		gt.NoError(t, err).Required()
		gt.Array(t, users).Length(1)

		md, err := repo.SlackUser().GetMetadata(ctx, "T1")
		gt.NoError(t, err).Required()
		gt.Bool(t, md.LastRefreshAttempt.After(md.LastRefreshSuccess)).True()
		gt.Number(t, md.UserCount).Equal(1)
		gt.Array(t, cache.refreshed).Length(1)
	})

	t.Run("empty workspace id", func(t *testing.T) {
		w := worker.NewSlackUserRefreshWorker(memory.New(), newMockSyncClient(), newRegistry(), time.Minute)
		_, err := w.SyncWorkspace(ctx, "")
		gt.Bool(t, errors.Is(err, model.ErrInvalidWorkspaceContext)).True()
	})
}

func TestSyncAll(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	client := newMockSyncClient()
	client.setUsers("T1", slackUser("T1", "U1", "alice"))
	client.setUsers("T3", slackUser("T3", "U9", "zed"))
	client.setError("T2", errors.New("invalid_auth"))

	w := worker.NewSlackUserRefreshWorker(repo, client, newRegistry("T1", "T2", "T3"), time.Minute)

	err := w.SyncAll(ctx)
	gt.Value(t, err).NotNil()

	// a failing workspace does not stop the others
	for _, ws := range []string{"T1", "T3"} {
		users, err := repo.SlackUser().GetByWorkspace(ctx, ws)
		gt.NoError(t, err).Required()
		gt.Array(t, users).Length(1)
	}
	gt.Number(t, client.calls("T2")).Equal(1)
}

func TestSlackUserRefreshWorker_StartStop(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	client := newMockSyncClient()
	client.setUsers("T1", slackUser("T1", "U1", "alice"))

	w := worker.NewSlackUserRefreshWorker(repo, client, newRegistry("T1"), 50*time.Millisecond)
	gt.NoError(t, w.Start(ctx)).Required()

	// initial sync, then at least one periodic sync
	waitFor(t, func() bool { return client.calls("T1") >= 2 })

	stopStart := time.Now()
	w.Stop()
	if d := time.Since(stopStart); d > time.Second {
		t.Errorf("Stop() took too long: %v", d)
	}

	users, err := repo.SlackUser().GetByWorkspace(ctx, "T1")
	gt.NoError(t, err).Required()
	gt.Array(t, users).Length(1)
}

func TestSlackUserRefreshWorker_RejectsNonPositiveInterval(t *testing.T) {
	w := worker.NewSlackUserRefreshWorker(memory.New(), newMockSyncClient(), newRegistry("T1"), 0)
	gt.Value(t, w.Start(context.Background())).NotNil()
}
