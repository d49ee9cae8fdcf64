package usercache_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/slackdir/pkg/domain/model"
	"github.com/secmon-lab/slackdir/pkg/service/usercache"
)

// fakeDirectory counts lookups and serves users from a map
type fakeDirectory struct {
	mu             sync.Mutex
	users          map[string]map[model.SlackUserID]*model.SlackUser
	err            error
	getUserCalls   int
	workspaceCalls int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{users: make(map[string]map[model.SlackUserID]*model.SlackUser)}
}

func (d *fakeDirectory) put(users ...*model.SlackUser) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range users {
		if d.users[u.WorkspaceID] == nil {
			d.users[u.WorkspaceID] = make(map[model.SlackUserID]*model.SlackUser)
		}
		d.users[u.WorkspaceID][u.ID] = u
	}
}

func (d *fakeDirectory) remove(workspaceID string, id model.SlackUserID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users[workspaceID], id)
}

func (d *fakeDirectory) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *fakeDirectory) counts() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.getUserCalls, d.workspaceCalls
}

func (d *fakeDirectory) GetUser(_ context.Context, workspaceID string, userID model.SlackUserID) (*model.SlackUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.getUserCalls++
	if d.err != nil {
		return nil, d.err
	}
	return d.users[workspaceID][userID].Clone(), nil
}

func (d *fakeDirectory) GetWorkspaceUsers(_ context.Context, workspaceID string) ([]*model.SlackUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.workspaceCalls++
	if d.err != nil {
		return nil, d.err
	}
	var users []*model.SlackUser
	for _, u := range d.users[workspaceID] {
		users = append(users, u.Clone())
	}
	return users, nil
}

// fakeClock is advanced manually
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setup(t *testing.T) (*usercache.Cache, *fakeDirectory, *fakeClock) {
	t.Helper()
	dir := newFakeDirectory()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache := usercache.New(dir, usercache.WithTTL(time.Minute), usercache.WithClock(clock.Now))
	return cache, dir, clock
}

func user(ws, id, name string) *model.SlackUser {
	return &model.SlackUser{WorkspaceID: ws, ID: model.SlackUserID(id), Name: name, IsActive: true}
}

func TestNew(t *testing.T) {
	cache := usercache.New(newFakeDirectory())
	gt.Value(t, cache.TTL()).Equal(usercache.DefaultTTL)
}

func TestGet(t *testing.T) {
	ctx := context.Background()

	t.Run("second read within TTL does not hit the directory", func(t *testing.T) {
		cache, dir, clock := setup(t)
		dir.put(user("T1", "U1", "alice"))

		got, err := cache.Get(ctx, "T1", "U1")
		gt.NoError(t, err).Required()
		gt.Value(t, got.Name).Equal("alice")

		clock.Advance(59 * time.Second)
		got, err = cache.Get(ctx, "T1", "U1")
		gt.NoError(t, err).Required()
		gt.Value(t, got.Name).Equal("alice")

		calls, _ := dir.counts()
		gt.Number(t, calls).Equal(1)
	})

	t.Run("read after TTL hits the directory once and restamps the entry", func(t *testing.T) {
		cache, dir, clock := setup(t)
		dir.put(user("T1", "U1", "alice"))

		_, err := cache.Get(ctx, "T1", "U1")
		gt.NoError(t, err).Required()

		clock.Advance(time.Minute)
		dir.put(user("T1", "U1", "alice.renamed"))
		got, err := cache.Get(ctx, "T1", "U1")
		gt.NoError(t, err).Required()
		gt.Value(t, got.Name).Equal("alice.renamed")

		calls, _ := dir.counts()
		gt.Number(t, calls).Equal(2)

		stats := cache.Stats()
		gt.Value(t, stats.NewestEntryAge).Equal(time.Duration(0))

		// restamped, so fresh again
		_, err = cache.Get(ctx, "T1", "U1")
		gt.NoError(t, err).Required()
		calls, _ = dir.counts()
		gt.Number(t, calls).Equal(2)
	})

	t.Run("miss is not cached", func(t *testing.T) {
		cache, dir, _ := setup(t)

		got, err := cache.Get(ctx, "T1", "U404")
		gt.NoError(t, err).Required()
		gt.Value(t, got).Nil()

		got, err = cache.Get(ctx, "T1", "U404")
		gt.NoError(t, err).Required()
		gt.Value(t, got).Nil()

		calls, _ := dir.counts()
		gt.Number(t, calls).Equal(2)
		gt.Number(t, cache.Stats().Size).Equal(0)
	})

	t.Run("stale entry of a vanished user is dropped", func(t *testing.T) {
		cache, dir, clock := setup(t)
		dir.put(user("T1", "U1", "alice"))
		_, err := cache.Get(ctx, "T1", "U1")
		gt.NoError(t, err).Required()

		dir.remove("T1", "U1")
		clock.Advance(2 * time.Minute)

		got, err := cache.Get(ctx, "T1", "U1")
		gt.NoError(t, err).Required()
		gt.Value(t, got).Nil()
		gt.Number(t, cache.Stats().Size).Equal(0)
	})

	t.Run("directory error is returned as is and keeps state", func(t *testing.T) {
		cache, dir, clock := setup(t)
		dir.put(user("T1", "U1", "alice"))
		_, err := cache.Get(ctx, "T1", "U1")
		gt.NoError(t, err).Required()

		storeErr := errors.New("store unavailable")
		dir.setErr(storeErr)
		clock.Advance(2 * time.Minute)

		_, err = cache.Get(ctx, "T1", "U1")
		gt.Value(t, err).Equal(storeErr)
		gt.Number(t, cache.Stats().Size).Equal(1)
	})

	t.Run("empty workspace is rejected without a lookup", func(t *testing.T) {
		cache, dir, _ := setup(t)

		_, err := cache.Get(ctx, "", "U1")
		gt.Bool(t, errors.Is(err, model.ErrInvalidWorkspaceContext)).True()

		calls, _ := dir.counts()
		gt.Number(t, calls).Equal(0)
	})

	t.Run("returned user does not alias the cached entry", func(t *testing.T) {
		cache, dir, _ := setup(t)
		dir.put(user("T1", "U1", "alice"))

		got, err := cache.Get(ctx, "T1", "U1")
		gt.NoError(t, err).Required()
		got.Name = "mutated"

		again, err := cache.Get(ctx, "T1", "U1")
		gt.NoError(t, err).Required()
		gt.Value(t, again.Name).Equal("alice")
	})

	t.Run("workspaces do not share entries", func(t *testing.T) {
		cache, dir, _ := setup(t)
		dir.put(user("T1", "U1", "alice"), user("T2", "U1", "bob"))

		a, err := cache.Get(ctx, "T1", "U1")
		gt.NoError(t, err).Required()
		b, err := cache.Get(ctx, "T2", "U1")
		gt.NoError(t, err).Required()

		gt.Value(t, a.Name).Equal("alice")
		gt.Value(t, b.Name).Equal("bob")
		gt.Number(t, cache.Stats().WorkspaceCount).Equal(2)
	})
}

func TestGetWorkspaceUsers(t *testing.T) {
	ctx := context.Background()

	t.Run("empty workspace fetches once then serves from memory", func(t *testing.T) {
		cache, dir, _ := setup(t)
		dir.put(user("T1", "U2", "bob"), user("T1", "U1", "alice"))

		users, err := cache.GetWorkspaceUsers(ctx, "T1")
		gt.NoError(t, err).Required()
		gt.Array(t, users).Length(2)

		users, err = cache.GetWorkspaceUsers(ctx, "T1")
		gt.NoError(t, err).Required()
		gt.Array(t, users).Length(2).Required()
		gt.Value(t, users[0].ID).Equal(model.SlackUserID("U1"))
		gt.Value(t, users[1].ID).Equal(model.SlackUserID("U2"))

		_, wsCalls := dir.counts()
		gt.Number(t, wsCalls).Equal(1)
	})

	t.Run("fresh partial subset is served without merging", func(t *testing.T) {
		cache, dir, _ := setup(t)
		dir.put(user("T1", "U1", "alice"), user("T1", "U2", "bob"))

		_, err := cache.Get(ctx, "T1", "U1")
		gt.NoError(t, err).Required()

		users, err := cache.GetWorkspaceUsers(ctx, "T1")
		gt.NoError(t, err).Required()
		gt.Array(t, users).Length(1)

		_, wsCalls := dir.counts()
		gt.Number(t, wsCalls).Equal(0)
	})

	t.Run("any stale entry triggers a fetch without deleting entries", func(t *testing.T) {
		cache, dir, clock := setup(t)
		dir.put(user("T1", "U1", "alice"), user("T1", "U2", "bob"))

		_, err := cache.GetWorkspaceUsers(ctx, "T1")
		gt.NoError(t, err).Required()

		clock.Advance(2 * time.Minute)
		dir.remove("T1", "U2")

		users, err := cache.GetWorkspaceUsers(ctx, "T1")
		gt.NoError(t, err).Required()
		gt.Array(t, users).Length(1)

		// U2 is absent from the batch but stays cached
		gt.Number(t, cache.Stats().Size).Equal(2)
		_, wsCalls := dir.counts()
		gt.Number(t, wsCalls).Equal(2)
	})

	t.Run("error leaves state untouched", func(t *testing.T) {
		cache, dir, clock := setup(t)
		dir.put(user("T1", "U1", "alice"))
		_, err := cache.GetWorkspaceUsers(ctx, "T1")
		gt.NoError(t, err).Required()

		storeErr := errors.New("boom")
		dir.setErr(storeErr)
		clock.Advance(2 * time.Minute)

		_, err = cache.GetWorkspaceUsers(ctx, "T1")
		gt.Value(t, err).Equal(storeErr)
		gt.Number(t, cache.Stats().Size).Equal(1)
	})

	t.Run("empty workspace id", func(t *testing.T) {
		cache, _, _ := setup(t)
		_, err := cache.GetWorkspaceUsers(ctx, "")
		gt.Bool(t, errors.Is(err, model.ErrInvalidWorkspaceContext)).True()
	})
}

func TestRefreshUser(t *testing.T) {
	ctx := context.Background()

	t.Run("bypasses freshness", func(t *testing.T) {
		cache, dir, _ := setup(t)
		dir.put(user("T1", "U1", "alice"))
		_, err := cache.Get(ctx, "T1", "U1")
		gt.NoError(t, err).Required()

		dir.put(user("T1", "U1", "alice2"))
		got, err := cache.RefreshUser(ctx, "T1", "U1")
		gt.NoError(t, err).Required()
		gt.Value(t, got.Name).Equal("alice2")

		got, err = cache.Get(ctx, "T1", "U1")
		gt.NoError(t, err).Required()
		gt.Value(t, got.Name).Equal("alice2")

		calls, _ := dir.counts()
		gt.Number(t, calls).Equal(2)
	})

	t.Run("not found removes the entry and next read re-queries", func(t *testing.T) {
		cache, dir, _ := setup(t)
		dir.put(user("T1", "U1", "alice"))
		_, err := cache.Get(ctx, "T1", "U1")
		gt.NoError(t, err).Required()

		dir.remove("T1", "U1")
		got, err := cache.RefreshUser(ctx, "T1", "U1")
		gt.NoError(t, err).Required()
		gt.Value(t, got).Nil()
		gt.Number(t, cache.Stats().Size).Equal(0)

		_, err = cache.Get(ctx, "T1", "U1")
		gt.NoError(t, err).Required()
		calls, _ := dir.counts()
		gt.Number(t, calls).Equal(3)
	})
}

func TestRefreshWorkspace(t *testing.T) {
	ctx := context.Background()

	t.Run("size matches the fetched batch", func(t *testing.T) {
		cache, dir, _ := setup(t)
		for i := 0; i < 5; i++ {
			dir.put(user("T1", fmt.Sprintf("U%d", i), fmt.Sprintf("user%d", i)))
		}

		users, err := cache.RefreshWorkspace(ctx, "T1")
		gt.NoError(t, err).Required()
		gt.Array(t, users).Length(5)

		stats := cache.Stats()
		gt.Number(t, stats.Size).Equal(5)
		gt.Number(t, stats.WorkspaceCount).Equal(1)
	})

	t.Run("evicts users absent from the batch", func(t *testing.T) {
		cache, dir, _ := setup(t)
		dir.put(user("T1", "U1", "alice"), user("T1", "U2", "bob"))
		_, err := cache.GetWorkspaceUsers(ctx, "T1")
		gt.NoError(t, err).Required()

		dir.remove("T1", "U2")
		_, err = cache.RefreshWorkspace(ctx, "T1")
		gt.NoError(t, err).Required()
		gt.Number(t, cache.Stats().Size).Equal(1)
	})

	t.Run("does not touch other workspaces", func(t *testing.T) {
		cache, dir, _ := setup(t)
		dir.put(user("T1", "U1", "alice"), user("T2", "U1", "bob"))
		_, err := cache.Get(ctx, "T2", "U1")
		gt.NoError(t, err).Required()

		_, err = cache.RefreshWorkspace(ctx, "T1")
		gt.NoError(t, err).Required()
		gt.Number(t, cache.Stats().Size).Equal(2)
	})

	t.Run("failure keeps previous entries", func(t *testing.T) {
		cache, dir, _ := setup(t)
		dir.put(user("T1", "U1", "alice"))
		_, err := cache.RefreshWorkspace(ctx, "T1")
		gt.NoError(t, err).Required()

		dir.setErr(errors.New("down"))
		_, err = cache.RefreshWorkspace(ctx, "T1")
		gt.Value(t, err).NotNil()
		gt.Number(t, cache.Stats().Size).Equal(1)
	})
}

func TestSetTTL(t *testing.T) {
	ctx := context.Background()
	cache, dir, clock := setup(t)
	dir.put(user("T1", "U1", "alice"))

	_, err := cache.Get(ctx, "T1", "U1")
	gt.NoError(t, err).Required()

	clock.Advance(30 * time.Second)
	cache.SetTTL(10 * time.Second)
	gt.Value(t, cache.TTL()).Equal(10 * time.Second)

	// existing entry is now judged against the shorter window
	_, err = cache.Get(ctx, "T1", "U1")
	gt.NoError(t, err).Required()
	calls, _ := dir.counts()
	gt.Number(t, calls).Equal(2)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	cache, dir, clock := setup(t)

	empty := cache.Stats()
	gt.Number(t, empty.Size).Equal(0)
	gt.Value(t, empty.OldestEntryAge).Equal(time.Duration(0))
	gt.Value(t, empty.TTL).Equal(time.Minute)

	dir.put(user("T1", "U1", "alice"), user("T1", "U2", "bob"))
	_, err := cache.Get(ctx, "T1", "U1")
	gt.NoError(t, err).Required()
	clock.Advance(20 * time.Second)
	_, err = cache.Get(ctx, "T1", "U2")
	gt.NoError(t, err).Required()
	clock.Advance(5 * time.Second)

	stats := cache.Stats()
	gt.Number(t, stats.Size).Equal(2)
	gt.Number(t, stats.WorkspaceCount).Equal(1)
	gt.Value(t, stats.OldestEntryAge).Equal(25 * time.Second)
	gt.Value(t, stats.NewestEntryAge).Equal(5 * time.Second)
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	cache, dir, _ := setup(t)
	for i := 0; i < 20; i++ {
		dir.put(user("T1", fmt.Sprintf("U%d", i), "u"), user("T2", fmt.Sprintf("U%d", i), "u"))
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ws := []string{"T1", "T2"}[i%2]
			_, _ = cache.Get(ctx, ws, model.SlackUserID(fmt.Sprintf("U%d", i%20)))
			_, _ = cache.GetWorkspaceUsers(ctx, ws)
			if i%10 == 0 {
				_, _ = cache.RefreshWorkspace(ctx, ws)
			}
			_ = cache.Stats()
		}(i)
	}
	wg.Wait()

	gt.Number(t, cache.Stats().Size).LessOrEqual(40)

	_, err := cache.RefreshWorkspace(ctx, "T1")
	gt.NoError(t, err).Required()
	_, err = cache.RefreshWorkspace(ctx, "T2")
	gt.NoError(t, err).Required()
	gt.Number(t, cache.Stats().Size).Equal(40)
}
