package usercache

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/secmon-lab/slackdir/pkg/domain/interfaces"
	"github.com/secmon-lab/slackdir/pkg/domain/model"
	"github.com/secmon-lab/slackdir/pkg/utils/logging"
)

// DefaultTTL is the freshness window applied when no TTL option is given
const DefaultTTL = 5 * time.Minute

type entry struct {
	user        *model.SlackUser
	refreshedAt time.Time
}

// shard holds the entries of one workspace
type shard struct {
	mu      sync.RWMutex
	entries map[model.SlackUserID]*entry
}

// Cache is a TTL bounded, per-workspace in-memory view over a UserDirectory.
//
// Stale entries are never evicted by age; they only cause the next read to fall
// through to the directory. Misses are not cached. RefreshWorkspace is the only
// operation that removes entries of users still present in the directory.
type Cache struct {
	dir   interfaces.UserDirectory
	clock func() time.Time
	ttl   atomic.Int64

	mu     sync.RWMutex
	shards map[string]*shard
}

// Option configures a Cache
type Option func(*Cache)

// WithTTL sets the initial freshness window
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl.Store(int64(ttl))
	}
}

// WithClock replaces time.Now, mainly for tests
func WithClock(clock func() time.Time) Option {
	return func(c *Cache) {
		c.clock = clock
	}
}

// New creates a Cache reading through dir
func New(dir interfaces.UserDirectory, opts ...Option) *Cache {
	c := &Cache{
		dir:    dir,
		clock:  time.Now,
		shards: make(map[string]*shard),
	}
	c.ttl.Store(int64(DefaultTTL))

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// TTL returns the current freshness window
func (c *Cache) TTL() time.Duration {
	return time.Duration(c.ttl.Load())
}

// SetTTL changes the freshness window. Existing entries are judged against the new value on
// their next read.
func (c *Cache) SetTTL(ttl time.Duration) {
	c.ttl.Store(int64(ttl))
}

func (c *Cache) isFresh(e *entry, now time.Time, ttl time.Duration) bool {
	return now.Sub(e.refreshedAt) < ttl
}

// lookupShard returns the shard of workspaceID or nil
func (c *Cache) lookupShard(workspaceID string) *shard {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.shards[workspaceID]
}

// getShard returns the shard of workspaceID, creating it on first use
func (c *Cache) getShard(workspaceID string) *shard {
	if s := c.lookupShard(workspaceID); s != nil {
		return s
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.shards[workspaceID]; ok {
		return s
	}
	s := &shard{entries: make(map[model.SlackUserID]*entry)}
	c.shards[workspaceID] = s
	return s
}

func (c *Cache) put(workspaceID string, user *model.SlackUser) {
	s := c.getShard(workspaceID)
	now := c.clock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[user.ID] = &entry{user: user.Clone(), refreshedAt: now}
}

func (c *Cache) drop(workspaceID string, userID model.SlackUserID) {
	s := c.lookupShard(workspaceID)
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
}

// Get returns the user, or nil when the directory has no such user.
// A fresh entry is served without touching the directory.
func (c *Cache) Get(ctx context.Context, workspaceID string, userID model.SlackUserID) (*model.SlackUser, error) {
	if workspaceID == "" {
		return nil, model.ErrInvalidWorkspaceContext
	}

	if s := c.lookupShard(workspaceID); s != nil {
		now := c.clock()
		ttl := c.TTL()

		s.mu.RLock()
		e, ok := s.entries[userID]
		var hit *model.SlackUser
		if ok && c.isFresh(e, now, ttl) {
			hit = e.user.Clone()
		}
		s.mu.RUnlock()

		if hit != nil {
			logging.From(ctx).Debug("user cache hit", "workspace_id", workspaceID, "user_id", userID)
			return hit, nil
		}
	}

	logging.From(ctx).Debug("user cache miss", "workspace_id", workspaceID, "user_id", userID)
	return c.fetchUser(ctx, workspaceID, userID)
}

// fetchUser performs one directory lookup and applies the result
func (c *Cache) fetchUser(ctx context.Context, workspaceID string, userID model.SlackUserID) (*model.SlackUser, error) {
	user, err := c.dir.GetUser(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}

	if user == nil {
		c.drop(workspaceID, userID)
		return nil, nil
	}

	c.put(workspaceID, user)
	return user, nil
}

// GetWorkspaceUsers returns every known user of a workspace. When the workspace has no entry
// or any entry is stale, the full list is fetched once and merged in without removing entries.
func (c *Cache) GetWorkspaceUsers(ctx context.Context, workspaceID string) ([]*model.SlackUser, error) {
	if workspaceID == "" {
		return nil, model.ErrInvalidWorkspaceContext
	}

	if users := c.freshWorkspaceUsers(workspaceID); users != nil {
		logging.From(ctx).Debug("workspace cache hit", "workspace_id", workspaceID, "count", len(users))
		return users, nil
	}

	logging.From(ctx).Debug("workspace cache miss", "workspace_id", workspaceID)
	users, err := c.dir.GetWorkspaceUsers(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	s := c.getShard(workspaceID)
	now := c.clock()
	s.mu.Lock()
	for _, user := range users {
		s.entries[user.ID] = &entry{user: user.Clone(), refreshedAt: now}
	}
	s.mu.Unlock()

	return users, nil
}

// freshWorkspaceUsers returns the cached users sorted by ID, or nil when the workspace must be
// fetched
func (c *Cache) freshWorkspaceUsers(workspaceID string) []*model.SlackUser {
	s := c.lookupShard(workspaceID)
	if s == nil {
		return nil
	}

	now := c.clock()
	ttl := c.TTL()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return nil
	}

	users := make([]*model.SlackUser, 0, len(s.entries))
	for _, e := range s.entries {
		if !c.isFresh(e, now, ttl) {
			return nil
		}
		users = append(users, e.user.Clone())
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

	return users
}

// RefreshUser re-reads one user from the directory regardless of freshness
func (c *Cache) RefreshUser(ctx context.Context, workspaceID string, userID model.SlackUserID) (*model.SlackUser, error) {
	if workspaceID == "" {
		return nil, model.ErrInvalidWorkspaceContext
	}
	return c.fetchUser(ctx, workspaceID, userID)
}

// RefreshWorkspace re-reads the whole workspace and replaces its entries with the result.
// On failure the cached entries are left untouched.
func (c *Cache) RefreshWorkspace(ctx context.Context, workspaceID string) ([]*model.SlackUser, error) {
	if workspaceID == "" {
		return nil, model.ErrInvalidWorkspaceContext
	}

	users, err := c.dir.GetWorkspaceUsers(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	entries := make(map[model.SlackUserID]*entry, len(users))
	now := c.clock()
	for _, user := range users {
		entries[user.ID] = &entry{user: user.Clone(), refreshedAt: now}
	}

	s := c.getShard(workspaceID)
	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	logging.From(ctx).Debug("workspace cache refreshed", "workspace_id", workspaceID, "count", len(users))
	return users, nil
}

// Stats is a point-in-time summary of the cache
type Stats struct {
	Size           int
	WorkspaceCount int
	OldestEntryAge time.Duration
	NewestEntryAge time.Duration
	TTL            time.Duration
}

// LogValue implements slog.LogValuer
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("size", s.Size),
		slog.Int("workspace_count", s.WorkspaceCount),
		slog.Duration("oldest_entry_age", s.OldestEntryAge),
		slog.Duration("newest_entry_age", s.NewestEntryAge),
		slog.Duration("ttl", s.TTL),
	)
}

// Stats reports size and entry ages. Ages are zero when the cache is empty.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	shards := make([]*shard, 0, len(c.shards))
	for _, s := range c.shards {
		shards = append(shards, s)
	}
	c.mu.RUnlock()

	stats := Stats{TTL: c.TTL()}
	now := c.clock()
	var oldest, newest time.Time

	for _, s := range shards {
		s.mu.RLock()
		if len(s.entries) > 0 {
			stats.WorkspaceCount++
		}
		for _, e := range s.entries {
			stats.Size++
			if oldest.IsZero() || e.refreshedAt.Before(oldest) {
				oldest = e.refreshedAt
			}
			if newest.IsZero() || e.refreshedAt.After(newest) {
				newest = e.refreshedAt
			}
		}
		s.mu.RUnlock()
	}

	if stats.Size > 0 {
		stats.OldestEntryAge = now.Sub(oldest)
		stats.NewestEntryAge = now.Sub(newest)
	}

	return stats
}
