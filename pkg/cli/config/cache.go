package config

import (
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/slackdir/pkg/service/usercache"
	"github.com/urfave/cli/v3"
)

// DefaultSyncInterval is how often the worker mirrors every workspace from Slack
const DefaultSyncInterval = 30 * time.Minute

// Cache holds the user cache and background sync settings
type Cache struct {
	ttl          time.Duration
	syncInterval time.Duration
}

func (x *Cache) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:        "cache-ttl",
			Usage:       "How long a cached user is served without re-reading the store",
			Category:    "Cache",
			Value:       usercache.DefaultTTL,
			Sources:     cli.EnvVars("SLACKDIR_CACHE_TTL"),
			Destination: &x.ttl,
		},
		&cli.DurationFlag{
			Name:        "sync-interval",
			Usage:       "Interval of the background Slack sync (0 disables it)",
			Category:    "Cache",
			Value:       DefaultSyncInterval,
			Sources:     cli.EnvVars("SLACKDIR_SYNC_INTERVAL"),
			Destination: &x.syncInterval,
		},
	}
}

func (x Cache) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Duration("ttl", x.ttl),
		slog.Duration("sync_interval", x.syncInterval),
	)
}

// Validate rejects durations the cache and worker cannot run with
func (x *Cache) Validate() error {
	if x.ttl <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "cache TTL must be positive", goerr.V("ttl", x.ttl))
	}
	if x.syncInterval < 0 {
		return goerr.Wrap(ErrInvalidConfig, "sync interval must not be negative", goerr.V("interval", x.syncInterval))
	}
	return nil
}

func (x *Cache) TTL() time.Duration {
	return x.ttl
}

// SyncInterval returns the worker interval; zero means the worker is not started
func (x *Cache) SyncInterval() time.Duration {
	return x.syncInterval
}
