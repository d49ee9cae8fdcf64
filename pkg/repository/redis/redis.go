package redis

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
	"github.com/secmon-lab/slackdir/pkg/domain/interfaces"
)

const (
	defaultKeyPrefix = "slackdir:"
	pingTimeout      = 5 * time.Second
)

// Redis is a repository backed by Redis hashes
type Redis struct {
	client    *redis.Client
	keyPrefix string
	slackUser *slackUserRepository
}

var _ interfaces.Repository = &Redis{}

// Option configures a Redis repository
type Option func(*Redis)

// WithKeyPrefix sets the prefix applied to every key
func WithKeyPrefix(prefix string) Option {
	return func(r *Redis) {
		r.keyPrefix = prefix
	}
}

// New connects to addr and verifies the connection with PING
func New(ctx context.Context, addr, password string, db int, opts ...Option) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, goerr.Wrap(err, "failed to ping redis", goerr.V("addr", addr), goerr.V("db", db))
	}

	return NewWithClient(client, opts...), nil
}

// NewWithClient builds a repository on top of an existing client
func NewWithClient(client *redis.Client, opts ...Option) *Redis {
	r := &Redis{
		client:    client,
		keyPrefix: defaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.slackUser = newSlackUserRepository(client, r.keyPrefix)
	return r
}

func (r *Redis) SlackUser() interfaces.SlackUserRepository {
	return r.slackUser
}

// Close closes the underlying client
func (r *Redis) Close() error {
	if err := r.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close redis client")
	}
	return nil
}
