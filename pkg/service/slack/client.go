package slack

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/slackdir/pkg/utils/logging"
	"github.com/slack-go/slack"
)

const (
	// DefaultPageSize is the users.list page size
	DefaultPageSize = 200
	// DefaultMaxRateLimitRetries bounds how many rate limited responses are waited out per call
	DefaultMaxRateLimitRetries = 5

	errCodeUserNotFound = "user_not_found"
)

// client implements Service interface
type client struct {
	api                 *slack.Client
	pageSize            int
	maxRateLimitRetries int
}

// Option is a functional option for client configuration
type Option func(*client)

type clientOptions struct {
	apiURL string
}

// WithPageSize sets the users.list page size
func WithPageSize(size int) Option {
	return func(c *client) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

// WithMaxRateLimitRetries sets how many rate limited responses are waited out before giving up
func WithMaxRateLimitRetries(n int) Option {
	return func(c *client) {
		c.maxRateLimitRetries = n
	}
}

// New creates a new Slack service with the provided bot token
func New(token string, opts ...Option) (Service, error) {
	return newClient(token, clientOptions{}, opts...)
}

func newClient(token string, co clientOptions, opts ...Option) (*client, error) {
	if token == "" {
		return nil, goerr.New("Slack bot token is required")
	}

	var slackOpts []slack.Option
	if co.apiURL != "" {
		slackOpts = append(slackOpts, slack.OptionAPIURL(co.apiURL))
	}

	c := &client{
		api:                 slack.New(token, slackOpts...),
		pageSize:            DefaultPageSize,
		maxRateLimitRetries: DefaultMaxRateLimitRetries,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// ListUsers retrieves all members of the workspace with cursor pagination
func (c *client) ListUsers(ctx context.Context) ([]slack.User, error) {
	var users []slack.User
	retries := 0

	p := c.api.GetUsersPaginated(slack.GetUsersOptionLimit(c.pageSize))
	for {
		// p keeps the last good cursor; a rate limited call is retried from it
		next, err := p.Next(ctx)
		if next.Done(err) {
			break
		}

		var rateLimited *slack.RateLimitedError
		if errors.As(err, &rateLimited) {
			if retries >= c.maxRateLimitRetries {
				return nil, goerr.Wrap(err, "rate limit retries exhausted while listing users",
					goerr.V("retries", retries), goerr.V("fetched", len(users)))
			}
			retries++
			logging.From(ctx).Warn("rate limited by users.list, waiting",
				"retry_after", rateLimited.RetryAfter,
				"retries", retries,
			)
			if err := sleep(ctx, rateLimited.RetryAfter); err != nil {
				return nil, goerr.Wrap(err, "interrupted while waiting for rate limit")
			}
			continue
		}

		if err := next.Failure(err); err != nil {
			return nil, goerr.Wrap(err, "failed to list users", goerr.V("fetched", len(users)))
		}

		p = next
		users = append(users, p.Users...)
	}

	return users, nil
}

// GetUserInfo retrieves user information for the given user ID
func (c *client) GetUserInfo(ctx context.Context, userID string) (*slack.User, error) {
	for retries := 0; ; retries++ {
		user, err := c.api.GetUserInfoContext(ctx, userID)
		if err == nil {
			return user, nil
		}

		var slackErr slack.SlackErrorResponse
		if errors.As(err, &slackErr) && slackErr.Err == errCodeUserNotFound {
			return nil, nil
		}

		var rateLimited *slack.RateLimitedError
		if errors.As(err, &rateLimited) && retries < c.maxRateLimitRetries {
			if err := sleep(ctx, rateLimited.RetryAfter); err != nil {
				return nil, goerr.Wrap(err, "interrupted while waiting for rate limit")
			}
			continue
		}

		return nil, goerr.Wrap(err, "failed to get user info", goerr.V("user_id", userID))
	}
}

// GetTeamInfo retrieves the workspace identity of the token
func (c *client) GetTeamInfo(ctx context.Context) (*Team, error) {
	team, err := c.api.GetTeamInfoContext(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get team info")
	}

	return &Team{
		ID:     team.ID,
		Name:   team.Name,
		Domain: team.Domain,
	}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
