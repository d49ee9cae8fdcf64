package slack

import (
	"context"

	"github.com/slack-go/slack"
)

// Service provides the subset of the Slack Web API used to mirror workspace members
type Service interface {
	// ListUsers retrieves every member of the workspace, including bots and deactivated users.
	// Pagination and rate limit waits are handled internally.
	ListUsers(ctx context.Context) ([]slack.User, error)

	// GetUserInfo retrieves one member. It returns (nil, nil) when Slack reports user_not_found.
	GetUserInfo(ctx context.Context, userID string) (*slack.User, error)

	// GetTeamInfo retrieves identity of the workspace the token belongs to
	GetTeamInfo(ctx context.Context) (*Team, error)
}

// Team represents a Slack workspace as reported by team.info
type Team struct {
	ID     string
	Name   string
	Domain string
}
