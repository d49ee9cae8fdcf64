package usecase

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for use case layer
var (
	// ErrSyncUnavailable is returned when no Slack sync is configured
	ErrSyncUnavailable = goerr.New("slack sync is not configured")

	// ErrInvalidTTL is returned when a non-positive cache TTL is requested
	ErrInvalidTTL = goerr.New("cache TTL must be positive")
)

// Context keys for error values
const (
	WorkspaceIDKey = "workspace_id"
	UserIDKey      = "user_id"
)
