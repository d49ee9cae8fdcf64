package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for configuration validation
var (
	ErrConfigNotFound       = goerr.New("configuration file not found")
	ErrInvalidConfig        = goerr.New("invalid configuration")
	ErrDuplicateWorkspaceID = goerr.New("duplicate workspace ID")
	ErrMissingBotToken      = goerr.New("bot token is required")
	ErrInvalidBackend       = goerr.New("invalid repository backend")
)

// Context keys for error values
const (
	ConfigPathKey     = "config_path"
	WorkspaceIDKey    = "workspace_id"
	WorkspaceIndexKey = "workspace_index"
	BackendKey        = "backend"
)
