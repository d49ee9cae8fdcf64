package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/slackdir/pkg/domain/model"
	slacksvc "github.com/secmon-lab/slackdir/pkg/service/slack"
	"github.com/urfave/cli/v3"
)

// WorkspaceFile is the TOML workspace list
//
//	[[workspace]]
//	id = "T0123ABCD"
//	name = "Acme"
//	bot_token_env = "ACME_SLACK_BOT_TOKEN"
type WorkspaceFile struct {
	Workspaces []WorkspaceEntry `toml:"workspace"`
}

// WorkspaceEntry is one workspace. The bot token is given inline or through an environment
// variable.
type WorkspaceEntry struct {
	ID          string `toml:"id"`
	Name        string `toml:"name"`
	BotToken    string `toml:"bot_token" masq:"secret"`
	BotTokenEnv string `toml:"bot_token_env"`
}

// token resolves the bot token, preferring the inline value
func (e *WorkspaceEntry) token() string {
	if e.BotToken != "" {
		return e.BotToken
	}
	if e.BotTokenEnv != "" {
		return os.Getenv(e.BotTokenEnv)
	}
	return ""
}

// Validate checks if the WorkspaceEntry is valid
func (e *WorkspaceEntry) Validate() error {
	if e.ID == "" {
		return goerr.Wrap(ErrInvalidConfig, "workspace id is required")
	}
	if e.token() == "" {
		return goerr.Wrap(ErrMissingBotToken, "workspace has no bot token",
			goerr.V(WorkspaceIDKey, e.ID), goerr.V("bot_token_env", e.BotTokenEnv))
	}
	return nil
}

// Validate checks every entry and rejects duplicate IDs
func (f *WorkspaceFile) Validate() error {
	seen := make(map[string]bool, len(f.Workspaces))
	for i := range f.Workspaces {
		ws := &f.Workspaces[i]
		if err := ws.Validate(); err != nil {
			return goerr.Wrap(err, "invalid workspace", goerr.V(WorkspaceIndexKey, i))
		}
		if seen[ws.ID] {
			return goerr.Wrap(ErrDuplicateWorkspaceID, "duplicate workspace", goerr.V(WorkspaceIDKey, ws.ID))
		}
		seen[ws.ID] = true
	}
	return nil
}

// LoadWorkspaceFile loads and validates the workspace list from a TOML file
func LoadWorkspaceFile(path string) (*WorkspaceFile, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, "workspace config not found", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read workspace config", goerr.V(ConfigPathKey, path))
	}

	var file WorkspaceFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(ErrInvalidConfig, "failed to parse TOML config",
			goerr.V(ConfigPathKey, path), goerr.V("error", err.Error()))
	}

	if err := file.Validate(); err != nil {
		return nil, goerr.Wrap(err, "workspace config validation failed", goerr.V(ConfigPathKey, path))
	}

	return &file, nil
}

// Workspace holds the flag pointing at the workspace list
type Workspace struct {
	path string
}

func (x *Workspace) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "workspace-config",
			Aliases:     []string{"w"},
			Usage:       "Path to the workspace TOML file",
			Category:    "Workspace",
			Sources:     cli.EnvVars("SLACKDIR_WORKSPACE_CONFIG"),
			Destination: &x.path,
		},
	}
}

func (x Workspace) LogValue() slog.Value {
	return slog.GroupValue(slog.String("path", x.path))
}

// IsConfigured reports whether a workspace file was given
func (x *Workspace) IsConfigured() bool {
	return x.path != ""
}

// Configure loads the workspace list and builds the registry plus one Slack client per workspace.
// Without a file both are empty, and lookups are limited to what the store already has.
func (x *Workspace) Configure(opts ...slacksvc.Option) (*model.WorkspaceRegistry, *slacksvc.Directory, error) {
	registry := model.NewWorkspaceRegistry()
	directory := slacksvc.NewDirectory()

	if x.path == "" {
		return registry, directory, nil
	}

	file, err := LoadWorkspaceFile(x.path)
	if err != nil {
		return nil, nil, err
	}

	for _, ws := range file.Workspaces {
		token := ws.token()
		svc, err := slacksvc.New(token, opts...)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create slack client", goerr.V(WorkspaceIDKey, ws.ID))
		}

		name := ws.Name
		if name == "" {
			name = ws.ID
		}
		registry.Register(&model.WorkspaceEntry{
			Workspace: model.Workspace{ID: ws.ID, Name: name},
			BotToken:  token,
		})
		directory.Add(ws.ID, svc)
	}

	return registry, directory, nil
}
