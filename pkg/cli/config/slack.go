package config

import (
	"log/slog"

	"github.com/urfave/cli/v3"
)

// Slack holds the Events API settings
type Slack struct {
	signingSecret string
}

func (x *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-signing-secret",
			Usage:       "Slack Signing Secret (enables /hooks/slack/event)",
			Category:    "Slack",
			Destination: &x.signingSecret,
			Sources:     cli.EnvVars("SLACKDIR_SLACK_SIGNING_SECRET"),
		},
	}
}

func (x Slack) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("signing-secret.len", len(x.signingSecret)),
	)
}

// IsWebhookConfigured checks if Slack webhook is configured
func (x *Slack) IsWebhookConfigured() bool {
	return x.signingSecret != ""
}

// SigningSecret returns the Slack signing secret
func (x *Slack) SigningSecret() string {
	return x.signingSecret
}
