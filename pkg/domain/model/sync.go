package model

import (
	"log/slog"
	"time"
)

// SyncResult summarizes one full sync of a workspace
type SyncResult struct {
	SyncID      string        `json:"sync_id"`
	WorkspaceID string        `json:"workspace_id"`
	UserCount   int           `json:"user_count"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
}

func (r SyncResult) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("sync_id", r.SyncID),
		slog.String("workspace_id", r.WorkspaceID),
		slog.Int("user_count", r.UserCount),
		slog.Duration("duration", r.Duration),
	)
}
