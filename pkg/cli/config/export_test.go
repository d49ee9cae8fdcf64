package config

import (
	"io"
	"log/slog"
	"time"
)

// NewSlackForTest creates a Slack config for testing purposes
func NewSlackForTest(signingSecret string) *Slack {
	return &Slack{signingSecret: signingSecret}
}

// NewCacheForTest creates a Cache config for testing purposes
func NewCacheForTest(ttl, syncInterval time.Duration) *Cache {
	return &Cache{ttl: ttl, syncInterval: syncInterval}
}

// NewRepositoryForTest creates a Repository config for testing purposes
func NewRepositoryForTest(backend, projectID, mongoURI, redisAddr string) *Repository {
	return &Repository{
		backend:       backend,
		projectID:     projectID,
		mongoURI:      mongoURI,
		mongoDatabase: "slackdir",
		redisAddr:     redisAddr,
	}
}

// NewWorkspaceForTest creates a Workspace config for testing purposes
func NewWorkspaceForTest(path string) *Workspace {
	return &Workspace{path: path}
}

// NewLoggerForTest creates a Logger config for testing purposes
func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{level: level, format: format, output: output}
}

// NewLogHandlerForTest exposes the handler builder
func NewLogHandlerForTest(w io.Writer, format string, level slog.Level) (slog.Handler, error) {
	return newLogHandler(w, format, level)
}
