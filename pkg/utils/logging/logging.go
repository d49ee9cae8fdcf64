package logging

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

var (
	defaultLogger      = slog.New(slog.NewTextHandler(os.Stderr, nil))
	defaultLoggerMutex sync.RWMutex
)

// Default returns the process-wide logger configured by the CLI
func Default() *slog.Logger {
	defaultLoggerMutex.RLock()
	defer defaultLoggerMutex.RUnlock()
	return defaultLogger
}

// SetDefault replaces the process-wide logger. It also becomes slog's default.
func SetDefault(logger *slog.Logger) {
	defaultLoggerMutex.Lock()
	defer defaultLoggerMutex.Unlock()
	defaultLogger = logger
	slog.SetDefault(logger)
}

type ctxLoggerKey struct{}

// With embeds logger into ctx
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxLoggerKey{}, logger)
}

// From returns the logger embedded in ctx, or Default() when there is none
func From(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(ctxLoggerKey{}).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	return Default()
}
