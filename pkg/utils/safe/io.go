package safe

import (
	"context"
	"io"
	"log/slog"

	"github.com/secmon-lab/slackdir/pkg/utils/logging"
)

// Close closes closer and logs a failure. A nil closer is ignored.
func Close(ctx context.Context, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.From(ctx).Error("failed to close", slog.Any("error", err))
	}
}

// CloseFunc runs a context-taking close function, such as a store client's Close, and logs a
// failure
func CloseFunc(ctx context.Context, name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}
	if err := fn(ctx); err != nil {
		logging.From(ctx).Error("failed to close", slog.String("target", name), slog.Any("error", err))
	}
}

// Write writes data to w and logs a failure. A nil writer is ignored.
func Write(ctx context.Context, w io.Writer, data []byte) {
	if w == nil {
		return
	}
	if _, err := w.Write(data); err != nil {
		logging.From(ctx).Error("failed to write", slog.Any("error", err))
	}
}
