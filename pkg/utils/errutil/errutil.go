package errutil

import (
	"context"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/slackdir/pkg/utils/logging"
)

// Handle logs the error with goerr values and stack and reports it to Sentry when a client is
// configured. The error is returned as-is.
func Handle(ctx context.Context, err error, msg string) error {
	if err == nil {
		return nil
	}

	logError(ctx, msg, err)
	capture(ctx, err)

	return err
}

// HandleHTTP logs the error and writes a plain text response. Only 5xx errors are reported to
// Sentry.
func HandleHTTP(ctx context.Context, w http.ResponseWriter, err error, statusCode int) {
	if err == nil {
		return
	}

	logError(ctx, "HTTP error", err, "status", statusCode)
	if statusCode >= http.StatusInternalServerError {
		capture(ctx, err)
	}

	http.Error(w, err.Error(), statusCode)
}

func logError(ctx context.Context, msg string, err error, args ...any) {
	logger := logging.From(ctx)

	args = append(args, "error", err.Error())
	var ge *goerr.Error
	if errors.As(err, &ge) {
		args = append(args, "values", ge.Values(), "stack", ge.Stacks())
	}
	logger.Error(msg, args...)
}

func capture(ctx context.Context, err error) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	if hub.Client() == nil {
		return
	}

	hub.WithScope(func(scope *sentry.Scope) {
		var ge *goerr.Error
		if errors.As(err, &ge) {
			scope.SetContext("goerr", sentry.Context(ge.Values()))
		}
		hub.CaptureException(err)
	})
}
