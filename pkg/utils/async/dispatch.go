package async

import (
	"context"
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/slackdir/pkg/utils/errutil"
	"github.com/secmon-lab/slackdir/pkg/utils/logging"
)

// Dispatch runs handler in a new goroutine detached from the request context. The logger and
// the Sentry hub of ctx are carried over; errors and panics are reported through errutil.
func Dispatch(ctx context.Context, handler func(ctx context.Context) error) {
	bgCtx := logging.With(context.Background(), logging.From(ctx))
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		bgCtx = sentry.SetHubOnContext(bgCtx, hub.Clone())
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				_ = errutil.Handle(bgCtx, goerr.New(fmt.Sprintf("panic: %v", r)), "panic in async handler")
			}
		}()

		if err := handler(bgCtx); err != nil {
			_ = errutil.Handle(bgCtx, err, "async handler failed")
		}
	}()
}
