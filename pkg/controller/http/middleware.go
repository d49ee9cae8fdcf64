package http

import (
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/secmon-lab/slackdir/pkg/utils/logging"
)

// requestContext gives every request a logger tagged with its request ID and its own Sentry hub
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		logger := logging.From(ctx)
		if reqID := middleware.GetReqID(ctx); reqID != "" {
			logger = logger.With("request_id", reqID)
		}
		ctx = logging.With(ctx, logger)

		hub := sentry.CurrentHub().Clone()
		hub.Scope().SetRequest(r)
		ctx = sentry.SetHubOnContext(ctx, hub)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accessLogger logs one line per request
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.From(r.Context()).Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
