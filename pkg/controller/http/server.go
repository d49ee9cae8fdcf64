package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/secmon-lab/slackdir/pkg/usecase"
)

type Server struct {
	router              *chi.Mux
	uc                  *usecase.UseCases
	slackWebhookHandler *SlackWebhookHandler
	slackSigningSecret  string
}

type Options func(*Server)

// WithSlackWebhook enables /hooks/slack/event. Requests are verified with signingSecret.
func WithSlackWebhook(handler *SlackWebhookHandler, signingSecret string) Options {
	return func(s *Server) {
		s.slackWebhookHandler = handler
		s.slackSigningSecret = signingSecret
	}
}

func New(uc *usecase.UseCases, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		uc:     uc,
	}
	for _, opt := range opts {
		opt(s)
	}

	r.Use(middleware.RequestID)
	r.Use(requestContext)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	api := &apiHandler{uc: uc}
	r.Route("/api", func(r chi.Router) {
		r.Get("/workspaces", api.listWorkspaces)
		r.Route("/workspaces/{workspaceID}", func(r chi.Router) {
			r.Get("/users", api.listUsers)
			r.Get("/users/{userID}", api.getUser)
			r.Post("/users/{userID}/refresh", api.refreshUser)
			r.Post("/refresh", api.refreshWorkspace)
			r.Post("/sync", api.syncWorkspace)
			r.Post("/render", api.render)
		})
		r.Get("/cache/stats", api.cacheStats)
		r.Put("/cache/ttl", api.setCacheTTL)
	})

	// No API auth here; Slack requests are verified by signature instead
	if s.slackWebhookHandler != nil {
		r.Route("/hooks/slack", func(r chi.Router) {
			r.Use(SlackSignatureMiddleware(s.slackSigningSecret))
			r.Post("/event", s.slackWebhookHandler.ServeHTTP)
		})
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
