package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/slackdir/pkg/usecase"
	"github.com/secmon-lab/slackdir/pkg/utils/async"
	"github.com/secmon-lab/slackdir/pkg/utils/errutil"
	"github.com/secmon-lab/slackdir/pkg/utils/logging"
	"github.com/secmon-lab/slackdir/pkg/utils/safe"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

// verifySlackSignature checks X-Slack-Signature against body. Requests older than five minutes
// are rejected.
func verifySlackSignature(signingSecret string, header http.Header, body []byte) error {
	if signingSecret == "" {
		return goerr.New("slack signing secret is not configured")
	}

	sv, err := slack.NewSecretsVerifier(header, signingSecret)
	if err != nil {
		return goerr.Wrap(err, "invalid slack signature headers",
			goerr.V("timestamp", header.Get("X-Slack-Request-Timestamp")))
	}
	if _, err := sv.Write(body); err != nil {
		return goerr.Wrap(err, "failed to hash request body")
	}
	if err := sv.Ensure(); err != nil {
		return goerr.Wrap(err, "signature mismatch")
	}

	return nil
}

// SlackSignatureMiddleware rejects requests whose Slack signature does not verify
func SlackSignatureMiddleware(signingSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			body, err := io.ReadAll(r.Body)
			safe.Close(ctx, r.Body)
			if err != nil {
				errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
				return
			}

			if err := verifySlackSignature(signingSecret, r.Header, body); err != nil {
				errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "slack signature verification failed"), http.StatusUnauthorized)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

// SlackWebhookHandler handles Slack Events API requests. Member changes are applied after the
// response is written so Slack's three second deadline is met.
type SlackWebhookHandler struct {
	slackUC *usecase.SlackUseCases
}

// NewSlackWebhookHandler creates a new Slack webhook handler
func NewSlackWebhookHandler(slackUC *usecase.SlackUseCases) *SlackWebhookHandler {
	return &SlackWebhookHandler{
		slackUC: slackUC,
	}
}

func (h *SlackWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
		return
	}

	// Signature is verified by the middleware, not by the legacy verification token
	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to parse slack event"), http.StatusBadRequest)
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to unmarshal challenge"), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		safe.Write(ctx, w, []byte(challenge.Challenge))

	case slackevents.CallbackEvent:
		w.WriteHeader(http.StatusOK)

		async.Dispatch(ctx, func(ctx context.Context) error {
			logging.From(ctx).Debug("processing slack callback event",
				"team_id", event.TeamID,
				"inner_type", event.InnerEvent.Type,
			)
			if err := h.slackUC.HandleSlackEvent(ctx, &event); err != nil {
				return goerr.Wrap(err, "failed to handle slack event",
					goerr.V("team_id", event.TeamID), goerr.V("inner_type", event.InnerEvent.Type))
			}
			return nil
		})

	default:
		logging.From(ctx).Warn("unknown slack event type", "type", event.Type)
		w.WriteHeader(http.StatusOK)
	}
}
