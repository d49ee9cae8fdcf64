package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/slackdir/pkg/domain/interfaces"
	"github.com/secmon-lab/slackdir/pkg/domain/model"
	slacksvc "github.com/secmon-lab/slackdir/pkg/service/slack"
	"github.com/secmon-lab/slackdir/pkg/service/usercache"
	"github.com/secmon-lab/slackdir/pkg/utils/logging"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

const (
	eventTypeUserChange = "user_change"
	eventTypeTeamJoin   = "team_join"
)

// SlackUseCases handles Slack Events API callbacks that change workspace members
type SlackUseCases struct {
	repo     interfaces.Repository
	cache    *usercache.Cache
	registry *model.WorkspaceRegistry
	now      func() time.Time
}

// NewSlackUseCases creates a new SlackUseCases instance
func NewSlackUseCases(repo interfaces.Repository, cache *usercache.Cache, registry *model.WorkspaceRegistry) *SlackUseCases {
	return &SlackUseCases{
		repo:     repo,
		cache:    cache,
		registry: registry,
		now:      time.Now,
	}
}

// userEvent is the shape shared by user_change and team_join
type userEvent struct {
	Type string     `json:"type"`
	User slack.User `json:"user"`
}

// HandleSlackEvent processes Slack Events API events
func (uc *SlackUseCases) HandleSlackEvent(ctx context.Context, event *slackevents.EventsAPIEvent) error {
	logger := logging.From(ctx)

	switch event.InnerEvent.Type {
	case eventTypeUserChange, eventTypeTeamJoin:
	default:
		logger.Debug("ignored slack event", "type", event.Type, "innerType", event.InnerEvent.Type)
		return nil
	}

	cb, ok := event.Data.(*slackevents.EventsAPICallbackEvent)
	if !ok || cb.InnerEvent == nil {
		return goerr.New("callback event has no inner event", goerr.V("innerType", event.InnerEvent.Type))
	}

	var inner userEvent
	if err := json.Unmarshal(*cb.InnerEvent, &inner); err != nil {
		return goerr.Wrap(err, "failed to decode user event", goerr.V("innerType", event.InnerEvent.Type))
	}
	if inner.User.ID == "" {
		return goerr.New("user event has no user ID", goerr.V("innerType", event.InnerEvent.Type))
	}

	workspaceID := event.TeamID
	if workspaceID == "" {
		workspaceID = inner.User.TeamID
	}
	if uc.registry != nil && !uc.registry.Has(workspaceID) {
		logger.Warn("user event for unknown workspace", "workspace_id", workspaceID, "user_id", inner.User.ID)
		return nil
	}

	return uc.HandleUserUpdate(ctx, workspaceID, &inner.User)
}

// HandleUserUpdate stores the latest profile of a user and refreshes its cache entry
func (uc *SlackUseCases) HandleUserUpdate(ctx context.Context, workspaceID string, user *slack.User) error {
	record := slacksvc.NormalizeUser(workspaceID, user, uc.now())

	if err := uc.repo.SlackUser().SaveMany(ctx, []*model.SlackUser{record}); err != nil {
		return goerr.Wrap(err, "failed to save updated user",
			goerr.V(WorkspaceIDKey, workspaceID), goerr.V(UserIDKey, record.ID))
	}

	if uc.cache != nil {
		if _, err := uc.cache.RefreshUser(ctx, workspaceID, record.ID); err != nil {
			return goerr.Wrap(err, "failed to refresh cached user",
				goerr.V(WorkspaceIDKey, workspaceID), goerr.V(UserIDKey, record.ID))
		}
	}

	logging.From(ctx).Info("slack user updated",
		"workspace_id", workspaceID,
		"user_id", record.ID,
		"is_active", record.IsActive,
	)
	return nil
}
