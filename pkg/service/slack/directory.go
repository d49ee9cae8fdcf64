package slack

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/slackdir/pkg/domain/interfaces"
	"github.com/secmon-lab/slackdir/pkg/domain/model"
	"github.com/slack-go/slack"
)

// Directory routes member lookups to the Slack client holding each workspace's bot token
type Directory struct {
	mu       sync.RWMutex
	services map[string]Service
	now      func() time.Time
}

var _ interfaces.UserSyncClient = &Directory{}

// NewDirectory creates an empty Directory
func NewDirectory() *Directory {
	return &Directory{
		services: make(map[string]Service),
		now:      time.Now,
	}
}

// Add registers svc for workspaceID, replacing any previous client
func (d *Directory) Add(workspaceID string, svc Service) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.services[workspaceID] = svc
}

// Has reports whether a client is registered for workspaceID
func (d *Directory) Has(workspaceID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.services[workspaceID]
	return ok
}

func (d *Directory) service(workspaceID string) (Service, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	svc, ok := d.services[workspaceID]
	if !ok {
		return nil, goerr.Wrap(model.ErrWorkspaceNotFound, "no Slack client for workspace",
			goerr.V("workspace_id", workspaceID))
	}
	return svc, nil
}

// FetchAllUsers pulls the full member list of workspaceID from Slack
func (d *Directory) FetchAllUsers(ctx context.Context, workspaceID string) ([]*model.SlackUser, error) {
	svc, err := d.service(workspaceID)
	if err != nil {
		return nil, err
	}

	users, err := svc.ListUsers(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch workspace users", goerr.V("workspace_id", workspaceID))
	}

	now := d.now()
	result := make([]*model.SlackUser, 0, len(users))
	for i := range users {
		if users[i].ID == "" {
			continue
		}
		result = append(result, NormalizeUser(workspaceID, &users[i], now))
	}
	return result, nil
}

// FetchUser pulls one member from Slack. It returns (nil, nil) for an unknown user.
func (d *Directory) FetchUser(ctx context.Context, workspaceID string, userID model.SlackUserID) (*model.SlackUser, error) {
	svc, err := d.service(workspaceID)
	if err != nil {
		return nil, err
	}

	user, err := svc.GetUserInfo(ctx, string(userID))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch user",
			goerr.V("workspace_id", workspaceID), goerr.V("user_id", userID))
	}
	if user == nil {
		return nil, nil
	}

	return NormalizeUser(workspaceID, user, d.now()), nil
}

// NormalizeUser maps a Slack API user object to the directory record shape.
// Bots are kept; deactivated accounts are kept with IsActive false.
func NormalizeUser(workspaceID string, u *slack.User, syncedAt time.Time) *model.SlackUser {
	displayName := u.Profile.DisplayName
	if displayName == "" {
		displayName = u.Profile.DisplayNameNormalized
	}
	realName := u.RealName
	if realName == "" {
		realName = u.Profile.RealName
	}

	return &model.SlackUser{
		WorkspaceID: workspaceID,
		ID:          model.SlackUserID(u.ID),
		Name:        u.Name,
		RealName:    realName,
		DisplayName: displayName,
		Email:       u.Profile.Email,
		ImageURL:    pickImage(&u.Profile),
		IsAdmin:     u.IsAdmin,
		IsOwner:     u.IsOwner,
		IsBot:       u.IsBot,
		IsActive:    !u.Deleted,
		Timezone:    u.TZ,
		UpdatedAt:   syncedAt,
	}
}

func pickImage(p *slack.UserProfile) string {
	for _, url := range []string{p.Image72, p.Image48, p.Image192, p.Image32, p.Image24} {
		if url != "" {
			return url
		}
	}
	return ""
}
