package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// SlackUserID represents a unique identifier for a Slack user
type SlackUserID string

// ErrInvalidWorkspaceContext is returned when a lookup is attempted without a workspace ID
var ErrInvalidWorkspaceContext = goerr.New("workspace context is invalid")

// SlackUser represents a Slack workspace member mirrored into the directory store.
// (WorkspaceID, ID) is the composite key; records are always replaced whole.
type SlackUser struct {
	WorkspaceID string      `json:"workspace_id"`
	ID          SlackUserID `json:"id"`
	Name        string      `json:"name"`                   // Slack username (e.g., "john.doe")
	RealName    string      `json:"real_name,omitempty"`    // Full name (e.g., "John Doe")
	DisplayName string      `json:"display_name,omitempty"` // Profile display name, may be empty
	Email       string      `json:"email,omitempty"`
	ImageURL    string      `json:"image_url,omitempty"` // Avatar URL (empty string = no image)
	IsAdmin     bool        `json:"is_admin"`
	IsOwner     bool        `json:"is_owner"`
	IsBot       bool        `json:"is_bot"`
	IsActive    bool        `json:"is_active"`
	Timezone    string      `json:"timezone,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"` // Last synchronized from Slack
}

// DisplayLabel returns the best human readable name.
// Order: DisplayName > RealName > Name > ID
func (u *SlackUser) DisplayLabel() string {
	switch {
	case u.DisplayName != "":
		return u.DisplayName
	case u.RealName != "":
		return u.RealName
	case u.Name != "":
		return u.Name
	default:
		return string(u.ID)
	}
}

// Clone returns a copy that does not share memory with u
func (u *SlackUser) Clone() *SlackUser {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// SlackUserMetadata tracks the health and status of Slack user synchronization for one workspace
type SlackUserMetadata struct {
	WorkspaceID        string
	LastRefreshSuccess time.Time // Last successful refresh time
	LastRefreshAttempt time.Time // Last refresh attempt time (success or failure)
	UserCount          int       // Number of users at last successful refresh
}
