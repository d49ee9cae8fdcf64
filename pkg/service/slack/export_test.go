package slack

import "time"

// NewTestService creates a Service that talks to apiURL instead of slack.com
func NewTestService(token, apiURL string, opts ...Option) (Service, error) {
	return newClient(token, clientOptions{apiURL: apiURL}, opts...)
}

// SetDirectoryClock replaces the clock used to stamp normalized users
func SetDirectoryClock(d *Directory, now func() time.Time) {
	d.now = now
}
