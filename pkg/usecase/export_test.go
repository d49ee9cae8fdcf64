package usecase

import "time"

// SetSlackClock replaces the clock stamping users received from Slack events
func SetSlackClock(uc *SlackUseCases, now func() time.Time) {
	uc.now = now
}
