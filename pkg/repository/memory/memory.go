package memory

import (
	"github.com/secmon-lab/slackdir/pkg/domain/interfaces"
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

// Memory is an in-process repository, used for development and tests
type Memory struct {
	slackUser *slackUserRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		slackUser: newSlackUserRepository(),
	}
}

func (m *Memory) SlackUser() interfaces.SlackUserRepository {
	return m.slackUser
}

func (m *Memory) Close() error {
	return nil
}
