package usecase

import (
	"github.com/secmon-lab/slackdir/pkg/domain/interfaces"
	"github.com/secmon-lab/slackdir/pkg/domain/model"
	"github.com/secmon-lab/slackdir/pkg/service/usercache"
)

type UseCases struct {
	repo     interfaces.Repository
	cache    *usercache.Cache
	registry *model.WorkspaceRegistry
	syncer   interfaces.WorkspaceSyncer
	User     *UserUseCase
	Mention  *MentionUseCase
	Slack    *SlackUseCases
}

type Option func(*UseCases)

// WithRegistry restricts lookups to the configured workspaces
func WithRegistry(registry *model.WorkspaceRegistry) Option {
	return func(uc *UseCases) {
		uc.registry = registry
	}
}

// WithSyncer enables on-demand Slack sync
func WithSyncer(syncer interfaces.WorkspaceSyncer) Option {
	return func(uc *UseCases) {
		uc.syncer = syncer
	}
}

func New(repo interfaces.Repository, cache *usercache.Cache, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:  repo,
		cache: cache,
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.User = NewUserUseCase(cache, uc.registry, uc.syncer)
	if cache != nil {
		uc.Mention = NewMentionUseCase(cache)
	} else {
		uc.Mention = NewMentionUseCase(nil)
	}
	uc.Slack = NewSlackUseCases(repo, cache, uc.registry)

	return uc
}
