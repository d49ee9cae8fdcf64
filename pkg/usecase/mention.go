package usecase

import (
	"context"

	"github.com/secmon-lab/slackdir/pkg/service/mention"
	"golang.org/x/sync/errgroup"
)

// DefaultRenderConcurrency bounds how many messages of one batch render in parallel
const DefaultRenderConcurrency = 4

// MentionUseCase renders Slack message text for display
type MentionUseCase struct {
	renderer    *mention.Renderer
	concurrency int
}

// NewMentionUseCase creates a MentionUseCase resolving users through resolver
func NewMentionUseCase(resolver mention.UserResolver) *MentionUseCase {
	return &MentionUseCase{
		renderer:    mention.NewRenderer(resolver),
		concurrency: DefaultRenderConcurrency,
	}
}

// Parse splits text into segments without resolving anything
func (uc *MentionUseCase) Parse(text string) []mention.Segment {
	return mention.Parse(text)
}

// RenderMessage renders one message. Unresolvable mentions degrade to raw IDs.
func (uc *MentionUseCase) RenderMessage(ctx context.Context, workspaceID, text string) *mention.Rendered {
	return uc.renderer.Render(ctx, workspaceID, text)
}

// RenderMessages renders messages concurrently; the result keeps input order
func (uc *MentionUseCase) RenderMessages(ctx context.Context, workspaceID string, texts []string) []*mention.Rendered {
	results := make([]*mention.Rendered, len(texts))

	var eg errgroup.Group
	eg.SetLimit(uc.concurrency)
	for i, text := range texts {
		eg.Go(func() error {
			results[i] = uc.renderer.Render(ctx, workspaceID, text)
			return nil
		})
	}
	_ = eg.Wait()

	return results
}
