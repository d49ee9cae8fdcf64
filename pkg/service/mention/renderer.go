package mention

import (
	"context"
	"strings"
	"sync"

	"github.com/secmon-lab/slackdir/pkg/domain/model"
	"github.com/secmon-lab/slackdir/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// DefaultResolveConcurrency bounds parallel user lookups within one render
const DefaultResolveConcurrency = 8

// UserResolver looks up a user of a workspace. A nil user means unknown.
type UserResolver interface {
	Get(ctx context.Context, workspaceID string, userID model.SlackUserID) (*model.SlackUser, error)
}

// RenderedSegment is a Segment with its display form
type RenderedSegment struct {
	Segment
	Display  string           `json:"display"`
	Markdown string           `json:"markdown"`
	User     *model.SlackUser `json:"user,omitempty"`
}

// Rendered is the assembled output of one message
type Rendered struct {
	Segments []RenderedSegment `json:"segments"`
	Text     string            `json:"text"`
	Markdown string            `json:"markdown"`
}

// Renderer resolves mentions through a UserResolver and assembles display text
type Renderer struct {
	resolver    UserResolver
	concurrency int
}

// RendererOption configures a Renderer
type RendererOption func(*Renderer)

// WithResolveConcurrency sets how many user lookups run in parallel per render
func WithResolveConcurrency(n int) RendererOption {
	return func(r *Renderer) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// NewRenderer creates a Renderer
func NewRenderer(resolver UserResolver, opts ...RendererOption) *Renderer {
	r := &Renderer{
		resolver:    resolver,
		concurrency: DefaultResolveConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render parses text and assembles its display forms. It never fails: a mention that cannot be
// resolved is shown as "@" followed by the raw user ID.
func (r *Renderer) Render(ctx context.Context, workspaceID, text string) *Rendered {
	segments := Parse(text)
	users := r.resolve(ctx, workspaceID, UserIDs(segments))

	rendered := &Rendered{Segments: make([]RenderedSegment, 0, len(segments))}
	var plain, md strings.Builder

	for _, seg := range segments {
		rs := RenderedSegment{Segment: seg}

		switch seg.Kind {
		case KindMention:
			if user, ok := users[seg.UserID]; ok {
				rs.User = user
				rs.Display = "@" + user.DisplayLabel()
			} else {
				rs.Display = "@" + string(seg.UserID)
			}
			rs.Markdown = rs.Display

		case KindSpecial:
			rs.Display = specialDisplay(seg)
			rs.Markdown = rs.Display

		default:
			rs.Display = rewriteLinks(seg.Content, false)
			rs.Markdown = rewriteLinks(seg.Content, true)
		}

		plain.WriteString(rs.Display)
		md.WriteString(rs.Markdown)
		rendered.Segments = append(rendered.Segments, rs)
	}

	rendered.Text = plain.String()
	rendered.Markdown = md.String()
	return rendered
}

// resolve looks up every id concurrently. Failed and unknown ids are absent from the result.
func (r *Renderer) resolve(ctx context.Context, workspaceID string, ids []model.SlackUserID) map[model.SlackUserID]*model.SlackUser {
	resolved := make(map[model.SlackUserID]*model.SlackUser, len(ids))
	if len(ids) == 0 || workspaceID == "" || r.resolver == nil {
		return resolved
	}

	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(r.concurrency)

	for _, id := range ids {
		eg.Go(func() error {
			user, err := r.resolver.Get(egCtx, workspaceID, id)
			if err != nil {
				logging.From(ctx).Warn("failed to resolve mentioned user",
					"workspace_id", workspaceID,
					"user_id", id,
					"error", err.Error(),
				)
				return nil
			}
			if user == nil {
				return nil
			}

			mu.Lock()
			resolved[id] = user
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	return resolved
}

// specialDisplay renders <!here>, <!channel>, <!everyone> as @here etc. Other tokens use their
// label when present, such as <!subteam^S123|@oncall>.
func specialDisplay(seg Segment) string {
	switch seg.Token {
	case "here", "channel", "everyone":
		return "@" + seg.Token
	}
	if seg.Label != "" {
		return seg.Label
	}
	return "@" + seg.Token
}
