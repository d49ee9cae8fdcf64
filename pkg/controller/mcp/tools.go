package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/secmon-lab/slackdir/pkg/domain/model"
	"github.com/secmon-lab/slackdir/pkg/usecase"
	"github.com/secmon-lab/slackdir/pkg/utils/errutil"
)

type toolHandler struct {
	uc *usecase.UseCases
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %s", err.Error())), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errorResult turns a use case error into a tool error the model can read. Store errors are
// logged and reported since the caller only sees a generic message.
func errorResult(ctx context.Context, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, model.ErrInvalidWorkspaceContext):
		return mcp.NewToolResultError("workspace_id is required")
	case errors.Is(err, model.ErrWorkspaceNotFound):
		return mcp.NewToolResultError("workspace is not configured")
	default:
		_ = errutil.Handle(ctx, err, "mcp tool failed")
		return mcp.NewToolResultError("user directory is unavailable, try again later")
	}
}

func (h *toolHandler) getUser(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workspaceID := mcp.ExtractString(request.Params.Arguments, "workspace_id")
	userID := mcp.ExtractString(request.Params.Arguments, "user_id")
	if userID == "" {
		return mcp.NewToolResultError("missing required argument 'user_id'"), nil
	}

	user, err := h.uc.User.GetUser(ctx, workspaceID, model.SlackUserID(userID))
	if err != nil {
		return errorResult(ctx, err), nil
	}
	if user == nil {
		return mcp.NewToolResultError(fmt.Sprintf("user %s not found", userID)), nil
	}
	return jsonResult(user)
}

func (h *toolHandler) listUsers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workspaceID := mcp.ExtractString(request.Params.Arguments, "workspace_id")
	activeOnly, _ := request.Params.Arguments["active_only"].(bool)

	users, err := h.uc.User.ListUsers(ctx, workspaceID)
	if err != nil {
		return errorResult(ctx, err), nil
	}

	if activeOnly {
		filtered := make([]*model.SlackUser, 0, len(users))
		for _, u := range users {
			if u.IsActive {
				filtered = append(filtered, u)
			}
		}
		users = filtered
	}

	return jsonResult(map[string]any{"count": len(users), "users": users})
}

func (h *toolHandler) renderMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workspaceID := mcp.ExtractString(request.Params.Arguments, "workspace_id")
	text := mcp.ExtractString(request.Params.Arguments, "text")
	format := mcp.ExtractString(request.Params.Arguments, "format")

	if err := h.uc.User.CheckWorkspace(workspaceID); err != nil {
		return errorResult(ctx, err), nil
	}

	rendered := h.uc.Mention.RenderMessage(ctx, workspaceID, text)
	switch format {
	case "", "text":
		return mcp.NewToolResultText(rendered.Text), nil
	case "markdown":
		return mcp.NewToolResultText(rendered.Markdown), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown format %q, use text or markdown", format)), nil
	}
}

func (h *toolHandler) cacheStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats := h.uc.User.CacheStats()
	return jsonResult(map[string]any{
		"size":             stats.Size,
		"workspace_count":  stats.WorkspaceCount,
		"oldest_entry_age": stats.OldestEntryAge.String(),
		"newest_entry_age": stats.NewestEntryAge.String(),
		"ttl":              stats.TTL.String(),
	})
}
