package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// CallTool invokes a registered tool handler by name
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	h := &toolHandler{uc: s.uc}
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args

	switch name {
	case "get_user":
		return h.getUser(ctx, req)
	case "list_users":
		return h.listUsers(ctx, req)
	case "render_message":
		return h.renderMessage(ctx, req)
	case "cache_stats":
		return h.cacheStats(ctx, req)
	}
	return mcp.NewToolResultError("unknown tool " + name), nil
}
