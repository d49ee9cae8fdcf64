package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/secmon-lab/slackdir/pkg/usecase"
)

const (
	ServerName    = "slackdir"
	ServerVersion = "1.0.0"
)

// Server exposes the user directory and the mention renderer as MCP tools
type Server struct {
	mcpServer *server.MCPServer
	uc        *usecase.UseCases
}

func New(uc *usecase.UseCases) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(true)),
		uc:        uc,
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	h := &toolHandler{uc: s.uc}

	s.mcpServer.AddTool(mcp.NewTool("get_user",
		mcp.WithDescription("Look up a Slack user of a workspace by user ID."),
		mcp.WithString("workspace_id", mcp.Required(), mcp.Description("Slack workspace (team) ID, e.g. T0123ABCD")),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Slack user ID, e.g. U0123ABCD")),
	), h.getUser)

	s.mcpServer.AddTool(mcp.NewTool("list_users",
		mcp.WithDescription("List the Slack users of a workspace."),
		mcp.WithString("workspace_id", mcp.Required(), mcp.Description("Slack workspace (team) ID")),
		mcp.WithBoolean("active_only", mcp.Description("Exclude deactivated users")),
	), h.listUsers)

	s.mcpServer.AddTool(mcp.NewTool("render_message",
		mcp.WithDescription("Render Slack message markup with user mentions replaced by display names."),
		mcp.WithString("workspace_id", mcp.Required(), mcp.Description("Slack workspace (team) ID")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Raw Slack message text")),
		mcp.WithString("format", mcp.Description("text (default) or markdown")),
	), h.renderMessage)

	s.mcpServer.AddTool(mcp.NewTool("cache_stats",
		mcp.WithDescription("Report the size and age of the user cache."),
	), h.cacheStats)
}

// Run serves MCP over stdio until the client disconnects
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// MCPServer returns the underlying MCP server
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}
