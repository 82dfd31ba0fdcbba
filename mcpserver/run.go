// Package mcpserver exposes the coach workspace to MCP hosts over stdio.
// Only the read-only query tools are registered; mutations stay behind the
// HTTP API where the approval flow lives.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/arbor-coach/arbor/server/internal/auth"
	"github.com/arbor-coach/arbor/server/internal/config"
	"github.com/arbor-coach/arbor/server/internal/factory"
	"github.com/arbor-coach/arbor/server/internal/localstate"
	"github.com/arbor-coach/arbor/server/internal/logger"
	"github.com/arbor-coach/arbor/server/internal/model"
	"github.com/arbor-coach/arbor/server/internal/tools"
)

const (
	serverName    = "arbor-coach-mcp"
	serverVersion = "0.1.0"
)

// Run builds the MCP server over the local store and serves stdio until the
// host closes the pipe.
func Run() error {
	log := logger.New(serverName)

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	st, err := factory.NewStore(context.Background(), cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store adapter unavailable")
		return err
	}
	if cfg.BuildTarget == "local" {
		if err := localstate.EnsureDevUser(context.Background(), st); err != nil {
			return err
		}
	}

	registry := tools.NewRegistry(st)
	executor := tools.NewExecutor(registry, log)

	ac, err := auth.NewMockAuthorizer().Authorize(context.Background(), auth.LocalDevAPIKey)
	if err != nil {
		return err
	}

	s := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
	)
	registerTools(s, executor, ac, log)

	log.Info().Str("db_driver", cfg.DBDriver).Msg("MCP server starting (stdio transport)")
	return server.ServeStdio(s)
}

func registerTools(s *server.MCPServer, executor *tools.Executor, ac *auth.AuthContext, log zerolog.Logger) {
	s.AddTool(mcp.NewTool(string(tools.QueryTasks),
		mcp.WithDescription("List the user's tasks, optionally filtered by status."),
		mcp.WithString("status", mcp.Description("Filter: todo, in_progress, done, abandoned")),
		mcp.WithNumber("limit", mcp.Description("Max tasks to return (default 20, max 100)")),
	), runTool(executor, ac, tools.QueryTasks))

	s.AddTool(mcp.NewTool(string(tools.QueryNotes),
		mcp.WithDescription("List the user's most recent notes."),
		mcp.WithNumber("limit", mcp.Description("Max notes to return (default 20, max 100)")),
	), runTool(executor, ac, tools.QueryNotes))

	s.AddTool(mcp.NewTool(string(tools.QueryProjects),
		mcp.WithDescription("List the user's projects."),
	), runTool(executor, ac, tools.QueryProjects))

	s.AddTool(mcp.NewTool(string(tools.SearchNotes),
		mcp.WithDescription("Search the user's notes by keyword."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query text")),
		mcp.WithNumber("limit", mcp.Description("Max notes to return (default 20, max 100)")),
	), runTool(executor, ac, tools.SearchNotes))

	log.Info().Int("tools", 4).Msg("workspace tools registered")
}

func runTool(executor *tools.Executor, ac *auth.AuthContext, name tools.Name) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := executor.Execute(ctx, ac, model.ToolCall{
			ID:    "mcp",
			Name:  string(name),
			Input: req.GetArguments(),
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("tool dispatch failed: %v", err)), nil
		}
		if result.IsError {
			return mcp.NewToolResultError(result.Content), nil
		}
		return mcp.NewToolResultText(result.Content), nil
	}
}
