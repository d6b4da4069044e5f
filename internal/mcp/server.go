// Package mcp exposes the backlog validator and its run history as MCP tools
// over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ldi/backvet/internal/store"
	"github.com/ldi/backvet/internal/validate"
	"github.com/ldi/backvet/pkg/models"
)

// ValidateFunc runs a full fetch+validate pass for a project/team pair,
// records the run, and returns it with the annotated items.
type ValidateFunc func(ctx context.Context, project, team string) (*models.Run, []*models.BacklogItem, error)

// NewServer creates a new MCP server. defaultProject and defaultTeam fill in
// tool calls that omit them.
func NewServer(st *store.Store, run ValidateFunc, defaultProject, defaultTeam string) *server.MCPServer {
	s := server.NewMCPServer("backvet", "0.1.0")

	s.AddTool(mcp.NewTool("validate_backlog",
		mcp.WithDescription("Fetch the team backlog, validate its ordering against dependency links, and record the run."),
		mcp.WithString("project", mcp.Description("Project name (defaults to the configured project)")),
		mcp.WithString("team", mcp.Description("Team name (defaults to the configured team)")),
	), validateBacklogHandler(run, defaultProject, defaultTeam))

	s.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List recorded validation runs, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs to return (0 for all)")),
	), listRunsHandler(st))

	s.AddTool(mcp.NewTool("get_run",
		mcp.WithDescription("Get a single validation run with its full annotated backlog."),
		mcp.WithString("run_id", mcp.Description("Run id (defaults to the latest run)")),
	), getRunHandler(st))

	s.AddTool(mcp.NewTool("list_violations",
		mcp.WithDescription("List the flagged items of a run in rank order."),
		mcp.WithString("run_id", mcp.Description("Run id (defaults to the latest run)")),
	), listViolationsHandler(st))

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func validateBacklogHandler(run ValidateFunc, defaultProject, defaultTeam string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		project := mcp.ParseString(request, "project", defaultProject)
		team := mcp.ParseString(request, "team", defaultTeam)
		if project == "" || team == "" {
			return mcp.NewToolResultError("project and team are required (no configured defaults)"), nil
		}

		r, items, err := run(ctx, project, team)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(map[string]interface{}{
			"run":        r,
			"violations": validate.Violations(items),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func listRunsHandler(st *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := mcp.ParseInt(request, "limit", 0)

		runs, err := st.ListRuns(ctx, limit)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(map[string]interface{}{"runs": runs})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func getRunHandler(st *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		run, err := resolveRun(ctx, st, mcp.ParseString(request, "run_id", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		items, err := st.ListRunItems(ctx, run.ID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(map[string]interface{}{"run": run, "items": items})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func listViolationsHandler(st *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		run, err := resolveRun(ctx, st, mcp.ParseString(request, "run_id", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		flagged, err := st.ListViolatingItems(ctx, run.ID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(map[string]interface{}{"run_id": run.ID, "items": flagged})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func resolveRun(ctx context.Context, st *store.Store, id string) (*models.Run, error) {
	if id == "" {
		run, err := st.LatestRun(ctx)
		if err != nil {
			return nil, err
		}
		if run == nil {
			return nil, fmt.Errorf("no runs recorded yet")
		}
		return run, nil
	}

	run, err := st.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run '%s' not found", id)
	}
	return run, nil
}
