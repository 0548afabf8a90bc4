package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"taskbot/internal/bot"
	"taskbot/internal/dialogue"
	"taskbot/internal/domain"
	"taskbot/internal/store"
)

// NewServer exposes the task list as MCP tools.
func NewServer(b *bot.Bot, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"taskbot",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List all tasks in insertion order."),
	), listTasksHandler(b))

	s.AddTool(mcp.NewTool("add_task",
		mcp.WithDescription("Add a task to the end of the list."),
		mcp.WithString("title", mcp.Description("Task title"), mcp.Required()),
		mcp.WithString("category", mcp.Description("Task category"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Optional description")),
		mcp.WithString("due_date", mcp.Description("Optional due date (YYYY-MM-DD HH:MM)")),
		mcp.WithString("reminder_time", mcp.Description("Optional reminder time (YYYY-MM-DD HH:MM)")),
	), addTaskHandler(b))

	s.AddTool(mcp.NewTool("delete_task",
		mcp.WithDescription("Delete a task by 1-based list position or by id."),
		mcp.WithString("ref", mcp.Description("Position (e.g. 2) or task id"), mcp.Required()),
	), deleteTaskHandler(b))

	return s
}

type taskView struct {
	Position int `json:"position"`
	domain.Task
	Due string `json:"due"`
}

func listTasksHandler(b *bot.Bot) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tasks, err := b.Store.LoadAll(ctx)
		if err != nil {
			return storeError("list failed", err), nil
		}
		views := make([]taskView, 0, len(tasks))
		for i, t := range tasks {
			views = append(views, taskView{Position: i + 1, Task: t, Due: bot.DueText(t)})
		}
		return jsonResult(views)
	}
}

func addTaskHandler(b *bot.Bot) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title, err := req.RequireString("title")
		if err != nil {
			return mcpError("title is required"), nil
		}
		category, err := req.RequireString("category")
		if err != nil {
			return mcpError("category is required"), nil
		}
		t, err := b.AddTask(ctx, bot.NewTask{
			Title:        title,
			Category:     category,
			Description:  req.GetString("description", ""),
			DueDate:      req.GetString("due_date", ""),
			ReminderTime: req.GetString("reminder_time", ""),
		})
		if err != nil {
			var verr *dialogue.ValidationError
			if errors.As(err, &verr) {
				return mcpError(verr.Error()), nil
			}
			return storeError("add failed", err), nil
		}
		return mcpText(fmt.Sprintf("Added task %q (ID: %s)", t.Title, t.ID)), nil
	}
}

func deleteTaskHandler(b *bot.Bot) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ref, err := req.RequireString("ref")
		if err != nil {
			return mcpError("ref is required"), nil
		}
		t, err := b.DeleteRef(ctx, ref)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return mcpError(fmt.Sprintf("no task matches %q", ref)), nil
			}
			return storeError("delete failed", err), nil
		}
		return mcpText(fmt.Sprintf("Deleted task %q (ID: %s)", t.Title, t.ID)), nil
	}
}

func storeError(prefix string, err error) *mcp.CallToolResult {
	if errors.Is(err, store.ErrCorruptData) {
		return mcpError(prefix + ": task storage was damaged and has been reset, retry the call")
	}
	return mcpError(fmt.Sprintf("%s: %v", prefix, err))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcpError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcpText(string(data)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
