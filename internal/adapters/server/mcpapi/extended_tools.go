package mcpapi

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/evanschultz/workboard/internal/adapters/server/common"
	"github.com/evanschultz/workboard/internal/domain"
)

// registerTaskTools registers the task mutation tools. Task ids accept unique
// prefixes of today's ids.
func registerTaskTools(srv *mcpserver.MCPServer, board common.BoardService) {
	statuses := make([]string, 0, len(domain.Statuses))
	for _, status := range domain.Statuses {
		statuses = append(statuses, string(status))
	}
	priorities := []string{
		string(domain.PriorityHigh),
		string(domain.PriorityMedium),
		string(domain.PriorityLow),
		string(domain.PriorityNone),
	}

	srv.AddTool(
		mcp.NewTool(
			"workboard.add_task",
			mcp.WithDescription("Add a task to the top of today's Doing column."),
			mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
			mcp.WithString("person", mcp.Required(), mcp.Description("Who owns the task")),
			mcp.WithString("notes", mcp.Description("Optional notes")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			title, err := req.RequireString("title")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			person, err := req.RequireString("person")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return taskResult("add_task")(board.AddTask(ctx, common.AddTaskRequest{
				Title:  title,
				Person: person,
				Notes:  req.GetString("notes", ""),
			}))
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"workboard.edit_task",
			mcp.WithDescription("Replace one task's title, person and notes."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier or unique prefix")),
			mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
			mcp.WithString("person", mcp.Required(), mcp.Description("Who owns the task")),
			mcp.WithString("notes", mcp.Description("Notes; empty clears them")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			title, err := req.RequireString("title")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			person, err := req.RequireString("person")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return taskResult("edit_task")(board.EditTask(ctx, common.EditTaskRequest{
				ID:     taskID,
				Title:  title,
				Person: person,
				Notes:  req.GetString("notes", ""),
			}))
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"workboard.move_task",
			mcp.WithDescription("Move one of today's tasks to another status column."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier or unique prefix")),
			mcp.WithString("status", mcp.Required(), mcp.Description("Destination status"), mcp.Enum(statuses...)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			status, err := req.RequireString("status")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return taskResult("move_task")(board.MoveTask(ctx, common.MoveTaskRequest{ID: taskID, Status: status}))
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"workboard.set_priority",
			mcp.WithDescription("Set one of today's tasks' priority."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier or unique prefix")),
			mcp.WithString("priority", mcp.Required(), mcp.Description("Priority"), mcp.Enum(priorities...)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			priority, err := req.RequireString("priority")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return taskResult("set_priority")(board.SetPriority(ctx, common.PriorityRequest{ID: taskID, Priority: priority}))
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"workboard.position_task",
			mcp.WithDescription("Place one of today's tasks in a column by index or explicit sort order."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier or unique prefix")),
			mcp.WithString("status", mcp.Required(), mcp.Description("Destination status"), mcp.Enum(statuses...)),
			mcp.WithNumber("index", mcp.Description("Zero-based index among the column's other tasks")),
			mcp.WithNumber("sort_order", mcp.Description("Explicit sort order, used when index is absent")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			status, err := req.RequireString("status")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			in := common.PositionRequest{ID: taskID, Status: status}
			args := req.GetArguments()
			if _, ok := args["index"]; ok {
				index := req.GetInt("index", 0)
				in.Index = &index
			}
			if _, ok := args["sort_order"]; ok {
				sortOrder := req.GetFloat("sort_order", 0)
				in.SortOrder = &sortOrder
			}
			return taskResult("position_task")(board.PositionTask(ctx, in))
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"workboard.delete_task",
			mcp.WithDescription("Delete one of today's tasks."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier or unique prefix")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return taskResult("delete_task")(board.DeleteTask(ctx, taskID))
		},
	)
}

// taskResult encodes one task mutation outcome.
func taskResult(tool string) func(common.TaskView, error) (*mcp.CallToolResult, error) {
	return func(task common.TaskView, err error) (*mcp.CallToolResult, error) {
		if err != nil {
			return toolResultFromError(err), nil
		}
		result, err := mcp.NewToolResultJSON(task)
		if err != nil {
			return nil, fmt.Errorf("encode %s result: %w", tool, err)
		}
		return result, nil
	}
}
