package mcpapi

import (
	"fmt"
	"strings"
	"testing"

	"github.com/evanschultz/workboard/internal/adapters/server/common"
)

// TestTaskToolCalls verifies each mutation tool forwards its arguments.
func TestTaskToolCalls(t *testing.T) {
	board := newStubBoard()
	server := newTestServer(t, board)

	_, resp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(10, "workboard.add_task", map[string]any{
		"title":  "Ship it",
		"person": "Dev",
		"notes":  "before lunch",
	}))
	task := decodeStructured[common.TaskView](t, toolResultStructured(t, resp.Result))
	if task.ID != "t1" || task.StatusLabel != "Doing" {
		t.Fatalf("unexpected add_task result %#v", task)
	}
	if board.lastAdd != (common.AddTaskRequest{Title: "Ship it", Person: "Dev", Notes: "before lunch"}) {
		t.Fatalf("unexpected add request %#v", board.lastAdd)
	}

	postJSONRPC(t, server.Client(), server.URL, callToolRequest(11, "workboard.edit_task", map[string]any{
		"task_id": "t1",
		"title":   "Ship it now",
		"person":  "Dev",
	}))
	if board.lastEdit != (common.EditTaskRequest{ID: "t1", Title: "Ship it now", Person: "Dev"}) {
		t.Fatalf("unexpected edit request %#v", board.lastEdit)
	}

	postJSONRPC(t, server.Client(), server.URL, callToolRequest(12, "workboard.move_task", map[string]any{
		"task_id": "t1",
		"status":  "help",
	}))
	if board.lastMove != (common.MoveTaskRequest{ID: "t1", Status: "help"}) {
		t.Fatalf("unexpected move request %#v", board.lastMove)
	}

	postJSONRPC(t, server.Client(), server.URL, callToolRequest(13, "workboard.set_priority", map[string]any{
		"task_id":  "t1",
		"priority": "medium",
	}))
	if board.lastPriority != (common.PriorityRequest{ID: "t1", Priority: "medium"}) {
		t.Fatalf("unexpected priority request %#v", board.lastPriority)
	}

	postJSONRPC(t, server.Client(), server.URL, callToolRequest(14, "workboard.delete_task", map[string]any{
		"task_id": "t1",
	}))
	if board.lastDelete != "t1" {
		t.Fatalf("delete id = %q, want t1", board.lastDelete)
	}
}

// TestPositionTaskToolArguments verifies index and sort_order are optional and independent.
func TestPositionTaskToolArguments(t *testing.T) {
	board := newStubBoard()
	server := newTestServer(t, board)

	postJSONRPC(t, server.Client(), server.URL, callToolRequest(20, "workboard.position_task", map[string]any{
		"task_id": "t1",
		"status":  "done",
		"index":   1,
	}))
	if got := board.lastPosition; got.Index == nil || *got.Index != 1 || got.SortOrder != nil || got.Status != "done" {
		t.Fatalf("unexpected index request %#v", got)
	}

	postJSONRPC(t, server.Client(), server.URL, callToolRequest(21, "workboard.position_task", map[string]any{
		"task_id":    "t1",
		"status":     "doing",
		"sort_order": 12.5,
	}))
	if got := board.lastPosition; got.SortOrder == nil || *got.SortOrder != 12.5 || got.Index != nil {
		t.Fatalf("unexpected sort order request %#v", got)
	}
}

// TestTaskToolErrors verifies missing arguments and mapped service errors.
func TestTaskToolErrors(t *testing.T) {
	board := newStubBoard()
	server := newTestServer(t, board)

	_, resp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(30, "workboard.add_task", map[string]any{
		"title": "Ship it",
	}))
	if isError, _ := resp.Result["isError"].(bool); !isError {
		t.Fatalf("isError = false for missing person: %#v", resp.Result)
	}

	board.err = fmt.Errorf("move task: %w", common.ErrReadOnly)
	_, resp = postJSONRPC(t, server.Client(), server.URL, callToolRequest(31, "workboard.move_task", map[string]any{
		"task_id": "old",
		"status":  "done",
	}))
	if got := toolResultText(t, resp.Result); !strings.HasPrefix(got, "read_only:") {
		t.Fatalf("text = %q, want read_only prefix", got)
	}
}
