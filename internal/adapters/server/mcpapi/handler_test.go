package mcpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/evanschultz/workboard/internal/adapters/server/common"
)

// stubBoard provides deterministic board responses for MCP tool tests.
type stubBoard struct {
	board    common.BoardView
	task     common.TaskView
	activity *common.ActivityView
	err      error

	lastAdd      common.AddTaskRequest
	lastEdit     common.EditTaskRequest
	lastMove     common.MoveTaskRequest
	lastPriority common.PriorityRequest
	lastPosition common.PositionRequest
	lastDelete   string
}

func newStubBoard() *stubBoard {
	return &stubBoard{
		board: common.BoardView{
			Mode:  "online",
			Today: "2024-01-05",
			Days: []common.DayView{
				{Date: "2024-01-05", Label: "Fri, Jan 5"},
				{Date: "2024-01-04", Label: "Thu, Jan 4", ReadOnly: true},
			},
		},
		task: common.TaskView{ID: "t1", Title: "Ship it", Person: "Dev", Status: "doing", StatusLabel: "Doing"},
	}
}

func (s *stubBoard) Ready(context.Context) error { return nil }

func (s *stubBoard) Board(context.Context) (common.BoardView, error) { return s.board, s.err }

func (s *stubBoard) Today(context.Context) (common.DayView, error) {
	if s.err != nil {
		return common.DayView{}, s.err
	}
	return s.board.Days[0], nil
}

func (s *stubBoard) AddTask(_ context.Context, in common.AddTaskRequest) (common.TaskView, error) {
	s.lastAdd = in
	return s.task, s.err
}

func (s *stubBoard) EditTask(_ context.Context, in common.EditTaskRequest) (common.TaskView, error) {
	s.lastEdit = in
	return s.task, s.err
}

func (s *stubBoard) MoveTask(_ context.Context, in common.MoveTaskRequest) (common.TaskView, error) {
	s.lastMove = in
	return s.task, s.err
}

func (s *stubBoard) SetPriority(_ context.Context, in common.PriorityRequest) (common.TaskView, error) {
	s.lastPriority = in
	return s.task, s.err
}

func (s *stubBoard) PositionTask(_ context.Context, in common.PositionRequest) (common.TaskView, error) {
	s.lastPosition = in
	return s.task, s.err
}

func (s *stubBoard) DeleteTask(_ context.Context, id string) (common.TaskView, error) {
	s.lastDelete = id
	return s.task, s.err
}

func (s *stubBoard) LastActivity(context.Context) (common.ActivityView, error) {
	if s.activity == nil {
		return common.ActivityView{}, fmt.Errorf("last activity: %w", common.ErrNotFound)
	}
	return *s.activity, nil
}

func (s *stubBoard) Watch() (<-chan struct{}, func()) {
	return make(chan struct{}), func() {}
}

// newTestServer starts one initialized MCP server over board.
func newTestServer(t *testing.T, board common.BoardService) *httptest.Server {
	t.Helper()
	handler, err := NewHandler(Config{}, board)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	return server
}

// jsonRPCResponse models minimal JSON-RPC response fields used in MCP adapter tests.
type jsonRPCResponse struct {
	ID     float64        `json:"id"`
	Result map[string]any `json:"result"`
}

// callToolRequest constructs one deterministic tools/call JSON-RPC request payload.
func callToolRequest(id int, toolName string, arguments map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": arguments,
		},
	}
}

// toolResultText decodes the first text entry from one tool-call result payload.
func toolResultText(t *testing.T, result map[string]any) string {
	t.Helper()

	contentRaw, ok := result["content"].([]any)
	if !ok || len(contentRaw) == 0 {
		t.Fatalf("content missing in tool result: %#v", result)
	}
	first, ok := contentRaw[0].(map[string]any)
	if !ok {
		t.Fatalf("first content entry has unexpected type: %#v", contentRaw[0])
	}
	text, ok := first["text"].(string)
	if !ok {
		t.Fatalf("content text missing in tool result: %#v", first)
	}
	return text
}

// toolResultStructured decodes structuredContent as one map for stable assertions.
func toolResultStructured(t *testing.T, result map[string]any) map[string]any {
	t.Helper()
	structured, ok := result["structuredContent"].(map[string]any)
	if !ok {
		t.Fatalf("structuredContent missing in tool result: %#v", result)
	}
	return structured
}

// postJSONRPC sends one JSON-RPC payload and decodes the response body.
func postJSONRPC(t *testing.T, client *http.Client, url string, payload any) (*http.Response, jsonRPCResponse) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	var decoded jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return resp, decoded
}

// initializeRequest builds a deterministic MCP initialize request payload.
func initializeRequest() map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
			"clientInfo": map[string]any{
				"name":    "workboard-test",
				"version": "1.0.0",
			},
		},
	}
}

// callToolResultText decodes the first textual content block from a CallToolResult.
func callToolResultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatalf("result = nil, want non-nil")
	}
	if len(result.Content) == 0 {
		t.Fatalf("result content is empty")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] has unexpected type %T", result.Content[0])
	}
	return text.Text
}

// TestHandlerUsesStatelessTransport verifies MCP transport does not issue session ids.
func TestHandlerUsesStatelessTransport(t *testing.T) {
	handler, err := NewHandler(Config{}, newStubBoard())
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	server := httptest.NewServer(handler)
	defer server.Close()

	resp, decoded := postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if decoded.ID != 1 {
		t.Fatalf("id = %v, want 1", decoded.ID)
	}
	if got := resp.Header.Get("Mcp-Session-Id"); got != "" {
		t.Fatalf("Mcp-Session-Id header = %q, want empty (stateless transport)", got)
	}
}

// TestHandlerRegistersBoardTools verifies tool discovery lists every board tool.
func TestHandlerRegistersBoardTools(t *testing.T) {
	server := newTestServer(t, newStubBoard())
	_, toolsResp := postJSONRPC(t, server.Client(), server.URL, map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
	})

	toolsRaw, ok := toolsResp.Result["tools"].([]any)
	if !ok {
		t.Fatalf("tools list payload missing tools: %#v", toolsResp.Result)
	}
	toolNames := make([]string, 0, len(toolsRaw))
	for _, toolRaw := range toolsRaw {
		toolMap, ok := toolRaw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := toolMap["name"].(string)
		toolNames = append(toolNames, name)
	}
	for _, want := range []string{
		"workboard.board",
		"workboard.last_activity",
		"workboard.add_task",
		"workboard.edit_task",
		"workboard.move_task",
		"workboard.set_priority",
		"workboard.position_task",
		"workboard.delete_task",
	} {
		if !slices.Contains(toolNames, want) {
			t.Fatalf("tool list missing %s: %#v", want, toolNames)
		}
	}
}

// TestHandlerBoardToolViews verifies the board tool returns today or the whole board.
func TestHandlerBoardToolViews(t *testing.T) {
	server := newTestServer(t, newStubBoard())

	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "workboard.board", map[string]any{}))
	today := toolResultStructured(t, callResp.Result)
	if got, _ := today["label"].(string); got != "Fri, Jan 5" {
		t.Fatalf("label = %q, want Fri, Jan 5", got)
	}

	_, callResp = postJSONRPC(t, server.Client(), server.URL, callToolRequest(4, "workboard.board", map[string]any{"view": "all"}))
	all := toolResultStructured(t, callResp.Result)
	days, _ := all["days"].([]any)
	if len(days) != 2 {
		t.Fatalf("days = %#v, want 2 entries", all["days"])
	}
}

// TestHandlerLastActivityTool verifies the empty and populated activity paths.
func TestHandlerLastActivityTool(t *testing.T) {
	board := newStubBoard()
	server := newTestServer(t, board)

	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "workboard.last_activity", map[string]any{}))
	if isError, _ := callResp.Result["isError"].(bool); !isError {
		t.Fatalf("isError = false, want true: %#v", callResp.Result)
	}
	if got := toolResultText(t, callResp.Result); !strings.HasPrefix(got, "not_found:") {
		t.Fatalf("text = %q, want not_found prefix", got)
	}

	board.activity = &common.ActivityView{ID: "a1", Message: `Dev added "Ship it"`}
	_, callResp = postJSONRPC(t, server.Client(), server.URL, callToolRequest(4, "workboard.last_activity", map[string]any{}))
	if got, _ := toolResultStructured(t, callResp.Result)["message"].(string); got != `Dev added "Ship it"` {
		t.Fatalf("message = %q", got)
	}
}

// TestNewHandlerRequiresBoard verifies board dependency enforcement.
func TestNewHandlerRequiresBoard(t *testing.T) {
	handler, err := NewHandler(Config{}, nil)
	if err == nil {
		t.Fatalf("NewHandler() error = nil, want non-nil")
	}
	if handler != nil {
		t.Fatalf("handler = %#v, want nil", handler)
	}
}

// TestNormalizeConfig verifies MCP config defaults and endpoint cleanup.
func TestNormalizeConfig(t *testing.T) {
	cases := []struct {
		name string
		in   Config
		want Config
	}{
		{
			name: "defaults",
			in:   Config{},
			want: Config{ServerName: "workboard", ServerVersion: "dev", EndpointPath: "/mcp"},
		},
		{
			name: "trims and slashes",
			in:   Config{ServerName: " board ", ServerVersion: " 1.2.3 ", EndpointPath: "tools/mcp/"},
			want: Config{ServerName: "board", ServerVersion: "1.2.3", EndpointPath: "/tools/mcp"},
		},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeConfig(tt.in); got != tt.want {
				t.Fatalf("normalizeConfig() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

// TestHandlerServeHTTPUnavailable verifies nil handlers fail closed.
func TestHandlerServeHTTPUnavailable(t *testing.T) {
	cases := []struct {
		name    string
		handler *Handler
	}{
		{name: "nil receiver", handler: nil},
		{name: "missing inner http handler", handler: &Handler{}},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(`{}`))
			rec := httptest.NewRecorder()

			tt.handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusServiceUnavailable {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
			}
			if !strings.Contains(rec.Body.String(), "mcp handler unavailable") {
				t.Fatalf("body = %q, want mcp handler unavailable", rec.Body.String())
			}
		})
	}
}

// TestToolResultFromErrorMapping verifies deterministic error-to-tool-result mapping.
func TestToolResultFromErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantPrefix string
	}{
		{name: "nil error", err: nil, wantPrefix: "unknown error"},
		{name: "invalid request", err: errors.Join(common.ErrInvalidRequest, errors.New("bad status")), wantPrefix: "invalid_request:"},
		{name: "not found", err: errors.Join(common.ErrNotFound, errors.New("missing")), wantPrefix: "not_found:"},
		{name: "read only", err: errors.Join(common.ErrReadOnly, errors.New("yesterday")), wantPrefix: "read_only:"},
		{name: "unavailable", err: errors.Join(common.ErrUnavailable, errors.New("loading")), wantPrefix: "unavailable:"},
		{name: "internal", err: errors.New("boom"), wantPrefix: "internal_error:"},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			result := toolResultFromError(tt.err)
			if !result.IsError {
				t.Fatalf("IsError = false, want true")
			}
			if got := callToolResultText(t, result); !strings.HasPrefix(got, tt.wantPrefix) {
				t.Fatalf("text = %q, want prefix %q", got, tt.wantPrefix)
			}
		})
	}
}

// decodeStructured re-decodes a structured tool payload into a typed view.
func decodeStructured[T any](t *testing.T, structured map[string]any) T {
	t.Helper()
	raw, err := json.Marshal(structured)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	return out
}
