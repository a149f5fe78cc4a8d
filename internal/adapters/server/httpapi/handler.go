package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/evanschultz/workboard/internal/adapters/server/common"
)

// maxRequestBodyBytes bounds JSON request payload size for API handlers.
const maxRequestBodyBytes int64 = 1 << 20

// defaultHeartbeat keeps idle event streams open through proxies.
const defaultHeartbeat = 15 * time.Second

// Handler serves the JSON board API.
type Handler struct {
	board     common.BoardService
	echo      *echo.Echo
	heartbeat time.Duration
}

// APIError represents one structured API error payload.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps API error responses.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// StreamFrame is one server-sent event payload.
type StreamFrame struct {
	Board    common.BoardView     `json:"board"`
	Activity *common.ActivityView `json:"activity,omitempty"`
}

// NewHandler constructs the HTTP API handler. Routes are relative to the
// API endpoint the server mounts it under.
func NewHandler(board common.BoardService) *Handler {
	h := &Handler{board: board, heartbeat: defaultHeartbeat}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = sonicSerializer{}
	e.HTTPErrorHandler = writeErrorFrom
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))

	e.GET("/board", h.handleBoard)
	e.GET("/board/today", h.handleToday)
	e.POST("/tasks", h.handleAddTask)
	e.PUT("/tasks/:id", h.handleEditTask)
	e.DELETE("/tasks/:id", h.handleDeleteTask)
	e.POST("/tasks/:id/move", h.handleMoveTask)
	e.POST("/tasks/:id/priority", h.handleSetPriority)
	e.POST("/tasks/:id/position", h.handlePositionTask)
	e.GET("/activity", h.handleLastActivity)
	e.GET("/stream", h.handleStream)
	h.echo = e
	return h
}

// ServeHTTP routes API requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.board == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "unavailable",
			Message: "board service is not configured",
		})
		return
	}
	h.echo.ServeHTTP(w, r)
}

func (h *Handler) handleBoard(c echo.Context) error {
	board, err := h.board.Board(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, board)
}

func (h *Handler) handleToday(c echo.Context) error {
	day, err := h.board.Today(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, day)
}

func (h *Handler) handleAddTask(c echo.Context) error {
	var in common.AddTaskRequest
	if err := decodeJSONBody(c, &in); err != nil {
		return err
	}
	task, err := h.board.AddTask(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, task)
}

func (h *Handler) handleEditTask(c echo.Context) error {
	var in common.EditTaskRequest
	if err := decodeJSONBody(c, &in); err != nil {
		return err
	}
	in.ID = c.Param("id")
	task, err := h.board.EditTask(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

func (h *Handler) handleMoveTask(c echo.Context) error {
	var in common.MoveTaskRequest
	if err := decodeJSONBody(c, &in); err != nil {
		return err
	}
	in.ID = c.Param("id")
	task, err := h.board.MoveTask(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

func (h *Handler) handleSetPriority(c echo.Context) error {
	var in common.PriorityRequest
	if err := decodeJSONBody(c, &in); err != nil {
		return err
	}
	in.ID = c.Param("id")
	task, err := h.board.SetPriority(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

func (h *Handler) handlePositionTask(c echo.Context) error {
	var in common.PositionRequest
	if err := decodeJSONBody(c, &in); err != nil {
		return err
	}
	in.ID = c.Param("id")
	task, err := h.board.PositionTask(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

func (h *Handler) handleDeleteTask(c echo.Context) error {
	task, err := h.board.DeleteTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

func (h *Handler) handleLastActivity(c echo.Context) error {
	activity, err := h.board.LastActivity(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, activity)
}

// handleStream sends the whole board once, then again after every change.
func (h *Handler) handleStream(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.board.Ready(ctx); err != nil {
		return err
	}
	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return fmt.Errorf("stream unsupported: %w", errStreamUnsupported)
	}
	changes, stop := h.board.Watch()
	defer stop()

	header := c.Response().Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set(echo.HeaderCacheControl, "no-cache")
	header.Set(echo.HeaderConnection, "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()
	for {
		if err := h.writeFrame(ctx, c.Response()); err != nil {
			c.Logger().Warnf("stream frame: %v", err)
			return nil
		}
		flusher.Flush()

	wait:
		for {
			select {
			case <-ctx.Done():
				return nil
			case _, ok := <-changes:
				if !ok {
					return nil
				}
				break wait
			case <-heartbeat.C:
				if _, err := io.WriteString(c.Response(), ": ping\n\n"); err != nil {
					return nil
				}
				flusher.Flush()
			}
		}
	}
}

func (h *Handler) writeFrame(ctx context.Context, w io.Writer) error {
	board, err := h.board.Board(ctx)
	if err != nil {
		return err
	}
	frame := StreamFrame{Board: board}
	if activity, err := h.board.LastActivity(ctx); err == nil {
		frame.Activity = &activity
	}
	data, err := sonic.ConfigStd.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode stream frame: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: board\ndata: %s\n\n", data); err != nil {
		return err
	}
	return nil
}

var errStreamUnsupported = errors.New("response writer cannot flush")

// writeErrorFrom maps service and routing errors to structured API responses.
func writeErrorFrom(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, apiErr := errorResponse(err)
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, ErrorEnvelope{Error: apiErr})
}

func errorResponse(err error) (int, APIError) {
	var httpErr *echo.HTTPError
	switch {
	case err == nil:
		return http.StatusInternalServerError, APIError{Code: "internal_error", Message: "unknown error"}
	case errors.Is(err, common.ErrInvalidRequest):
		return http.StatusBadRequest, APIError{Code: "invalid_request", Message: err.Error()}
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, APIError{Code: "not_found", Message: err.Error()}
	case errors.Is(err, common.ErrReadOnly):
		return http.StatusConflict, APIError{
			Code:    "read_only",
			Message: err.Error(),
			Hint:    "Only tasks on today's board can change.",
		}
	case errors.Is(err, common.ErrUnavailable):
		return http.StatusServiceUnavailable, APIError{Code: "unavailable", Message: err.Error()}
	case errors.As(err, &httpErr):
		return httpErr.Code, APIError{Code: httpErrorCode(httpErr.Code), Message: fmt.Sprint(httpErr.Message)}
	default:
		return http.StatusInternalServerError, APIError{Code: "internal_error", Message: err.Error()}
	}
}

func httpErrorCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case http.StatusBadRequest:
		return "invalid_request"
	default:
		return "http_error"
	}
}

// writeJSONError writes one structured error envelope outside the router.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	data, err := sonic.ConfigStd.Marshal(ErrorEnvelope{Error: apiErr})
	if err != nil {
		http.Error(w, apiErr.Message, statusCode)
		return
	}
	w.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	w.WriteHeader(statusCode)
	_, _ = w.Write(data)
}

// decodeJSONBody decodes one strict JSON object request body.
func decodeJSONBody(c echo.Context, out any) error {
	body := http.MaxBytesReader(c.Response(), c.Request().Body, maxRequestBodyBytes)
	dec := sonic.ConfigStd.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	if dec.More() {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	return nil
}

// sonicSerializer renders echo JSON responses with sonic.
type sonicSerializer struct{}

// Serialize writes i as JSON.
func (sonicSerializer) Serialize(c echo.Context, i any, indent string) error {
	enc := sonic.ConfigStd.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

// Deserialize reads the request body as JSON.
func (sonicSerializer) Deserialize(c echo.Context, i any) error {
	if err := sonic.ConfigStd.NewDecoder(c.Request().Body).Decode(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json body").SetInternal(err)
	}
	return nil
}
