package common

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/evanschultz/workboard/internal/app"
	"github.com/evanschultz/workboard/internal/domain"
)

// SessionAdapter maps transport contracts onto an app.Session.
type SessionAdapter struct {
	session *app.Session
}

// NewSessionAdapter builds one common adapter over a loaded session.
func NewSessionAdapter(session *app.Session) *SessionAdapter {
	return &SessionAdapter{session: session}
}

// Ready reports whether the board is loaded.
func (a *SessionAdapter) Ready(context.Context) error {
	if a == nil || a.session == nil {
		return fmt.Errorf("session adapter is not configured: %w", ErrUnavailable)
	}
	if a.session.Mode() == app.ModeLoading {
		return fmt.Errorf("board is loading: %w", ErrUnavailable)
	}
	return nil
}

// Board returns every day, newest first.
func (a *SessionAdapter) Board(ctx context.Context) (BoardView, error) {
	if err := a.Ready(ctx); err != nil {
		return BoardView{}, err
	}
	board := a.session.Board()
	today := a.session.TodayKey()
	days := board.Days()
	slices.Reverse(days)
	out := BoardView{
		Mode:  string(a.session.Mode()),
		Today: today,
		Days:  make([]DayView, 0, len(days)),
	}
	for _, day := range days {
		out.Days = append(out.Days, dayView(board, day, today))
	}
	return out, nil
}

// Today returns today's columns.
func (a *SessionAdapter) Today(ctx context.Context) (DayView, error) {
	if err := a.Ready(ctx); err != nil {
		return DayView{}, err
	}
	today := a.session.TodayKey()
	return dayView(domain.Board{today: a.session.Today()}, today, today), nil
}

// AddTask creates a task on today's Doing column.
func (a *SessionAdapter) AddTask(ctx context.Context, in AddTaskRequest) (TaskView, error) {
	if err := a.Ready(ctx); err != nil {
		return TaskView{}, err
	}
	task, err := a.session.AddTask(ctx, app.AddTaskInput{
		Title:  in.Title,
		Person: in.Person,
		Notes:  in.Notes,
	})
	if err != nil {
		return TaskView{}, mapAppError("add task", err)
	}
	return taskView(task), nil
}

// EditTask replaces title, person and notes.
func (a *SessionAdapter) EditTask(ctx context.Context, in EditTaskRequest) (TaskView, error) {
	id, err := a.resolve(ctx, "edit task", in.ID)
	if err != nil {
		return TaskView{}, err
	}
	task, err := a.session.EditTask(ctx, id, app.EditTaskInput{
		Title:  in.Title,
		Person: in.Person,
		Notes:  in.Notes,
	})
	if err != nil {
		return TaskView{}, mapAppError("edit task", err)
	}
	return taskView(task), nil
}

// MoveTask changes a task's status.
func (a *SessionAdapter) MoveTask(ctx context.Context, in MoveTaskRequest) (TaskView, error) {
	id, err := a.resolve(ctx, "move task", in.ID)
	if err != nil {
		return TaskView{}, err
	}
	status, err := domain.ParseStatus(in.Status)
	if err != nil {
		return TaskView{}, mapAppError("move task", err)
	}
	task, err := a.session.MoveTask(ctx, id, status)
	if err != nil {
		return TaskView{}, mapAppError("move task", err)
	}
	return taskView(task), nil
}

// SetPriority sets a task's priority.
func (a *SessionAdapter) SetPriority(ctx context.Context, in PriorityRequest) (TaskView, error) {
	id, err := a.resolve(ctx, "set priority", in.ID)
	if err != nil {
		return TaskView{}, err
	}
	priority, err := domain.ParsePriority(in.Priority)
	if err != nil {
		return TaskView{}, mapAppError("set priority", err)
	}
	task, err := a.session.UpdatePriority(ctx, id, priority)
	if err != nil {
		return TaskView{}, mapAppError("set priority", err)
	}
	return taskView(task), nil
}

// PositionTask places a task by index when given, else by sort order.
func (a *SessionAdapter) PositionTask(ctx context.Context, in PositionRequest) (TaskView, error) {
	id, err := a.resolve(ctx, "position task", in.ID)
	if err != nil {
		return TaskView{}, err
	}
	status, err := domain.ParseStatus(in.Status)
	if err != nil {
		return TaskView{}, mapAppError("position task", err)
	}
	var task domain.Task
	switch {
	case in.Index != nil:
		task, err = a.session.DropTask(ctx, id, status, *in.Index)
	case in.SortOrder != nil:
		task, err = a.session.UpdateTaskPosition(ctx, id, app.PositionInput{Status: status, SortOrder: *in.SortOrder})
	default:
		return TaskView{}, fmt.Errorf("position task: index or sort_order is required: %w", ErrInvalidRequest)
	}
	if err != nil {
		return TaskView{}, mapAppError("position task", err)
	}
	return taskView(task), nil
}

// DeleteTask removes a task from today.
func (a *SessionAdapter) DeleteTask(ctx context.Context, rawID string) (TaskView, error) {
	id, err := a.resolve(ctx, "delete task", rawID)
	if err != nil {
		return TaskView{}, err
	}
	task, err := a.session.DeleteTask(ctx, id)
	if err != nil {
		return TaskView{}, mapAppError("delete task", err)
	}
	return taskView(task), nil
}

// LastActivity returns the most recent activity.
func (a *SessionAdapter) LastActivity(ctx context.Context) (ActivityView, error) {
	if err := a.Ready(ctx); err != nil {
		return ActivityView{}, err
	}
	activity, ok := a.session.LastActivity()
	if !ok {
		return ActivityView{}, fmt.Errorf("last activity: %w", ErrNotFound)
	}
	return ActivityView{ID: activity.ID, Message: activity.Message, CreatedAt: activity.CreatedAt}, nil
}

// Watch signals after every board or activity change.
func (a *SessionAdapter) Watch() (<-chan struct{}, func()) {
	return a.session.Watch()
}

func (a *SessionAdapter) resolve(ctx context.Context, op, rawID string) (string, error) {
	if err := a.Ready(ctx); err != nil {
		return "", err
	}
	if strings.TrimSpace(rawID) == "" {
		return "", fmt.Errorf("%s: id is required: %w", op, ErrInvalidRequest)
	}
	id, err := a.session.ResolveID(rawID)
	if err != nil {
		return "", mapAppError(op, err)
	}
	return id, nil
}

// mapAppError maps app and domain errors into transport sentinels.
func mapAppError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", op, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrReadOnlyDay):
		return fmt.Errorf("%s: %w", op, errors.Join(ErrReadOnly, err))
	case errors.Is(err, app.ErrNotLoaded), errors.Is(err, app.ErrClosed):
		return fmt.Errorf("%s: %w", op, errors.Join(ErrUnavailable, err))
	case errors.Is(err, app.ErrAmbiguousID),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrInvalidPerson),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidPosition):
		return fmt.Errorf("%s: %w", op, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func dayView(board domain.Board, day, today string) DayView {
	out := DayView{
		Date:     day,
		Label:    domain.DateLabel(day),
		ReadOnly: day != today,
		Columns:  make([]ColumnView, 0, len(domain.Statuses)),
	}
	for _, status := range domain.Statuses {
		tasks := board.Column(day, status)
		col := ColumnView{Status: string(status), Label: status.Label(), Tasks: make([]TaskView, 0, len(tasks))}
		for _, task := range tasks {
			col.Tasks = append(col.Tasks, taskView(task))
		}
		out.Columns = append(out.Columns, col)
	}
	return out
}

func taskView(task domain.Task) TaskView {
	return TaskView{
		ID:          task.ID,
		Title:       task.Title,
		Person:      task.Person,
		Notes:       task.Notes,
		Status:      string(task.Status),
		StatusLabel: task.Status.Label(),
		Priority:    string(task.Priority),
		SortOrder:   task.SortOrder,
		Date:        task.Date,
		Continued:   task.Continued,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

var _ BoardService = (*SessionAdapter)(nil)
