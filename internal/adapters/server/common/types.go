// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrReadOnly reports a mutation aimed at a task on an earlier day.
var ErrReadOnly = errors.New("read only")

// ErrUnavailable reports a board that is not loaded or already closed.
var ErrUnavailable = errors.New("board unavailable")

// TaskView is the transport shape of one task.
type TaskView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Person      string    `json:"person"`
	Notes       string    `json:"notes,omitempty"`
	Status      string    `json:"status"`
	StatusLabel string    `json:"status_label"`
	Priority    string    `json:"priority"`
	SortOrder   float64   `json:"sort_order"`
	Date        string    `json:"date"`
	Continued   bool      `json:"continued"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ColumnView is one status column in sort order.
type ColumnView struct {
	Status string     `json:"status"`
	Label  string     `json:"label"`
	Tasks  []TaskView `json:"tasks"`
}

// DayView is one day of the board.
type DayView struct {
	Date     string       `json:"date"`
	Label    string       `json:"label"`
	ReadOnly bool         `json:"read_only"`
	Columns  []ColumnView `json:"columns"`
}

// BoardView is every day, newest first.
type BoardView struct {
	Mode  string    `json:"mode"`
	Today string    `json:"today"`
	Days  []DayView `json:"days"`
}

// ActivityView is the last-activity record.
type ActivityView struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// AddTaskRequest creates a task on today's Doing column.
type AddTaskRequest struct {
	Title  string `json:"title"`
	Person string `json:"person"`
	Notes  string `json:"notes"`
}

// EditTaskRequest replaces a task's text fields.
type EditTaskRequest struct {
	ID     string `json:"-"`
	Title  string `json:"title"`
	Person string `json:"person"`
	Notes  string `json:"notes"`
}

// MoveTaskRequest changes a task's status.
type MoveTaskRequest struct {
	ID     string `json:"-"`
	Status string `json:"status"`
}

// PriorityRequest sets a task's priority.
type PriorityRequest struct {
	ID       string `json:"-"`
	Priority string `json:"priority"`
}

// PositionRequest places a task in a column, either at an explicit sort
// order or at an index among the column's other tasks.
type PositionRequest struct {
	ID        string   `json:"-"`
	Status    string   `json:"status"`
	SortOrder *float64 `json:"sort_order,omitempty"`
	Index     *int     `json:"index,omitempty"`
}

// BoardService is the board surface shared by the HTTP and MCP adapters.
// Task ids may be given as unique prefixes of today's ids.
type BoardService interface {
	Ready(context.Context) error
	Board(context.Context) (BoardView, error)
	Today(context.Context) (DayView, error)
	AddTask(context.Context, AddTaskRequest) (TaskView, error)
	EditTask(context.Context, EditTaskRequest) (TaskView, error)
	MoveTask(context.Context, MoveTaskRequest) (TaskView, error)
	SetPriority(context.Context, PriorityRequest) (TaskView, error)
	PositionTask(context.Context, PositionRequest) (TaskView, error)
	DeleteTask(context.Context, string) (TaskView, error)
	// LastActivity returns ErrNotFound when nothing happened yet.
	LastActivity(context.Context) (ActivityView, error)
	// Watch signals after every board or activity change.
	Watch() (<-chan struct{}, func())
}
