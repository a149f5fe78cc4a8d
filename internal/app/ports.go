package app

import (
	"context"

	"github.com/evanschultz/workboard/internal/domain"
)

// LocalStore persists the board snapshot and its companions on this machine.
type LocalStore interface {
	// LoadBoard returns ErrNotFound when nothing was saved yet.
	LoadBoard(context.Context) (domain.Board, error)
	SaveBoard(context.Context, domain.Board) error
	// LoadActivity returns ErrNotFound when nothing was saved yet.
	LoadActivity(context.Context) (domain.Activity, error)
	SaveActivity(context.Context, domain.Activity) error
	LoadUnsynced(context.Context) ([]string, error)
	SaveUnsynced(context.Context, []string) error
}

// TaskFeed delivers remote task changes until closed.
type TaskFeed interface {
	Events() <-chan domain.ChangeEvent
	Close() error
}

// ActivityFeed delivers remote activity inserts until closed.
type ActivityFeed interface {
	Events() <-chan domain.ActivityEvent
	Close() error
}

// TaskSource is the shared remote task table with its change feed.
type TaskSource interface {
	// Configured reports whether the source has connection settings at all.
	Configured() bool
	// ListTasks returns every task ordered by creation time, newest first.
	ListTasks(context.Context) ([]domain.Task, error)
	// InsertTasks inserts rows and returns ErrConflict when any id already exists.
	// Rows without a conflicting id are still inserted.
	InsertTasks(context.Context, ...domain.Task) error
	UpdateTask(context.Context, string, domain.TaskPatch) error
	DeleteTask(context.Context, string) error
	SubscribeTasks(context.Context) (TaskFeed, error)
}

// ActivitySource is the shared remote activity table with its insert feed.
type ActivitySource interface {
	// LatestActivity returns ErrNotFound when no activity exists.
	LatestActivity(context.Context) (domain.Activity, error)
	InsertActivity(context.Context, domain.Activity) error
	SubscribeActivities(context.Context) (ActivityFeed, error)
}

// Remote is a remote store implementing both sources.
type Remote interface {
	TaskSource
	ActivitySource
}

// Logger is the structured logger the session writes to.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Info(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}

type discardLogger struct{}

func (discardLogger) Debug(any, ...any) {}
func (discardLogger) Info(any, ...any)  {}
func (discardLogger) Warn(any, ...any)  {}
func (discardLogger) Error(any, ...any) {}

// disabledRemote stands in when no remote backend is configured.
type disabledRemote struct{}

func (disabledRemote) Configured() bool { return false }
func (disabledRemote) ListTasks(context.Context) ([]domain.Task, error) {
	return nil, ErrRemoteDisabled
}
func (disabledRemote) InsertTasks(context.Context, ...domain.Task) error { return ErrRemoteDisabled }
func (disabledRemote) UpdateTask(context.Context, string, domain.TaskPatch) error {
	return ErrRemoteDisabled
}
func (disabledRemote) DeleteTask(context.Context, string) error { return ErrRemoteDisabled }
func (disabledRemote) SubscribeTasks(context.Context) (TaskFeed, error) {
	return nil, ErrRemoteDisabled
}
func (disabledRemote) LatestActivity(context.Context) (domain.Activity, error) {
	return domain.Activity{}, ErrRemoteDisabled
}
func (disabledRemote) InsertActivity(context.Context, domain.Activity) error {
	return ErrRemoteDisabled
}
func (disabledRemote) SubscribeActivities(context.Context) (ActivityFeed, error) {
	return nil, ErrRemoteDisabled
}
