package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("already exists")
	ErrReadOnlyDay    = errors.New("task belongs to a past day")
	ErrRemoteDisabled = errors.New("remote store not configured")
	ErrClosed         = errors.New("session closed")
	ErrNotLoaded      = errors.New("board not loaded")
	ErrAmbiguousID    = errors.New("id prefix matches more than one task")
)
