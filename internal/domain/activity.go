package domain

import (
	"strings"
	"time"
)

// Activity is one human-readable board event.
type Activity struct {
	ID        string
	Message   string
	CreatedAt time.Time
}

// NewActivity constructs a new value for this package.
func NewActivity(id, message string, now time.Time) (Activity, error) {
	id = strings.TrimSpace(id)
	message = strings.TrimSpace(message)
	if id == "" {
		return Activity{}, ErrInvalidID
	}
	if message == "" {
		return Activity{}, ErrInvalidMessage
	}
	return Activity{ID: id, Message: message, CreatedAt: now.UTC()}, nil
}

// NewerThan reports whether a was created after other.
func (a Activity) NewerThan(other Activity) bool {
	return a.CreatedAt.After(other.CreatedAt)
}
