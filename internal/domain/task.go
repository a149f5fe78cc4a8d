package domain

import (
	"math"
	"slices"
	"strings"
	"time"
)

// Status is the board column a task sits in.
type Status string

const (
	StatusDoing   Status = "doing"
	StatusBlocked Status = "blocked"
	StatusHelp    Status = "help"
	StatusDone    Status = "done"
)

// Statuses lists board columns in display order.
var Statuses = []Status{StatusDoing, StatusBlocked, StatusHelp, StatusDone}

// Label returns the column heading for the status.
func (s Status) Label() string {
	switch s {
	case StatusDoing:
		return "Doing"
	case StatusBlocked:
		return "Blocked"
	case StatusHelp:
		return "Need Help"
	case StatusDone:
		return "Done (Today)"
	default:
		return string(s)
	}
}

// ParseStatus normalizes raw and rejects unknown statuses.
func ParseStatus(raw string) (Status, error) {
	status := Status(strings.TrimSpace(strings.ToLower(raw)))
	if !slices.Contains(Statuses, status) {
		return "", ErrInvalidStatus
	}
	return status, nil
}

// Priority is an optional urgency flag on a task.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
	PriorityNone   Priority = "none"
)

var validPriorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow, PriorityNone}

// ParsePriority accepts an empty value as PriorityNone.
func ParsePriority(raw string) (Priority, error) {
	priority := Priority(strings.TrimSpace(strings.ToLower(raw)))
	if priority == "" {
		return PriorityNone, nil
	}
	if !slices.Contains(validPriorities, priority) {
		return "", ErrInvalidPriority
	}
	return priority, nil
}

// Task is one card on a day's board.
type Task struct {
	ID        string
	Title     string
	Person    string
	Notes     string
	Status    Status
	Priority  Priority
	SortOrder float64
	Date      string
	Continued bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TaskInput holds the values NewTask validates and stamps.
type TaskInput struct {
	ID        string
	Title     string
	Person    string
	Notes     string
	Date      string
	SortOrder float64
}

// NewTask builds a user-created task. Title is checked before person.
func NewTask(in TaskInput, now time.Time) (Task, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Title = strings.TrimSpace(in.Title)
	in.Person = strings.TrimSpace(in.Person)
	in.Notes = strings.TrimSpace(in.Notes)

	if in.ID == "" {
		return Task{}, ErrInvalidID
	}
	if in.Title == "" {
		return Task{}, ErrInvalidTitle
	}
	if in.Person == "" {
		return Task{}, ErrInvalidPerson
	}
	if !ValidDateKey(in.Date) {
		return Task{}, ErrInvalidDateKey
	}
	if !finite(in.SortOrder) {
		return Task{}, ErrInvalidPosition
	}

	return Task{
		ID:        in.ID,
		Title:     in.Title,
		Person:    in.Person,
		Notes:     in.Notes,
		Status:    StatusDoing,
		Priority:  PriorityNone,
		SortOrder: in.SortOrder,
		Date:      in.Date,
		Continued: false,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// Move sets the status and reports whether anything changed.
func (t *Task) Move(status Status, now time.Time) (bool, error) {
	if !slices.Contains(Statuses, status) {
		return false, ErrInvalidStatus
	}
	if t.Status == status {
		return false, nil
	}
	t.Status = status
	t.UpdatedAt = now.UTC()
	return true, nil
}

// UpdateDetails replaces title, person and notes after validating them.
func (t *Task) UpdateDetails(title, person, notes string, now time.Time) error {
	title = strings.TrimSpace(title)
	person = strings.TrimSpace(person)
	if title == "" {
		return ErrInvalidTitle
	}
	if person == "" {
		return ErrInvalidPerson
	}
	t.Title = title
	t.Person = person
	t.Notes = strings.TrimSpace(notes)
	t.UpdatedAt = now.UTC()
	return nil
}

// SetPriority sets the priority flag.
func (t *Task) SetPriority(priority Priority, now time.Time) error {
	if !slices.Contains(validPriorities, priority) {
		return ErrInvalidPriority
	}
	t.Priority = priority
	t.UpdatedAt = now.UTC()
	return nil
}

// Reposition places the task in a column at the given sort order.
func (t *Task) Reposition(status Status, sortOrder float64, now time.Time) error {
	if !slices.Contains(Statuses, status) {
		return ErrInvalidStatus
	}
	if !finite(sortOrder) {
		return ErrInvalidPosition
	}
	t.Status = status
	t.SortOrder = sortOrder
	t.UpdatedAt = now.UTC()
	return nil
}

// Validate checks a task that arrived from storage or a change feed.
func (t Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrInvalidID
	}
	if !slices.Contains(Statuses, t.Status) {
		return ErrInvalidStatus
	}
	if !slices.Contains(validPriorities, t.Priority) {
		return ErrInvalidPriority
	}
	if !ValidDateKey(t.Date) {
		return ErrInvalidDateKey
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
