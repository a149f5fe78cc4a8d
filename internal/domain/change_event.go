package domain

import "time"

// ChangeKind tags a remote change-feed event.
type ChangeKind string

// ChangeKind values emitted by remote task sources.
const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// ChangeEvent is one remote row change. Task holds the new row for inserts
// and updates and the old row for deletes.
type ChangeEvent struct {
	Kind ChangeKind
	Task Task
}

// ActivityEvent is one remote activity insert.
type ActivityEvent struct {
	Activity Activity
}

// TaskPatch is a partial task update. Nil fields are left unchanged.
type TaskPatch struct {
	Title     *string
	Person    *string
	Notes     *string
	Status    *Status
	Priority  *Priority
	SortOrder *float64
	UpdatedAt *time.Time
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Person == nil && p.Notes == nil && p.Status == nil &&
		p.Priority == nil && p.SortOrder == nil && p.UpdatedAt == nil
}

// Apply returns t with the patch fields applied.
func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Person != nil {
		t.Person = *p.Person
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.SortOrder != nil {
		t.SortOrder = *p.SortOrder
	}
	if p.UpdatedAt != nil {
		t.UpdatedAt = p.UpdatedAt.UTC()
	}
	return t
}

// DiffPatch returns the patch that turns prev into next for mutable fields.
func DiffPatch(prev, next Task) TaskPatch {
	var p TaskPatch
	if prev.Title != next.Title {
		p.Title = &next.Title
	}
	if prev.Person != next.Person {
		p.Person = &next.Person
	}
	if prev.Notes != next.Notes {
		p.Notes = &next.Notes
	}
	if prev.Status != next.Status {
		p.Status = &next.Status
	}
	if prev.Priority != next.Priority {
		p.Priority = &next.Priority
	}
	if prev.SortOrder != next.SortOrder {
		p.SortOrder = &next.SortOrder
	}
	if !prev.UpdatedAt.Equal(next.UpdatedAt) {
		updatedAt := next.UpdatedAt
		p.UpdatedAt = &updatedAt
	}
	return p
}
