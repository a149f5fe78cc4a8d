// Package wire holds the JSON records shared by the local snapshot and the
// remote adapters, plus their conversions to domain values.
package wire

import (
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/evanschultz/workboard/internal/domain"
)

// api is the encoder configuration used for every wire payload.
var api = sonic.ConfigStd

// TaskRecord is the persisted and transmitted form of a task.
type TaskRecord struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Person    string  `json:"person"`
	Notes     *string `json:"notes"`
	Status    string  `json:"status"`
	Priority  string  `json:"priority,omitempty"`
	SortOrder float64 `json:"sort_order"`
	Date      string  `json:"date"`
	Continued bool    `json:"continued"`
	CreatedAt string  `json:"created_at,omitempty"`
	UpdatedAt string  `json:"updated_at,omitempty"`
	// LegacyUpdatedAt mirrors UpdatedAt under the camel-case key older
	// snapshots used.
	LegacyUpdatedAt string `json:"updatedAt,omitempty"`
}

// PatchRecord is the transmitted form of a partial task update.
type PatchRecord struct {
	Title     *string  `json:"title,omitempty"`
	Person    *string  `json:"person,omitempty"`
	Notes     *string  `json:"notes,omitempty"`
	Status    *string  `json:"status,omitempty"`
	Priority  *string  `json:"priority,omitempty"`
	SortOrder *float64 `json:"sort_order,omitempty"`
	UpdatedAt *string  `json:"updated_at,omitempty"`
}

// ChangeRecord is one change-feed message.
type ChangeRecord struct {
	Type string      `json:"type"`
	New  *TaskRecord `json:"new,omitempty"`
	Old  *TaskRecord `json:"old,omitempty"`
}

// ActivityRecord is the transmitted form of an activity. At is accepted as an
// alias of CreatedAt for the local last-activity slot.
type ActivityRecord struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at,omitempty"`
	At        string `json:"at,omitempty"`
}

// FormatTS renders t the way every record stores instants.
func FormatTS(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

var tsLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999",
}

// ParseTS parses an instant leniently. Unparseable input yields the zero time.
func ParseTS(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range tsLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

// FromTask converts a domain task. Empty notes are written as null.
func FromTask(t domain.Task) TaskRecord {
	rec := TaskRecord{
		ID:        t.ID,
		Title:     t.Title,
		Person:    t.Person,
		Status:    string(t.Status),
		Priority:  string(t.Priority),
		SortOrder: t.SortOrder,
		Date:      t.Date,
		Continued: t.Continued,
		CreatedAt: FormatTS(t.CreatedAt),
		UpdatedAt: FormatTS(t.UpdatedAt),
	}
	if t.Notes != "" {
		notes := t.Notes
		rec.Notes = &notes
	}
	return rec
}

// ToTask converts and validates a record. Missing timestamps fall back in
// the order updated_at, updatedAt, created_at, and missing priority means none.
func (r TaskRecord) ToTask() (domain.Task, error) {
	updated := ParseTS(r.UpdatedAt)
	if updated.IsZero() {
		updated = ParseTS(r.LegacyUpdatedAt)
	}
	created := ParseTS(r.CreatedAt)
	if created.IsZero() {
		created = updated
	}
	if updated.IsZero() {
		updated = created
	}
	priority := domain.Priority(strings.TrimSpace(r.Priority))
	if priority == "" {
		priority = domain.PriorityNone
	}
	task := domain.Task{
		ID:        strings.TrimSpace(r.ID),
		Title:     r.Title,
		Person:    r.Person,
		Status:    domain.Status(r.Status),
		Priority:  priority,
		SortOrder: r.SortOrder,
		Date:      r.Date,
		Continued: r.Continued,
		CreatedAt: created,
		UpdatedAt: updated,
	}
	if r.Notes != nil {
		task.Notes = *r.Notes
	}
	if err := task.Validate(); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// FromPatch converts a domain patch.
func FromPatch(p domain.TaskPatch) PatchRecord {
	var rec PatchRecord
	rec.Title = p.Title
	rec.Person = p.Person
	rec.Notes = p.Notes
	rec.SortOrder = p.SortOrder
	if p.Status != nil {
		status := string(*p.Status)
		rec.Status = &status
	}
	if p.Priority != nil {
		priority := string(*p.Priority)
		rec.Priority = &priority
	}
	if p.UpdatedAt != nil {
		updated := FormatTS(*p.UpdatedAt)
		rec.UpdatedAt = &updated
	}
	return rec
}

// FromActivity converts a domain activity.
func FromActivity(a domain.Activity) ActivityRecord {
	return ActivityRecord{ID: a.ID, Message: a.Message, CreatedAt: FormatTS(a.CreatedAt)}
}

// ToActivity converts and validates a record.
func (r ActivityRecord) ToActivity() (domain.Activity, error) {
	created := ParseTS(r.CreatedAt)
	if created.IsZero() {
		created = ParseTS(r.At)
	}
	return domain.NewActivity(r.ID, r.Message, created)
}

// MarshalTask encodes one task.
func MarshalTask(t domain.Task) ([]byte, error) {
	return api.Marshal(FromTask(t))
}

// UnmarshalTask decodes one task.
func UnmarshalTask(data []byte) (domain.Task, error) {
	var rec TaskRecord
	if err := api.Unmarshal(data, &rec); err != nil {
		return domain.Task{}, err
	}
	return rec.ToTask()
}

// MarshalChange encodes a change-feed event.
func MarshalChange(ev domain.ChangeEvent) ([]byte, error) {
	rec := FromTask(ev.Task)
	msg := ChangeRecord{Type: string(ev.Kind)}
	if ev.Kind == domain.ChangeDelete {
		msg.Old = &rec
	} else {
		msg.New = &rec
	}
	return api.Marshal(msg)
}

// UnmarshalChange decodes a change-feed event. Deletes only need the old id.
func UnmarshalChange(data []byte) (domain.ChangeEvent, error) {
	var msg ChangeRecord
	if err := api.Unmarshal(data, &msg); err != nil {
		return domain.ChangeEvent{}, err
	}
	kind := domain.ChangeKind(strings.ToLower(strings.TrimSpace(msg.Type)))
	switch kind {
	case domain.ChangeInsert, domain.ChangeUpdate:
		if msg.New == nil {
			return domain.ChangeEvent{}, ErrMalformedChange
		}
		task, err := msg.New.ToTask()
		if err != nil {
			return domain.ChangeEvent{}, err
		}
		return domain.ChangeEvent{Kind: kind, Task: task}, nil
	case domain.ChangeDelete:
		if msg.Old == nil || strings.TrimSpace(msg.Old.ID) == "" {
			return domain.ChangeEvent{}, ErrMalformedChange
		}
		task, err := msg.Old.ToTask()
		if err != nil {
			task = domain.Task{ID: strings.TrimSpace(msg.Old.ID)}
		}
		return domain.ChangeEvent{Kind: kind, Task: task}, nil
	default:
		return domain.ChangeEvent{}, ErrMalformedChange
	}
}

// MarshalActivity encodes one activity.
func MarshalActivity(a domain.Activity) ([]byte, error) {
	return api.Marshal(FromActivity(a))
}

// UnmarshalActivity decodes one activity.
func UnmarshalActivity(data []byte) (domain.Activity, error) {
	var rec ActivityRecord
	if err := api.Unmarshal(data, &rec); err != nil {
		return domain.Activity{}, err
	}
	return rec.ToActivity()
}

// Marshal and Unmarshal expose the shared encoder to adapters.
func Marshal(v any) ([]byte, error) { return api.Marshal(v) }

func Unmarshal(data []byte, v any) error { return api.Unmarshal(data, v) }
