package wire

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/evanschultz/workboard/internal/domain"
)

func TestTaskRecordAcceptsLegacyKeys(t *testing.T) {
	raw := `{"id":"t1","title":"Fix","person":"Dev","notes":null,"status":"blocked","date":"2024-01-04","updatedAt":"2024-01-04T10:00:00.000Z"}`
	task, err := UnmarshalTask([]byte(raw))
	if err != nil {
		t.Fatalf("UnmarshalTask() error = %v", err)
	}
	want := time.Date(2024, 1, 4, 10, 0, 0, 0, time.UTC)
	if !task.UpdatedAt.Equal(want) || !task.CreatedAt.Equal(want) {
		t.Fatalf("expected timestamps from legacy key, got %v / %v", task.CreatedAt, task.UpdatedAt)
	}
	if task.Priority != domain.PriorityNone || task.Notes != "" || task.Continued {
		t.Fatalf("unexpected defaults %#v", task)
	}
}

func TestTaskRecordRejectsInvalidStatus(t *testing.T) {
	raw := `{"id":"t1","title":"Fix","person":"Dev","status":"later","date":"2024-01-04"}`
	if _, err := UnmarshalTask([]byte(raw)); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestMarshalTaskWritesNullNotes(t *testing.T) {
	task := domain.Task{ID: "t1", Title: "a", Person: "b", Status: domain.StatusDoing, Priority: domain.PriorityNone, Date: "2024-01-04"}
	data, err := MarshalTask(task)
	if err != nil {
		t.Fatalf("MarshalTask() error = %v", err)
	}
	if !strings.Contains(string(data), `"notes":null`) {
		t.Fatalf("expected null notes in %s", data)
	}
}

func TestChangeRecordDecode(t *testing.T) {
	task := domain.Task{ID: "t1", Title: "a", Person: "b", Status: domain.StatusHelp, Priority: domain.PriorityLow, Date: "2024-01-04"}
	data, err := MarshalChange(domain.ChangeEvent{Kind: domain.ChangeUpdate, Task: task})
	if err != nil {
		t.Fatalf("MarshalChange() error = %v", err)
	}
	ev, err := UnmarshalChange(data)
	if err != nil {
		t.Fatalf("UnmarshalChange() error = %v", err)
	}
	if ev.Kind != domain.ChangeUpdate || ev.Task.ID != "t1" || ev.Task.Status != domain.StatusHelp {
		t.Fatalf("unexpected event %#v", ev)
	}

	ev, err = UnmarshalChange([]byte(`{"type":"DELETE","old":{"id":"gone"}}`))
	if err != nil {
		t.Fatalf("UnmarshalChange(delete) error = %v", err)
	}
	if ev.Kind != domain.ChangeDelete || ev.Task.ID != "gone" {
		t.Fatalf("unexpected delete event %#v", ev)
	}

	if _, err := UnmarshalChange([]byte(`{"type":"insert"}`)); !errors.Is(err, ErrMalformedChange) {
		t.Fatalf("expected ErrMalformedChange, got %v", err)
	}
}

func TestActivityRecordAcceptsAt(t *testing.T) {
	act, err := UnmarshalActivity([]byte(`{"id":"a1","message":"Dev added \"x\"","at":"2024-01-04T10:00:00Z"}`))
	if err != nil {
		t.Fatalf("UnmarshalActivity() error = %v", err)
	}
	if act.CreatedAt.IsZero() {
		t.Fatal("expected created_at from at key")
	}
}

func TestParseTSLenient(t *testing.T) {
	if !ParseTS("garbage").IsZero() {
		t.Fatal("expected zero time for garbage")
	}
	if ParseTS("2024-01-04 10:00:00+00").IsZero() {
		t.Fatal("expected postgres-style timestamp to parse")
	}
}
