package domain

import (
	"reflect"
	"testing"
	"time"
)

// fixedNow is the clock value used for carried clones in these tests.
var fixedNow = time.Date(2024, 1, 5, 9, 30, 0, 0, time.UTC)

func mkTask(id, date string, status Status) Task {
	return Task{
		ID:        id,
		Title:     "title " + id,
		Person:    "Dev",
		Notes:     "notes " + id,
		Status:    status,
		Priority:  PriorityHigh,
		Date:      date,
		CreatedAt: fixedNow.Add(-72 * time.Hour),
		UpdatedAt: fixedNow.Add(-72 * time.Hour),
	}
}

func TestCarriedIDIsDeterministic(t *testing.T) {
	if got := CarriedID("t1", "2024-01-05"); got != "t1-carried-2024-01-05" {
		t.Fatalf("CarriedID() = %q", got)
	}
	if got := CarriedID("t1-carried-2024-01-04", "2024-01-05"); got != "t1-carried-2024-01-05" {
		t.Fatalf("CarriedID(clone) = %q, want origin-based id", got)
	}
}

func TestOriginID(t *testing.T) {
	cases := map[string]string{
		"t1":                                     "t1",
		"t1-carried-2024-01-05":                  "t1",
		"t1-carried-2024-01-04-carried-2024-01-05": "t1",
		"t1-carried-tomorrow":                    "t1-carried-tomorrow",
		"-carried-2024-01-05":                    "-carried-2024-01-05",
	}
	for in, want := range cases {
		if got := OriginID(in); got != want {
			t.Fatalf("OriginID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCarryOverSelectsUnfinishedYesterdayTasks(t *testing.T) {
	all := []Task{
		mkTask("a", "2024-01-04", StatusDoing),
		mkTask("b", "2024-01-04", StatusBlocked),
		mkTask("c", "2024-01-04", StatusHelp),
		mkTask("d", "2024-01-04", StatusDone),
	}
	out, carried := CarryOver(all, "2024-01-05", fixedNow)
	if len(carried) != 3 {
		t.Fatalf("expected 3 clones, got %d (%#v)", len(carried), carried)
	}
	wantIDs := []string{"a-carried-2024-01-05", "b-carried-2024-01-05", "c-carried-2024-01-05"}
	for i, clone := range carried {
		if clone.ID != wantIDs[i] {
			t.Fatalf("clone %d id = %q, want %q", i, clone.ID, wantIDs[i])
		}
		if !clone.Continued || clone.Date != "2024-01-05" {
			t.Fatalf("unexpected clone %#v", clone)
		}
		if !clone.CreatedAt.Equal(fixedNow) || !clone.UpdatedAt.Equal(fixedNow) {
			t.Fatalf("expected clone timestamps from clock, got %#v", clone)
		}
		src := all[i]
		if clone.Title != src.Title || clone.Person != src.Person || clone.Notes != src.Notes ||
			clone.Status != src.Status || clone.Priority != src.Priority {
			t.Fatalf("clone %d did not copy source fields: %#v", i, clone)
		}
	}
	if len(out) != len(all)+3 {
		t.Fatalf("expected %d tasks, got %d", len(all)+3, len(out))
	}
	for i := range all {
		if !reflect.DeepEqual(out[i], all[i]) {
			t.Fatalf("historical task %d changed: %#v", i, out[i])
		}
	}
}

func TestReconcileDayIsIdempotent(t *testing.T) {
	all := []Task{
		mkTask("a", "2024-01-03", StatusBlocked),
		mkTask("b", "2024-01-04", StatusDoing),
		mkTask("today", "2024-01-05", StatusHelp),
	}
	once := ReconcileDay(all, "2024-01-05", fixedNow)
	twice := ReconcileDay(once, "2024-01-05", fixedNow.Add(time.Hour))
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("second run changed result\nonce:  %#v\ntwice: %#v", once, twice)
	}
}

func TestCarryOverPrependsClonesBeforeToday(t *testing.T) {
	existing := mkTask("x", "2024-01-05", StatusDoing)
	existing.SortOrder = 10
	all := []Task{existing, mkTask("a", "2024-01-04", StatusDoing)}
	board, carried := CarryOverBoard(GroupByDate(all), "2024-01-05", fixedNow)
	today := board["2024-01-05"]
	if len(today) != 2 || today[0].ID != "a-carried-2024-01-05" || today[1].ID != "x" {
		t.Fatalf("unexpected today order %#v", today)
	}
	if carried[0].SortOrder >= existing.SortOrder {
		t.Fatalf("expected clone sort order before %v, got %v", existing.SortOrder, carried[0].SortOrder)
	}
}

func TestCarryOverMultiDayGapYieldsSingleClone(t *testing.T) {
	all := []Task{mkTask("old", "2024-01-02", StatusBlocked)}
	out, carried := CarryOver(all, "2024-01-05", fixedNow)
	if len(carried) != 1 || carried[0].ID != "old-carried-2024-01-05" {
		t.Fatalf("expected exactly one clone for today, got %#v", carried)
	}
	for _, task := range out {
		if task.Date == "2024-01-03" || task.Date == "2024-01-04" {
			t.Fatalf("intermediate day back-filled: %#v", task)
		}
	}
}

func TestCarryOverUsesLatestInstanceOfOrigin(t *testing.T) {
	first := mkTask("t1", "2024-01-03", StatusBlocked)
	second := mkTask("t1-carried-2024-01-04", "2024-01-04", StatusHelp)
	second.Title = "renamed"
	second.Continued = true

	_, carried := CarryOver([]Task{first, second}, "2024-01-05", fixedNow)
	if len(carried) != 1 {
		t.Fatalf("expected one clone per origin, got %#v", carried)
	}
	if carried[0].ID != "t1-carried-2024-01-05" {
		t.Fatalf("unexpected clone id %q", carried[0].ID)
	}
	if carried[0].Status != StatusHelp || carried[0].Title != "renamed" {
		t.Fatalf("expected fields from latest instance, got %#v", carried[0])
	}
}

func TestCarryOverSkipsOriginFinishedLater(t *testing.T) {
	first := mkTask("t1", "2024-01-03", StatusBlocked)
	finished := mkTask("t1-carried-2024-01-04", "2024-01-04", StatusDone)
	_, carried := CarryOver([]Task{first, finished}, "2024-01-05", fixedNow)
	if len(carried) != 0 {
		t.Fatalf("expected no clone for finished origin, got %#v", carried)
	}
}

func TestCarryOverIgnoresFutureAndEmptyInput(t *testing.T) {
	out, carried := CarryOver(nil, "2024-01-05", fixedNow)
	if len(out) != 0 || len(carried) != 0 {
		t.Fatalf("expected empty result, got %#v %#v", out, carried)
	}
	future := mkTask("f", "2024-01-09", StatusDoing)
	out, carried = CarryOver([]Task{future}, "2024-01-05", fixedNow)
	if len(carried) != 0 || len(out) != 1 {
		t.Fatalf("future task must not be a source, got %#v", carried)
	}
}

func TestCarryOverBoardCreatesEmptyToday(t *testing.T) {
	board, _ := CarryOverBoard(Board{}, "2024-01-05", fixedNow)
	tasks, ok := board["2024-01-05"]
	if !ok || len(tasks) != 0 {
		t.Fatalf("expected empty today list, got %#v (present=%t)", tasks, ok)
	}
}
