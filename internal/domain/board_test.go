package domain

import "testing"

func TestBoardColumnOrdersBySortOrder(t *testing.T) {
	a := mkTask("a", "2024-01-05", StatusDoing)
	a.SortOrder = 20
	b := mkTask("b", "2024-01-05", StatusDoing)
	b.SortOrder = 10
	c := mkTask("c", "2024-01-05", StatusDone)
	board := GroupByDate([]Task{a, b, c})

	col := board.Column("2024-01-05", StatusDoing)
	if len(col) != 2 || col[0].ID != "b" || col[1].ID != "a" {
		t.Fatalf("unexpected column %#v", col)
	}
	if got := board.Column("2024-01-04", StatusDoing); len(got) != 0 {
		t.Fatalf("expected empty column, got %#v", got)
	}
}

func TestBoardApplyChange(t *testing.T) {
	a := mkTask("a", "2024-01-05", StatusDoing)
	board := GroupByDate([]Task{a})

	if _, changed := board.ApplyChange(ChangeEvent{Kind: ChangeInsert, Task: a}); changed {
		t.Fatal("duplicate insert should be ignored")
	}

	b := mkTask("b", "2024-01-05", StatusBlocked)
	next, changed := board.ApplyChange(ChangeEvent{Kind: ChangeInsert, Task: b})
	if !changed || next["2024-01-05"][0].ID != "b" {
		t.Fatalf("expected b prepended, got %#v", next["2024-01-05"])
	}
	if len(board["2024-01-05"]) != 1 {
		t.Fatal("ApplyChange must not mutate the receiver")
	}

	updated := a
	updated.Status = StatusDone
	next, changed = next.ApplyChange(ChangeEvent{Kind: ChangeUpdate, Task: updated})
	if !changed {
		t.Fatal("expected update to apply")
	}
	got, _, _ := next.Find("a")
	if got.Status != StatusDone {
		t.Fatalf("expected done status, got %q", got.Status)
	}

	if _, changed := next.ApplyChange(ChangeEvent{Kind: ChangeUpdate, Task: mkTask("zzz", "2024-01-05", StatusDone)}); changed {
		t.Fatal("update of unknown id should be a no-op")
	}

	moved := b
	moved.Date = "2024-01-04"
	next, _ = next.ApplyChange(ChangeEvent{Kind: ChangeUpdate, Task: moved})
	if _, day, ok := next.Find("b"); !ok || day != "2024-01-04" {
		t.Fatalf("expected b moved to 2024-01-04, got %q (%t)", day, ok)
	}

	next, changed = next.ApplyChange(ChangeEvent{Kind: ChangeDelete, Task: Task{ID: "a"}})
	if !changed {
		t.Fatal("expected delete to apply")
	}
	if _, _, ok := next.Find("a"); ok {
		t.Fatal("expected a removed")
	}
}

func TestBoardFlattenAndDays(t *testing.T) {
	board := GroupByDate([]Task{
		mkTask("x", "2024-01-05", StatusDoing),
		mkTask("y", "2024-01-03", StatusDoing),
	})
	days := board.Days()
	if len(days) != 2 || days[0] != "2024-01-03" {
		t.Fatalf("unexpected days %#v", days)
	}
	flat := board.Flatten()
	if len(flat) != 2 || flat[0].ID != "y" {
		t.Fatalf("unexpected flatten %#v", flat)
	}
}
