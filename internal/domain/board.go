package domain

import (
	"maps"
	"slices"
	"strings"
)

// Board maps a day key to the ordered tasks dated that day. It is a view
// derived from the flat task collection.
type Board map[string][]Task

// GroupByDate builds a board from a flat task list, keeping input order within each day.
func GroupByDate(tasks []Task) Board {
	board := Board{}
	for _, task := range tasks {
		board[task.Date] = append(board[task.Date], task)
	}
	return board
}

// Days returns the board's day keys in ascending order.
func (b Board) Days() []string {
	return slices.Sorted(maps.Keys(b))
}

// Flatten returns every task, days ascending, list order within a day.
func (b Board) Flatten() []Task {
	out := make([]Task, 0, b.TaskCount())
	for _, day := range b.Days() {
		out = append(out, b[day]...)
	}
	return out
}

func (b Board) TaskCount() int {
	total := 0
	for _, tasks := range b {
		total += len(tasks)
	}
	return total
}

// Clone copies the map and every day slice.
func (b Board) Clone() Board {
	out := make(Board, len(b))
	for day, tasks := range b {
		out[day] = slices.Clone(tasks)
	}
	return out
}

// Find locates a task by id on any day.
func (b Board) Find(id string) (Task, string, bool) {
	for day, tasks := range b {
		if idx := indexOf(tasks, id); idx >= 0 {
			return tasks[idx], day, true
		}
	}
	return Task{}, "", false
}

// Column returns the tasks of one day with the given status ordered by sort order.
func (b Board) Column(day string, status Status) []Task {
	out := make([]Task, 0)
	for _, task := range b[day] {
		if task.Status == status {
			out = append(out, task)
		}
	}
	slices.SortStableFunc(out, func(a, c Task) int {
		switch {
		case a.SortOrder < c.SortOrder:
			return -1
		case a.SortOrder > c.SortOrder:
			return 1
		default:
			return 0
		}
	})
	return out
}

// ReplaceTask swaps the task with the same id within day. It reports false
// when the day does not hold that id.
func (b Board) ReplaceTask(day string, task Task) bool {
	idx := indexOf(b[day], task.ID)
	if idx < 0 {
		return false
	}
	b[day][idx] = task
	return true
}

// PrependTask puts task first in its day's list.
func (b Board) PrependTask(task Task) {
	b[task.Date] = append([]Task{task}, b[task.Date]...)
}

// RemoveTask drops id from every day and reports whether anything was removed.
func (b Board) RemoveTask(id string) bool {
	removed := false
	for day, tasks := range b {
		idx := indexOf(tasks, id)
		if idx < 0 {
			continue
		}
		b[day] = slices.Delete(slices.Clone(tasks), idx, idx+1)
		removed = true
	}
	return removed
}

// ApplyChange merges one remote change-feed event into a copy of the board.
// Inserts of an id that already exists anywhere are ignored, updates replace
// the matching task wherever it is found, deletes remove it from any day.
func (b Board) ApplyChange(ev ChangeEvent) (Board, bool) {
	id := strings.TrimSpace(ev.Task.ID)
	if id == "" {
		return b, false
	}
	switch ev.Kind {
	case ChangeInsert:
		if _, _, ok := b.Find(id); ok {
			return b, false
		}
		next := b.Clone()
		next.PrependTask(ev.Task)
		return next, true
	case ChangeUpdate:
		_, day, ok := b.Find(id)
		if !ok {
			return b, false
		}
		next := b.Clone()
		if day == ev.Task.Date {
			next.ReplaceTask(day, ev.Task)
			return next, true
		}
		next.RemoveTask(id)
		next.PrependTask(ev.Task)
		return next, true
	case ChangeDelete:
		if _, _, ok := b.Find(id); !ok {
			return b, false
		}
		next := b.Clone()
		next.RemoveTask(id)
		return next, true
	default:
		return b, false
	}
}

func indexOf(tasks []Task, id string) int {
	return slices.IndexFunc(tasks, func(t Task) bool {
		return t.ID == id
	})
}
