package domain

import (
	"slices"
	"strings"
	"time"
)

// carriedMarker separates an origin id from the day a clone was carried into.
const carriedMarker = "-carried-"

// CarriedID returns the deterministic id of originID's clone on dayKey.
func CarriedID(originID, dayKey string) string {
	return OriginID(originID) + carriedMarker + dayKey
}

// OriginID strips every trailing "-carried-YYYY-MM-DD" segment from id.
func OriginID(id string) string {
	for {
		idx := strings.LastIndex(id, carriedMarker)
		if idx <= 0 {
			return id
		}
		if !ValidDateKey(id[idx+len(carriedMarker):]) {
			return id
		}
		id = id[:idx]
	}
}

// ReconcileDay returns all tasks with today's unfinished carry-over applied.
func ReconcileDay(all []Task, todayKey string, now time.Time) []Task {
	tasks, _ := CarryOver(all, todayKey, now)
	return tasks
}

// carrySource is the most recent prior-day instance of one origin.
type carrySource struct {
	task  Task
	order int
}

// CarryOver clones every unfinished logical task from days before todayKey
// into todayKey. Each origin is carried from its most recent instance, so a
// skipped stretch of days still yields one clone, and an origin finished on a
// later day is not revived. It returns the full collection and the new clones.
func CarryOver(all []Task, todayKey string, now time.Time) ([]Task, []Task) {
	today := make([]Task, 0)
	rest := make([]Task, 0, len(all))
	todayOrigins := map[string]struct{}{}
	latest := map[string]carrySource{}

	for idx, task := range all {
		switch {
		case task.Date == todayKey:
			today = append(today, task)
			todayOrigins[OriginID(task.ID)] = struct{}{}
			continue
		case task.Date < todayKey:
			origin := OriginID(task.ID)
			current, ok := latest[origin]
			if !ok || newerInstance(task, current.task) {
				latest[origin] = carrySource{task: task, order: idx}
			}
		}
		rest = append(rest, task)
	}

	sources := make([]carrySource, 0, len(latest))
	for origin, src := range latest {
		if src.task.Status == StatusDone {
			continue
		}
		if _, ok := todayOrigins[origin]; ok {
			continue
		}
		sources = append(sources, src)
	}
	slices.SortFunc(sources, func(a, b carrySource) int {
		if a.task.Date != b.task.Date {
			return strings.Compare(a.task.Date, b.task.Date)
		}
		return a.order - b.order
	})

	carried := make([]Task, 0, len(sources))
	base := 0.0
	if len(today) > 0 {
		base = today[0].SortOrder
		for _, task := range today[1:] {
			base = min(base, task.SortOrder)
		}
		base -= float64(len(sources)) * PositionStep
	}
	for i, src := range sources {
		clone := src.task.carryInto(todayKey, now)
		clone.SortOrder = base + float64(i)*PositionStep
		carried = append(carried, clone)
	}

	out := make([]Task, 0, len(rest)+len(carried)+len(today))
	out = append(out, rest...)
	out = append(out, carried...)
	out = append(out, today...)
	return out, carried
}

// CarryOverBoard applies CarryOver to a board and guarantees todayKey has a list.
func CarryOverBoard(b Board, todayKey string, now time.Time) (Board, []Task) {
	tasks, carried := CarryOver(b.Flatten(), todayKey, now)
	next := GroupByDate(tasks)
	if _, ok := next[todayKey]; !ok {
		next[todayKey] = []Task{}
	}
	return next, carried
}

// carryInto copies the carried fields into a fresh instance dated dayKey.
func (t Task) carryInto(dayKey string, now time.Time) Task {
	return Task{
		ID:        CarriedID(t.ID, dayKey),
		Title:     t.Title,
		Person:    t.Person,
		Notes:     t.Notes,
		Status:    t.Status,
		Priority:  t.Priority,
		Date:      dayKey,
		Continued: true,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

// newerInstance orders two instances of one origin by day, then by update time.
func newerInstance(a, b Task) bool {
	if a.Date != b.Date {
		return a.Date > b.Date
	}
	return a.UpdatedAt.After(b.UpdatedAt)
}
