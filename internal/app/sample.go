package app

import (
	"time"

	"github.com/evanschultz/workboard/internal/domain"
)

// sampleRow describes one seeded task. origin links a continued row to the
// row it was carried from, by index into the same slice.
type sampleRow struct {
	daysAgo int
	title   string
	person  string
	notes   string
	status  domain.Status
	origin  int
}

var sampleRows = []sampleRow{
	{daysAgo: 3, title: "Design new logo concepts", person: "Wizard", notes: "Need 3 variations", status: domain.StatusDone, origin: -1},
	{daysAgo: 3, title: "Review vendor contracts", person: "T", status: domain.StatusBlocked, origin: -1},
	{daysAgo: 2, title: "Review vendor contracts", person: "T", status: domain.StatusBlocked, origin: 1},
	{daysAgo: 2, title: "Update product descriptions", person: "CS", notes: "Focus on SEO keywords", status: domain.StatusDoing, origin: -1},
	{daysAgo: 2, title: "Send weekly newsletter", person: "Marketing", status: domain.StatusDone, origin: -1},
	{daysAgo: 1, title: "Review vendor contracts", person: "T", status: domain.StatusHelp, origin: 1},
	{daysAgo: 1, title: "Update product descriptions", person: "CS", notes: "Focus on SEO keywords", status: domain.StatusDoing, origin: 3},
	{daysAgo: 1, title: "Prepare Q1 report", person: "Finance", status: domain.StatusDone, origin: -1},
	{daysAgo: 1, title: "Fix checkout bug", person: "Dev", notes: "Payment gateway timeout issue", status: domain.StatusBlocked, origin: -1},
	{daysAgo: 0, title: "Review vendor contracts", person: "T", status: domain.StatusHelp, origin: 1},
	{daysAgo: 0, title: "Update product descriptions", person: "CS", notes: "Focus on SEO keywords", status: domain.StatusDoing, origin: 3},
	{daysAgo: 0, title: "Fix checkout bug", person: "Dev", notes: "Payment gateway timeout issue", status: domain.StatusDoing, origin: 8},
	{daysAgo: 0, title: "DNGR website edits", person: "Wizard", status: domain.StatusDoing, origin: -1},
	{daysAgo: 0, title: "Approve packaging colors", person: "T", status: domain.StatusBlocked, origin: -1},
	{daysAgo: 0, title: "Reply to customer emails", person: "CS", notes: "Refund + address changes", status: domain.StatusHelp, origin: -1},
}

// SampleTasks builds the four-day demo board ending on todayKey. Continued
// rows carry derived ids so a later carry-over recognizes them.
func SampleTasks(todayKey string, now time.Time, idGen IDGenerator) []domain.Task {
	ids := make([]string, len(sampleRows))
	out := make([]domain.Task, 0, len(sampleRows))
	perDay := map[int]int{}
	for i, row := range sampleRows {
		day, err := domain.ShiftDateKey(todayKey, -row.daysAgo)
		if err != nil {
			return nil
		}
		if row.origin >= 0 {
			ids[i] = domain.CarriedID(ids[row.origin], day)
		} else {
			ids[i] = idGen()
		}
		stamp := now.AddDate(0, 0, -row.daysAgo).UTC()
		out = append(out, domain.Task{
			ID:        ids[i],
			Title:     row.title,
			Person:    row.person,
			Notes:     row.notes,
			Status:    row.status,
			Priority:  domain.PriorityNone,
			SortOrder: float64(perDay[row.daysAgo]) * domain.PositionStep,
			Date:      day,
			Continued: row.origin >= 0,
			CreatedAt: stamp,
			UpdatedAt: stamp,
		})
		perDay[row.daysAgo]++
	}
	return out
}
