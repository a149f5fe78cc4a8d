package render

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/evanschultz/workboard/internal/domain"
)

// Standup builds a markdown digest of today's list grouped by person, in
// column order within each person.
func Standup(dayKey string, today []domain.Task) string {
	byPerson := map[string][]domain.Task{}
	for _, task := range today {
		if task.Date != dayKey {
			continue
		}
		byPerson[task.Person] = append(byPerson[task.Person], task)
	}
	people := make([]string, 0, len(byPerson))
	for person := range byPerson {
		people = append(people, person)
	}
	slices.SortFunc(people, func(a, b string) int {
		return cmp.Compare(strings.ToLower(a), strings.ToLower(b))
	})

	var b strings.Builder
	fmt.Fprintf(&b, "# Standup · %s\n", domain.DateLabel(dayKey))
	if len(people) == 0 {
		b.WriteString("\nNothing on the board today.\n")
		return b.String()
	}
	for _, person := range people {
		tasks := byPerson[person]
		slices.SortStableFunc(tasks, func(a, c domain.Task) int {
			if d := cmp.Compare(slices.Index(domain.Statuses, a.Status), slices.Index(domain.Statuses, c.Status)); d != 0 {
				return d
			}
			return cmp.Compare(a.SortOrder, c.SortOrder)
		})
		fmt.Fprintf(&b, "\n## %s\n\n", person)
		for _, task := range tasks {
			line := fmt.Sprintf("- **%s** %s", task.Status.Label(), task.Title)
			if task.Priority == domain.PriorityHigh {
				line += " (high priority)"
			}
			if task.Continued {
				line += " _(carried)_"
			}
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}
