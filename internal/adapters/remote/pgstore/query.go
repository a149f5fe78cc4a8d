package pgstore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/evanschultz/workboard/internal/domain"
)

const taskColumns = `id, title, person, notes, status, priority, sort_order, date, continued, created_at, updated_at`

// buildInsert renders a multi-row insert that skips existing ids and returns
// the ids it wrote.
func buildInsert(tasks []domain.Task) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO tasks (" + taskColumns + ") VALUES ")
	args := make([]any, 0, len(tasks)*11)
	for i, t := range tasks {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for col := range 11 {
			if col > 0 {
				b.WriteString(", ")
			}
			b.WriteString("$" + strconv.Itoa(len(args)+col+1))
		}
		b.WriteString(")")
		args = append(args,
			t.ID, t.Title, t.Person, nullableString(t.Notes), string(t.Status), string(t.Priority),
			t.SortOrder, t.Date, t.Continued, t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
		)
	}
	b.WriteString(" ON CONFLICT (id) DO NOTHING RETURNING id")
	return b.String(), args
}

// buildUpdate renders the UPDATE for a partial patch. ok is false when the
// patch has nothing to write.
func buildUpdate(id string, patch domain.TaskPatch) (query string, args []any, ok bool) {
	sets := make([]string, 0, 7)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Person != nil {
		add("person", *patch.Person)
	}
	if patch.Notes != nil {
		add("notes", nullableString(*patch.Notes))
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.Priority != nil {
		add("priority", string(*patch.Priority))
	}
	if patch.SortOrder != nil {
		add("sort_order", *patch.SortOrder)
	}
	if patch.UpdatedAt != nil {
		add("updated_at", patch.UpdatedAt.UTC())
	}
	if len(sets) == 0 {
		return "", nil, false
	}
	args = append(args, id)
	query = "UPDATE tasks SET " + strings.Join(sets, ", ") + " WHERE id = $" + strconv.Itoa(len(args))
	return query, args, true
}

func nullableString(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
