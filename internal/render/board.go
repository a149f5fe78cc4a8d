package render

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/evanschultz/workboard/internal/domain"
)

const minColumnWidth = 22

var (
	accent = lipgloss.Color("62")
	muted  = lipgloss.Color("241")
	dim    = lipgloss.Color("239")

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	colTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	subStyle      = lipgloss.NewStyle().Foreground(muted)
	emptyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	highStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	statusStyle   = lipgloss.NewStyle().Foreground(dim)
)

// Columns draws today's four status columns side by side within width.
func Columns(dayKey string, today []domain.Task, width int) string {
	colWidth := columnWidth(width)
	colStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dim).
		Padding(0, 1).
		MarginRight(1).
		Width(colWidth)

	board := domain.GroupByDate(today)
	views := make([]string, 0, len(domain.Statuses))
	for _, status := range domain.Statuses {
		tasks := board.Column(dayKey, status)
		lines := []string{colTitleStyle.Render(fmt.Sprintf("%s (%d)", status.Label(), len(tasks)))}
		if len(tasks) == 0 {
			lines = append(lines, emptyStyle.Render("(empty)"))
		}
		for _, task := range tasks {
			lines = append(lines, "", taskTitle(task, colWidth-4), subStyle.Render(truncate(taskSubtitle(task), colWidth-4)))
		}
		views = append(views, colStyle.Render(strings.Join(lines, "\n")))
	}

	header := titleStyle.Render("Today · " + domain.DateLabel(dayKey))
	return header + "\n" + lipgloss.JoinHorizontal(lipgloss.Top, views...)
}

// History lists the read-only days before todayKey, newest first.
func History(board domain.Board, todayKey string) string {
	days := board.Days()
	var b strings.Builder
	for i := len(days) - 1; i >= 0; i-- {
		day := days[i]
		if day >= todayKey {
			continue
		}
		b.WriteString(titleStyle.Render(domain.DateLabel(day)))
		b.WriteString("\n")
		for _, status := range domain.Statuses {
			for _, task := range board.Column(day, status) {
				fmt.Fprintf(&b, "  %s %s %s\n",
					statusStyle.Render(fmt.Sprintf("%-12s", status.Label())),
					task.Title,
					subStyle.Render("· "+taskSubtitle(task)),
				)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Activity renders the last-activity footer line.
func Activity(a domain.Activity, ok bool) string {
	if !ok {
		return statusStyle.Render("no activity yet")
	}
	return statusStyle.Render(fmt.Sprintf("last: %s (%s)", a.Message, a.CreatedAt.Local().Format("15:04")))
}

func taskTitle(task domain.Task, width int) string {
	title := truncate(task.Title, width)
	if task.Priority == domain.PriorityHigh {
		return highStyle.Render("! " + truncate(task.Title, width-2))
	}
	return title
}

func taskSubtitle(task domain.Task) string {
	parts := []string{task.Person}
	if task.Priority != domain.PriorityNone && task.Priority != "" {
		parts = append(parts, string(task.Priority))
	}
	if task.Continued {
		parts = append(parts, "carried")
	}
	return strings.Join(parts, " · ")
}

func columnWidth(total int) int {
	w := total/len(domain.Statuses) - 1
	return max(w, minColumnWidth)
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	if limit <= 1 {
		return string(rs[:limit])
	}
	return string(rs[:limit-1]) + "…"
}
