package tui

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/evanschultz/workboard/internal/adapters/server/common"
)

var (
	accent = lipgloss.Color("62")
	muted  = lipgloss.Color("241")
	dim    = lipgloss.Color("239")

	titleStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle       = lipgloss.NewStyle().Foreground(dim)
	colTitleStyle     = lipgloss.NewStyle().Bold(true).Foreground(accent)
	selectedTaskStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	subStyle          = lipgloss.NewStyle().Foreground(muted)
	carriedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("179"))
)

// View handles view.
func (m Model) View() tea.View {
	v := tea.NewView(m.viewContent())
	v.AltScreen = true
	return v
}

// viewContent returns the screen as plain text.
func (m Model) viewContent() string {
	switch {
	case m.err != nil:
		return "error: " + m.err.Error() + "\n\npress r to retry • q quit\n"
	case !m.ready:
		return "loading..."
	default:
		return m.renderBoard()
	}
}

// renderBoard lays out the header, columns, prompt and help footer.
func (m Model) renderBoard() string {
	header := titleStyle.Render("workboard") + "  Today · " + m.day.Label
	if m.day.Date != "" {
		header += statusStyle.Render("  " + m.day.Date)
	}

	sections := []string{header, m.renderColumns()}
	switch m.mode {
	case modeAddTask, modeEditTask:
		sections = append(sections, m.input.View())
	case modeTaskInfo:
		sections = append(sections, m.renderTaskInfo())
	}
	if m.activity != "" {
		sections = append(sections, subStyle.Render("last: "+m.activity))
	}
	if m.status != "" {
		sections = append(sections, statusStyle.Render(m.status))
	}
	content := strings.Join(sections, "\n")

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))
	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}
	return content + "\n" + helpLine
}

func (m Model) renderColumns() string {
	colWidth := columnWidth(m.width, len(m.day.Columns))
	base := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dim).
		Padding(0, 1).
		MarginRight(1).
		Width(colWidth)
	selected := base.BorderForeground(accent)

	views := make([]string, 0, len(m.day.Columns))
	for colIdx, column := range m.day.Columns {
		lines := []string{colTitleStyle.Render(fmt.Sprintf("%s (%d)", column.Label, len(column.Tasks)))}
		if len(column.Tasks) == 0 {
			lines = append(lines, subStyle.Render("(empty)"))
		}
		for taskIdx, task := range column.Tasks {
			title := truncate(task.Title, colWidth-4)
			if colIdx == m.selectedColumn && taskIdx == m.selectedTask {
				title = selectedTaskStyle.Render("› " + truncate(task.Title, colWidth-6))
			}
			lines = append(lines, "", title, subStyle.Render(truncate(taskSubtitle(task), colWidth-4)))
		}
		style := base
		if colIdx == m.selectedColumn {
			style = selected
		}
		views = append(views, style.Render(strings.Join(lines, "\n")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, views...)
}

// renderTaskInfo shows the selected task with its notes rendered as markdown.
func (m Model) renderTaskInfo() string {
	task, ok := m.selectedTaskInCurrentColumn()
	if !ok {
		return ""
	}
	lines := []string{
		titleStyle.Render(task.Title),
		subStyle.Render(taskSubtitle(task) + " · " + task.StatusLabel),
	}
	if task.Continued {
		lines = append(lines, carriedStyle.Render("carried over from an earlier day"))
	}
	if notes := m.notes.Render(task.Notes, max(24, m.width-8)); notes != "" {
		lines = append(lines, notes)
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))
}

func taskSubtitle(task common.TaskView) string {
	parts := []string{task.Person}
	if task.Priority != "" && task.Priority != "none" {
		parts = append(parts, task.Priority)
	}
	if task.Continued {
		parts = append(parts, "carried")
	}
	return strings.Join(parts, " · ")
}

// columnWidth splits width across count columns with a readable floor.
func columnWidth(width, count int) int {
	if count <= 0 || width <= 0 {
		return 24
	}
	return max(18, width/count-3)
}

// fitLines trims or pads content to exactly maxLines lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		lines = append(lines, make([]string, maxLines-len(lines))...)
	}
	return strings.Join(lines, "\n")
}
