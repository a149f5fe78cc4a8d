// Package tui renders today's board as an interactive terminal view.
package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/evanschultz/workboard/internal/adapters/server/common"
	"github.com/evanschultz/workboard/internal/domain"
	"github.com/evanschultz/workboard/internal/render"
)

// Service is the slice of the board surface the view drives.
type Service interface {
	Today(context.Context) (common.DayView, error)
	AddTask(context.Context, common.AddTaskRequest) (common.TaskView, error)
	EditTask(context.Context, common.EditTaskRequest) (common.TaskView, error)
	MoveTask(context.Context, common.MoveTaskRequest) (common.TaskView, error)
	SetPriority(context.Context, common.PriorityRequest) (common.TaskView, error)
	PositionTask(context.Context, common.PositionRequest) (common.TaskView, error)
	DeleteTask(context.Context, string) (common.TaskView, error)
	LastActivity(context.Context) (common.ActivityView, error)
}

// inputMode represents a selectable mode.
type inputMode int

const (
	modeNone inputMode = iota
	modeAddTask
	modeEditTask
	modeTaskInfo
	modeConfirmDelete
)

// priorityCycle is the order the priority key walks through.
var priorityCycle = []domain.Priority{domain.PriorityNone, domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh}

// Model is the bubbletea model for today's board.
type Model struct {
	svc     Service
	changes <-chan struct{}
	person  string

	keys  keyMap
	help  help.Model
	input textinput.Model
	notes *render.Markdown

	day      common.DayView
	activity string
	status   string
	err      error

	mode           inputMode
	selectedColumn int
	selectedTask   int
	pendingFocusID string
	pendingDelete  string
	confirmDelete  bool

	ready  bool
	width  int
	height int
}

// loadedMsg carries a refreshed day.
type loadedMsg struct {
	day      common.DayView
	activity string
	err      error
}

// actionMsg reports the outcome of one mutation.
type actionMsg struct {
	status  string
	focusID string
	err     error
}

// changedMsg signals a board change from the session.
type changedMsg struct{}

// changesClosedMsg signals the change channel was closed.
type changesClosedMsg struct{}

// NewModel constructs a new value for this package.
func NewModel(svc Service, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	in := textinput.New()
	in.CharLimit = 200
	m := Model{
		svc:           svc,
		keys:          newKeyMap(),
		help:          h,
		input:         in,
		notes:         &render.Markdown{},
		status:        "loading...",
		confirmDelete: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Init handles init.
func (m Model) Init() tea.Cmd {
	if m.changes == nil {
		return m.loadData
	}
	return tea.Batch(m.loadData, m.waitForChange)
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.day = msg.day
		m.activity = msg.activity
		if m.pendingFocusID != "" {
			m.focusTaskByID(m.pendingFocusID)
			m.pendingFocusID = ""
		}
		m.clampSelections()
		if m.status == "" || m.status == "loading..." {
			m.status = "ready"
		}
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.status = errorStatus(msg.err)
			return m, m.loadData
		}
		if msg.status != "" {
			m.status = msg.status
		}
		m.pendingFocusID = msg.focusID
		return m, m.loadData

	case changedMsg:
		return m, tea.Batch(m.loadData, m.waitForChange)

	case changesClosedMsg:
		m.changes = nil
		return m, nil

	case tea.KeyPressMsg:
		if m.mode != modeNone {
			return m.handleInputModeKey(msg)
		}
		return m.handleNormalModeKey(msg)

	default:
		if m.mode == modeAddTask || m.mode == modeEditTask {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		return m, nil
	}
}

// loadData reads today's column set and the last activity.
func (m Model) loadData() tea.Msg {
	ctx := context.Background()
	day, err := m.svc.Today(ctx)
	if err != nil {
		return loadedMsg{err: err}
	}
	activity := ""
	last, err := m.svc.LastActivity(ctx)
	switch {
	case err == nil:
		activity = last.Message
	case !errors.Is(err, common.ErrNotFound):
		return loadedMsg{err: err}
	}
	return loadedMsg{day: day, activity: activity}
}

// waitForChange blocks until the session reports a change.
func (m Model) waitForChange() tea.Msg {
	if _, ok := <-m.changes; !ok {
		return changesClosedMsg{}
	}
	return changedMsg{}
}

// handleNormalModeKey handles normal mode key.
func (m Model) handleNormalModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case msg.String() == "esc":
		m.help.ShowAll = false
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.status = "reloading..."
		return m, m.loadData
	case key.Matches(msg, m.keys.moveLeft):
		if m.selectedColumn > 0 {
			m.selectedColumn--
			m.selectedTask = 0
		}
		return m, nil
	case key.Matches(msg, m.keys.moveRight):
		if m.selectedColumn < len(m.day.Columns)-1 {
			m.selectedColumn++
			m.selectedTask = 0
		}
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		if tasks := m.currentColumnTasks(); m.selectedTask < len(tasks)-1 {
			m.selectedTask++
		}
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		if m.selectedTask > 0 {
			m.selectedTask--
		}
		return m, nil
	case key.Matches(msg, m.keys.addTask):
		m.help.ShowAll = false
		return m, m.startInput(modeAddTask, "new task: ", "")
	}

	task, ok := m.selectedTaskInCurrentColumn()
	if !ok {
		if isTaskKey(m.keys, msg) {
			m.status = "no task selected"
		}
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.editTask):
		return m, m.startInput(modeEditTask, "title: ", task.Title)
	case key.Matches(msg, m.keys.taskInfo):
		m.mode = modeTaskInfo
		return m, nil
	case key.Matches(msg, m.keys.deleteTask):
		if !m.confirmDelete {
			return m, m.deleteTaskCmd(task)
		}
		m.mode = modeConfirmDelete
		m.pendingDelete = task.ID
		m.status = fmt.Sprintf("delete %q? (y/n)", truncate(task.Title, 32))
		return m, nil
	case key.Matches(msg, m.keys.moveTaskLeft):
		return m, m.shiftColumnCmd(task, -1)
	case key.Matches(msg, m.keys.moveTaskRight):
		return m, m.shiftColumnCmd(task, 1)
	case key.Matches(msg, m.keys.moveTaskUp):
		return m, m.shiftRowCmd(task, -1)
	case key.Matches(msg, m.keys.moveTaskDown):
		return m, m.shiftRowCmd(task, 1)
	case key.Matches(msg, m.keys.priority):
		return m, m.cyclePriorityCmd(task)
	}
	return m, nil
}

// handleInputModeKey handles keys while a prompt or panel is open.
func (m Model) handleInputModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeTaskInfo:
		if msg.String() == "esc" || key.Matches(msg, m.keys.taskInfo) || key.Matches(msg, m.keys.quit) {
			m.mode = modeNone
		}
		return m, nil
	case modeConfirmDelete:
		id := m.pendingDelete
		m.mode = modeNone
		m.pendingDelete = ""
		switch msg.String() {
		case "y", "Y", "enter":
			task, ok := m.taskByID(id)
			if !ok {
				m.status = "task not found"
				return m, nil
			}
			return m, m.deleteTaskCmd(task)
		default:
			m.status = "delete cancelled"
			return m, nil
		}
	}

	switch msg.String() {
	case "esc":
		m.closeInput()
		m.status = "cancelled"
		return m, nil
	case "enter":
		value := strings.TrimSpace(m.input.Value())
		mode := m.mode
		m.closeInput()
		if value == "" {
			m.status = "title required"
			return m, nil
		}
		if mode == modeAddTask {
			return m, m.addTaskCmd(value)
		}
		task, ok := m.selectedTaskInCurrentColumn()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		return m, m.editTitleCmd(task, value)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// startInput opens the single-line prompt.
func (m *Model) startInput(mode inputMode, prompt, value string) tea.Cmd {
	m.mode = mode
	m.input.Prompt = prompt
	m.input.Placeholder = "title"
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

// closeInput resets the prompt.
func (m *Model) closeInput() {
	m.mode = modeNone
	m.input.Blur()
	m.input.SetValue("")
}

func (m Model) addTaskCmd(title string) tea.Cmd {
	svc, person := m.svc, m.person
	return func() tea.Msg {
		task, err := svc.AddTask(context.Background(), common.AddTaskRequest{Title: title, Person: person})
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "added " + task.Title, focusID: task.ID}
	}
}

func (m Model) editTitleCmd(task common.TaskView, title string) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		updated, err := svc.EditTask(context.Background(), common.EditTaskRequest{
			ID:     task.ID,
			Title:  title,
			Person: task.Person,
			Notes:  task.Notes,
		})
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "renamed " + updated.Title, focusID: updated.ID}
	}
}

func (m Model) deleteTaskCmd(task common.TaskView) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		if _, err := svc.DeleteTask(context.Background(), task.ID); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "deleted " + task.Title}
	}
}

// shiftColumnCmd moves task to the neighbouring status column.
func (m *Model) shiftColumnCmd(task common.TaskView, delta int) tea.Cmd {
	target := m.selectedColumn + delta
	if target < 0 || target >= len(m.day.Columns) {
		m.status = "no column there"
		return nil
	}
	m.selectedColumn = target
	status := m.day.Columns[target].Status
	svc := m.svc
	return func() tea.Msg {
		moved, err := svc.MoveTask(context.Background(), common.MoveTaskRequest{ID: task.ID, Status: status})
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "moved to " + moved.StatusLabel, focusID: moved.ID}
	}
}

// shiftRowCmd swaps task with its neighbour in the same column.
func (m *Model) shiftRowCmd(task common.TaskView, delta int) tea.Cmd {
	tasks := m.currentColumnTasks()
	index := m.selectedTask + delta
	if index < 0 || index >= len(tasks) {
		return nil
	}
	status := m.day.Columns[m.selectedColumn].Status
	svc := m.svc
	return func() tea.Msg {
		placed, err := svc.PositionTask(context.Background(), common.PositionRequest{ID: task.ID, Status: status, Index: &index})
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "reordered " + placed.Title, focusID: placed.ID}
	}
}

func (m Model) cyclePriorityCmd(task common.TaskView) tea.Cmd {
	next := nextPriority(domain.Priority(task.Priority))
	svc := m.svc
	return func() tea.Msg {
		updated, err := svc.SetPriority(context.Background(), common.PriorityRequest{ID: task.ID, Priority: string(next)})
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "priority " + updated.Priority, focusID: updated.ID}
	}
}

// nextPriority returns the priority after current in the cycle.
func nextPriority(current domain.Priority) domain.Priority {
	idx := slices.Index(priorityCycle, current)
	return priorityCycle[(idx+1)%len(priorityCycle)]
}

// isTaskKey reports whether msg needs a selected task.
func isTaskKey(k keyMap, msg tea.KeyPressMsg) bool {
	return key.Matches(msg, k.editTask, k.taskInfo, k.deleteTask, k.moveTaskLeft, k.moveTaskRight, k.moveTaskUp, k.moveTaskDown, k.priority)
}

// errorStatus turns a board error into a status line.
func errorStatus(err error) string {
	switch {
	case errors.Is(err, common.ErrReadOnly):
		return "earlier days are read only"
	case errors.Is(err, common.ErrNotFound):
		return "task no longer exists"
	case errors.Is(err, common.ErrUnavailable):
		return "board unavailable"
	default:
		return "error: " + err.Error()
	}
}

func (m Model) currentColumnTasks() []common.TaskView {
	if m.selectedColumn < 0 || m.selectedColumn >= len(m.day.Columns) {
		return nil
	}
	return m.day.Columns[m.selectedColumn].Tasks
}

func (m Model) selectedTaskInCurrentColumn() (common.TaskView, bool) {
	tasks := m.currentColumnTasks()
	if m.selectedTask < 0 || m.selectedTask >= len(tasks) {
		return common.TaskView{}, false
	}
	return tasks[m.selectedTask], true
}

func (m Model) taskByID(id string) (common.TaskView, bool) {
	for _, column := range m.day.Columns {
		for _, task := range column.Tasks {
			if task.ID == id {
				return task, true
			}
		}
	}
	return common.TaskView{}, false
}

// focusTaskByID selects id wherever it now lives.
func (m *Model) focusTaskByID(id string) {
	for colIdx, column := range m.day.Columns {
		for taskIdx, task := range column.Tasks {
			if task.ID == id {
				m.selectedColumn = colIdx
				m.selectedTask = taskIdx
				return
			}
		}
	}
}

func (m *Model) clampSelections() {
	m.selectedColumn = clamp(m.selectedColumn, 0, len(m.day.Columns)-1)
	m.selectedTask = clamp(m.selectedTask, 0, len(m.currentColumnTasks())-1)
}

func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	return min(max(v, minV), maxV)
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	if limit == 1 {
		return string(rs[:1])
	}
	return string(rs[:limit-1]) + "…"
}
