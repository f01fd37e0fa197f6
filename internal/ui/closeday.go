package ui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/nick-dorsch/agenda/internal/dailyclose"
	"github.com/nick-dorsch/agenda/internal/lifecycle"
	"github.com/nick-dorsch/agenda/internal/notify"
	"github.com/nick-dorsch/agenda/internal/reschedule"
	"github.com/nick-dorsch/agenda/internal/ui/components"
	"github.com/nick-dorsch/agenda/pkg/models"
)

// SessionID is the daily close session the terminal wizard drives.
const SessionID = "tui"

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	lockedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Strikethrough(true)
	openRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// DayCloser is the part of the application the wizard needs.
type DayCloser interface {
	CloseDay(ctx context.Context, sessionID string, date models.Date) (*dailyclose.Session, lifecycle.DayStats, error)
	CloseDayTasks(ctx context.Context, sessionID string) ([]models.Task, error)
	CloseDayDecide(ctx context.Context, sessionID, taskID string, outcome models.Outcome) (models.Task, error)
	CloseDayReschedule(ctx context.Context, sessionID, taskID string, date models.Date, opts *reschedule.Options) (reschedule.Result, error)
	CloseDayConclude(ctx context.Context, sessionID, taskID string) (models.Task, error)
	CloseDayFinish(ctx context.Context, sessionID string) (lifecycle.DayStats, error)
	RescheduleDefaults() reschedule.Options
}

// sessionForwarder confirms a picked reschedule through the session gate.
type sessionForwarder struct {
	app DayCloser
}

func (f sessionForwarder) Forward(ctx context.Context, t models.Task, date models.Date, opts reschedule.Options) (reschedule.Result, error) {
	return f.app.CloseDayReschedule(ctx, SessionID, t.ID, date, &opts)
}

type reviewLoadedMsg struct {
	session *dailyclose.Session
	stats   lifecycle.DayStats
	err     error
}

type tasksLoadedMsg struct {
	tasks []models.Task
	err   error
}

type decidedMsg struct {
	task    models.Task
	outcome models.Outcome
	err     error
}

type followedUpMsg struct {
	err error
}

type finishedMsg struct {
	stats lifecycle.DayStats
	err   error
}

// CloseDayModel walks through the review and detail steps of a daily close.
type CloseDayModel struct {
	ctx     context.Context
	app     DayCloser
	toasts  *notify.Recorder
	date    models.Date
	session *dailyclose.Session

	stats  lifecycle.DayStats
	tasks  []models.Task
	cursor int

	decisions *components.Decisions
	toastView *components.Toasts

	// picking is the reschedule being set up for the selected task.
	picking *reschedule.Operation

	err      error
	finished bool
	width    int
	height   int
}

// NewCloseDayModel builds the wizard for date. toasts, when set, must be the
// sink the application notifies; its messages are shown under the task list.
func NewCloseDayModel(ctx context.Context, app DayCloser, toasts *notify.Recorder, date models.Date) *CloseDayModel {
	return &CloseDayModel{
		ctx:       ctx,
		app:       app,
		toasts:    toasts,
		date:      date,
		decisions: components.NewDecisions(40),
		toastView: components.NewToasts(80, 4),
	}
}

func (m *CloseDayModel) Init() tea.Cmd {
	return m.open(m.date)
}

func (m *CloseDayModel) open(date models.Date) tea.Cmd {
	return func() tea.Msg {
		s, stats, err := m.app.CloseDay(m.ctx, SessionID, date)
		return reviewLoadedMsg{session: s, stats: stats, err: err}
	}
}

func (m *CloseDayModel) loadTasks() tea.Cmd {
	return func() tea.Msg {
		tasks, err := m.app.CloseDayTasks(m.ctx, SessionID)
		return tasksLoadedMsg{tasks: tasks, err: err}
	}
}

func (m *CloseDayModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.decisions.Width = max(msg.Width/2, 20)
		m.toastView.SetSize(msg.Width, 4)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case reviewLoadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.session = msg.session
			m.date = msg.session.Date()
			m.stats = msg.stats
			if m.session.Step() == dailyclose.StepDetail {
				return m, m.loadTasks()
			}
		}

	case tasksLoadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.tasks = msg.tasks
			if m.cursor >= len(m.tasks) {
				m.cursor = max(len(m.tasks)-1, 0)
			}
		}

	case decidedMsg:
		m.drainToasts()
		if msg.err == nil {
			m.decisions.Add(components.Decision{Title: msg.task.Title, Outcome: msg.outcome}, 10)
		}
		return m, m.loadTasks()

	case followedUpMsg:
		m.drainToasts()
		return m, m.loadTasks()

	case finishedMsg:
		m.drainToasts()
		m.err = msg.err
		if msg.err == nil {
			m.stats = msg.stats
			m.finished = true
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m *CloseDayModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	}
	if m.session == nil {
		return m, nil
	}

	if m.session.Step() == dailyclose.StepReview {
		switch msg.String() {
		case "enter", "l", "right":
			m.session.Advance()
			return m, m.loadTasks()
		case "[":
			return m, m.open(m.date.AddDays(-1))
		case "]":
			return m, m.open(m.date.AddDays(1))
		}
		return m, nil
	}

	if m.picking != nil {
		return m.handlePickerKey(msg)
	}

	switch msg.String() {
	case "esc", "h", "left":
		m.session.Back()
		return m, m.open(m.date)
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.tasks)-1 {
			m.cursor++
		}
	case "d":
		return m, m.decide(models.OutcomeCompleted)
	case "n":
		return m, m.decide(models.OutcomeNotDone)
	case "r":
		m.startReschedule()
	case "c":
		return m, m.conclude()
	case "f":
		return m, func() tea.Msg {
			stats, err := m.app.CloseDayFinish(m.ctx, SessionID)
			return finishedMsg{stats: stats, err: err}
		}
	}
	return m, nil
}

func (m *CloseDayModel) current() (models.Task, bool) {
	if m.cursor < 0 || m.cursor >= len(m.tasks) {
		return models.Task{}, false
	}
	return m.tasks[m.cursor], true
}

func (m *CloseDayModel) decide(outcome models.Outcome) tea.Cmd {
	t, ok := m.current()
	if !ok {
		return nil
	}
	return func() tea.Msg {
		updated, err := m.app.CloseDayDecide(m.ctx, SessionID, t.ID, outcome)
		return decidedMsg{task: updated, outcome: outcome, err: err}
	}
}

// startReschedule opens the date picker on the day after the session date.
func (m *CloseDayModel) startReschedule() {
	t, ok := m.current()
	if !ok {
		return
	}
	op := reschedule.NewOperation(t, m.app.RescheduleDefaults())
	if err := op.PickDate(m.date.AddDays(1)); err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.picking = op
}

func (m *CloseDayModel) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	op := m.picking
	switch msg.String() {
	case "[":
		if err := op.PickDate(op.Date().AddDays(-1)); err != nil {
			m.err = err
		}
	case "]":
		if err := op.PickDate(op.Date().AddDays(1)); err != nil {
			m.err = err
		}
	case "esc":
		if err := op.Cancel(); err != nil {
			m.err = err
		}
		m.picking = nil
	case "enter":
		m.picking = nil
		return m, func() tea.Msg {
			_, err := op.Confirm(m.ctx, sessionForwarder{app: m.app})
			return followedUpMsg{err: err}
		}
	}
	return m, nil
}

func (m *CloseDayModel) conclude() tea.Cmd {
	t, ok := m.current()
	if !ok {
		return nil
	}
	return func() tea.Msg {
		_, err := m.app.CloseDayConclude(m.ctx, SessionID, t.ID)
		return followedUpMsg{err: err}
	}
}

func (m *CloseDayModel) drainToasts() {
	if m.toasts != nil {
		m.toastView.Append(m.toasts.Drain()...)
	}
}

func (m *CloseDayModel) Finished() bool { return m.finished }

func (m *CloseDayModel) Stats() lifecycle.DayStats { return m.stats }

func (m *CloseDayModel) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(fmt.Sprintf("Close day %s", m.date)))
	s.WriteString("\n\n")

	if m.err != nil {
		s.WriteString(errorStyle.Render(m.err.Error()))
		s.WriteString("\n\n")
	}

	if m.session == nil {
		s.WriteString(mutedStyle.Render("loading..."))
		return s.String()
	}

	if m.session.Step() == dailyclose.StepReview {
		s.WriteString(m.reviewView())
	} else {
		s.WriteString(m.detailView())
	}

	if toasts := m.toastView.View(); toasts != "" {
		s.WriteString("\n")
		s.WriteString(toasts)
		s.WriteString("\n")
	}
	return s.String()
}

func (m *CloseDayModel) reviewView() string {
	st := m.stats
	var s strings.Builder
	fmt.Fprintf(&s, "  total      %d\n", st.Total)
	fmt.Fprintf(&s, "  completed  %d\n", st.Completed)
	fmt.Fprintf(&s, "  not done   %d\n", st.NotDone)
	fmt.Fprintf(&s, "  forwarded  %d\n", st.Forwarded)
	fmt.Fprintf(&s, "  pending    %d\n", st.Pending)
	fmt.Fprintf(&s, "  rate       %.0f%%\n", st.CompletionRate*100)
	s.WriteString("\n")
	s.WriteString(mutedStyle.Render("(enter to review tasks, [ / ] to change day, q to quit)"))
	s.WriteString("\n")
	return s.String()
}

func (m *CloseDayModel) detailView() string {
	var s strings.Builder

	if len(m.tasks) == 0 {
		s.WriteString(mutedStyle.Render("  no tasks on this day"))
		s.WriteString("\n")
	}

	for i, t := range m.tasks {
		prefix := "  "
		if i == m.cursor {
			prefix = "> "
		}
		line := fmt.Sprintf("%s%-16s %s", prefix, t.Status, t.Title)
		switch {
		case t.IsConcluded:
			line = lockedStyle.Render(line)
		case m.session.Rows(t.ID).FollowUp:
			line = openRowStyle.Render(line + "  [r]eschedule [c]onclude")
		case i == m.cursor:
			line = selectedItemStyle.Render(line)
		}
		s.WriteString(line)
		s.WriteString("\n")
	}

	if m.picking != nil {
		s.WriteString("\n")
		s.WriteString(openRowStyle.Render(fmt.Sprintf("  reschedule %q to %s", m.picking.Task().Title, m.picking.Date())))
		s.WriteString("\n")
		s.WriteString(mutedStyle.Render("  ([ / ] change date, enter confirm, esc cancel)"))
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(m.decisions.View())
	s.WriteString("\n\n")
	s.WriteString(mutedStyle.Render("(d done, n not done, r reschedule, c conclude, f finish, esc back)"))
	s.WriteString("\n")
	return s.String()
}

// RunCloseDay runs the wizard until the day is finished or the user quits.
func RunCloseDay(ctx context.Context, app DayCloser, toasts *notify.Recorder, date models.Date) (lifecycle.DayStats, bool, error) {
	m := NewCloseDayModel(ctx, app, toasts, date)
	finalModel, err := tea.NewProgram(m).Run()
	if err != nil {
		return lifecycle.DayStats{}, false, err
	}
	final := finalModel.(*CloseDayModel)
	return final.Stats(), final.Finished(), nil
}
