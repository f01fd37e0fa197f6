package ui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nick-dorsch/agenda/internal/agenda"
	"github.com/nick-dorsch/agenda/internal/dailyclose"
	"github.com/nick-dorsch/agenda/internal/notify"
	"github.com/nick-dorsch/agenda/internal/store"
	"github.com/nick-dorsch/agenda/internal/reschedule"
	"github.com/nick-dorsch/agenda/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC)

func newCloseDayModel(t *testing.T, titles ...string) (*CloseDayModel, *agenda.App) {
	t.Helper()
	repo := store.NewMemoryRepository()
	repo.SetClock(func() time.Time { return testNow })
	st := store.New(repo, "alice")
	t.Cleanup(st.Close)

	sink := &notify.Recorder{}
	app := agenda.New(st,
		agenda.WithSink(sink),
		agenda.WithClock(func() time.Time { return testNow }),
	)

	ctx := context.Background()
	for i, title := range titles {
		_, err := app.Create(ctx, agenda.NewTask{Title: title, Date: "2024-03-15", Order: i + 1})
		require.NoError(t, err)
	}
	sink.Drain()

	m := NewCloseDayModel(ctx, app, sink, "2024-03-15")
	drive(t, m, m.Init())
	return m, app
}

// drive runs cmd and feeds its messages back into m until no command is
// left or the model asks to quit.
func drive(t *testing.T, m *CloseDayModel, cmd tea.Cmd) {
	t.Helper()
	for cmd != nil {
		msg := cmd()
		if _, ok := msg.(tea.QuitMsg); ok {
			return
		}
		_, cmd = m.Update(msg)
	}
}

func press(t *testing.T, m *CloseDayModel, key string) {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	_, cmd := m.Update(msg)
	drive(t, m, cmd)
}

func lastToast(m *CloseDayModel) notify.Message {
	msgs := m.toastView.Messages()
	if len(msgs) == 0 {
		return notify.Message{}
	}
	return msgs[len(msgs)-1]
}

func TestCloseDayReview(t *testing.T) {
	m, _ := newCloseDayModel(t, "write report", "call bank")

	require.NotNil(t, m.session)
	assert.Equal(t, dailyclose.StepReview, m.session.Step())
	assert.Equal(t, 2, m.stats.Total)
	assert.Equal(t, 2, m.stats.Pending)
	assert.Contains(t, m.View(), "Close day 2024-03-15")

	press(t, m, "enter")
	require.Equal(t, dailyclose.StepDetail, m.session.Step())
	require.Len(t, m.tasks, 2)
	assert.Equal(t, "write report", m.tasks[0].Title)
}

func TestCloseDayGate(t *testing.T) {
	m, app := newCloseDayModel(t, "write report")
	press(t, m, "enter")

	press(t, m, "r")
	press(t, m, "enter")
	assert.Equal(t, notify.KindError, lastToast(m).Kind)
	assert.Equal(t, models.StatusPending, m.tasks[0].Status)
	assert.Nil(t, m.picking)

	press(t, m, "d")
	require.Equal(t, models.StatusCompleted, m.tasks[0].Status)
	assert.Len(t, m.decisions.Done, 1)

	press(t, m, "r")
	press(t, m, "enter")
	require.Equal(t, models.StatusForwardedDate, m.tasks[0].Status)
	assert.Equal(t, "Task rescheduled to 2024-03-16", lastToast(m).Text)

	next, err := app.Tasks(context.Background(), "2024-03-16")
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, "write report", next[0].Title)
}

func TestCloseDayPickerChangesDate(t *testing.T) {
	m, app := newCloseDayModel(t, "write report")
	press(t, m, "enter")
	press(t, m, "n")

	press(t, m, "r")
	require.NotNil(t, m.picking)
	assert.Equal(t, reschedule.StateDatePicked, m.picking.State())
	assert.Equal(t, models.Date("2024-03-16"), m.picking.Date())

	press(t, m, "]")
	press(t, m, "]")
	press(t, m, "[")
	assert.Equal(t, models.Date("2024-03-17"), m.picking.Date())
	assert.Contains(t, m.View(), `reschedule "write report" to 2024-03-17`)

	// Picker keys do not move the session.
	assert.Equal(t, dailyclose.StepDetail, m.session.Step())

	press(t, m, "enter")
	assert.Nil(t, m.picking)
	assert.Equal(t, models.StatusForwardedDate, m.tasks[0].Status)
	assert.Equal(t, "Task rescheduled to 2024-03-17", lastToast(m).Text)

	later, err := app.Tasks(context.Background(), "2024-03-17")
	require.NoError(t, err)
	assert.Len(t, later, 1)
}

func TestCloseDayPickerCancel(t *testing.T) {
	m, app := newCloseDayModel(t, "write report")
	press(t, m, "enter")
	press(t, m, "d")

	press(t, m, "r")
	require.NotNil(t, m.picking)
	press(t, m, "esc")
	assert.Nil(t, m.picking)
	assert.Equal(t, dailyclose.StepDetail, m.session.Step(), "esc closes the picker, not the step")
	assert.Equal(t, models.StatusCompleted, m.tasks[0].Status)

	next, err := app.Tasks(context.Background(), "2024-03-16")
	require.NoError(t, err)
	assert.Empty(t, next)
}

func TestCloseDayPickerRefusesForwardedTask(t *testing.T) {
	m, _ := newCloseDayModel(t, "write report")
	press(t, m, "enter")
	press(t, m, "d")
	press(t, m, "r")
	press(t, m, "enter")
	require.Equal(t, models.StatusForwardedDate, m.tasks[0].Status)

	press(t, m, "r")
	assert.Nil(t, m.picking)
	assert.ErrorIs(t, m.err, reschedule.ErrAlreadyForwarded)
}

func TestCloseDayConcludeAndFinish(t *testing.T) {
	m, _ := newCloseDayModel(t, "a", "b")
	press(t, m, "enter")

	press(t, m, "j")
	require.Equal(t, 1, m.cursor)
	press(t, m, "n")
	press(t, m, "c")
	require.True(t, m.tasks[1].IsConcluded)

	press(t, m, "k")
	press(t, m, "d")

	press(t, m, "f")
	require.True(t, m.Finished())
	assert.Equal(t, 1, m.Stats().Completed)
	assert.Equal(t, 1, m.Stats().NotDone)
	assert.True(t, strings.HasPrefix(lastToast(m).Text, "Day 2024-03-15 closed"), "unexpected final toast: %+v", lastToast(m))
}

func TestCloseDayBackKeepsGate(t *testing.T) {
	m, _ := newCloseDayModel(t, "a")
	press(t, m, "enter")
	press(t, m, "d")

	press(t, m, "esc")
	require.Equal(t, dailyclose.StepReview, m.session.Step())
	assert.Equal(t, 1, m.stats.Completed)

	press(t, m, "enter")
	assert.True(t, m.session.Rows(m.tasks[0].ID).FollowUp, "follow-up row should stay open after going back")
}

func TestCloseDayChangeDate(t *testing.T) {
	m, _ := newCloseDayModel(t, "a")
	press(t, m, "enter")
	press(t, m, "d")
	press(t, m, "esc")

	press(t, m, "]")
	require.Equal(t, models.Date("2024-03-16"), m.date)
	assert.Equal(t, 0, m.stats.Total)

	press(t, m, "[")
	press(t, m, "enter")
	assert.False(t, m.session.Rows(m.tasks[0].ID).FollowUp, "gate should reset after switching days")
}
