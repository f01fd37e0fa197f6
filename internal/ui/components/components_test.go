package components

import (
	"fmt"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/nick-dorsch/agenda/internal/notify"
	"github.com/nick-dorsch/agenda/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecisions(t *testing.T) {
	c := NewDecisions(80)
	c.Title = "Today"

	c.Add(Decision{Title: "task1", Outcome: models.OutcomeCompleted}, 5)
	c.Add(Decision{Title: "task2", Outcome: models.OutcomeNotDone}, 5)

	view := c.View()
	for _, want := range []string{"Today", "Done", "Not done", "✓ task1", "✗ task2"} {
		assert.Contains(t, view, want)
	}
}

func TestDecisionsRedecide(t *testing.T) {
	c := NewDecisions(80)
	c.Add(Decision{Title: "task1", Outcome: models.OutcomeCompleted}, 5)
	c.Add(Decision{Title: "task1", Outcome: models.OutcomeNotDone}, 5)

	assert.Empty(t, c.Done, "task1 leaves the done box")
	assert.Len(t, c.NotDone, 1)
}

func TestDecisionsLimit(t *testing.T) {
	c := NewDecisions(40)
	for i := 0; i < 5; i++ {
		c.Add(Decision{Title: fmt.Sprintf("task%d", i), Outcome: models.OutcomeCompleted}, 3)
	}
	require.Len(t, c.Done, 3)
	assert.Equal(t, "task2", c.Done[0].Title, "oldest kept entry")
}

func TestDecisionsEmptyState(t *testing.T) {
	c := NewDecisions(80)
	assert.Contains(t, c.View(), "No decisions yet")

	c.Add(Decision{Title: "task1", Outcome: models.OutcomeCompleted}, 5)
	assert.NotContains(t, c.View(), "Not done", "no not done box when empty")
}

func TestDecisionsWidth(t *testing.T) {
	width := 20
	c := NewDecisions(width)
	c.Add(Decision{Title: "a rather long task title that wraps", Outcome: models.OutcomeCompleted}, 5)

	for _, line := range strings.Split(c.View(), "\n") {
		if line == "" {
			continue
		}
		assert.LessOrEqual(t, lipgloss.Width(line), width, "line too wide: %q", line)
	}
}

func TestToasts(t *testing.T) {
	o := NewToasts(80, 5)
	assert.Empty(t, o.View())

	o.Append(
		notify.Message{Kind: notify.KindSuccess, Text: "2 tasks rescheduled"},
		notify.Message{Kind: notify.KindError, Text: "1 task failed: B"},
	)

	view := o.View()
	assert.Contains(t, view, "✓ 2 tasks rescheduled")
	assert.Contains(t, view, "✗ 1 task failed: B")
}

func TestToastsScrollbar(t *testing.T) {
	o := NewToasts(30, 3)
	for i := 0; i < 10; i++ {
		o.Append(notify.Message{Kind: notify.KindSuccess, Text: fmt.Sprintf("toast %d", i)})
	}

	view := o.View()
	assert.Contains(t, view, "┃", "scrollbar thumb")
	assert.Contains(t, view, "│", "scrollbar track")
	assert.Contains(t, view, "toast 9", "newest toast visible")
}
