package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/nick-dorsch/agenda/pkg/models"
)

var (
	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("42")).
			Padding(0, 1)

	notDoneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)

	subTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	placeholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true).
				Padding(0, 1)
)

// Decision is one done / not done click made during a daily close.
type Decision struct {
	Title   string
	Outcome models.Outcome
}

// Decisions lists the decisions of a daily close in two boxes.
type Decisions struct {
	Done    []Decision
	NotDone []Decision
	Width   int
	Title   string
}

func NewDecisions(width int) *Decisions {
	return &Decisions{
		Done:    make([]Decision, 0),
		NotDone: make([]Decision, 0),
		Width:   width,
		Title:   "Decisions",
	}
}

// Add records d, keeping at most limit entries per box. A task decided
// again moves to the box of its latest outcome.
func (c *Decisions) Add(d Decision, limit int) {
	c.Done = without(c.Done, d.Title)
	c.NotDone = without(c.NotDone, d.Title)

	if d.Outcome == models.OutcomeNotDone {
		c.NotDone = appendWithLimit(c.NotDone, d, limit)
	} else {
		c.Done = appendWithLimit(c.Done, d, limit)
	}
}

func without(list []Decision, title string) []Decision {
	out := list[:0]
	for _, d := range list {
		if d.Title != title {
			out = append(out, d)
		}
	}
	return out
}

func appendWithLimit(list []Decision, d Decision, limit int) []Decision {
	list = append(list, d)
	if limit > 0 && len(list) > limit {
		return list[len(list)-limit:]
	}
	return list
}

func (c *Decisions) View() string {
	var boxes []string

	if len(c.Done) > 0 {
		boxes = append(boxes, c.renderBox("Done", c.Done, doneStyle, "✓"))
	}

	if len(c.NotDone) > 0 {
		boxes = append(boxes, c.renderBox("Not done", c.NotDone, notDoneStyle, "✗"))
	}

	var content string
	if len(boxes) == 0 {
		content = placeholderStyle.Render("No decisions yet")
	} else {
		content = strings.Join(boxes, "\n")
	}

	if c.Title != "" {
		return headerStyle.Render(c.Title) + "\n" + content
	}
	return content
}

func (c *Decisions) renderBox(title string, items []Decision, style lipgloss.Style, icon string) string {
	subTitle := subTitleStyle.Foreground(style.GetForeground()).Render(title)

	nameWidth := max(c.Width-6, 0)

	var lines []string
	for _, d := range items {
		wrapped := lipgloss.NewStyle().Width(nameWidth).Render(d.Title)
		for i, line := range strings.Split(wrapped, "\n") {
			if i == 0 {
				lines = append(lines, fmt.Sprintf("%s %s", icon, line))
			} else {
				lines = append(lines, fmt.Sprintf("  %s", line))
			}
		}
	}

	return style.Width(max(c.Width-2, 0)).Render(subTitle + "\n" + strings.Join(lines, "\n"))
}
