package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/nick-dorsch/agenda/internal/notify"
)

var (
	successToastStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorToastStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	scrollbarTrackStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("236"))

	scrollbarHandleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))
)

// Toasts renders the notification history in a scrolling viewport, newest
// at the bottom.
type Toasts struct {
	viewport viewport.Model
	messages []notify.Message
	ready    bool
}

func NewToasts(width, height int) *Toasts {
	t := &Toasts{}
	t.SetSize(width, height)
	return t
}

func (t *Toasts) SetSize(width, height int) {
	vpWidth := width
	if width > 0 {
		vpWidth = width - 1
	}
	if !t.ready {
		t.viewport = viewport.New(vpWidth, height)
		t.ready = true
	} else {
		t.viewport.Width = vpWidth
		t.viewport.Height = height
	}
	t.updateContent()
}

func (t *Toasts) Append(msgs ...notify.Message) {
	if len(msgs) == 0 {
		return
	}
	t.messages = append(t.messages, msgs...)
	t.updateContent()
}

func (t *Toasts) Messages() []notify.Message {
	return t.messages
}

func (t *Toasts) updateContent() {
	lines := make([]string, 0, len(t.messages))
	for _, m := range t.messages {
		style, icon := successToastStyle, "✓"
		if m.Kind == notify.KindError {
			style, icon = errorToastStyle, "✗"
		}
		line := icon + " " + m.Text
		if w := t.viewport.Width; w > 0 {
			line = style.Width(w).Render(line)
		} else {
			line = style.Render(line)
		}
		lines = append(lines, line)
	}
	t.viewport.SetContent(strings.Join(lines, "\n"))
	t.viewport.GotoBottom()
}

func (t *Toasts) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	t.viewport, cmd = t.viewport.Update(msg)
	return cmd
}

func (t *Toasts) View() string {
	if !t.ready || len(t.messages) == 0 {
		return ""
	}

	if t.viewport.TotalLineCount() <= t.viewport.Height {
		return t.viewport.View()
	}

	h := t.viewport.Height
	handlePos := int(float64(h-1) * t.viewport.ScrollPercent())

	var sb strings.Builder
	for i := 0; i < h; i++ {
		if i == handlePos {
			sb.WriteString(scrollbarHandleStyle.Render("┃"))
		} else {
			sb.WriteString(scrollbarTrackStyle.Render("│"))
		}
		if i < h-1 {
			sb.WriteString("\n")
		}
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, t.viewport.View(), sb.String())
}
