package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	logoStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	dateStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).PaddingLeft(2)
	itemStyle         = lipgloss.NewStyle().PaddingLeft(2)
	selectedItemStyle = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("12")).Bold(true)
	hintStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

const logo = `
   ▄▄▄   ▄▄▄▄  ▄▄▄▄▄ ▄▄  ▄ ▄▄▄▄    ▄▄▄
  █   █ █      █     █ █ █ █   █  █   █
  █▀▀▀█ █  ▀█  █▀▀▀  █  ▀█ █   █  █▀▀▀█
  █   █  ▀▀▀▀  ▀▀▀▀▀ ▀   ▀ ▀▀▀▀   ▀   ▀
`

// menuItem pairs a subcommand name with the line shown next to it.
type menuItem struct {
	command string
	about   string
}

var menuItems = []menuItem{
	{"close-day", "review today and decide every task"},
	{"list", "tasks scheduled for today"},
	{"stats", "completion counters for today"},
	{"reconcile", "find half-finished reschedules"},
	{"web", "serve the HTTP API"},
	{"mcp", "serve the MCP tools on stdio"},
	{"init", "create .agenda in this directory"},
}

type MenuModel struct {
	today    string
	items    []menuItem
	cursor   int
	selected string
	quitting bool
}

func NewMenuModel(today string) MenuModel {
	return MenuModel{today: today, items: menuItems}
}

func (m MenuModel) Init() tea.Cmd {
	return nil
}

func (m MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch s := key.String(); s {
	case "ctrl+c", "q", "esc":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		m.cursor = max(m.cursor-1, 0)
	case "down", "j":
		m.cursor = min(m.cursor+1, len(m.items)-1)
	case "g", "home":
		m.cursor = 0
	case "G", "end":
		m.cursor = len(m.items) - 1
	case "enter":
		m.selected = m.items[m.cursor].command
		return m, tea.Quit
	default:
		// Digits jump straight to an item.
		if len(s) == 1 && s[0] >= '1' && int(s[0]-'0') <= len(m.items) {
			m.cursor = int(s[0]-'1')
			m.selected = m.items[m.cursor].command
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m MenuModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(logoStyle.Render(logo))
	b.WriteString("\n")
	if m.today != "" {
		b.WriteString(dateStyle.Render(m.today))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	width := 0
	for _, it := range m.items {
		width = max(width, len(it.command))
	}
	for i, it := range m.items {
		line := fmt.Sprintf("%d %-*s  %s", i+1, width, it.command, it.about)
		if i == m.cursor {
			b.WriteString(selectedItemStyle.Render("> " + line))
		} else {
			b.WriteString(itemStyle.Render("  " + line))
		}
		b.WriteString("\n")
	}

	b.WriteString(hintStyle.Render("\nj/k or arrows to move, 1-7 or enter to run, q to quit\n"))
	return b.String()
}

// Selected is the chosen subcommand, or "" when the menu was dismissed.
func (m MenuModel) Selected() string {
	return m.selected
}

func RunMenu(today string) (string, error) {
	final, err := tea.NewProgram(NewMenuModel(today)).Run()
	if err != nil {
		return "", err
	}
	return final.(MenuModel).Selected(), nil
}
