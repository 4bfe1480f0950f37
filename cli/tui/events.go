package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/skylink/cli/reader"
)

var eventColumnWidths = []int{19, 11, 36, 10, 9, 9, 9}

// EventsModel shows journaled transfer events in a scrollable table.
type EventsModel struct {
	events   reader.EventList
	table    table.Model
	quitting bool
}

// NewEventsModel creates an events model.
func NewEventsModel(events reader.EventList) EventsModel {
	header := events.Header()
	columns := make([]table.Column, len(header))
	for i, title := range header {
		columns[i] = table.Column{Title: title, Width: eventColumnWidths[i]}
	}

	src := events.Rows()
	rows := make([]table.Row, len(src))
	for i, r := range src {
		rows[i] = table.Row(r)
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(min(len(rows)+1, 20)),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(mutedColor).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(primaryColor)
	t.SetStyles(styles)

	return EventsModel{events: events, table: t}
}

// Init implements tea.Model.
func (m EventsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m EventsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if h := msg.Height - 6; h > 3 {
			m.table.SetHeight(h)
		}
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m EventsModel) View() string {
	if m.quitting {
		return ""
	}

	title := TitleStyle.Render(fmt.Sprintf("Transfer events (%d)", len(m.events)))
	footer := HelpStyle.Render("↑/↓ scroll • q quit")
	if sel := m.table.Cursor(); sel >= 0 && sel < len(m.events) {
		e := m.events[sel]
		footer = OutcomeStyle(string(e.Outcome)).Render(fmt.Sprintf("%s %s  %d ms  id %s", e.Kind, e.Outcome, e.DurationMs, e.EventID)) +
			"\n" + footer
	}
	return title + "\n" + BoxStyle.Render(m.table.View()) + "\n" + footer
}
