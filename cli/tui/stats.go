package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/skylink/cli/reader"
)

// DefaultRefresh is how often a live stats view re-reads the status file.
const DefaultRefresh = time.Second

// StatusSource loads the current status snapshot.
type StatusSource func() (*reader.Status, error)

type refreshMsg struct {
	status *reader.Status
	err    error
}

// StatsModel shows engine counters as stat boxes. With a source it
// refreshes on a timer and on the refresh key.
type StatsModel struct {
	status   *reader.Status
	source   StatusSource
	interval time.Duration
	err      error
	width    int
	quitting bool
}

// NewStatsModel creates a stats model. source may be nil for a static view.
func NewStatsModel(status *reader.Status, source StatusSource, interval time.Duration) StatsModel {
	if interval <= 0 {
		interval = DefaultRefresh
	}
	return StatsModel{status: status, source: source, interval: interval}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return m.tick()
}

func (m StatsModel) tick() tea.Cmd {
	if m.source == nil {
		return nil
	}
	source := m.source
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		s, err := source()
		return refreshMsg{status: s, err: err}
	})
}

func (m StatsModel) refreshNow() tea.Cmd {
	if m.source == nil {
		return nil
	}
	source := m.source
	return func() tea.Msg {
		s, err := source()
		return refreshMsg{status: s, err: err}
	}
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case refreshMsg:
		m.err = msg.err
		if msg.err == nil && msg.status != nil {
			m.status = msg.status
		}
		return m, m.tick()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Refresh):
			return m, m.refreshNow()
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}
	if m.status == nil {
		return ErrorStyle.Render("no status") + "\n"
	}

	s := m.status
	e := s.Engine

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("skylink %s  %s", e.Identity, e.Transport)))
	b.WriteString("\n")
	b.WriteString(LabelStyle.Render("root"))
	b.WriteString(ValueStyle.Render(s.Root))
	b.WriteString("\n")
	b.WriteString(LabelStyle.Render("uptime"))
	b.WriteString(ValueStyle.Render(s.Uptime().String()))
	b.WriteString("\n\n")

	var requests int64
	for _, n := range e.Requests {
		requests += n
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		statBox("Requests", requests, highlightColor),
		statBox("ACK", e.Acks, successColor),
		statBox("NAK", e.Naks, errorColor),
		statBox("Bytes read", e.BytesRead, highlightColor),
		statBox("Bytes written", e.BytesWritten, highlightColor),
	))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		statBox("Sessions", e.SessionsOpened, highlightColor),
		statBox("Bursts", e.BurstsCompleted, successColor),
		statBox("Burst cancels", e.BurstsCancelled, warningColor),
		statBox("Events", s.Events.TotalEvents, highlightColor),
		statBox("Dropped", s.Events.EventsDropped, dropColor(s.Events.EventsDropped)),
	))

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render("refresh failed: " + m.err.Error()))
	}

	help := "q quit"
	if m.source != nil {
		help = fmt.Sprintf("r refresh • q quit • updated %s", s.UpdatedAt.Local().Format(time.TimeOnly))
	}
	return b.String() + "\n" + HelpStyle.Render(help)
}

func dropColor(n int64) lipgloss.Color {
	if n > 0 {
		return errorColor
	}
	return mutedColor
}

func statBox(label string, value int64, color lipgloss.Color) string {
	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)
	return StatBoxStyle.BorderForeground(color).Render(lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr))
}
