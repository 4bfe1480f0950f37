// Package tui provides Bubble Tea views for read-only skylink commands.
//
// TUI mode is opt-in (--tui) and shows the same data the command renders
// in table, json or yaml form.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor   = lipgloss.Color("#0EA5E9") // sky
	highlightColor = lipgloss.Color("#6366F1") // indigo
	successColor   = lipgloss.Color("#22C55E")
	warningColor   = lipgloss.Color("#EAB308")
	errorColor     = lipgloss.Color("#F43F5E")
	mutedColor     = lipgloss.Color("#64748B")
	textColor      = lipgloss.Color("#F8FAFC")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(10)

	ValueStyle = lipgloss.NewStyle().
			Foreground(textColor)

	SuccessStyle = lipgloss.NewStyle().Foreground(successColor)
	WarningStyle = lipgloss.NewStyle().Foreground(warningColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(errorColor)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor)

	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)

	// StatBoxStyle frames one counter; callers recolor the border.
	StatBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Width(16).
			Align(lipgloss.Center)

	StatLabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Align(lipgloss.Center)

	StatValueStyle = lipgloss.NewStyle().
			Bold(true).
			Align(lipgloss.Center)
)

// OutcomeStyle returns the style for a transfer outcome.
func OutcomeStyle(outcome string) lipgloss.Style {
	switch outcome {
	case "completed", "terminated":
		return SuccessStyle
	case "replaced", "reset":
		return WarningStyle
	case "shutdown":
		return ErrorStyle
	default:
		return ValueStyle
	}
}
