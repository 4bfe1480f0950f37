package tui

import (
	"fmt"
	"slices"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/justapithecus/skylink/cli/reader"
)

// View types with an interactive rendering.
const (
	ViewStats  = "stats"
	ViewEvents = "events"
)

// Run starts the TUI for viewType.
//
// ViewStats accepts a *reader.Status (static) or a StatusSource (refreshed
// every DefaultRefresh). ViewEvents accepts a reader.EventList.
func Run(viewType string, data any) error {
	var model tea.Model
	switch viewType {
	case ViewStats:
		switch d := data.(type) {
		case *reader.Status:
			model = NewStatsModel(d, nil, 0)
		case StatusSource:
			status, err := d()
			if err != nil {
				return err
			}
			model = NewStatsModel(status, d, DefaultRefresh)
		default:
			return fmt.Errorf("invalid data type %T for %s view", data, viewType)
		}
	case ViewEvents:
		events, ok := data.(reader.EventList)
		if !ok {
			return fmt.Errorf("invalid data type %T for %s view", data, viewType)
		}
		model = NewEventsModel(events)
	default:
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}

	_, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

// IsTUISupported returns true if the view type has an interactive rendering.
func IsTUISupported(viewType string) bool {
	return slices.Contains(SupportedTUIViews(), viewType)
}

// SupportedTUIViews returns the view types that support TUI.
func SupportedTUIViews() []string {
	return []string{ViewStats, ViewEvents}
}
