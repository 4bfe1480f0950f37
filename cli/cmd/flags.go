// Package cmd provides CLI commands for the skylink binary.
package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/skylink/cli/config"
)

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored table headers.
	NoColorFlag = &cli.BoolFlag{
		Name:    "no-color",
		Usage:   "Disable colored output",
		EnvVars: []string{"NO_COLOR"},
	}

	// TUIFlag enables Bubble Tea interactive mode (stats, events).
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (stats, events only)",
	}

	// ConfigFlag points at a skylink.yaml file.
	ConfigFlag = &cli.PathFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to skylink.yaml",
		EnvVars: []string{"SKYLINK_CONFIG"},
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// --tui is accepted everywhere so unsupported commands can say so
// explicitly instead of failing with "flag not defined".
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{FormatFlag, NoColorFlag, TUIFlag}
}

// rejectTUI returns an exit error if --tui was given to a command without
// an interactive view.
func rejectTUI(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit(fmt.Sprintf("--tui is not supported for %s command", c.Command.Name), exitFailure)
	}
	return nil
}

// loadConfig reads --config if set. Without it the zero Config is returned.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.Path("config")
	if path == "" {
		return &config.Config{}, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, cli.Exit(err.Error(), exitFailure)
	}
	return cfg, nil
}
