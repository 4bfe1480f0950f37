package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/skylink/cli/reader"
	"github.com/justapithecus/skylink/cli/render"
	"github.com/justapithecus/skylink/cli/tui"
)

// StatsCommand returns the stats command.
func StatsCommand() *cli.Command {
	flags := []cli.Flag{
		ConfigFlag,
		&cli.PathFlag{
			Name:  "status-file",
			Usage: "Status file written by skylink serve (default status.file from config)",
		},
	}
	return &cli.Command{
		Name:  "stats",
		Usage: "Show counters from a running engine",
		Description: `Reads the status snapshot serve writes with --status-file.
With --tui the view refreshes while the engine runs.`,
		Flags:  append(flags, ReadOnlyFlags()...),
		Action: statsAction,
	}
}

func statsAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	path := cfg.Status.File
	if c.IsSet("status-file") {
		path = c.Path("status-file")
	}
	if path == "" {
		return cli.Exit("--status-file (or status.file in config) is required", exitFailure)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		source := tui.StatusSource(func() (*reader.Status, error) {
			return reader.ReadStatus(path)
		})
		return r.RenderTUI(tui.ViewStats, source)
	}

	status, err := reader.ReadStatus(path)
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}
	return r.Render(status)
}
