package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/justapithecus/lode/lode"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/skylink/cli/config"
	"github.com/justapithecus/skylink/cli/reader"
	"github.com/justapithecus/skylink/cli/render"
	"github.com/justapithecus/skylink/cli/tui"
	"github.com/justapithecus/skylink/journal"
	"github.com/justapithecus/skylink/types"
)

const defaultEventLimit = 50

// EventsCommand returns the events command.
func EventsCommand() *cli.Command {
	flags := []cli.Flag{
		ConfigFlag,
		&cli.StringFlag{
			Name:  "system",
			Usage: "Only events from this engine, as sysid-compid (e.g. 1-1)",
		},
		&cli.StringFlag{
			Name:  "day",
			Usage: "Only events closed on this UTC day (YYYY-MM-DD)",
		},
		&cli.StringFlag{
			Name:  "kind",
			Usage: "Only events of this kind (read, write, create, rename, ...)",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Show the most recent N events (0 = all)",
			Value: defaultEventLimit,
		},
		&cli.BoolFlag{
			Name:  "summary",
			Usage: "Show counts by kind and outcome instead of events",
		},
	}
	flags = append(flags, journalFlags()...)

	return &cli.Command{
		Name:  "events",
		Usage: "Query transfer events from the journal",
		Description: `Examples:
  skylink events --journal-path ./journal --day 2026-10-17
  skylink events --journal-backend s3 --journal-path my-bucket/skylink --kind write --summary`,
		Flags:  append(flags, ReadOnlyFlags()...),
		Action: eventsAction,
	}
}

func eventsAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	applyJournalFlags(c, &cfg.Journal)
	if cfg.Journal.Path == "" {
		return cli.Exit("--journal-path (or journal.path in config) is required", exitFailure)
	}

	filter, err := eventFilter(c)
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}
	if c.Bool("tui") && c.Bool("summary") {
		return cli.Exit("--tui and --summary cannot be combined", exitFailure)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	ds, err := openJournalDataset(c.Context, cfg.Journal)
	if err != nil {
		return cli.Exit(fmt.Sprintf("open journal: %v", err), exitFailure)
	}
	events, err := journal.QueryEvents(c.Context, ds, filter)
	if err != nil {
		return cli.Exit(fmt.Sprintf("query journal: %v", err), exitFailure)
	}
	list := reader.EventList(events)

	switch {
	case c.Bool("summary"):
		return r.Render(list.Summarize())
	case c.Bool("tui"):
		return r.RenderTUI(tui.ViewEvents, list)
	}
	return r.Render(list)
}

func eventFilter(c *cli.Context) (journal.Filter, error) {
	f := journal.Filter{
		System: c.String("system"),
		Day:    c.String("day"),
		Kind:   types.TransferKind(c.String("kind")),
		Limit:  c.Int("limit"),
	}
	if f.Day != "" {
		if _, err := time.Parse("2006-01-02", f.Day); err != nil {
			return f, fmt.Errorf("--day %q: expected YYYY-MM-DD", f.Day)
		}
	}
	if f.Kind != "" && !f.Kind.IsValid() {
		return f, fmt.Errorf("--kind %q: unknown transfer kind", f.Kind)
	}
	if f.Limit < 0 {
		return f, fmt.Errorf("--limit must be >= 0, got %d", f.Limit)
	}
	return f, nil
}

// openJournalDataset opens the journal for reading.
func openJournalDataset(ctx context.Context, jc config.JournalConfig) (lode.Dataset, error) {
	cfg := journal.Config{Dataset: jc.Dataset}
	switch jc.Backend {
	case "", "fs":
		return journal.NewReadDatasetFS(cfg, jc.Path)
	case "s3":
		return journal.NewReadDatasetS3(ctx, cfg, s3Config(jc))
	default:
		return nil, fmt.Errorf("unknown journal backend %q", jc.Backend)
	}
}
