package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/skylink/cli/reader"
	"github.com/justapithecus/skylink/cli/render"
)

// LsCommand returns the ls command.
func LsCommand() *cli.Command {
	return &cli.Command{
		Name:      "ls",
		Usage:     "List a directory through the engine",
		ArgsUsage: "[path]",
		Description: `Pages through a list-directory exchange until the engine reports EOF.
Paths are relative to the engine root.

Examples:
  skylink ls --root /srv/flight logs
  skylink ls --remote 192.168.1.10:14555 --target-system 1`,
		Flags:  append(clientFlags(), ReadOnlyFlags()...),
		Action: lsAction,
	}
}

func lsAction(c *cli.Context) error {
	if err := rejectTUI(c); err != nil {
		return err
	}
	if c.NArg() > 1 {
		return cli.Exit("ls takes at most one path", exitFailure)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	client, closeClient, err := openClient(c)
	if err != nil {
		return err
	}
	defer closeClient()

	path := c.Args().First()
	entries, err := client.list(c.Context, path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("ls %q: %v", path, err), exitFailure)
	}
	return r.Render(reader.Listing(entries))
}
