// Package main provides the skylink CLI entrypoint.
//
// Usage:
//
//	skylink <command> [options]
//
// serve runs the file-transfer engine; every other command is read-only.
//
// Exit codes:
//   - 0: success
//   - 1: bad flags or config, or a failed request
//   - 2: link failure
//   - 3: events not delivered at shutdown
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/skylink/cli/cmd"
	"github.com/justapithecus/skylink/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "skylink",
		Usage:          "File-transfer engine for MAVLink-style links",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.ServeCommand(),
			cmd.LsCommand(),
			cmd.CRCCommand(),
			cmd.StatsCommand(),
			cmd.EventsCommand(),
			cmd.PortsCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already exited for cli.ExitCoder errors.
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes from cli.Exit.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	os.Exit(reportExit(os.Stderr, err))
}

// reportExit prints err to w and returns the process exit code.
// cli.Exit("", N) prints nothing.
func reportExit(w io.Writer, err error) int {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			_, _ = fmt.Fprintln(w, msg)
		}
		return code
	}

	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	return 1
}
