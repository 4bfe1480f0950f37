package cmd

import (
	"runtime"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/skylink/cli/render"
	"github.com/justapithecus/skylink/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	GoVersion string `json:"go_version" yaml:"go_version"`
}

// VersionCommand returns the version command.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Flags: ReadOnlyFlags(),
		Action: func(c *cli.Context) error {
			if err := rejectTUI(c); err != nil {
				return err
			}
			r, err := render.NewRenderer(c)
			if err != nil {
				return err
			}
			return r.Render(VersionResponse{
				Version:   types.Version,
				Commit:    commit,
				GoVersion: runtime.Version(),
			})
		},
	}
}
