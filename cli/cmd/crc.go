package cmd

import (
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/skylink/cli/render"
	"github.com/justapithecus/skylink/iox"
)

// CRCResponse is the response for the crc command.
type CRCResponse struct {
	Path  string `json:"path" yaml:"path"`
	CRC32 string `json:"crc32" yaml:"crc32"`
	Local string `json:"local,omitempty" yaml:"local,omitempty"`
	Match *bool  `json:"match,omitempty" yaml:"match,omitempty"`
}

// CRCCommand returns the crc command.
func CRCCommand() *cli.Command {
	flags := append(clientFlags(),
		&cli.PathFlag{
			Name:  "verify",
			Usage: "Compare against the CRC-32 of this local file",
		},
	)
	return &cli.Command{
		Name:      "crc",
		Usage:     "Ask the engine for a file's CRC-32",
		ArgsUsage: "<path>",
		Description: `Exits non-zero when --verify is given and the checksums differ.

Examples:
  skylink crc --root /srv/flight logs/flight.bin
  skylink crc --remote 192.168.1.10:14555 logs/flight.bin --verify ./flight.bin`,
		Flags:  append(flags, ReadOnlyFlags()...),
		Action: crcAction,
	}
}

func crcAction(c *cli.Context) error {
	if err := rejectTUI(c); err != nil {
		return err
	}
	if c.NArg() != 1 {
		return cli.Exit("crc takes exactly one path", exitFailure)
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
	remote, err := client.crc32(c.Context, path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("crc %q: %v", path, err), exitFailure)
	}
	resp := CRCResponse{Path: path, CRC32: formatCRC(remote)}

	verify := c.Path("verify")
	if verify == "" {
		return r.Render(resp)
	}
	local, err := localCRC32(verify)
	if err != nil {
		return cli.Exit(fmt.Sprintf("crc %s: %v", verify, err), exitFailure)
	}
	match := local == remote
	resp.Local = formatCRC(local)
	resp.Match = &match
	if err := r.Render(resp); err != nil {
		return err
	}
	if !match {
		return cli.Exit(fmt.Sprintf("crc mismatch: engine %s, local %s", resp.CRC32, resp.Local), exitFailure)
	}
	return nil
}

func formatCRC(v uint32) string {
	return fmt.Sprintf("0x%08x", v)
}

// localCRC32 computes the IEEE CRC-32 the engine uses.
func localCRC32(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer iox.DiscardClose(f)

	h := crc32.NewIEEE()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum32(), nil
}
