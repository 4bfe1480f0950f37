package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/skylink/cli/render"
	"github.com/justapithecus/skylink/link"
)

// listSerialPorts is replaced in tests.
var listSerialPorts = link.SerialPorts

// SerialPortList is the ports command result.
type SerialPortList []string

// Header implements render.Table.
func (l SerialPortList) Header() []string {
	return []string{"PORT"}
}

// Rows implements render.Table.
func (l SerialPortList) Rows() [][]string {
	rows := make([][]string, len(l))
	for i, p := range l {
		rows[i] = []string{p}
	}
	return rows
}

var _ render.Table = SerialPortList(nil)

// PortsCommand returns the ports command.
func PortsCommand() *cli.Command {
	return &cli.Command{
		Name:  "ports",
		Usage: "List serial ports usable with serve --serial-port",
		Flags: ReadOnlyFlags(),
		Action: func(c *cli.Context) error {
			if err := rejectTUI(c); err != nil {
				return err
			}
			r, err := render.NewRenderer(c)
			if err != nil {
				return err
			}
			ports, err := listSerialPorts()
			if err != nil {
				return cli.Exit(fmt.Sprintf("list serial ports: %v", err), exitLinkFailure)
			}
			if ports == nil {
				ports = []string{}
			}
			return r.Render(SerialPortList(ports))
		},
	}
}
