package link

import (
	"fmt"

	"go.bug.st/serial"
)

// DefaultBaud is the line rate used when SerialConfig.Baud is zero.
const DefaultBaud = 57600

// SerialConfig configures a serial link.
type SerialConfig struct {
	// Port is the device name, e.g. /dev/ttyUSB0 or COM3.
	Port string
	// Baud is the line rate. Defaults to DefaultBaud.
	Baud int
}

// OpenSerial opens a serial port (8N1) and returns a framed Stream over it.
func OpenSerial(cfg SerialConfig) (*Stream, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("link: serial port is required")
	}
	if cfg.Baud <= 0 {
		cfg.Baud = DefaultBaud
	}

	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("link: open serial %s: %w", cfg.Port, err)
	}
	return NewStream(port), nil
}

// SerialPorts lists the serial ports present on this machine.
func SerialPorts() ([]string, error) {
	return serial.GetPortsList()
}
