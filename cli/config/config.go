package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/justapithecus/skylink/wire"
)

// Config represents a skylink.yaml configuration file.
// All values are optional and act as defaults for skylink serve flags.
// CLI flags always override config values.
type Config struct {
	Identity IdentityConfig    `yaml:"identity"`
	RootDir  string            `yaml:"root_dir"`
	Aliases  map[string]string `yaml:"aliases"`
	Debug    bool              `yaml:"debug"`
	Link     LinkConfig        `yaml:"link"`
	Journal  JournalConfig     `yaml:"journal"`
	Adapter  AdapterConfig     `yaml:"adapter"`
	Status   StatusConfig      `yaml:"status"`
}

// IdentityConfig is the address the engine answers as.
type IdentityConfig struct {
	SystemID    uint8 `yaml:"system_id"`
	ComponentID uint8 `yaml:"component_id"`
}

// Address returns the identity as a wire address.
func (i IdentityConfig) Address() wire.Address {
	return wire.Address{SystemID: i.SystemID, ComponentID: i.ComponentID}
}

// LinkConfig selects and configures the transport.
type LinkConfig struct {
	// Transport is udp or serial.
	Transport string `yaml:"transport"`
	// Listen is the UDP bind address (host:port).
	Listen string `yaml:"listen"`
	// Remote pins UDP replies to one address instead of the last sender.
	Remote string `yaml:"remote,omitempty"`
	// SerialPort is the serial device.
	SerialPort string `yaml:"serial_port"`
	// Baud is the serial line rate.
	Baud int `yaml:"baud"`
}

// JournalConfig holds transfer journal defaults.
type JournalConfig struct {
	Dataset       string   `yaml:"dataset"`
	Backend       string   `yaml:"backend"`
	Path          string   `yaml:"path"`
	Region        string   `yaml:"region"`
	Endpoint      string   `yaml:"endpoint"`
	S3PathStyle   bool     `yaml:"s3_path_style"`
	FlushCount    int      `yaml:"flush_count"`
	FlushInterval Duration `yaml:"flush_interval"`
	MaxBuffer     int      `yaml:"max_buffer"`
}

// AdapterConfig holds event adapter defaults.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// StatusConfig controls the status snapshot file written by serve.
type StatusConfig struct {
	File     string   `yaml:"file"`
	Interval Duration `yaml:"interval"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Alias is one entry of the aliases section.
type Alias struct {
	Name string
	Path string
}

// AliasList returns the aliases sorted by name.
func (c *Config) AliasList() []Alias {
	if len(c.Aliases) == 0 {
		return nil
	}

	names := make([]string, 0, len(c.Aliases))
	for name := range c.Aliases {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]Alias, 0, len(names))
	for _, name := range names {
		out = append(out, Alias{Name: name, Path: c.Aliases[name]})
	}
	return out
}

// Validate checks enumerated fields. Empty values are left for the
// command to default.
func (c *Config) Validate() error {
	var errs []error

	switch c.Link.Transport {
	case "", "udp", "serial":
	default:
		errs = append(errs, fmt.Errorf("link.transport: %q (must be udp or serial)", c.Link.Transport))
	}
	if c.Link.Baud < 0 {
		errs = append(errs, fmt.Errorf("link.baud: must be >= 0, got %d", c.Link.Baud))
	}

	switch c.Journal.Backend {
	case "", "fs", "s3":
	default:
		errs = append(errs, fmt.Errorf("journal.backend: %q (must be fs or s3)", c.Journal.Backend))
	}
	if c.Journal.FlushCount < 0 {
		errs = append(errs, fmt.Errorf("journal.flush_count: must be >= 0, got %d", c.Journal.FlushCount))
	}

	switch c.Adapter.Type {
	case "":
	case "webhook", "redis":
		if c.Adapter.URL == "" {
			errs = append(errs, fmt.Errorf("adapter.url: required for %s adapter", c.Adapter.Type))
		}
	default:
		errs = append(errs, fmt.Errorf("adapter.type: %q (must be webhook or redis)", c.Adapter.Type))
	}
	if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
		errs = append(errs, fmt.Errorf("adapter.retries: must be >= 0, got %d", *c.Adapter.Retries))
	}

	return errors.Join(errs...)
}
