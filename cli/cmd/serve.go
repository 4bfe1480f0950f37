package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/skylink/adapter"
	"github.com/justapithecus/skylink/adapter/redis"
	"github.com/justapithecus/skylink/adapter/webhook"
	"github.com/justapithecus/skylink/cli/config"
	"github.com/justapithecus/skylink/cli/reader"
	"github.com/justapithecus/skylink/ftpserver"
	"github.com/justapithecus/skylink/journal"
	"github.com/justapithecus/skylink/link"
	"github.com/justapithecus/skylink/log"
	"github.com/justapithecus/skylink/metrics"
	"github.com/justapithecus/skylink/policy"
	"github.com/justapithecus/skylink/types"
)

// Serve defaults applied after config and flags.
const (
	defaultSystemID       = 1
	defaultComponentID    = 1
	defaultTransport      = "udp"
	defaultListen         = "0.0.0.0:14555"
	defaultFlushCount     = 32
	defaultFlushInterval  = time.Second
	defaultAdapterRetries = 3
	defaultStatusInterval = 2 * time.Second
)

// journalFlags configure the transfer journal for serve and events.
func journalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "journal-backend",
			Usage: "Journal storage backend: fs or s3 (default fs)",
		},
		&cli.StringFlag{
			Name:  "journal-path",
			Usage: "Journal root directory (fs) or bucket/prefix (s3)",
		},
		&cli.StringFlag{
			Name:  "journal-dataset",
			Usage: "Journal dataset id (default skylink)",
		},
		&cli.StringFlag{
			Name:  "journal-region",
			Usage: "AWS region for the s3 backend",
		},
		&cli.StringFlag{
			Name:  "journal-endpoint",
			Usage: "Custom S3 endpoint (MinIO, R2)",
		},
		&cli.BoolFlag{
			Name:  "journal-s3-path-style",
			Usage: "Force path-style S3 addressing",
		},
	}
}

// ServeCommand returns the serve command.
func ServeCommand() *cli.Command {
	flags := []cli.Flag{
		ConfigFlag,
		&cli.PathFlag{
			Name:  "root",
			Usage: "Directory exposed to clients (required here or as root_dir)",
		},
		&cli.UintFlag{
			Name:  "system-id",
			Usage: "System id the engine answers as (default 1)",
		},
		&cli.UintFlag{
			Name:  "component-id",
			Usage: "Component id the engine answers as (default 1)",
		},
		&cli.StringFlag{
			Name:  "transport",
			Usage: "Link transport: udp or serial (default udp)",
		},
		&cli.StringFlag{
			Name:  "listen",
			Usage: "UDP bind address (default " + defaultListen + ")",
		},
		&cli.StringFlag{
			Name:  "remote",
			Usage: "Send UDP replies to this address instead of the last sender",
		},
		&cli.StringFlag{
			Name:  "serial-port",
			Usage: "Serial device, e.g. /dev/ttyUSB0",
		},
		&cli.IntFlag{
			Name:  "baud",
			Usage: "Serial baud rate (default 57600)",
		},
		&cli.StringSliceFlag{
			Name:  "alias",
			Usage: "Open requests for name address a local file: name=path (repeatable)",
		},
		&cli.IntFlag{
			Name:  "flush-count",
			Usage: "Flush buffered events after N events",
		},
		&cli.DurationFlag{
			Name:  "flush-interval",
			Usage: "Flush buffered events every interval",
		},
		&cli.StringFlag{
			Name:  "adapter",
			Usage: "Event adapter: webhook or redis",
		},
		&cli.StringFlag{
			Name:  "adapter-url",
			Usage: "Webhook endpoint or redis:// URL",
		},
		&cli.StringFlag{
			Name:  "adapter-channel",
			Usage: "Redis pub/sub channel (default " + redis.DefaultChannel + ")",
		},
		&cli.DurationFlag{
			Name:  "adapter-timeout",
			Usage: "Per-publish timeout",
		},
		&cli.IntFlag{
			Name:  "adapter-retries",
			Usage: "Publish retry attempts (default 3)",
		},
		&cli.PathFlag{
			Name:  "status-file",
			Usage: "Write a status snapshot here for skylink stats",
		},
		&cli.DurationFlag{
			Name:  "status-interval",
			Usage: "Status snapshot interval (default 2s)",
		},
		&cli.BoolFlag{
			Name:    "debug",
			Usage:   "Enable debug logging",
			EnvVars: []string{"SKYLINK_FTP_DEBUG"},
		},
	}
	flags = append(flags, journalFlags()...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Run the file-transfer engine on a link",
		Description: `Serves the file-transfer protocol for one directory tree.

Examples:
  skylink serve --root /srv/flight --listen 0.0.0.0:14555
  skylink serve --root /srv/flight --transport serial --serial-port /dev/ttyUSB0
  skylink serve --config skylink.yaml --journal-path ./journal --adapter redis --adapter-url redis://localhost:6379`,
		Flags:  flags,
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := applyServeFlags(c, cfg); err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}
	applyServeDefaults(cfg)
	if cfg.RootDir == "" {
		return cli.Exit("root directory is required (--root or root_dir)", exitFailure)
	}

	self := cfg.Identity.Address()
	logger := log.NewLogger(self, cfg.Debug)
	defer func() { _ = logger.Sync() }()

	backend := ""
	if cfg.Journal.Path != "" {
		backend = cfg.Journal.Backend
	}
	collector := metrics.NewCollector(self.String(), cfg.Link.Transport, backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, err := buildDelivery(ctx, cfg, logger, collector)
	if err != nil {
		return cli.Exit(fmt.Sprintf("event delivery: %v", err), exitFailure)
	}

	conn, err := openLink(cfg.Link)
	if err != nil {
		_ = events.Close()
		return cli.Exit(fmt.Sprintf("open link: %v", err), exitLinkFailure)
	}

	router := link.NewRouter(conn, logger, collector)
	srv := ftpserver.New(self, router,
		ftpserver.WithLogger(logger),
		ftpserver.WithMetrics(collector),
		ftpserver.WithEventSink(events.policy),
	)
	if err := configureEngine(srv, cfg.RootDir, cfg.AliasList()); err != nil {
		_ = conn.Close()
		_ = srv.Close()
		_ = events.Close()
		return cli.Exit(err.Error(), exitFailure)
	}

	var (
		wg     sync.WaitGroup
		status *statusWriter
	)
	statusCtx, stopStatus := context.WithCancel(ctx)
	if cfg.Status.File != "" {
		status = &statusWriter{
			path:      cfg.Status.File,
			root:      srv.RootDirectory(),
			startedAt: time.Now().UTC(),
			metrics:   collector,
			policy:    events.policy,
			logger:    logger,
		}
		wg.Go(func() { status.run(statusCtx, cfg.Status.Interval.Duration) })
	}

	logger.Info("serving", map[string]any{
		"self":      srv.Self().String(),
		"root":      srv.RootDirectory(),
		"transport": cfg.Link.Transport,
		"listen":    cfg.Link.Listen,
		"aliases":   len(cfg.Aliases),
	})

	serveErr := router.Serve(ctx, srv)

	stopStatus()
	wg.Wait()
	_ = conn.Close()
	if err := srv.Close(); err != nil {
		logger.Warn("engine close failed", map[string]any{"error": err.Error()})
	}
	deliveryErr := events.Close()
	if status != nil {
		if err := status.write(); err != nil {
			logger.Warn("status write failed", map[string]any{"error": err.Error()})
		}
	}

	logger.Info("stopped", map[string]any{"events": events.policy.Stats().TotalEvents})

	switch {
	case serveErr != nil:
		return cli.Exit(fmt.Sprintf("link failed: %v", serveErr), exitLinkFailure)
	case deliveryErr != nil:
		return cli.Exit(fmt.Sprintf("event delivery failed: %v", deliveryErr), exitDeliveryFailure)
	}
	return nil
}

// applyServeFlags overlays explicitly set flags on cfg and revalidates.
func applyServeFlags(c *cli.Context, cfg *config.Config) error {
	if c.IsSet("root") {
		cfg.RootDir = c.Path("root")
	}
	if c.IsSet("system-id") {
		id, err := uint8Flag(c, "system-id")
		if err != nil {
			return err
		}
		cfg.Identity.SystemID = id
	}
	if c.IsSet("component-id") {
		id, err := uint8Flag(c, "component-id")
		if err != nil {
			return err
		}
		cfg.Identity.ComponentID = id
	}
	if c.IsSet("debug") {
		cfg.Debug = c.Bool("debug")
	}

	if c.IsSet("transport") {
		cfg.Link.Transport = c.String("transport")
	}
	if c.IsSet("listen") {
		cfg.Link.Listen = c.String("listen")
	}
	if c.IsSet("remote") {
		cfg.Link.Remote = c.String("remote")
	}
	if c.IsSet("serial-port") {
		cfg.Link.SerialPort = c.String("serial-port")
	}
	if c.IsSet("baud") {
		cfg.Link.Baud = c.Int("baud")
	}

	for _, spec := range c.StringSlice("alias") {
		name, path, ok := strings.Cut(spec, "=")
		if !ok || name == "" || path == "" {
			return fmt.Errorf("--alias %q: expected name=path", spec)
		}
		if cfg.Aliases == nil {
			cfg.Aliases = make(map[string]string)
		}
		cfg.Aliases[name] = path
	}

	applyJournalFlags(c, &cfg.Journal)
	if c.IsSet("flush-count") {
		cfg.Journal.FlushCount = c.Int("flush-count")
	}
	if c.IsSet("flush-interval") {
		cfg.Journal.FlushInterval.Duration = c.Duration("flush-interval")
	}

	if c.IsSet("adapter") {
		cfg.Adapter.Type = c.String("adapter")
	}
	if c.IsSet("adapter-url") {
		cfg.Adapter.URL = c.String("adapter-url")
	}
	if c.IsSet("adapter-channel") {
		cfg.Adapter.Channel = c.String("adapter-channel")
	}
	if c.IsSet("adapter-timeout") {
		cfg.Adapter.Timeout.Duration = c.Duration("adapter-timeout")
	}
	if c.IsSet("adapter-retries") {
		retries := c.Int("adapter-retries")
		cfg.Adapter.Retries = &retries
	}

	if c.IsSet("status-file") {
		cfg.Status.File = c.Path("status-file")
	}
	if c.IsSet("status-interval") {
		cfg.Status.Interval.Duration = c.Duration("status-interval")
	}

	return cfg.Validate()
}

// applyJournalFlags overlays the journal-* flags on jc.
func applyJournalFlags(c *cli.Context, jc *config.JournalConfig) {
	if c.IsSet("journal-backend") {
		jc.Backend = c.String("journal-backend")
	}
	if c.IsSet("journal-path") {
		jc.Path = c.String("journal-path")
	}
	if c.IsSet("journal-dataset") {
		jc.Dataset = c.String("journal-dataset")
	}
	if c.IsSet("journal-region") {
		jc.Region = c.String("journal-region")
	}
	if c.IsSet("journal-endpoint") {
		jc.Endpoint = c.String("journal-endpoint")
	}
	if c.IsSet("journal-s3-path-style") {
		jc.S3PathStyle = c.Bool("journal-s3-path-style")
	}
}

func uint8Flag(c *cli.Context, name string) (uint8, error) {
	v := c.Uint(name)
	if v > 255 {
		return 0, fmt.Errorf("--%s: must be 0-255, got %d", name, v)
	}
	return uint8(v), nil
}

// applyServeDefaults fills fields left empty by config and flags.
func applyServeDefaults(cfg *config.Config) {
	if cfg.Identity.SystemID == 0 && cfg.Identity.ComponentID == 0 {
		cfg.Identity.SystemID = defaultSystemID
		cfg.Identity.ComponentID = defaultComponentID
	}
	if cfg.Link.Transport == "" {
		cfg.Link.Transport = defaultTransport
	}
	if cfg.Link.Transport == "udp" && cfg.Link.Listen == "" {
		cfg.Link.Listen = defaultListen
	}
	if cfg.Journal.Backend == "" {
		cfg.Journal.Backend = "fs"
	}
	if cfg.Journal.FlushCount == 0 && cfg.Journal.FlushInterval.Duration == 0 {
		cfg.Journal.FlushCount = defaultFlushCount
		cfg.Journal.FlushInterval.Duration = defaultFlushInterval
	}
	if cfg.Adapter.Retries == nil {
		retries := defaultAdapterRetries
		cfg.Adapter.Retries = &retries
	}
	if cfg.Status.Interval.Duration <= 0 {
		cfg.Status.Interval.Duration = defaultStatusInterval
	}
}

// configureEngine sets the root and registers aliases.
func configureEngine(srv *ftpserver.Server, root string, aliases []config.Alias) error {
	if err := srv.SetRootDirectory(root); err != nil {
		return fmt.Errorf("root directory %s: %w", root, err)
	}
	for _, a := range aliases {
		if err := srv.RegisterAlias(a.Name, a.Path); err != nil {
			return fmt.Errorf("alias %s: %w", a.Name, err)
		}
	}
	return nil
}

// openLink opens the configured transport.
func openLink(lc config.LinkConfig) (link.Conn, error) {
	switch lc.Transport {
	case "serial":
		return link.OpenSerial(link.SerialConfig{Port: lc.SerialPort, Baud: lc.Baud})
	case "", "udp":
		return link.ListenUDP(lc.Listen, lc.Remote)
	default:
		return nil, fmt.Errorf("unknown transport %q", lc.Transport)
	}
}

// delivery owns the event policy and the adapters it publishes to.
type delivery struct {
	policy   policy.Policy
	adapters []adapter.Adapter
}

// Close flushes the policy, then closes the adapters.
func (d *delivery) Close() error {
	errs := []error{d.policy.Close()}
	for _, a := range d.adapters {
		errs = append(errs, a.Close())
	}
	return errors.Join(errs...)
}

// buildDelivery picks the event policy. Without a journal or an adapter
// events are only counted.
func buildDelivery(ctx context.Context, cfg *config.Config, logger *log.Logger, collector *metrics.Collector) (*delivery, error) {
	adapters, err := buildAdapters(cfg.Adapter)
	if err != nil {
		return nil, err
	}

	var sink policy.Sink
	if cfg.Journal.Path != "" {
		client, err := openJournal(ctx, cfg.Journal)
		if err != nil {
			closeAdapters(adapters)
			return nil, err
		}
		sink = journal.NewSink(client)
	}

	if sink == nil && len(adapters) == 0 {
		return &delivery{policy: policy.NewNoopPolicy()}, nil
	}

	publishers := make([]policy.Publisher, len(adapters))
	for i, a := range adapters {
		publishers[i] = a
	}
	pol, err := policy.NewStreamingPolicy(sink, policy.StreamingConfig{
		FlushCount:     cfg.Journal.FlushCount,
		FlushInterval:  cfg.Journal.FlushInterval.Duration,
		MaxBuffer:      cfg.Journal.MaxBuffer,
		Publishers:     publishers,
		PublishTimeout: cfg.Adapter.Timeout.Duration,
		Logger:         logger,
		Metrics:        collector,
	})
	if err != nil {
		if sink != nil {
			_ = sink.Close()
		}
		closeAdapters(adapters)
		return nil, err
	}
	return &delivery{policy: pol, adapters: adapters}, nil
}

func closeAdapters(adapters []adapter.Adapter) {
	for _, a := range adapters {
		_ = a.Close()
	}
}

// buildAdapters creates the configured adapter, if any.
func buildAdapters(ac config.AdapterConfig) ([]adapter.Adapter, error) {
	retries := 0
	if ac.Retries != nil {
		retries = *ac.Retries
	}

	switch ac.Type {
	case "":
		return nil, nil
	case "webhook":
		a, err := webhook.New(webhook.Config{
			URL:     ac.URL,
			Headers: ac.Headers,
			Timeout: ac.Timeout.Duration,
			Retries: retries,
		})
		if err != nil {
			return nil, err
		}
		return []adapter.Adapter{a}, nil
	case "redis":
		a, err := redis.New(redis.Config{
			URL:     ac.URL,
			Channel: ac.Channel,
			Timeout: ac.Timeout.Duration,
			Retries: retries,
		})
		if err != nil {
			return nil, err
		}
		return []adapter.Adapter{a}, nil
	default:
		return nil, fmt.Errorf("unknown adapter %q", ac.Type)
	}
}

func s3Config(jc config.JournalConfig) journal.S3Config {
	bucket, prefix := journal.ParseS3Path(jc.Path)
	return journal.S3Config{
		Bucket:       bucket,
		Prefix:       prefix,
		Region:       jc.Region,
		Endpoint:     jc.Endpoint,
		UsePathStyle: jc.S3PathStyle,
	}
}

// openJournal opens the journal write client for jc.
func openJournal(ctx context.Context, jc config.JournalConfig) (journal.Client, error) {
	cfg := journal.Config{Dataset: jc.Dataset}
	switch jc.Backend {
	case "", "fs":
		return journal.NewLodeClient(cfg, jc.Path)
	case "s3":
		return journal.NewLodeS3Client(ctx, cfg, s3Config(jc))
	default:
		return nil, fmt.Errorf("unknown journal backend %q", jc.Backend)
	}
}

// statusWriter periodically snapshots engine counters to a file.
type statusWriter struct {
	path      string
	root      string
	startedAt time.Time
	metrics   *metrics.Collector
	policy    policy.Policy
	logger    *log.Logger
}

func (w *statusWriter) write() error {
	return reader.WriteStatus(w.path, &reader.Status{
		Version:   types.Version,
		PID:       os.Getpid(),
		Root:      w.root,
		StartedAt: w.startedAt,
		UpdatedAt: time.Now().UTC(),
		Engine:    w.metrics.Snapshot(),
		Events:    w.policy.Stats(),
	})
}

// run writes immediately and then every interval until ctx is done.
func (w *statusWriter) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := w.write(); err != nil {
			w.logger.Warn("status write failed", map[string]any{
				"path":  w.path,
				"error": err.Error(),
			})
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
