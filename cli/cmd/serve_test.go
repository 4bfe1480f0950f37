package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/skylink/cli/config"
	"github.com/justapithecus/skylink/cli/reader"
	"github.com/justapithecus/skylink/journal"
	"github.com/justapithecus/skylink/link"
	"github.com/justapithecus/skylink/log"
	"github.com/justapithecus/skylink/metrics"
	"github.com/justapithecus/skylink/policy"
	"github.com/justapithecus/skylink/types"
)

// runCommand runs command with args and returns what it wrote and the
// error it returned. The command's action is replaced when action is set.
func runCommand(t *testing.T, command *cli.Command, action cli.ActionFunc, args ...string) (string, error) {
	t.Helper()
	if action != nil {
		command.Action = action
	}
	var out bytes.Buffer
	app := &cli.App{
		Name:           "skylink",
		Writer:         &out,
		ErrWriter:      io.Discard,
		ExitErrHandler: func(*cli.Context, error) {},
		Commands:       []*cli.Command{command},
	}
	err := app.Run(append([]string{"skylink", command.Name}, args...))
	return out.String(), err
}

func exitCode(err error) int {
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return -1
}

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "skylink.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestApplyServeFlags_FlagsOverrideConfig(t *testing.T) {
	path := writeConfig(t, `
root_dir: /srv/config
identity:
  system_id: 3
  component_id: 4
link:
  listen: 0.0.0.0:1
aliases:
  params: /etc/params
`)

	var got *config.Config
	_, err := runCommand(t, ServeCommand(), func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		if err := applyServeFlags(c, cfg); err != nil {
			return err
		}
		got = cfg
		return nil
	},
		"--config", path,
		"--root", "/srv/flag",
		"--system-id", "9",
		"--listen", "127.0.0.1:2",
		"--alias", "mission=/tmp/mission.txt",
		"--adapter-retries", "0",
		"--journal-path", "/var/journal",
		"--flush-interval", "5s",
	)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if got.RootDir != "/srv/flag" {
		t.Errorf("RootDir = %q, want /srv/flag", got.RootDir)
	}
	if got.Identity.SystemID != 9 || got.Identity.ComponentID != 4 {
		t.Errorf("Identity = %+v, want 9/4", got.Identity)
	}
	if got.Link.Listen != "127.0.0.1:2" {
		t.Errorf("Listen = %q", got.Link.Listen)
	}
	if got.Aliases["params"] != "/etc/params" || got.Aliases["mission"] != "/tmp/mission.txt" {
		t.Errorf("Aliases = %v", got.Aliases)
	}
	if got.Adapter.Retries == nil || *got.Adapter.Retries != 0 {
		t.Errorf("Adapter.Retries = %v, want 0", got.Adapter.Retries)
	}
	if got.Journal.Path != "/var/journal" || got.Journal.FlushInterval.Duration != 5*time.Second {
		t.Errorf("Journal = %+v", got.Journal)
	}
}

func TestApplyServeFlags_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "alias without path", args: []string{"--alias", "params"}},
		{name: "alias with empty name", args: []string{"--alias", "=/tmp/x"}},
		{name: "system id out of range", args: []string{"--system-id", "300"}},
		{name: "unknown transport", args: []string{"--transport", "can"}},
		{name: "adapter without url", args: []string{"--adapter", "webhook"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCommand(t, ServeCommand(), func(c *cli.Context) error {
				return applyServeFlags(c, &config.Config{})
			}, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestApplyServeDefaults(t *testing.T) {
	cfg := &config.Config{}
	applyServeDefaults(cfg)

	if cfg.Identity.SystemID != defaultSystemID || cfg.Identity.ComponentID != defaultComponentID {
		t.Errorf("Identity = %+v", cfg.Identity)
	}
	if cfg.Link.Transport != "udp" || cfg.Link.Listen != defaultListen {
		t.Errorf("Link = %+v", cfg.Link)
	}
	if cfg.Journal.Backend != "fs" || cfg.Journal.FlushCount != defaultFlushCount {
		t.Errorf("Journal = %+v", cfg.Journal)
	}
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != defaultAdapterRetries {
		t.Errorf("Adapter.Retries = %v", cfg.Adapter.Retries)
	}
	if cfg.Status.Interval.Duration != defaultStatusInterval {
		t.Errorf("Status.Interval = %v", cfg.Status.Interval)
	}

	// Explicit values survive.
	serial := &config.Config{Link: config.LinkConfig{Transport: "serial"}}
	serial.Journal.FlushInterval.Duration = 10 * time.Second
	applyServeDefaults(serial)
	if serial.Link.Listen != "" {
		t.Errorf("serial Listen = %q, want empty", serial.Link.Listen)
	}
	if serial.Journal.FlushCount != 0 {
		t.Errorf("FlushCount = %d, want 0 when only an interval is set", serial.Journal.FlushCount)
	}
}

func TestServeAction_RequiresRoot(t *testing.T) {
	_, err := runCommand(t, ServeCommand(), nil, "--listen", "127.0.0.1:0")
	if code := exitCode(err); code != exitFailure {
		t.Errorf("exit code = %d, want %d (err %v)", code, exitFailure, err)
	}
}

func TestServeAction_MissingRootDirectory(t *testing.T) {
	_, err := runCommand(t, ServeCommand(), nil,
		"--root", filepath.Join(t.TempDir(), "missing"),
		"--listen", "127.0.0.1:0",
	)
	if code := exitCode(err); code != exitFailure {
		t.Errorf("exit code = %d, want %d (err %v)", code, exitFailure, err)
	}
}

func TestServeAction_SerialWithoutPort(t *testing.T) {
	_, err := runCommand(t, ServeCommand(), nil, "--root", t.TempDir(), "--transport", "serial")
	if code := exitCode(err); code != exitLinkFailure {
		t.Errorf("exit code = %d, want %d (err %v)", code, exitLinkFailure, err)
	}
}

func TestOpenLink(t *testing.T) {
	conn, err := openLink(config.LinkConfig{Transport: "udp", Listen: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("openLink failed: %v", err)
	}
	if _, ok := conn.(*link.UDP); !ok {
		t.Errorf("conn = %T, want *link.UDP", conn)
	}
	_ = conn.Close()

	if _, err := openLink(config.LinkConfig{Transport: "can"}); err == nil {
		t.Error("expected error for unknown transport")
	}
}

func closedEvent(kind types.TransferKind, path string) *types.TransferEvent {
	e := types.NewTransferEvent(kind, path)
	e.SystemID = 1
	e.ComponentID = 1
	e.Peer = "255/190"
	e.Close(types.OutcomeCompleted)
	return e
}

func TestBuildDelivery_Noop(t *testing.T) {
	cfg := &config.Config{}
	applyServeDefaults(cfg)

	d, err := buildDelivery(context.Background(), cfg, log.Nop(), nil)
	if err != nil {
		t.Fatalf("buildDelivery failed: %v", err)
	}
	if _, ok := d.policy.(*policy.NoopPolicy); !ok {
		t.Errorf("policy = %T, want *policy.NoopPolicy", d.policy)
	}
	d.policy.Record(closedEvent(types.TransferKindRemoveFile, "a.bin"))
	if got := d.policy.Stats().TotalEvents; got != 1 {
		t.Errorf("TotalEvents = %d, want 1", got)
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestBuildDelivery_FSJournal(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{Journal: config.JournalConfig{Path: dir}}
	applyServeDefaults(cfg)
	collector := metrics.NewCollector("1/1", "udp", "fs")

	d, err := buildDelivery(context.Background(), cfg, log.Nop(), collector)
	if err != nil {
		t.Fatalf("buildDelivery failed: %v", err)
	}
	if _, ok := d.policy.(*policy.StreamingPolicy); !ok {
		t.Fatalf("policy = %T, want *policy.StreamingPolicy", d.policy)
	}

	d.policy.Record(closedEvent(types.TransferKindCreateDir, "logs"))
	d.policy.Record(closedEvent(types.TransferKindRename, "a.bin"))
	if err := d.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	ds, err := openJournalDataset(context.Background(), cfg.Journal)
	if err != nil {
		t.Fatalf("openJournalDataset failed: %v", err)
	}
	events, err := journal.QueryEvents(context.Background(), ds, journal.Filter{})
	if err != nil {
		t.Fatalf("QueryEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if snap := collector.Snapshot(); snap.JournalWriteSuccess == 0 {
		t.Errorf("JournalWriteSuccess = 0, want > 0")
	}
}

func TestBuildDelivery_Webhook(t *testing.T) {
	var posts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := &config.Config{Adapter: config.AdapterConfig{Type: "webhook", URL: srv.URL}}
	applyServeDefaults(cfg)

	d, err := buildDelivery(context.Background(), cfg, log.Nop(), nil)
	if err != nil {
		t.Fatalf("buildDelivery failed: %v", err)
	}
	d.policy.Record(closedEvent(types.TransferKindTruncate, "a.bin"))
	if err := d.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got := posts.Load(); got != 1 {
		t.Errorf("webhook posts = %d, want 1", got)
	}
	if got := d.policy.Stats().EventsPublished; got != 1 {
		t.Errorf("EventsPublished = %d, want 1", got)
	}
}

func TestBuildDelivery_WebhookFailureIsDeliveryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	retries := 0
	cfg := &config.Config{Adapter: config.AdapterConfig{Type: "webhook", URL: srv.URL, Retries: &retries}}
	applyServeDefaults(cfg)

	d, err := buildDelivery(context.Background(), cfg, log.Nop(), nil)
	if err != nil {
		t.Fatalf("buildDelivery failed: %v", err)
	}
	d.policy.Record(closedEvent(types.TransferKindRemoveDir, "old"))
	if err := d.Close(); err == nil {
		t.Fatal("expected Close to report the failed publish")
	}
}

func TestBuildAdapters(t *testing.T) {
	mr := miniredis.RunT(t)

	adapters, err := buildAdapters(config.AdapterConfig{Type: "redis", URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("buildAdapters(redis) failed: %v", err)
	}
	if len(adapters) != 1 {
		t.Fatalf("got %d adapters, want 1", len(adapters))
	}
	if err := adapters[0].Publish(context.Background(), closedEvent(types.TransferKindWrite, "a.bin")); err != nil {
		t.Errorf("Publish failed: %v", err)
	}
	_ = adapters[0].Close()

	none, err := buildAdapters(config.AdapterConfig{})
	if err != nil || len(none) != 0 {
		t.Errorf("buildAdapters(empty) = %v, %v; want none", none, err)
	}

	bad := []config.AdapterConfig{
		{Type: "kafka", URL: "x"},
		{Type: "webhook"},
		{Type: "redis", URL: "not a url"},
	}
	for _, ac := range bad {
		if _, err := buildAdapters(ac); err == nil {
			t.Errorf("buildAdapters(%+v) succeeded, want error", ac)
		}
	}
}

func TestOpenJournal_UnknownBackend(t *testing.T) {
	_, err := openJournal(context.Background(), config.JournalConfig{Backend: "gcs", Path: "x"})
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if _, err := openJournalDataset(context.Background(), config.JournalConfig{Backend: "gcs", Path: "x"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestS3Config(t *testing.T) {
	got := s3Config(config.JournalConfig{Path: "bucket/skylink/prod", Region: "us-east-1", S3PathStyle: true})
	if got.Bucket != "bucket" || got.Prefix != "skylink/prod" || got.Region != "us-east-1" || !got.UsePathStyle {
		t.Errorf("s3Config = %+v", got)
	}
}

func TestStatusWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	collector := metrics.NewCollector("1/1", "udp", "")
	collector.IncFrameReceived()
	pol := policy.NewNoopPolicy()
	pol.Record(closedEvent(types.TransferKindRead, "a.bin"))

	w := &statusWriter{
		path:      path,
		root:      "/srv/flight",
		startedAt: time.Now().UTC().Add(-time.Minute),
		metrics:   collector,
		policy:    pol,
		logger:    log.Nop(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.run(ctx, time.Hour)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	var status *reader.Status
	for time.Now().Before(deadline) {
		s, err := reader.ReadStatus(path)
		if err == nil {
			status = s
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if status == nil {
		t.Fatal("status file was not written")
	}
	if status.Root != "/srv/flight" || status.PID != os.Getpid() || status.Version != types.Version {
		t.Errorf("status = %+v", status)
	}
	if status.Engine.FramesReceived != 1 {
		t.Errorf("FramesReceived = %d, want 1", status.Engine.FramesReceived)
	}
	if status.Events.TotalEvents != 1 {
		t.Errorf("TotalEvents = %d, want 1", status.Events.TotalEvents)
	}
	if status.Uptime() < time.Minute {
		t.Errorf("Uptime = %v, want at least 1m", status.Uptime())
	}
}
