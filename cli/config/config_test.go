package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/justapithecus/skylink/wire"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "skylink.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeTemp(t, `identity:
  system_id: 1
  component_id: 250
root_dir: /var/lib/skylink
aliases:
  param.pck: /run/skylink/param.pck
  "@info.txt": /run/skylink/info.txt
debug: true

link:
  transport: udp
  listen: 0.0.0.0:14555
  remote: 10.0.0.2:14550

journal:
  dataset: flight
  backend: s3
  path: telemetry-bucket/ftp
  region: eu-west-1
  endpoint: http://minio:9000
  s3_path_style: true
  flush_count: 50
  flush_interval: 5s
  max_buffer: 2048

adapter:
  type: webhook
  url: https://hooks.example.com/skylink
  headers:
    Authorization: Bearer abc
  timeout: 3s
  retries: 2

status:
  file: /run/skylink/status.json
  interval: 2s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := cfg.Identity.Address(); got != (wire.Address{SystemID: 1, ComponentID: 250}) {
		t.Errorf("identity = %v", got)
	}
	if cfg.RootDir != "/var/lib/skylink" || !cfg.Debug {
		t.Errorf("root_dir=%q debug=%v", cfg.RootDir, cfg.Debug)
	}
	if cfg.Link.Transport != "udp" || cfg.Link.Listen != "0.0.0.0:14555" || cfg.Link.Remote != "10.0.0.2:14550" {
		t.Errorf("link = %+v", cfg.Link)
	}

	j := cfg.Journal
	if j.Dataset != "flight" || j.Backend != "s3" || j.Path != "telemetry-bucket/ftp" || j.Region != "eu-west-1" {
		t.Errorf("journal = %+v", j)
	}
	if j.Endpoint != "http://minio:9000" || !j.S3PathStyle {
		t.Errorf("journal s3 fields = %+v", j)
	}
	if j.FlushCount != 50 || j.FlushInterval.Duration != 5*time.Second || j.MaxBuffer != 2048 {
		t.Errorf("journal flush fields = %+v", j)
	}

	a := cfg.Adapter
	if a.Type != "webhook" || a.URL != "https://hooks.example.com/skylink" || a.Headers["Authorization"] != "Bearer abc" {
		t.Errorf("adapter = %+v", a)
	}
	if a.Timeout.Duration != 3*time.Second || a.Retries == nil || *a.Retries != 2 {
		t.Errorf("adapter timeout/retries = %v/%v", a.Timeout, a.Retries)
	}

	if cfg.Status.File != "/run/skylink/status.json" || cfg.Status.Interval.Duration != 2*time.Second {
		t.Errorf("status = %+v", cfg.Status)
	}

	aliases := cfg.AliasList()
	if len(aliases) != 2 || aliases[0].Name != "@info.txt" || aliases[1].Name != "param.pck" {
		t.Errorf("aliases = %+v", aliases)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SKYLINK_ROOT", "/data/ftp")
	path := writeTemp(t, "root_dir: ${SKYLINK_ROOT}\nlink:\n  listen: ${SKYLINK_LISTEN:-127.0.0.1:14555}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RootDir != "/data/ftp" {
		t.Errorf("root_dir = %q", cfg.RootDir)
	}
	if cfg.Link.Listen != "127.0.0.1:14555" {
		t.Errorf("listen = %q", cfg.Link.Listen)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeTemp(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RootDir != "" || cfg.AliasList() != nil {
		t.Errorf("expected zero config, got %+v", cfg)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown key", "root: /x\n", "invalid YAML"},
		{"bad duration", "journal:\n  flush_interval: soon\n", "invalid duration"},
		{"bad transport", "link:\n  transport: tcp\n", "link.transport"},
		{"bad backend", "journal:\n  backend: gcs\n", "journal.backend"},
		{"adapter without url", "adapter:\n  type: redis\n", "adapter.url"},
		{"bad adapter type", "adapter:\n  type: kafka\n  url: x\n", "adapter.type"},
		{"negative retries", "adapter:\n  type: webhook\n  url: http://x\n  retries: -1\n", "adapter.retries"},
		{"negative flush count", "journal:\n  flush_count: -5\n", "journal.flush_count"},
		{"identity out of range", "identity:\n  system_id: 300\n", "invalid YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTemp(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Config{
		Link:    LinkConfig{Transport: "carrier-pigeon"},
		Journal: JournalConfig{Backend: "tape"},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"link.transport", "journal.backend"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}
