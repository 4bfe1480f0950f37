package reader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/justapithecus/skylink/metrics"
	"github.com/justapithecus/skylink/policy"
	"github.com/justapithecus/skylink/types"
)

func sampleStatus() *Status {
	started := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	return &Status{
		Version:   "0.3.0",
		PID:       4242,
		Root:      "/srv/ftp",
		StartedAt: started,
		UpdatedAt: started.Add(90 * time.Second),
		Engine: metrics.Snapshot{
			Identity:     "1/1",
			Transport:    "udp",
			Acks:         12,
			Naks:         2,
			Requests:     map[string]int64{"read_file": 8, "open_file_ro": 2, "list_directory": 4},
			NaksByResult: map[string]int64{"eof": 2},
		},
		Events: policy.Stats{
			TotalEvents:   3,
			DroppedByKind: map[types.TransferKind]int64{},
		},
	}
}

func TestWriteReadStatus_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	want := sampleStatus()

	if err := WriteStatus(path, want); err != nil {
		t.Fatalf("WriteStatus: %v", err)
	}
	got, err := ReadStatus(path)
	if err != nil {
		t.Fatalf("ReadStatus: %v", err)
	}

	if got.Root != want.Root || got.PID != want.PID || !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Errorf("got %+v", got)
	}
	if got.Engine.Requests["read_file"] != 8 || got.Events.TotalEvents != 3 {
		t.Errorf("counters lost: %+v / %+v", got.Engine, got.Events)
	}
	if got.Uptime() != 90*time.Second {
		t.Errorf("Uptime = %v", got.Uptime())
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestWriteStatus_Replaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	s := sampleStatus()
	if err := WriteStatus(path, s); err != nil {
		t.Fatal(err)
	}
	s.Engine.Acks = 99
	if err := WriteStatus(path, s); err != nil {
		t.Fatal(err)
	}
	got, err := ReadStatus(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Engine.Acks != 99 {
		t.Errorf("Acks = %d, want 99", got.Engine.Acks)
	}
}

func TestReadStatus_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadStatus(filepath.Join(dir, "missing.json"))
	if !errors.Is(err, ErrNoStatus) {
		t.Errorf("missing file: %v, want ErrNoStatus", err)
	}

	bad := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(bad, []byte("{not json"), 0o644)
	if _, err := ReadStatus(bad); err == nil || !strings.Contains(err.Error(), "malformed") {
		t.Errorf("bad json: %v", err)
	}

	empty := filepath.Join(dir, "empty.json")
	_ = os.WriteFile(empty, []byte(`{"root":"/x"}`), 0o644)
	if _, err := ReadStatus(empty); err == nil || !strings.Contains(err.Error(), "updated_at") {
		t.Errorf("missing updated_at: %v", err)
	}
}

func TestStatus_Rows(t *testing.T) {
	rows := sampleStatus().Rows()

	index := make(map[string]int, len(rows))
	for i, r := range rows {
		if len(r) != 2 {
			t.Fatalf("row %d has %d cells", i, len(r))
		}
		index[r[0]] = i
	}

	if rows[index["acks"]][1] != "12" {
		t.Errorf("acks row = %v", rows[index["acks"]])
	}
	if rows[index["uptime"]][1] != "1m30s" {
		t.Errorf("uptime row = %v", rows[index["uptime"]])
	}
	if rows[index["naks.eof"]][1] != "2" {
		t.Errorf("naks.eof row missing: %v", rows)
	}
	// Per-opcode rows are sorted.
	if !(index["requests.list_directory"] < index["requests.open_file_ro"] && index["requests.open_file_ro"] < index["requests.read_file"]) {
		t.Errorf("request rows not sorted: %v", rows)
	}
}
