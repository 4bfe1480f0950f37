// Package reader loads the data shown by read-only CLI commands: the status
// snapshot written by a running serve process, directory listings returned
// by an engine, and transfer events read back from the journal.
package reader

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/justapithecus/skylink/metrics"
	"github.com/justapithecus/skylink/policy"
)

// Status is the snapshot serve writes to its status file.
type Status struct {
	Version   string           `json:"version"`
	PID       int              `json:"pid"`
	Root      string           `json:"root"`
	StartedAt time.Time        `json:"started_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Engine    metrics.Snapshot `json:"engine"`
	Events    policy.Stats     `json:"events"`
}

// Uptime returns how long the engine had been running at the last update.
func (s *Status) Uptime() time.Duration {
	if s.StartedAt.IsZero() || s.UpdatedAt.Before(s.StartedAt) {
		return 0
	}
	return s.UpdatedAt.Sub(s.StartedAt).Round(time.Second)
}

// ErrNoStatus is returned when the status file does not exist.
var ErrNoStatus = errors.New("no status file (is skylink serve running with --status-file?)")

// ReadStatus loads a status snapshot.
func ReadStatus(path string) (*Status, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoStatus, path)
		}
		return nil, err
	}

	var s Status
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("malformed status file %s: %w", path, err)
	}
	if s.UpdatedAt.IsZero() {
		return nil, fmt.Errorf("malformed status file %s: missing updated_at", path)
	}
	return &s, nil
}

// WriteStatus replaces the status file atomically so readers never see a
// partial snapshot.
func WriteStatus(path string, s *Status) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".skylink-status-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}

// Header implements render.Table.
func (s *Status) Header() []string {
	return []string{"COUNTER", "VALUE"}
}

// Rows implements render.Table. Per-opcode and per-result counters are
// expanded one per row, sorted by name.
func (s *Status) Rows() [][]string {
	e := s.Engine
	itoa := func(n int64) string { return strconv.FormatInt(n, 10) }

	rows := [][]string{
		{"identity", e.Identity},
		{"transport", e.Transport},
		{"root", s.Root},
		{"uptime", s.Uptime().String()},
		{"updated_at", s.UpdatedAt.Format(time.RFC3339)},
		{"frames_received", itoa(e.FramesReceived)},
		{"frames_ignored", itoa(e.FramesIgnored)},
		{"link_decode_errors", itoa(e.LinkDecodeErrors)},
		{"send_errors", itoa(e.SendErrors)},
		{"acks", itoa(e.Acks)},
		{"naks", itoa(e.Naks)},
		{"bytes_read", itoa(e.BytesRead)},
		{"bytes_written", itoa(e.BytesWritten)},
		{"sessions_opened", itoa(e.SessionsOpened)},
		{"bursts_completed", itoa(e.BurstsCompleted)},
		{"bursts_cancelled", itoa(e.BurstsCancelled)},
		{"events_recorded", itoa(s.Events.TotalEvents)},
		{"events_persisted", itoa(s.Events.EventsPersisted)},
		{"events_published", itoa(s.Events.EventsPublished)},
		{"events_dropped", itoa(s.Events.EventsDropped)},
	}
	rows = append(rows, counterRows("requests.", e.Requests)...)
	rows = append(rows, counterRows("naks.", e.NaksByResult)...)
	return rows
}

func counterRows(prefix string, m map[string]int64) [][]string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{prefix + name, strconv.FormatInt(m[name], 10)})
	}
	return rows
}
