package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/justapithecus/skylink/types"
)

// RecordKindTransfer is the record_kind discriminator for transfer events.
const RecordKindTransfer = "transfer"

// toRecordMap converts a TransferEvent to a map for Lode storage.
// Lode HiveLayout requires records as map[string]any; the partition keys
// system, day and kind are included alongside the event fields.
func toRecordMap(e *types.TransferEvent) map[string]any {
	m := map[string]any{
		"record_kind":    RecordKindTransfer,
		"schema_version": e.SchemaVersion,
		"event_id":       e.EventID,
		"system_id":      e.SystemID,
		"component_id":   e.ComponentID,
		"peer":           e.Peer,
		"path":           e.Path,
		"bytes_read":     e.BytesRead,
		"bytes_written":  e.BytesWritten,
		"bursts":         e.Bursts,
		"outcome":        string(e.Outcome),
		"opened_at":      e.OpenedAt.UTC().Format(time.RFC3339Nano),
		"closed_at":      e.ClosedAt.UTC().Format(time.RFC3339Nano),
		"duration_ms":    e.DurationMs,

		PartitionSystem: SystemPartition(e.SystemID, e.ComponentID),
		PartitionDay:    DeriveDay(eventTime(e)),
		PartitionKind:   string(e.Kind),
	}
	if e.NewPath != "" {
		m["new_path"] = e.NewPath
	}
	if e.Size != 0 {
		m["size"] = e.Size
	}
	return m
}

// eventTime is the time an event is partitioned by: when it closed, or
// when it opened if it never closed.
func eventTime(e *types.TransferEvent) time.Time {
	if !e.ClosedAt.IsZero() {
		return e.ClosedAt
	}
	return e.OpenedAt
}

// fromRecord decodes a stored record back into a TransferEvent.
// Records read back from JSONL carry numbers as float64; a JSON round trip
// restores the typed fields.
func fromRecord(record map[string]any) (*types.TransferEvent, error) {
	if record["record_kind"] != RecordKindTransfer {
		return nil, fmt.Errorf("unexpected record_kind %v", record["record_kind"])
	}
	b, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	var e types.TransferEvent
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
