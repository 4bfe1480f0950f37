// Package types holds the value types shared between the transfer engine,
// the event pump, the journal and the CLI.
package types

import (
	"time"

	"github.com/google/uuid"
)

// JournalSchemaVersion is the version stamped on journal records.
const JournalSchemaVersion = Version

// TransferKind identifies what a transfer event describes.
type TransferKind string

// Transfer kinds. Read, write and create describe a file session; the rest
// describe a single mutation.
const (
	TransferKindRead       TransferKind = "read"
	TransferKindWrite      TransferKind = "write"
	TransferKindCreate     TransferKind = "create"
	TransferKindRemoveFile TransferKind = "remove_file"
	TransferKindRemoveDir  TransferKind = "remove_dir"
	TransferKindCreateDir  TransferKind = "create_dir"
	TransferKindRename     TransferKind = "rename"
	TransferKindTruncate   TransferKind = "truncate"
)

// IsValid reports whether k is one of the known kinds.
func (k TransferKind) IsValid() bool {
	switch k {
	case TransferKindRead, TransferKindWrite, TransferKindCreate,
		TransferKindRemoveFile, TransferKindRemoveDir, TransferKindCreateDir,
		TransferKindRename, TransferKindTruncate:
		return true
	}
	return false
}

// IsSession returns true if the kind describes an open/close file session.
func (k TransferKind) IsSession() bool {
	return k == TransferKindRead || k == TransferKindWrite || k == TransferKindCreate
}

// TransferOutcome records how a transfer ended.
type TransferOutcome string

// Transfer outcomes.
const (
	// OutcomeCompleted is used for mutations, which finish within one request.
	OutcomeCompleted TransferOutcome = "completed"
	// OutcomeTerminated means the client ended the session.
	OutcomeTerminated TransferOutcome = "terminated"
	// OutcomeReset means the client reset all sessions.
	OutcomeReset TransferOutcome = "reset"
	// OutcomeReplaced means another open request replaced the session.
	OutcomeReplaced TransferOutcome = "replaced"
	// OutcomeShutdown means the engine closed with the session open.
	OutcomeShutdown TransferOutcome = "shutdown"
)

// TransferEvent describes one finished file session or mutation.
type TransferEvent struct {
	SchemaVersion string          `json:"schema_version" msgpack:"schema_version"`
	EventID       string          `json:"event_id" msgpack:"event_id"`
	SystemID      uint8           `json:"system_id" msgpack:"system_id"`
	ComponentID   uint8           `json:"component_id" msgpack:"component_id"`
	Peer          string          `json:"peer" msgpack:"peer"`
	Kind          TransferKind    `json:"kind" msgpack:"kind"`
	Path          string          `json:"path" msgpack:"path"`
	NewPath       string          `json:"new_path,omitempty" msgpack:"new_path,omitempty"`
	Size          int64           `json:"size,omitempty" msgpack:"size,omitempty"`
	BytesRead     int64           `json:"bytes_read" msgpack:"bytes_read"`
	BytesWritten  int64           `json:"bytes_written" msgpack:"bytes_written"`
	Bursts        int             `json:"bursts" msgpack:"bursts"`
	Outcome       TransferOutcome `json:"outcome" msgpack:"outcome"`
	OpenedAt      time.Time       `json:"opened_at" msgpack:"opened_at"`
	ClosedAt      time.Time       `json:"closed_at" msgpack:"closed_at"`
	DurationMs    int64           `json:"duration_ms" msgpack:"duration_ms"`
}

// NewTransferEvent returns an event with a fresh id and the given kind.
// OpenedAt is set to now; call Close to stamp the end.
func NewTransferEvent(kind TransferKind, path string) *TransferEvent {
	return &TransferEvent{
		SchemaVersion: JournalSchemaVersion,
		EventID:       uuid.NewString(),
		Kind:          kind,
		Path:          path,
		OpenedAt:      time.Now().UTC(),
	}
}

// Close stamps ClosedAt, DurationMs and the outcome.
func (e *TransferEvent) Close(outcome TransferOutcome) {
	e.Outcome = outcome
	e.ClosedAt = time.Now().UTC()
	e.DurationMs = e.ClosedAt.Sub(e.OpenedAt).Milliseconds()
}
