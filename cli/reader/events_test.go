package reader

import (
	"testing"
	"time"

	"github.com/justapithecus/skylink/types"
)

func TestEventList_RowsAndSummary(t *testing.T) {
	closed := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	events := EventList{
		{Kind: types.TransferKindRead, Path: "logs/1.bin", Outcome: types.OutcomeTerminated, BytesRead: 4096, ClosedAt: closed, Peer: "255/190"},
		{Kind: types.TransferKindRename, Path: "a", NewPath: "b", Outcome: types.OutcomeCompleted, ClosedAt: closed},
		{Kind: types.TransferKindWrite, Path: "up.bin", Outcome: types.OutcomeReset, BytesWritten: 100, ClosedAt: closed},
		{Kind: types.TransferKindRead, Path: "logs/2.bin", Outcome: types.OutcomeTerminated, BytesRead: 4, ClosedAt: closed},
	}

	rows := events.Rows()
	if len(rows) != 4 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[1][2] != "a -> b" {
		t.Errorf("rename path cell = %q", rows[1][2])
	}
	if rows[0][4] != "4096" || rows[0][6] != "255/190" {
		t.Errorf("read row = %v", rows[0])
	}
	for _, r := range rows {
		if len(r) != len(events.Header()) {
			t.Fatalf("row width %d != header width %d", len(r), len(events.Header()))
		}
	}

	s := events.Summarize()
	if s.Events != 4 || s.ByKind[types.TransferKindRead] != 2 || s.ByOutcome[types.OutcomeTerminated] != 2 {
		t.Errorf("summary = %+v", s)
	}
	if s.BytesRead != 4100 || s.BytesWritten != 100 {
		t.Errorf("bytes = %d/%d", s.BytesRead, s.BytesWritten)
	}
}
