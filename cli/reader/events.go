package reader

import (
	"strconv"
	"time"

	"github.com/justapithecus/skylink/types"
)

// EventList is a list of journaled transfer events for rendering.
type EventList []*types.TransferEvent

// Header implements render.Table.
func (l EventList) Header() []string {
	return []string{"CLOSED", "KIND", "PATH", "OUTCOME", "READ", "WRITTEN", "PEER"}
}

// Rows implements render.Table.
func (l EventList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, e := range l {
		path := e.Path
		if e.NewPath != "" {
			path += " -> " + e.NewPath
		}
		rows = append(rows, []string{
			e.ClosedAt.Local().Format(time.DateTime),
			string(e.Kind),
			path,
			string(e.Outcome),
			strconv.FormatInt(e.BytesRead, 10),
			strconv.FormatInt(e.BytesWritten, 10),
			e.Peer,
		})
	}
	return rows
}

// Summary aggregates an event list by kind.
type Summary struct {
	Events       int                           `json:"events"`
	ByKind       map[types.TransferKind]int    `json:"by_kind"`
	ByOutcome    map[types.TransferOutcome]int `json:"by_outcome"`
	BytesRead    int64                         `json:"bytes_read"`
	BytesWritten int64                         `json:"bytes_written"`
}

// Summarize counts events by kind and outcome and totals bytes moved.
func (l EventList) Summarize() Summary {
	s := Summary{
		ByKind:    make(map[types.TransferKind]int),
		ByOutcome: make(map[types.TransferOutcome]int),
	}
	for _, e := range l {
		s.Events++
		s.ByKind[e.Kind]++
		s.ByOutcome[e.Outcome]++
		s.BytesRead += e.BytesRead
		s.BytesWritten += e.BytesWritten
	}
	return s
}
