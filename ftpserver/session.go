package ftpserver

import (
	"os"

	"github.com/justapithecus/skylink/types"
)

type sessionState int

const (
	stateIdle sessionState = iota
	stateReadOpen
	stateWriteOpen
)

func (st sessionState) String() string {
	switch st {
	case stateReadOpen:
		return "read_open"
	case stateWriteOpen:
		return "write_open"
	default:
		return "idle"
	}
}

// session is the single open file. The zero value is idle.
//
// Burst fields are meaningful only in stateReadOpen while a worker runs.
type session struct {
	state sessionState
	file  *os.File
	size  int64
	event *types.TransferEvent

	burstOffset uint32
	burstChunk  int
	burstSeq    uint16
}

// openSession installs f as the session file. Requires mu.
func (s *Server) openSession(state sessionState, f *os.File, size int64, kind types.TransferKind, name string) {
	e := types.NewTransferEvent(kind, name)
	e.SystemID = s.self.SystemID
	e.ComponentID = s.self.ComponentID
	e.Peer = s.peer.String()
	e.Size = size

	s.sess = session{
		state: state,
		file:  f,
		size:  size,
		event: e,
	}
	s.metrics.IncSessionOpened()
	s.logger.Debug("session opened", map[string]any{
		"state": state.String(),
		"path":  name,
		"size":  size,
	})
}

// closeSession tears down the session, if any, and emits its transfer
// event. Requires mu, and the burst worker must already be stopped.
func (s *Server) closeSession(outcome types.TransferOutcome) {
	if s.sess.state == stateIdle {
		return
	}

	if err := s.sess.file.Close(); err != nil {
		s.logger.Warn("failed to close session file", map[string]any{"error": err.Error()})
	}

	e := s.sess.event
	e.Close(outcome)
	s.events.Record(e)
	s.metrics.IncSessionClosed()
	s.logger.Debug("session closed", map[string]any{
		"path":          e.Path,
		"outcome":       string(outcome),
		"bytes_read":    e.BytesRead,
		"bytes_written": e.BytesWritten,
	})

	s.sess = session{}
}

// recordMutation emits a completed single-request transfer event. Requires mu.
func (s *Server) recordMutation(kind types.TransferKind, path, newPath string) {
	e := types.NewTransferEvent(kind, s.resolver.Rel(path))
	e.SystemID = s.self.SystemID
	e.ComponentID = s.self.ComponentID
	e.Peer = s.peer.String()
	if newPath != "" {
		e.NewPath = s.resolver.Rel(newPath)
	}
	e.Close(types.OutcomeCompleted)
	s.events.Record(e)
}
