package link

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/justapithecus/skylink/ipc"
	"github.com/justapithecus/skylink/wire"
)

// Stream is a Conn over a byte stream using length-prefixed msgpack frames.
type Stream struct {
	rwc io.ReadWriteCloser
	dec *ipc.FrameDecoder

	wmu sync.Mutex

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewStream wraps rwc. The Stream owns rwc and closes it on Close.
func NewStream(rwc io.ReadWriteCloser) *Stream {
	return &Stream{rwc: rwc, dec: ipc.NewFrameDecoder(rwc)}
}

// ReadMessage reads the next framed message. It blocks until a frame arrives
// or the stream is closed; ctx is only checked before reading.
//
// A *ipc.FrameError of kind FrameErrorDecode spoils one frame only; other
// errors end the stream.
func (s *Stream) ReadMessage(ctx context.Context) (wire.Message, error) {
	if err := ctx.Err(); err != nil {
		return wire.Message{}, err
	}
	if s.closed.Load() {
		return wire.Message{}, ErrClosed
	}
	msg, err := s.dec.ReadMessage()
	if err != nil && s.closed.Load() {
		return wire.Message{}, ErrClosed
	}
	return msg, err
}

// WriteMessage writes msg as a single frame.
func (s *Stream) WriteMessage(msg wire.Message) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return ipc.WriteMessage(s.rwc, &msg)
}

// Close closes the underlying stream.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = s.rwc.Close()
	})
	return s.closeErr
}

var _ Conn = (*Stream)(nil)
