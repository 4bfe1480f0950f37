package ftpserver

import (
	"errors"
	"io"

	"github.com/justapithecus/skylink/wire"
)

// burstWorker is the handle of the single goroutine streaming a burst read.
type burstWorker struct {
	target wire.Address
	stop   chan struct{}
	done   chan struct{}
}

// handleBurstRead arms a burst on the open read session and starts the
// worker. Any previous worker has already been joined by the dispatcher.
// Replies are sent by the worker, so success returns errReplyDeferred.
func (s *Server) handleBurstRead(req, _ *wire.Payload) error {
	if s.sess.state != stateReadOpen {
		return wire.ErrInvalidSession
	}
	if int64(req.Offset) >= s.sess.size {
		return wire.ErrEOF
	}

	chunk := int(req.Size)
	if chunk == 0 {
		chunk = wire.MaxDataLength
	}
	s.sess.burstOffset = req.Offset
	s.sess.burstChunk = chunk
	s.sess.burstSeq = req.Seq + 1
	s.sess.event.Bursts++

	w := &burstWorker{
		target: s.peer,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	s.burst = w
	s.metrics.IncBurstStarted()
	s.logger.Debug("burst started", map[string]any{
		"path":   s.sess.event.Path,
		"offset": req.Offset,
		"chunk":  chunk,
	})

	go s.runBurst(w)
	return errReplyDeferred
}

// cancelBurst stops the burst worker, if any, and waits for it to exit.
// Requires reqMu and must not hold mu, which the worker takes per packet.
func (s *Server) cancelBurst() {
	w := s.burst
	if w == nil {
		return
	}
	s.burst = nil
	close(w.stop)
	<-w.done
}

func (s *Server) runBurst(w *burstWorker) {
	defer close(w.done)

	for {
		select {
		case <-w.stop:
			s.metrics.IncBurstCancelled()
			return
		default:
		}

		last, completed, ok := s.sendBurstPacket(w)
		if !ok {
			s.metrics.IncBurstCancelled()
			return
		}
		if last {
			if completed {
				s.metrics.IncBurstCompleted()
			}
			return
		}
	}
}

// sendBurstPacket reads the next chunk and sends it, all under mu, then
// advances the burst. ok is false if the worker was stopped while waiting
// for the lock. last is true for the final data packet and for a read
// failure NAK; completed only for the former.
func (s *Server) sendBurstPacket(w *burstWorker) (last, completed, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-w.stop:
		return false, false, false
	default:
	}
	if s.sess.state != stateReadOpen {
		return false, false, false
	}

	sess := &s.sess
	pkt := wire.Payload{
		Seq:       sess.burstSeq,
		Opcode:    wire.RspAck,
		ReqOpcode: wire.CmdBurstReadFile,
		Offset:    sess.burstOffset,
	}
	sess.burstSeq++

	remaining := sess.size - int64(sess.burstOffset)
	n := int64(sess.burstChunk)
	if remaining < n {
		n = remaining
	}

	got, err := sess.file.ReadAt(pkt.Data[:n], int64(sess.burstOffset))
	if err != nil && !errors.Is(err, io.EOF) {
		s.logger.Warn("burst read failed", map[string]any{
			"path":   sess.event.Path,
			"offset": sess.burstOffset,
			"error":  err.Error(),
		})
		setNak(&pkt, wire.ErrFail)
		s.send(w.target, &pkt)
		return true, false, true
	}

	pkt.Size = uint8(got)
	sess.burstOffset += uint32(got)
	sess.event.BytesRead += int64(got)
	s.metrics.AddBytesRead(int64(got))
	s.metrics.IncBurstPacket()

	// A short read means the file shrank under us; end the burst there.
	if int64(sess.burstOffset) >= sess.size || int64(got) < n {
		pkt.BurstComplete = 1
		last = true
	}
	s.send(w.target, &pkt)
	return last, last, true
}
