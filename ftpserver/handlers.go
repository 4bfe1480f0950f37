package ftpserver

import (
	"encoding/binary"
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/justapithecus/skylink/types"
	"github.com/justapithecus/skylink/wire"
)

// resolve maps the entry-th path string of req into the sandbox.
func (s *Server) resolve(req *wire.Payload, entry int) (string, error) {
	path, err := s.resolver.Resolve(req.Text(entry))
	if err != nil {
		s.logger.Warn("path rejected", map[string]any{"path": req.Text(entry), "error": err.Error()})
		return "", err
	}
	return path, nil
}

// resolveOpen resolves the target of an open or create request. Alias
// names take precedence over sandbox resolution. The returned name is
// what transfer events report.
func (s *Server) resolveOpen(req *wire.Payload) (path, name string, err error) {
	raw := req.Text(0)
	if aliased, ok := s.aliases[raw]; ok {
		return aliased, raw, nil
	}
	path, err = s.resolve(req, 0)
	if err != nil {
		return "", "", err
	}
	return path, s.resolver.Rel(path), nil
}

// statResult maps a stat failure to a protocol result.
func statResult(err error) error {
	if isNotExist(err) {
		return wire.ErrFailFileDoesNotExist
	}
	return wire.ErrFail
}

// isNotExist reports whether err means the path is absent.
func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func putSize(rsp *wire.Payload, size int64) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(size))
	rsp.SetBytes(b[:])
}

func (s *Server) handleTerminate(_, _ *wire.Payload) error {
	s.closeSession(types.OutcomeTerminated)
	return nil
}

func (s *Server) handleReset(_, _ *wire.Payload) error {
	s.closeSession(types.OutcomeReset)
	return nil
}

func (s *Server) handleOpenRO(req, rsp *wire.Payload) error {
	s.closeSession(types.OutcomeReplaced)

	path, name, err := s.resolveOpen(req)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return statResult(err)
	}
	if info.IsDir() {
		return wire.ErrFail
	}

	f, err := os.Open(path)
	if err != nil {
		return wire.ErrFail
	}

	s.openSession(stateReadOpen, f, info.Size(), types.TransferKindRead, name)
	putSize(rsp, info.Size())
	return nil
}

// handleOpenWO opens an existing file for writing without truncating it.
func (s *Server) handleOpenWO(req, rsp *wire.Payload) error {
	s.closeSession(types.OutcomeReplaced)

	path, name, err := s.resolveOpen(req)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return statResult(err)
	}
	if info.IsDir() {
		return wire.ErrFail
	}

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return wire.ErrFail
	}

	s.openSession(stateWriteOpen, f, info.Size(), types.TransferKindWrite, name)
	putSize(rsp, info.Size())
	return nil
}

func (s *Server) handleCreate(req, _ *wire.Payload) error {
	s.closeSession(types.OutcomeReplaced)

	path, name, err := s.resolveOpen(req)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		s.logger.Warn("failed to create file", map[string]any{"path": name, "error": err.Error()})
		return wire.ErrFail
	}

	s.openSession(stateWriteOpen, f, 0, types.TransferKindCreate, name)
	return nil
}

func (s *Server) handleRead(req, rsp *wire.Payload) error {
	if s.sess.state != stateReadOpen {
		return wire.ErrInvalidSession
	}
	if int64(req.Offset) >= s.sess.size {
		return wire.ErrEOF
	}

	n, err := s.sess.file.ReadAt(rsp.Data[:req.Size], int64(req.Offset))
	if err != nil && !errors.Is(err, io.EOF) {
		s.logger.Warn("read failed", map[string]any{"path": s.sess.event.Path, "error": err.Error()})
		return wire.ErrFail
	}

	rsp.Size = uint8(n)
	rsp.Offset = req.Offset
	s.sess.event.BytesRead += int64(n)
	s.metrics.AddBytesRead(int64(n))
	return nil
}

func (s *Server) handleWrite(req, _ *wire.Payload) error {
	if s.sess.state != stateWriteOpen {
		return wire.ErrInvalidSession
	}

	n, err := s.sess.file.WriteAt(req.Bytes(), int64(req.Offset))
	s.sess.event.BytesWritten += int64(n)
	s.metrics.AddBytesWritten(int64(n))
	if err != nil {
		s.logger.Warn("write failed", map[string]any{"path": s.sess.event.Path, "error": err.Error()})
		return wire.ErrFail
	}
	return nil
}
