package ftpserver

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/justapithecus/skylink/iox"
	"github.com/justapithecus/skylink/types"
	"github.com/justapithecus/skylink/wire"
)

// crcChunkSize is the read buffer used when checksumming a file.
const crcChunkSize = 16 * 1024

func (s *Server) handleRemoveFile(req, _ *wire.Payload) error {
	path, err := s.resolve(req, 0)
	if err != nil {
		return err
	}

	info, err := os.Lstat(path)
	if err != nil {
		return statResult(err)
	}
	if info.IsDir() {
		return wire.ErrFail
	}
	if err := os.Remove(path); err != nil {
		s.logger.Warn("failed to remove file", map[string]any{"path": s.resolver.Rel(path), "error": err.Error()})
		return wire.ErrFail
	}

	s.recordMutation(types.TransferKindRemoveFile, path, "")
	return nil
}

func (s *Server) handleRemoveDirectory(req, _ *wire.Payload) error {
	path, err := s.resolve(req, 0)
	if err != nil {
		return err
	}

	info, err := os.Lstat(path)
	if err != nil {
		return statResult(err)
	}
	if !info.IsDir() {
		return wire.ErrFail
	}
	if err := os.Remove(path); err != nil {
		s.logger.Warn("failed to remove directory", map[string]any{"path": s.resolver.Rel(path), "error": err.Error()})
		return wire.ErrFail
	}

	s.recordMutation(types.TransferKindRemoveDir, path, "")
	return nil
}

// handleCreateDirectory creates one directory level. OS failures are
// reported as ErrFailErrno with the errno in the second data byte.
func (s *Server) handleCreateDirectory(req, _ *wire.Payload) error {
	path, err := s.resolve(req, 0)
	if err != nil {
		return err
	}

	if _, err := os.Lstat(path); err == nil {
		return wire.ErrFailFileExists
	}
	if err := os.Mkdir(path, 0o755); err != nil {
		s.logger.Warn("failed to create directory", map[string]any{"path": s.resolver.Rel(path), "error": err.Error()})
		return withErrno(err)
	}

	s.recordMutation(types.TransferKindCreateDir, path, "")
	return nil
}

// handleRename moves the path in the first data string to the path in
// the second.
func (s *Server) handleRename(req, _ *wire.Payload) error {
	oldPath, err := s.resolve(req, 0)
	if err != nil {
		return err
	}
	newPath, err := s.resolve(req, 1)
	if err != nil {
		return err
	}

	if _, err := os.Lstat(oldPath); err != nil {
		return statResult(err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		s.logger.Warn("failed to rename", map[string]any{
			"from":  s.resolver.Rel(oldPath),
			"to":    s.resolver.Rel(newPath),
			"error": err.Error(),
		})
		return wire.ErrFail
	}

	s.recordMutation(types.TransferKindRename, oldPath, newPath)
	return nil
}

// handleTruncate sets the length of the file at path to req.Offset.
func (s *Server) handleTruncate(req, _ *wire.Payload) error {
	path, err := s.resolve(req, 0)
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
	if err := os.Truncate(path, int64(req.Offset)); err != nil {
		s.logger.Warn("failed to truncate", map[string]any{"path": s.resolver.Rel(path), "error": err.Error()})
		return wire.ErrFail
	}

	s.recordMutation(types.TransferKindTruncate, path, "")
	return nil
}

func (s *Server) handleCRC32(req, rsp *wire.Payload) error {
	path, err := s.resolve(req, 0)
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err != nil {
		return statResult(err)
	}

	sum, err := fileCRC32(path)
	if err != nil {
		s.logger.Warn("failed to checksum file", map[string]any{"path": s.resolver.Rel(path), "error": err.Error()})
		return err
	}

	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], sum)
	rsp.SetBytes(b[:])
	return nil
}

// fileCRC32 streams the file at path through CRC-32 (IEEE).
// Open failures are ErrFail; failures mid-stream are ErrFileIOError.
func fileCRC32(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", wire.ErrFail, err)
	}
	defer iox.DiscardClose(f)

	h := crc32.NewIEEE()
	buf := make([]byte, crcChunkSize)
	for {
		n, err := f.Read(buf)
		h.Write(buf[:n])
		if err == io.EOF {
			return h.Sum32(), nil
		}
		if err != nil {
			return 0, fmt.Errorf("%w: %w", wire.ErrFileIOError, err)
		}
	}
}
