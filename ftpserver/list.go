package ftpserver

import (
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/justapithecus/skylink/iox"
	"github.com/justapithecus/skylink/wire"
)

// handleList answers one page of a directory listing.
//
// Entries are taken in directory order, skipping the first req.Offset.
// Files encode as "F<name>\t<size>\x00" and directories as "D<name>\x00";
// other kinds are skipped but still count toward the offset. The page ends
// before the entry that would overflow the data field. An empty page is
// ErrEOF.
func (s *Server) handleList(req, rsp *wire.Payload) error {
	path, err := s.resolve(req, 0)
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err != nil {
		return statResult(err)
	}

	dir, err := os.Open(path)
	if err != nil {
		return wire.ErrFail
	}
	defer iox.DiscardClose(dir)

	entries, err := dir.ReadDir(-1)
	if err != nil {
		s.logger.Warn("failed to list directory", map[string]any{"path": s.resolver.Rel(path), "error": err.Error()})
		return wire.ErrFail
	}

	skip := int64(req.Offset)
	page := make([]byte, 0, wire.MaxDataLength)
	for _, entry := range entries {
		if skip > 0 {
			skip--
			continue
		}

		encoded, ok := encodeEntry(path, entry)
		if !ok {
			continue
		}
		if len(page)+len(encoded) > wire.MaxDataLength {
			break
		}
		page = append(page, encoded...)
	}

	if len(page) == 0 {
		return wire.ErrEOF
	}
	rsp.SetBytes(page)
	return nil
}

// encodeEntry returns the listing record for entry, following symlinks.
// ok is false for entries that are neither regular files nor directories,
// or whose type cannot be determined.
func encodeEntry(dir string, entry fs.DirEntry) (encoded []byte, ok bool) {
	mode := entry.Type()
	var size int64

	if mode&fs.ModeSymlink != 0 || mode.IsRegular() {
		info, err := os.Stat(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, false
		}
		mode = info.Mode().Type()
		size = info.Size()
	}

	switch {
	case mode.IsRegular():
		b := make([]byte, 0, len(entry.Name())+24)
		b = append(b, 'F')
		b = append(b, entry.Name()...)
		b = append(b, '\t')
		b = strconv.AppendInt(b, size, 10)
		return append(b, 0), true
	case mode.IsDir():
		b := make([]byte, 0, len(entry.Name())+2)
		b = append(b, 'D')
		b = append(b, entry.Name()...)
		return append(b, 0), true
	default:
		return nil, false
	}
}
