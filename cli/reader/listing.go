package reader

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// DirEntry is one entry of a directory listing reply.
type DirEntry struct {
	Name  string `json:"name" yaml:"name"`
	IsDir bool   `json:"is_dir" yaml:"is_dir"`
	Size  int64  `json:"size" yaml:"size"`
}

// ParseDirEntries decodes the data field of a list-directory ACK:
// NUL-terminated records "F<name>\t<size>" for files and "D<name>" for
// directories. Empty records, such as trailing padding, are skipped.
func ParseDirEntries(data []byte) ([]DirEntry, error) {
	var out []DirEntry
	for rec := range bytes.SplitSeq(data, []byte{0}) {
		if len(rec) == 0 {
			continue
		}
		entry, err := parseDirRecord(string(rec))
		if err != nil {
			return out, err
		}
		out = append(out, entry)
	}
	return out, nil
}

func parseDirRecord(rec string) (DirEntry, error) {
	kind, body := rec[0], rec[1:]
	switch kind {
	case 'D':
		return DirEntry{Name: body, IsDir: true}, nil
	case 'F':
		name, size, ok := strings.Cut(body, "\t")
		if !ok {
			return DirEntry{}, fmt.Errorf("file entry %q has no size", body)
		}
		n, err := strconv.ParseInt(size, 10, 64)
		if err != nil {
			return DirEntry{}, fmt.Errorf("file entry %q: bad size: %w", name, err)
		}
		return DirEntry{Name: name, Size: n}, nil
	default:
		return DirEntry{}, fmt.Errorf("unknown entry type %q", kind)
	}
}

// Listing is a directory listing for rendering.
type Listing []DirEntry

// Header implements render.Table.
func (l Listing) Header() []string {
	return []string{"TYPE", "NAME", "SIZE"}
}

// Rows implements render.Table.
func (l Listing) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, e := range l {
		if e.IsDir {
			rows = append(rows, []string{"dir", e.Name + "/", "-"})
			continue
		}
		rows = append(rows, []string{"file", e.Name, strconv.FormatInt(e.Size, 10)})
	}
	return rows
}
