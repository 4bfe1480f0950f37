package ftpserver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidAliasName is returned for alias names that could address a
// path outside the temp directory.
var ErrInvalidAliasName = errors.New("ftpserver: alias name must not contain \"..\", \"/\" or \"\\\"")

func validAliasName(name string) bool {
	return name != "" && !strings.Contains(name, "..") && !strings.ContainsAny(name, `/\`)
}

// WriteTempFile stores content in a server-private temp directory and
// registers name as an alias for it. Open and create requests whose path
// equals name then address the temp file instead of the sandbox. Returns
// the temp file's path.
func (s *Server) WriteTempFile(name string, content []byte) (string, error) {
	if !validAliasName(name) {
		return "", ErrInvalidAliasName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tmpDir == "" {
		dir, err := os.MkdirTemp(s.tmpParent, "skylink-ftp-")
		if err != nil {
			return "", fmt.Errorf("failed to create temp dir: %w", err)
		}
		s.tmpDir = dir
	}

	path := filepath.Join(s.tmpDir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write temp file %q: %w", name, err)
	}
	s.aliases[name] = path
	s.logger.Debug("temp file written", map[string]any{"alias": name, "bytes": len(content)})
	return path, nil
}

// RegisterAlias makes name address an existing local file for open and
// create requests. path need not be inside the root directory.
func (s *Server) RegisterAlias(name, path string) error {
	if !validAliasName(name) {
		return ErrInvalidAliasName
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("cannot resolve alias %q: %w", name, err)
	}

	s.mu.Lock()
	s.aliases[name] = abs
	s.mu.Unlock()
	return nil
}
