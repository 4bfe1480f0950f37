// Package sandbox confines client-supplied paths to a root directory.
package sandbox

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrNoRoot is returned by Resolve when no root directory is configured.
var ErrNoRoot = errors.New("sandbox: root directory not set")

// EscapeError reports a path that resolved outside the root directory.
type EscapeError struct {
	Path string
	Root string
}

func (e *EscapeError) Error() string {
	return fmt.Sprintf("sandbox: %q is not inside root %q", e.Path, e.Root)
}

// IsEscape reports whether err is an *EscapeError.
func IsEscape(err error) bool {
	var escErr *EscapeError
	return errors.As(err, &escErr)
}

// Resolver maps protocol paths onto the local filesystem beneath a root.
//
// The containment check compares the resolved path's text against the
// root's text as a plain string prefix. There is no separator boundary, so
// with root "/data" the path "../data2/x" resolves to "/data2/x" and is
// accepted. Symlinks below the root are not evaluated.
//
// The zero value has no root and rejects every path.
type Resolver struct {
	root string
}

// NewResolver returns a Resolver rooted at the canonical form of root.
// If root cannot be canonicalized (for example, it does not exist) the
// Resolver has no root and the error is returned alongside it.
func NewResolver(root string) (Resolver, error) {
	canonical, err := Canonicalize(root)
	if err != nil {
		return Resolver{}, err
	}
	return Resolver{root: canonical}, nil
}

// Canonicalize returns the absolute, symlink-free form of path.
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("cannot resolve %q: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("cannot resolve %q: %w", path, err)
	}
	return resolved, nil
}

// Root returns the canonical root, or "" if none is set.
func (r Resolver) Root() string {
	return r.root
}

// Resolve maps raw onto a path beneath the root.
//
// One leading separator is stripped so absolute protocol paths are taken
// relative to the root. The joined path is lexically cleaned. The empty
// string resolves to the root itself.
func (r Resolver) Resolve(raw string) (string, error) {
	if r.root == "" {
		return "", ErrNoRoot
	}

	rel := strings.TrimPrefix(raw, "/")
	combined := filepath.Join(r.root, rel)

	if !strings.HasPrefix(combined, r.root) {
		return "", &EscapeError{Path: combined, Root: r.root}
	}
	return combined, nil
}

// Rel returns path relative to the root, using forward slashes.
// Paths outside the root are returned unchanged.
func (r Resolver) Rel(path string) string {
	if r.root == "" {
		return path
	}
	rel, err := filepath.Rel(r.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}
