// Package sandbox implements the two-root path safety boundary. Every
// file-touching operation in the assistant — project lifecycle, handler
// writes, current-project reads — must pass through this predicate.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"codeme/pkg/protocol"
)

// Sandbox holds the two fixed roots. A path is safe iff its fully
// resolved form has one of the roots as a strict ancestor.
type Sandbox struct {
	projectsRoot string
	backupsRoot  string
}

// New creates a Sandbox over the given roots. Both are resolved to
// absolute, symlink-free form; creation fails if either cannot be made.
func New(projectsRoot, backupsRoot string) (*Sandbox, error) {
	pr, err := ensureRoot(projectsRoot)
	if err != nil {
		return nil, fmt.Errorf("projects root: %w", err)
	}
	br, err := ensureRoot(backupsRoot)
	if err != nil {
		return nil, fmt.Errorf("backups root: %w", err)
	}
	return &Sandbox{projectsRoot: pr, backupsRoot: br}, nil
}

// ProjectsRoot returns the resolved projects root.
func (s *Sandbox) ProjectsRoot() string { return s.projectsRoot }

// BackupsRoot returns the resolved backups root.
func (s *Sandbox) BackupsRoot() string { return s.backupsRoot }

// IsSafe reports whether path, fully resolved, is strictly inside one of
// the two roots. The roots themselves are not safe targets.
func (s *Sandbox) IsSafe(path string) bool {
	resolved, err := canonicalize(path)
	if err != nil {
		return false
	}
	return strictAncestor(s.projectsRoot, resolved) || strictAncestor(s.backupsRoot, resolved)
}

// Resolve joins elem onto base, canonicalizes the result, and re-checks
// safety. It is called immediately before every read or write, not only
// at plan validation time, so a path that became unsafe between check and
// use (symlink swapped in, root removed) is still rejected.
func (s *Sandbox) Resolve(base string, elem ...string) (string, error) {
	joined := filepath.Join(append([]string{base}, elem...)...)
	resolved, err := canonicalize(joined)
	if err != nil {
		return "", &protocol.PathViolationError{Path: joined}
	}
	if !strictAncestor(s.projectsRoot, resolved) && !strictAncestor(s.backupsRoot, resolved) {
		return "", &protocol.PathViolationError{Path: joined}
	}
	return resolved, nil
}

// SanitizeName replaces every rune that is not alphanumeric with an
// underscore. It runs before a user-supplied name becomes a path
// component; the safety check is still mandatory afterwards.
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// ensureRoot creates the directory if needed and returns its canonical
// absolute path.
func ensureRoot(dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("empty root")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// canonicalize returns the absolute, symlink-resolved form of path. The
// path itself may not exist yet (handlers resolve targets before
// creating them), so symlinks are evaluated over the deepest existing
// ancestor and the non-existent suffix is re-joined afterwards.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)

	existing := abs
	var suffix []string
	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			return filepath.Join(append([]string{resolved}, suffix...)...), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return "", err
		}
		suffix = append([]string{filepath.Base(existing)}, suffix...)
		existing = parent
	}
}

// strictAncestor reports whether root is a strict ancestor of path. Both
// must already be canonical.
func strictAncestor(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
