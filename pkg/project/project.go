// Package project implements the JSON-backed project metadata store and
// the current-project reference. Every path it produces or trusts is
// checked against the sandbox; the current-project reference is
// re-validated on every read, never trusted after being set.
package project

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"codeme/pkg/protocol"
	"codeme/pkg/sandbox"
)

// Project holds the stored metadata for one project.
type Project struct {
	Name           string    `json:"name"`
	SafeName       string    `json:"safe_name"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed"`
	Files          []string  `json:"files"`
	Path           string    `json:"path"`
}

// index is the on-disk shape of the projects index file.
type index struct {
	Projects     map[string]*Project `json:"projects"`
	LastAccessed string              `json:"last_accessed"`
}

// Manager owns the projects index and the current-project reference.
// The processing loop is the only mutator of project state; the mutex
// exists because the root watcher invalidates the current reference
// from its own goroutine.
type Manager struct {
	sb        *sandbox.Sandbox
	indexPath string

	mu  sync.Mutex
	idx index

	// currentSafeName is the optionally-empty current-project pointer.
	// Read through Current(), which re-validates it against the sandbox.
	currentSafeName string

	nowFunc func() time.Time
}

// NewManager loads (or initializes) the index at indexPath. A corrupt
// index file is replaced with an empty one rather than aborting startup.
func NewManager(sb *sandbox.Sandbox, indexPath string) (*Manager, error) {
	m := &Manager{
		sb:        sb,
		indexPath: indexPath,
		idx:       index{Projects: make(map[string]*Project)},
		nowFunc:   time.Now,
	}
	data, err := os.ReadFile(indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("read projects index: %w", err)
	}
	if err := json.Unmarshal(data, &m.idx); err != nil || m.idx.Projects == nil {
		m.idx = index{Projects: make(map[string]*Project)}
	}
	return m, nil
}

// saveIndexLocked writes the index file. Caller must hold m.mu.
func (m *Manager) saveIndexLocked() error {
	data, err := json.MarshalIndent(m.idx, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.indexPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(m.indexPath, data, 0o644)
}

// Create makes a new project directory with the standard template layout
// and registers it in the index. The new project becomes current.
func (m *Manager) Create(name, description string) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	safeName := sandbox.SanitizeName(name)
	dir, err := m.sb.Resolve(m.sb.ProjectsRoot(), safeName)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("project %q already exists", name)
	}

	now := m.nowFunc()
	p := &Project{
		Name:           name,
		SafeName:       safeName,
		Description:    description,
		CreatedAt:      now,
		LastAccessedAt: now,
		Files:          []string{},
		Path:           dir,
	}

	if err := scaffold(dir, p); err != nil {
		// Leave no partial project behind.
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("scaffold project: %w", err)
	}
	if err := writeProjectConfig(p); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	m.idx.Projects[safeName] = p
	m.idx.LastAccessed = safeName
	if err := m.saveIndexLocked(); err != nil {
		return nil, err
	}
	m.currentSafeName = safeName
	return p, nil
}

// Load sets the named project as current and bumps its access time.
func (m *Manager) Load(name string) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	safeName := sandbox.SanitizeName(name)
	p, ok := m.idx.Projects[safeName]
	if !ok {
		return nil, &protocol.ProjectNotFoundError{Name: name}
	}
	if !m.sb.IsSafe(p.Path) {
		return nil, &protocol.PathViolationError{Path: p.Path}
	}
	if _, err := os.Stat(p.Path); err != nil {
		return nil, &protocol.ProjectNotFoundError{Name: name}
	}

	p.LastAccessedAt = m.nowFunc()
	m.idx.LastAccessed = safeName
	if err := m.saveIndexLocked(); err != nil {
		return nil, err
	}
	if err := writeProjectConfig(p); err != nil {
		return nil, err
	}
	m.currentSafeName = safeName
	return p, nil
}

// Current returns the currently loaded project, or nil when none is
// loaded. The stored reference is re-validated on every read: if the
// project directory vanished or now resolves outside the sandbox it is
// treated as absent and the pointer cleared.
func (m *Manager) Current() *Project {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLocked()
}

// currentLocked is Current without locking. Caller must hold m.mu.
func (m *Manager) currentLocked() *Project {
	if m.currentSafeName == "" {
		return nil
	}
	p, ok := m.idx.Projects[m.currentSafeName]
	if !ok {
		m.currentSafeName = ""
		return nil
	}
	if !m.sb.IsSafe(p.Path) {
		m.currentSafeName = ""
		return nil
	}
	if _, err := os.Stat(p.Path); err != nil {
		m.currentSafeName = ""
		return nil
	}
	return p
}

// Invalidate clears the current-project pointer if it no longer passes
// validation. Called by the projects-root watcher on external changes.
func (m *Manager) Invalidate() {
	_ = m.Current()
}

// Delete backs a project up, then removes it from disk and the index.
func (m *Manager) Delete(name string) (backupPath string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	safeName := sandbox.SanitizeName(name)
	p, ok := m.idx.Projects[safeName]
	if !ok {
		return "", &protocol.ProjectNotFoundError{Name: name}
	}
	if !m.sb.IsSafe(p.Path) {
		return "", &protocol.PathViolationError{Path: p.Path}
	}

	backupPath, err = m.backupLocked(p)
	if err != nil {
		return "", fmt.Errorf("backup before delete: %w", err)
	}
	if err := os.RemoveAll(p.Path); err != nil {
		return "", fmt.Errorf("remove project dir: %w", err)
	}

	delete(m.idx.Projects, safeName)
	if m.idx.LastAccessed == safeName {
		m.idx.LastAccessed = ""
	}
	if err := m.saveIndexLocked(); err != nil {
		return "", err
	}
	if m.currentSafeName == safeName {
		m.currentSafeName = ""
	}
	return backupPath, nil
}

// Backup copies the current project into the backups root under a
// timestamped directory name.
func (m *Manager) Backup() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.currentLocked()
	if p == nil {
		return "", &protocol.NoProjectError{}
	}
	return m.backupLocked(p)
}

// backupLocked copies p into the backups root. Caller must hold m.mu.
func (m *Manager) backupLocked(p *Project) (string, error) {
	stamp := m.nowFunc().Format("20060102_150405")
	dest, err := m.sb.Resolve(m.sb.BackupsRoot(), fmt.Sprintf("%s_%s", p.SafeName, stamp))
	if err != nil {
		return "", err
	}
	if err := copyTree(p.Path, dest); err != nil {
		return "", fmt.Errorf("copy project tree: %w", err)
	}
	return dest, nil
}

// List returns all indexed projects whose directories still exist,
// sorted by name.
func (m *Manager) List() []*Project {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Project, 0, len(m.idx.Projects))
	for _, p := range m.idx.Projects {
		if _, err := os.Stat(p.Path); err != nil {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AddFile records a file path (relative to the project root) in the
// current project's file list. The absolute path must already be safe.
func (m *Manager) AddFile(absPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.currentLocked()
	if p == nil {
		return &protocol.NoProjectError{}
	}
	if !m.sb.IsSafe(absPath) {
		return &protocol.PathViolationError{Path: absPath}
	}
	rel, err := filepath.Rel(p.Path, absPath)
	if err != nil || rel == ".." || filepath.IsAbs(rel) {
		return fmt.Errorf("file %q is not inside project %q", absPath, p.Name)
	}
	for _, f := range p.Files {
		if f == rel {
			return nil
		}
	}
	p.Files = append(p.Files, rel)
	if err := m.saveIndexLocked(); err != nil {
		return err
	}
	return writeProjectConfig(p)
}

// Files returns the tracked files of the current project that still
// exist and are still safe.
func (m *Manager) Files() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.currentLocked()
	if p == nil {
		return nil
	}
	var out []string
	for _, rel := range p.Files {
		abs := filepath.Join(p.Path, rel)
		if !m.sb.IsSafe(abs) {
			continue
		}
		if _, err := os.Stat(abs); err != nil {
			continue
		}
		out = append(out, rel)
	}
	return out
}

// writeProjectConfig writes the per-project project.json snapshot.
func writeProjectConfig(p *Project) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(p.Path, "project.json"), data, 0o644)
}

// copyTree recursively copies src into dst. Symlinks are skipped; a
// backup never follows a link out of the sandbox.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
