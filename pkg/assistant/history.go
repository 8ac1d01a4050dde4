package assistant

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"codeme/pkg/protocol"
)

// History is the persisted command record. Entries appended during a
// session are merged with whatever is on disk at save time, so two
// assistant processes sharing a history file do not clobber each other,
// and saving twice writes nothing new.
type History struct {
	path string

	mu      sync.Mutex
	loaded  []protocol.HistoryEntry
	session []protocol.HistoryEntry
}

// OpenHistory loads the history file at path. Missing or corrupt files
// start an empty history.
func OpenHistory(path string) *History {
	h := &History{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		return h
	}
	if err := json.Unmarshal(data, &h.loaded); err != nil {
		h.loaded = nil
	}
	return h
}

// Append records a processed command.
func (h *History) Append(e protocol.HistoryEntry) {
	h.mu.Lock()
	h.session = append(h.session, e)
	h.mu.Unlock()
}

// Recent returns up to n newest entries, oldest first.
func (h *History) Recent(n int) []protocol.HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	all := make([]protocol.HistoryEntry, 0, len(h.loaded)+len(h.session))
	all = append(all, h.loaded...)
	all = append(all, h.session...)
	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return all
}

// entryKey identifies an entry across JSON round trips. Comparing
// time.Time values directly would miss matches once the monotonic
// reading is stripped by serialization.
type entryKey struct {
	ts     int64
	source protocol.Source
	raw    string
}

func keyOf(e protocol.HistoryEntry) entryKey {
	return entryKey{ts: e.Timestamp.UnixNano(), source: e.Source, raw: e.RawText}
}

// Save merges the session's entries into the on-disk history, capped to
// the newest HistoryCap entries. Entries already present on disk are
// not duplicated, so Save is idempotent.
func (h *History) Save() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var disk []protocol.HistoryEntry
	if data, err := os.ReadFile(h.path); err == nil {
		if err := json.Unmarshal(data, &disk); err != nil {
			disk = nil
		}
	}

	seen := make(map[entryKey]bool, len(disk))
	for _, e := range disk {
		seen[keyOf(e)] = true
	}
	merged := disk
	for _, e := range h.session {
		k := keyOf(e)
		if seen[k] {
			continue
		}
		seen[k] = true
		merged = append(merged, e)
	}
	if len(merged) > protocol.HistoryCap {
		merged = merged[len(merged)-protocol.HistoryCap:]
	}

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(h.path, data, 0o644); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}
