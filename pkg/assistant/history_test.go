package assistant

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeme/pkg/protocol"
)

func entry(i int) protocol.HistoryEntry {
	return protocol.HistoryEntry{
		Timestamp: time.Date(2026, 3, 1, 10, 0, i, 0, time.UTC),
		Source:    protocol.SourceText,
		RawText:   fmt.Sprintf("command %d", i),
	}
}

func readHistoryFile(t *testing.T, path string) []protocol.HistoryEntry {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	var entries []protocol.HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("parse history: %v", err)
	}
	return entries
}

func TestHistorySaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	h := OpenHistory(path)
	h.Append(entry(1))
	h.Append(entry(2))
	if err := h.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	h2 := OpenHistory(path)
	got := h2.Recent(0)
	if len(got) != 2 || got[0].RawText != "command 1" || got[1].RawText != "command 2" {
		t.Fatalf("reloaded = %+v", got)
	}
}

func TestHistorySaveIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	h := OpenHistory(path)
	h.Append(entry(1))
	h.Append(entry(2))

	for i := 0; i < 3; i++ {
		if err := h.Save(); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}
	if got := readHistoryFile(t, path); len(got) != 2 {
		t.Fatalf("repeated saves wrote %d entries, want 2", len(got))
	}
}

func TestHistoryMergesConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	a := OpenHistory(path)
	b := OpenHistory(path)

	a.Append(entry(1))
	b.Append(entry(2))
	if err := a.Save(); err != nil {
		t.Fatalf("a.Save: %v", err)
	}
	if err := b.Save(); err != nil {
		t.Fatalf("b.Save: %v", err)
	}

	got := readHistoryFile(t, path)
	if len(got) != 2 {
		t.Fatalf("merged = %d entries, want 2", len(got))
	}
}

func TestHistoryCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	h := OpenHistory(path)
	for i := 0; i < protocol.HistoryCap+50; i++ {
		h.Append(protocol.HistoryEntry{
			Timestamp: time.Date(2026, 3, 1, 0, 0, 0, i, time.UTC),
			Source:    protocol.SourceText,
			RawText:   fmt.Sprintf("command %d", i),
		})
	}
	if err := h.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := readHistoryFile(t, path)
	if len(got) != protocol.HistoryCap {
		t.Fatalf("saved %d entries, want %d", len(got), protocol.HistoryCap)
	}
	// Oldest entries are the ones evicted.
	if got[0].RawText != "command 50" {
		t.Errorf("oldest kept = %q, want command 50", got[0].RawText)
	}
}

func TestHistoryRecentLimit(t *testing.T) {
	h := OpenHistory(filepath.Join(t.TempDir(), "history.json"))
	for i := 0; i < 20; i++ {
		h.Append(entry(i))
	}
	got := h.Recent(10)
	if len(got) != 10 || got[0].RawText != "command 10" {
		t.Fatalf("Recent(10) = %d entries, first %q", len(got), got[0].RawText)
	}
}

func TestHistoryCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte("{oops"), 0o644); err != nil {
		t.Fatal(err)
	}
	h := OpenHistory(path)
	if got := h.Recent(0); len(got) != 0 {
		t.Fatalf("corrupt history produced %d entries", len(got))
	}
}
