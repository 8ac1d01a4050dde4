package project

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchRoot watches the projects root for external changes (a project
// directory deleted or renamed out from under us) and invalidates the
// current-project reference when anything moves. Falls back to periodic
// polling when fsnotify is unavailable. Blocks until ctx is cancelled.
func (m *Manager) WatchRoot(ctx context.Context, pollInterval time.Duration) {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.watchPoll(ctx, pollInterval)
		return
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(m.sb.ProjectsRoot()); err != nil {
		m.watchPoll(ctx, pollInterval)
		return
	}

	// Fallback poll as safety net.
	fallbackTicker := time.NewTicker(pollInterval)
	defer fallbackTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-watcher.Events:
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				m.Invalidate()
			}
		case <-watcher.Errors:
			// A broken watch is not fatal; the fallback poll covers it.
		case <-fallbackTicker.C:
			m.Invalidate()
		}
	}
}

// watchPoll is the polling fallback when fsnotify is unavailable.
func (m *Manager) watchPoll(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Invalidate()
		}
	}
}
