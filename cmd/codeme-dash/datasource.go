package main

import (
	"context"
	"os"
	"path/filepath"

	"codeme/pkg/deploy"
	"codeme/pkg/eventlog"
	"codeme/pkg/project"
	"codeme/pkg/protocol"
	"codeme/pkg/sandbox"
)

// eventFeedLimit bounds how many events one refresh pulls from the log.
const eventFeedLimit = 100

// Snapshot is one refresh worth of dashboard data. Each section is
// fetched independently; a section that fails to load is simply empty.
type Snapshot struct {
	Projects    []*project.Project
	Deployments map[string]*deploy.EnvStatus
	Events      []protocol.Event
}

// codemeHome returns the assistant state directory from CODEME_HOME or
// ~/.codeme.
func codemeHome() string {
	if v := os.Getenv("CODEME_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".codeme")
}

// eventDBPath returns the event log path from CODEME_DB_PATH or the
// default under the codeme home.
func eventDBPath() string {
	if v := os.Getenv("CODEME_DB_PATH"); v != "" {
		return v
	}
	return filepath.Join(codemeHome(), "events.db")
}

// fetchSnapshot reads projects, deployment status and recent events
// from the assistant's state directory.
func fetchSnapshot(ctx context.Context) Snapshot {
	home := codemeHome()
	snap := Snapshot{Deployments: map[string]*deploy.EnvStatus{}}

	if sb, err := sandbox.New(filepath.Join(home, "projects"), filepath.Join(home, "backups")); err == nil {
		if pm, err := project.NewManager(sb, filepath.Join(home, "projects.json")); err == nil {
			snap.Projects = pm.List()
		}
	}

	if status, err := deploy.NewHandler(filepath.Join(home, "deployments"), nil).Status(); err == nil {
		snap.Deployments = status
	}

	if reader, err := eventlog.NewReader(eventDBPath()); err == nil {
		defer reader.Close()
		if events, err := reader.Query(ctx, eventlog.QueryOpts{Limit: eventFeedLimit}); err == nil {
			snap.Events = events
		}
	}

	return snap
}
