package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"codeme/pkg/deploy"
	"codeme/pkg/eventlog"
	"codeme/pkg/project"
	"codeme/pkg/protocol"
	"codeme/pkg/sandbox"
)

func TestFetchSnapshot_EmptyHome(t *testing.T) {
	t.Setenv("CODEME_HOME", t.TempDir())
	t.Setenv("CODEME_DB_PATH", "")

	snap := fetchSnapshot(context.Background())
	if len(snap.Projects) != 0 {
		t.Errorf("Projects = %v, want empty", snap.Projects)
	}
	if len(snap.Deployments) != 0 {
		t.Errorf("Deployments = %v, want empty", snap.Deployments)
	}
	if len(snap.Events) != 0 {
		t.Errorf("Events = %v, want empty", snap.Events)
	}
}

func TestFetchSnapshot_ReadsAllSections(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CODEME_HOME", home)
	t.Setenv("CODEME_DB_PATH", "")

	// Project index.
	sb, err := sandbox.New(filepath.Join(home, "projects"), filepath.Join(home, "backups"))
	if err != nil {
		t.Fatalf("sandbox.New() error: %v", err)
	}
	pm, err := project.NewManager(sb, filepath.Join(home, "projects.json"))
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}
	if _, err := pm.Create("demo", ""); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	// Deployment status file.
	deployDir := filepath.Join(home, "deployments")
	if err := os.MkdirAll(deployDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	status := map[string]*deploy.EnvStatus{
		"development": {Current: &deploy.Record{Version: "v1", Status: "deployed"}},
	}
	data, _ := json.Marshal(status)
	if err := os.WriteFile(filepath.Join(deployDir, "status.json"), data, 0o644); err != nil {
		t.Fatalf("write status: %v", err)
	}

	// Event log.
	db, err := sql.Open("sqlite", filepath.Join(home, "events.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		t.Fatalf("set WAL: %v", err)
	}
	if _, err := db.Exec(protocol.SchemaDDL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	if err := eventlog.NewWriter(db).Append(context.Background(), protocol.EventCommandReceived, protocol.SourceText, "", "demo", "hi"); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	db.Close()

	snap := fetchSnapshot(context.Background())

	if len(snap.Projects) != 1 || snap.Projects[0].Name != "demo" {
		t.Errorf("Projects = %v, want demo", snap.Projects)
	}
	if env, ok := snap.Deployments["development"]; !ok || env.Current == nil || env.Current.Version != "v1" {
		t.Errorf("Deployments = %v, want development v1", snap.Deployments)
	}
	if len(snap.Events) != 1 || snap.Events[0].Type != protocol.EventCommandReceived {
		t.Errorf("Events = %v, want one command_received", snap.Events)
	}
}

func TestCodemeHome_EnvOverride(t *testing.T) {
	t.Setenv("CODEME_HOME", "/tmp/custom-home")
	if got := codemeHome(); got != "/tmp/custom-home" {
		t.Errorf("codemeHome() = %q", got)
	}

	t.Setenv("CODEME_DB_PATH", "/tmp/custom.db")
	if got := eventDBPath(); got != "/tmp/custom.db" {
		t.Errorf("eventDBPath() = %q", got)
	}
}
