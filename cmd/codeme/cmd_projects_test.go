package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"codeme/pkg/project"
	"codeme/pkg/sandbox"
)

func TestProjectsCmd_Empty(t *testing.T) {
	t.Setenv("CODEME_HOME", t.TempDir())

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"projects"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !strings.Contains(out.String(), "no projects") {
		t.Errorf("output = %q, want no projects notice", out.String())
	}
}

func TestProjectsCmd_ListsCreated(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CODEME_HOME", home)

	sb, err := sandbox.New(filepath.Join(home, "projects"), filepath.Join(home, "backups"))
	if err != nil {
		t.Fatalf("sandbox.New() error: %v", err)
	}
	pm, err := project.NewManager(sb, filepath.Join(home, "projects.json"))
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}
	if _, err := pm.Create("demo", "a demo project"); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if _, err := pm.Create("webapp", ""); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"projects"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "demo") || !strings.Contains(got, "webapp") {
		t.Errorf("output missing projects:\n%s", got)
	}
	if !strings.Contains(got, "NAME") {
		t.Errorf("output missing header:\n%s", got)
	}
}
