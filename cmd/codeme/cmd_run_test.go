package main

import (
	"bytes"
	"errors"
	"testing"
)

func TestRunCmd_RequiresAPIKey(t *testing.T) {
	t.Setenv("CODEME_HOME", t.TempDir())
	t.Setenv("CODEME_API_KEY", "")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"run"})

	err := cmd.Execute()
	if !errors.Is(err, errNoAPIKey) {
		t.Fatalf("Execute() error = %v, want errNoAPIKey", err)
	}
}
