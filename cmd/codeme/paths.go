package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths holds all resolved codeme state file paths.
// Use ResolvePaths() to populate this struct with defaults + env overrides.
type Paths struct {
	Home         string // ~/.codeme or CODEME_HOME
	ConfigPath   string // config.yaml (respects CODEME_HOME)
	SocketPath   string // voice.sock or CODEME_SOCKET_PATH
	EventDBPath  string // events.db or CODEME_DB_PATH
	HistoryPath  string // history.json or CODEME_HISTORY_PATH
	ProjectsRoot string // projects/ (respects CODEME_HOME)
	BackupsRoot  string // backups/ (respects CODEME_HOME)
	DeploysRoot  string // deployments/ (respects CODEME_HOME)
}

// ResolvePaths returns all codeme paths, respecting env var overrides.
// Environment variables:
//   - CODEME_HOME: base directory for all assistant state (default: ~/.codeme)
//   - CODEME_SOCKET_PATH: voice intake UDS socket (default: $CODEME_HOME/voice.sock)
//   - CODEME_DB_PATH: event log database (default: $CODEME_HOME/events.db)
//   - CODEME_HISTORY_PATH: command history file (default: $CODEME_HOME/history.json)
//
// If CODEME_HOME is set, it becomes the base for all default paths.
// Specific env vars override both the default and the CODEME_HOME base.
func ResolvePaths() (*Paths, error) {
	home, err := resolveHome()
	if err != nil {
		return nil, err
	}

	paths := &Paths{
		Home:         home,
		ConfigPath:   filepath.Join(home, "config.yaml"),
		SocketPath:   resolvePathWithEnv("CODEME_SOCKET_PATH", home, "voice.sock"),
		EventDBPath:  resolvePathWithEnv("CODEME_DB_PATH", home, "events.db"),
		HistoryPath:  resolvePathWithEnv("CODEME_HISTORY_PATH", home, "history.json"),
		ProjectsRoot: filepath.Join(home, "projects"),
		BackupsRoot:  filepath.Join(home, "backups"),
		DeploysRoot:  filepath.Join(home, "deployments"),
	}

	return paths, nil
}

// resolveHome returns the codeme home directory from CODEME_HOME or ~/.codeme.
func resolveHome() (string, error) {
	if v := os.Getenv("CODEME_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".codeme"), nil
}

// resolvePathWithEnv returns the env var value if set, else base/suffix.
func resolvePathWithEnv(envKey, base, suffix string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return filepath.Join(base, suffix)
}
