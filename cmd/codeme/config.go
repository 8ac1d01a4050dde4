package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"codeme/pkg/synth"
)

// FileConfig is the on-disk shape of $CODEME_HOME/config.yaml.
// Every field is optional; absent fields fall back to defaults, and the
// API key may come from the CODEME_API_KEY environment variable instead.
type FileConfig struct {
	WakePhrase    string `yaml:"wake_phrase,omitempty"`
	APIKey        string `yaml:"api_key,omitempty"`
	BaseURL       string `yaml:"base_url,omitempty"`
	Model         string `yaml:"model,omitempty"`
	MaxTokens     int    `yaml:"max_tokens,omitempty"`
	PoolSize      int    `yaml:"pool_size,omitempty"`
	ShutdownGrace int    `yaml:"shutdown_grace_seconds,omitempty"`
	WatchPoll     int    `yaml:"watch_poll_seconds,omitempty"`
}

// errNoAPIKey reports a missing synthesizer credential at startup.
var errNoAPIKey = errors.New("no API key: set api_key in config.yaml or the CODEME_API_KEY environment variable")

// loadConfig reads path if it exists and applies defaults. A missing
// file is not an error; a malformed one is.
func loadConfig(path string) (*FileConfig, error) {
	cfg := &FileConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("CODEME_API_KEY")
	}
	if cfg.WakePhrase == "" {
		cfg.WakePhrase = "hey assistant"
	}
	if cfg.PoolSize < synth.MinPoolSize {
		cfg.PoolSize = synth.MinPoolSize
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10
	}
	if cfg.WatchPoll <= 0 {
		cfg.WatchPoll = 2
	}

	return cfg, nil
}

func (c *FileConfig) shutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGrace) * time.Second
}

func (c *FileConfig) watchPoll() time.Duration {
	return time.Duration(c.WatchPoll) * time.Second
}
