// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hjson/hjson-go/v4"
)

// Loader reads HJSON configuration files.
type Loader struct{}

// NewLoader returns a ready-to-use Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses path, applying defaults to missing fields.
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var raw map[string]interface{}
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse hjson: %w", err)
	}

	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert to json: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// FindConfig looks for codewalk.hjson, then codewalk.json, in the current
// directory.
func (l *Loader) FindConfig() (string, error) {
	for _, name := range []string{"codewalk.hjson", "codewalk.json"} {
		path := filepath.Join(".", name)
		if _, err := os.Stat(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs, nil
			}
			return path, nil
		}
	}
	return "", fmt.Errorf("config file not found (looked for codewalk.hjson, codewalk.json)")
}

func applyDefaults(cfg *Config) {
	if cfg.Relay.Host == "" {
		cfg.Relay.Host = "0.0.0.0"
	}
	if cfg.Relay.Port == 0 {
		cfg.Relay.Port = 3001
	}
	if cfg.Relay.RedisAddr == "" {
		cfg.Relay.RedisAddr = "127.0.0.1:6379"
	}
	if cfg.Relay.SessionIdleSecs == 0 {
		cfg.Relay.SessionIdleSecs = 7200
	}
	if cfg.Relay.HeartbeatSecs == 0 {
		cfg.Relay.HeartbeatSecs = 30
	}
	if cfg.Relay.PublicWSURL == "" {
		cfg.Relay.PublicWSURL = fmt.Sprintf("ws://localhost:%d/ws", cfg.Relay.Port)
	}

	if cfg.Orchestrator.HeartbeatSecs == 0 {
		cfg.Orchestrator.HeartbeatSecs = 30
	}
	if cfg.Orchestrator.ExecutorLabel == "" {
		cfg.Orchestrator.ExecutorLabel = "Claude"
	}
	if cfg.Orchestrator.Executor.Command == "" {
		cfg.Orchestrator.Executor.Command = "claude"
	}
	if cfg.Orchestrator.HistoryCapacity == 0 {
		cfg.Orchestrator.HistoryCapacity = 1000
	}
	if cfg.Orchestrator.LogTickMillis == 0 {
		cfg.Orchestrator.LogTickMillis = 100
	}
	if cfg.Orchestrator.PipePollMillis == 0 {
		cfg.Orchestrator.PipePollMillis = 10
	}
}
