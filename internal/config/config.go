// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config loads HJSON configuration for the relay server and the
// orchestrator binary.
package config

// RelayConfig configures cmd/relay-server.
type RelayConfig struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	RedisAddr       string `json:"redis_addr"`
	PublicWSURL     string `json:"public_ws_url"`
	SessionIdleSecs int    `json:"session_idle_secs"`
	HeartbeatSecs   int    `json:"heartbeat_secs"`
}

// OrchestratorConfig configures cmd/orchestrator.
type OrchestratorConfig struct {
	RelayWS         string         `json:"relay_ws"`
	SessionID       string         `json:"session_id"`
	Token           string         `json:"token"`
	HeartbeatSecs   int            `json:"heartbeat_secs"`
	RequireConfirm  *bool          `json:"require_confirm"`
	ExecutorLabel   string         `json:"executor_label"`
	Executor        ExecutorConfig `json:"executor"`
	HistoryCapacity int            `json:"history_capacity"`
	LogTickMillis   int            `json:"log_tick_millis"`
	PipePollMillis  int            `json:"pipe_poll_millis"`
}

// ExecutorConfig configures the spawned agent subprocess.
type ExecutorConfig struct {
	Command     string            `json:"command"`
	Args        []string          `json:"args"`
	WorkingDir  string            `json:"working_dir"`
	SkipPerms   bool              `json:"skip_permissions"`
	CustomFlags []string          `json:"custom_flags"`
	Env         map[string]string `json:"env"`
}

// Config is the root of either binary's configuration file; each binary
// reads only the section it needs.
type Config struct {
	Relay        RelayConfig        `json:"relay"`
	Orchestrator OrchestratorConfig `json:"orchestrator"`
}
