// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wingedpig/codewalk/internal/config"
	"github.com/wingedpig/codewalk/internal/coordinator"
	"github.com/wingedpig/codewalk/internal/executor"
	"github.com/wingedpig/codewalk/internal/orchestrator/core"
	"github.com/wingedpig/codewalk/internal/orchestrator/lifecycle"
	"github.com/wingedpig/codewalk/internal/orchestrator/router"
	"github.com/wingedpig/codewalk/internal/relayclient"
)

var version = "0.1"

func main() {
	var (
		configPath  string
		relayWS     string
		sessionID   string
		token       string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to config file (default: auto-detect)")
	flag.StringVar(&configPath, "c", "", "Path to config file (short)")
	flag.StringVar(&relayWS, "relay", "", "Relay websocket URL (overrides config)")
	flag.StringVar(&sessionID, "session", "", "Paired session id (overrides config)")
	flag.StringVar(&token, "token", "", "Paired session token (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.Parse()

	if showVersion {
		fmt.Printf("orchestrator %s\n", version)
		os.Exit(0)
	}

	loader := config.NewLoader()
	if configPath == "" {
		found, err := loader.FindConfig()
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		configPath = found
	}

	cfg, err := loader.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if relayWS != "" {
		cfg.Orchestrator.RelayWS = relayWS
	}
	if sessionID != "" {
		cfg.Orchestrator.SessionID = sessionID
	}
	if token != "" {
		cfg.Orchestrator.Token = token
	}
	if cfg.Orchestrator.RelayWS == "" || cfg.Orchestrator.SessionID == "" || cfg.Orchestrator.Token == "" {
		log.Fatalf("relay, session, and token are required (set via config or flags)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := relayclient.Dial(ctx, cfg.Orchestrator.RelayWS, cfg.Orchestrator.SessionID, cfg.Orchestrator.Token, cfg.Orchestrator.HeartbeatSecs)
	if err != nil {
		log.Fatalf("Failed to connect to relay: %v", err)
	}
	defer client.Close()

	session := lifecycle.NewSession(cfg.Orchestrator.HistoryCapacity)
	adapter := executor.NewPortAdapter(8)

	requireConfirm := true
	if cfg.Orchestrator.RequireConfirm != nil {
		requireConfirm = *cfg.Orchestrator.RequireConfirm
	}

	coreOpts := core.Options{
		Router:         router.New(),
		Executor:       adapter,
		Outbound:       client,
		Session:        session,
		ExecutorLabel:  cfg.Orchestrator.ExecutorLabel,
		RequireConfirm: requireConfirm,
	}
	var orchestratorCore *core.Core
	if requireConfirm {
		orchestratorCore = core.New(coreOpts)
	} else {
		orchestratorCore = core.NewWithoutConfirmation(coreOpts)
	}

	execCfg := executor.Config{
		Command:     cfg.Orchestrator.Executor.Command,
		Args:        cfg.Orchestrator.Executor.Args,
		WorkingDir:  cfg.Orchestrator.Executor.WorkingDir,
		SkipPerms:   cfg.Orchestrator.Executor.SkipPerms,
		CustomFlags: cfg.Orchestrator.Executor.CustomFlags,
		Env:         cfg.Orchestrator.Executor.Env,
	}

	coord := coordinator.New(coordinator.Options{
		Core:        orchestratorCore,
		Session:     session,
		Adapter:     adapter,
		ExecutorCfg: execCfg,
		Source:      client,
		PollBudget:  time.Duration(cfg.Orchestrator.PipePollMillis) * time.Millisecond,
		LogTick:     time.Duration(cfg.Orchestrator.LogTickMillis) * time.Millisecond,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("orchestrator shutting down...")
		cancel()
	}()

	log.Printf("orchestrator connected to %s, session %s", cfg.Orchestrator.RelayWS, cfg.Orchestrator.SessionID)
	if err := coord.Run(ctx); err != nil {
		log.Printf("orchestrator stopped: %v", err)
	}
}
