// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/wingedpig/codewalk/internal/config"
	"github.com/wingedpig/codewalk/internal/relay/admin"
	"github.com/wingedpig/codewalk/internal/relay/broadcast"
	"github.com/wingedpig/codewalk/internal/relay/conn"
	"github.com/wingedpig/codewalk/internal/relay/store"
)

var version = "0.1"

func main() {
	var (
		configPath  string
		host        string
		port        int
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to config file (default: auto-detect)")
	flag.StringVar(&configPath, "c", "", "Path to config file (short)")
	flag.StringVar(&host, "host", "", "Host to bind to (overrides config)")
	flag.IntVar(&port, "port", 0, "Port to listen on (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.Parse()

	if showVersion {
		fmt.Printf("relay-server %s\n", version)
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

	if host != "" {
		cfg.Relay.Host = host
	}
	if port != 0 {
		cfg.Relay.Port = port
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Relay.RedisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to reach redis at %s: %v", cfg.Relay.RedisAddr, err)
	}
	defer rdb.Close()

	st := store.New(rdb)
	registry := broadcast.NewRegistry()
	sessionTTL := time.Duration(cfg.Relay.SessionIdleSecs) * time.Second

	connHandler := conn.NewHandler(st, rdb, registry, sessionTTL)
	adminHandler := admin.NewHandler(st, rdb, registry, cfg.Relay.PublicWSURL, sessionTTL)

	router := mux.NewRouter()
	router.Handle("/ws", connHandler)
	adminHandler.Routes(router.PathPrefix("/admin").Subrouter())

	addr := fmt.Sprintf("%s:%d", cfg.Relay.Host, cfg.Relay.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Printf("relay-server listening on http://%s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("relay-server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("relay-server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("relay-server shutdown error: %v", err)
	}
}
