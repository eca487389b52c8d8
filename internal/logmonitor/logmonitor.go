// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logmonitor tails the newest JSONL file written by an executor
// subprocess into a session directory and parses new lines into a bounded
// output channel. It is an observability channel only; nothing in the
// orchestrator core depends on it for correctness.
package logmonitor

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// LogType classifies a parsed log line.
type LogType string

const (
	LogUserMessage      LogType = "user_message"
	LogAssistantMessage LogType = "assistant_message"
	LogToolCall         LogType = "tool_call"
	LogToolResult       LogType = "tool_result"
	LogStatus           LogType = "status"
	LogError            LogType = "error"
	LogUnknown          LogType = "unknown"
)

var typeAliases = map[string]LogType{
	"user":              LogUserMessage,
	"user_message":      LogUserMessage,
	"assistant":         LogAssistantMessage,
	"assistant_message": LogAssistantMessage,
	"tool_use":          LogToolCall,
	"tool_call":         LogToolCall,
	"tool_result":       LogToolResult,
	"status":            LogStatus,
	"error":             LogError,
}

// ParsedLogLine is one successfully parsed line from the tailed file.
type ParsedLogLine struct {
	Timestamp time.Time
	Type      LogType
	Content   map[string]any
	Raw       string
}

const (
	defaultTickInterval = 100 * time.Millisecond
	defaultOutputBuffer = 256
)

// Monitor tails the newest .jsonl file in a directory.
type Monitor struct {
	dir          string
	tickInterval time.Duration
	out          chan ParsedLogLine

	mu          sync.Mutex
	currentFile string
	lineOffset  int
}

// New returns a Monitor over dir. Nothing is read until Run is called.
func New(dir string, tickInterval time.Duration) *Monitor {
	if tickInterval <= 0 {
		tickInterval = defaultTickInterval
	}
	return &Monitor{
		dir:          dir,
		tickInterval: tickInterval,
		out:          make(chan ParsedLogLine, defaultOutputBuffer),
	}
}

// Lines returns the channel of parsed lines. Callers should drain it
// continuously; Run drops a line rather than block the tailer if the
// channel is full.
func (m *Monitor) Lines() <-chan ParsedLogLine {
	return m.out
}

// Run drives the tail loop until ctx is done. It re-scans for a newer file
// on every tick and on every filesystem notification under dir.
func (m *Monitor) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer watcher.Close()
		_ = watcher.Add(m.dir)
	}

	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()

	m.scanAndRead()

	for {
		select {
		case <-ctx.Done():
			close(m.out)
			return nil
		case <-ticker.C:
			m.scanAndRead()
		case _, ok := <-watcherEvents(watcher):
			if !ok {
				continue
			}
			m.scanAndRead()
		}
	}
}

// watcherEvents returns a nil channel (never selectable) when watcher
// creation failed, so Run degrades gracefully to tick-only polling.
func watcherEvents(watcher *fsnotify.Watcher) chan fsnotify.Event {
	if watcher == nil {
		return nil
	}
	return watcher.Events
}

// scanAndRead picks the newest .jsonl file and reads any lines beyond the
// remembered offset. Non-parseable lines are skipped silently.
func (m *Monitor) scanAndRead() {
	newest, err := newestJSONL(m.dir)
	if err != nil || newest == "" {
		return
	}

	m.mu.Lock()
	if newest != m.currentFile {
		m.currentFile = newest
		m.lineOffset = 0
	}
	offset := m.lineOffset
	m.mu.Unlock()

	f, err := os.Open(newest)
	if err != nil {
		return
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	if offset >= len(lines) {
		return
	}

	for _, raw := range lines[offset:] {
		if parsed, ok := parseLine(raw); ok {
			select {
			case m.out <- parsed:
			default:
				// Output channel full; drop rather than block the tailer.
			}
		}
	}

	m.mu.Lock()
	m.lineOffset = len(lines)
	m.mu.Unlock()
}

func parseLine(raw string) (ParsedLogLine, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ParsedLogLine{}, false
	}

	var content map[string]any
	if err := json.Unmarshal([]byte(trimmed), &content); err != nil {
		return ParsedLogLine{}, false
	}

	kind := LogUnknown
	if t, ok := content["type"].(string); ok {
		if mapped, ok := typeAliases[t]; ok {
			kind = mapped
		}
	}

	ts := time.Now()
	if tsStr, ok := content["timestamp"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, tsStr); err == nil {
			ts = parsed
		}
	}

	return ParsedLogLine{
		Timestamp: ts,
		Type:      kind,
		Content:   content,
		Raw:       trimmed,
	}, true
}

// newestJSONL returns the .jsonl file in dir with the greatest modification
// time.
func newestJSONL(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var candidates []candidate
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{
			path:    filepath.Join(dir, e.Name()),
			modTime: info.ModTime(),
		})
	}
	if len(candidates) == 0 {
		return "", nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.After(candidates[j].modTime)
	})
	return candidates[0].path, nil
}
