// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package coordinator is the orchestrator's top-level wiring: it drives the
// core's single-threaded dispatch loop from inbound relay frames, services
// executor launch/status commands by supervising the actual subprocess, and
// tails the executor's JSONL logs into an on-demand summary pulled whenever
// a status query is serviced. Apart from the relay client's own read and
// heartbeat loops, it is the one place in the orchestrator binary that runs
// more than one goroutine.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wingedpig/codewalk/internal/executor"
	"github.com/wingedpig/codewalk/internal/logfilter"
	"github.com/wingedpig/codewalk/internal/logmonitor"
	"github.com/wingedpig/codewalk/internal/orchestrator/core"
	"github.com/wingedpig/codewalk/internal/orchestrator/lifecycle"
	"github.com/wingedpig/codewalk/internal/protocol"
)

// recentLogCapacity bounds how many tailed log lines the coordinator keeps
// on hand for on-demand summarization; older lines are dropped, not the
// monitor's output channel.
const recentLogCapacity = 200

// Inbound is the source of incoming protocol messages; relayclient.Client
// satisfies it.
type Inbound interface {
	Inbound() <-chan protocol.Message
}

// Options configures a Coordinator.
type Options struct {
	Core        *core.Core
	Session     *lifecycle.Session
	Adapter     *executor.PortAdapter
	ExecutorCfg executor.Config
	Source      Inbound

	// PollBudget bounds how long each ReadOutput call may block; it also
	// paces the supervision loop's liveness checks. Defaults to 10ms.
	PollBudget time.Duration

	// LogTick is the logmonitor tick interval. Defaults to 100ms.
	LogTick time.Duration
}

// Coordinator owns the single running executor.Session (if any) and the
// log monitor tailing its output directory. recentLines is the pull
// interface: the log monitor pushes into it continuously, and
// QueryStatusCommand pulls a fresh logfilter summary from it on demand.
type Coordinator struct {
	core       *core.Core
	session    *lifecycle.Session
	adapter    *executor.PortAdapter
	execCfg    executor.Config
	source     Inbound
	pollBudget time.Duration
	logTick    time.Duration

	linesMu     sync.Mutex
	recentLines []logmonitor.ParsedLogLine
}

// New builds a Coordinator from opts, applying defaults for zero-valued
// durations.
func New(opts Options) *Coordinator {
	c := &Coordinator{
		core:       opts.Core,
		session:    opts.Session,
		adapter:    opts.Adapter,
		execCfg:    opts.ExecutorCfg,
		source:     opts.Source,
		pollBudget: opts.PollBudget,
		logTick:    opts.LogTick,
	}
	if c.pollBudget <= 0 {
		c.pollBudget = 10 * time.Millisecond
	}
	if c.logTick <= 0 {
		c.logTick = 100 * time.Millisecond
	}
	return c
}

// Run drives the inbound-dispatch loop and the executor-command loop until
// ctx is canceled or either loop returns an error. Both loops stop together
// via errgroup.
func (c *Coordinator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return c.dispatchLoop(ctx) })
	g.Go(func() error { return c.commandLoop(ctx) })

	return g.Wait()
}

// dispatchLoop feeds every inbound message to the core, one at a time, per
// the core's single-threaded contract.
func (c *Coordinator) dispatchLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-c.source.Inbound():
			if !ok {
				return fmt.Errorf("coordinator: inbound source closed")
			}
			if err := c.core.Handle(ctx, msg); err != nil {
				log.Printf("coordinator: core.Handle error: %v", err)
			}
		}
	}
}

// commandLoop services executor.PortAdapter requests. Only this goroutine
// ever touches the active *executor.Session, so no further locking is
// needed around it.
func (c *Coordinator) commandLoop(ctx context.Context) error {
	var active *executor.Session

	for {
		select {
		case <-ctx.Done():
			if active != nil {
				active.Close()
			}
			return nil

		case cmd, ok := <-c.adapter.Commands():
			if !ok {
				return fmt.Errorf("coordinator: command channel closed")
			}

			switch req := cmd.(type) {
			case executor.LaunchCommand:
				if active != nil && active.IsRunning() {
					active.Close()
				}
				sess, err := executor.Launch(ctx, req.Prompt, c.execCfg)
				if err != nil {
					if errors.Is(err, executor.ErrNotFound) {
						err = fmt.Errorf("%s not found. Please install it", c.execCfg.Command)
					}
					req.Reply <- err
					continue
				}
				active = sess
				c.linesMu.Lock()
				c.recentLines = nil
				c.linesMu.Unlock()
				c.session.SetActive(c.execCfg.Command)
				if err := c.session.Transition(lifecycle.StateRunning); err != nil {
					log.Printf("coordinator: state transition: %v", err)
				}
				c.session.History.Append(lifecycle.EventExecutorLaunched, map[string]string{
					"prompt": req.Prompt,
				})
				req.Reply <- nil

				go c.superviseSession(sess)

			case executor.QueryStatusCommand:
				if active == nil {
					req.Reply <- executor.StatusResult{Err: fmt.Errorf("no executor session is active")}
					continue
				}
				req.Reply <- executor.StatusResult{Text: c.statusText(active)}
			}
		}
	}
}

// superviseSession polls one session's output and log directory until it
// terminates, then records the outcome in history and clears the active
// session context. It is an independent goroutine per launch; only one
// runs at a time because commandLoop closes the prior session before
// starting a new one.
func (c *Coordinator) superviseSession(sess *executor.Session) {
	logCtx, cancelLog := context.WithCancel(context.Background())
	defer cancelLog()

	mon := logmonitor.New(sess.WorkingDir(), c.logTick)
	go mon.Run(logCtx)
	go c.drainLogLines(logCtx, mon)

	for {
		line, ok := sess.ReadOutput(c.pollBudget)
		if ok {
			c.session.History.Append(lifecycle.EventSystemResponse, map[string]string{
				"stream": string(line.Kind),
				"line":   line.Line,
			})
		}
		if sess.Terminated() {
			break
		}
	}

	exitErr, _ := sess.ExitError()
	c.session.ClearActive()
	if exitErr != nil {
		c.session.TransitionWithReason(lifecycle.StateFailed, lifecycle.ReasonExecutorCrash)
		c.session.History.Append(lifecycle.EventError, map[string]string{"error": exitErr.Error()})
	} else {
		c.session.Transition(lifecycle.StateCompleted)
		c.session.History.Append(lifecycle.EventExecutorCompleted, nil)
	}
	c.session.History.Append(lifecycle.EventCompleted, nil)
}

// drainLogLines continuously appends tailed log lines to the bounded
// recentLines buffer, which QueryStatusCommand pulls and reduces via
// logfilter on demand. It is purely an observability channel: nothing here
// affects core routing.
func (c *Coordinator) drainLogLines(ctx context.Context, mon *logmonitor.Monitor) {
	lines := mon.Lines()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			c.linesMu.Lock()
			c.recentLines = append(c.recentLines, line)
			if len(c.recentLines) > recentLogCapacity {
				c.recentLines = c.recentLines[len(c.recentLines)-recentLogCapacity:]
			}
			c.linesMu.Unlock()
		}
	}
}

// logSummary pulls the current recentLines buffer and reduces it via
// logfilter on the caller's schedule, rather than pushing a summary on a
// fixed timer.
func (c *Coordinator) logSummary() []string {
	c.linesMu.Lock()
	lines := append([]logmonitor.ParsedLogLine(nil), c.recentLines...)
	c.linesMu.Unlock()
	return logfilter.Summarize(lines)
}

func (c *Coordinator) statusText(sess *executor.Session) string {
	base := "the executor has stopped"
	switch {
	case sess.IsRunning():
		base = "the executor is still running"
	default:
		if exitErr, exited := sess.ExitError(); exited {
			if exitErr != nil {
				base = fmt.Sprintf("the executor exited with an error: %v", exitErr)
			} else {
				base = "the executor finished successfully"
			}
		}
	}

	bullets := c.logSummary()
	if len(bullets) == 0 {
		return base
	}
	recent := bullets
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	return base + " — recent activity: " + strings.Join(recent, "; ")
}
