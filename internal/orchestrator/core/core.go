// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package core implements the orchestrator's single-threaded message
// dispatcher: it routes user text, enforces the confirmation state machine
// for destructive actions, and emits outbound protocol messages.
package core

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wingedpig/codewalk/internal/orchestrator/lifecycle"
	"github.com/wingedpig/codewalk/internal/ports"
	"github.com/wingedpig/codewalk/internal/protocol"
)

// DefaultExecutorLabel names the executor the reference CLI wires up by
// default; it only flavors PromptConfirmation text.
const DefaultExecutorLabel = "Claude"

// ConfirmExecutorLaunchFor is the `for` tag used on PromptConfirmation and
// ConfirmResponse for an executor launch decision.
const ConfirmExecutorLaunchFor = "executor_launch"

// ConfirmContinueOrNewFor is the `for` tag used on the second-stage prompt
// elevated after a binary accept, when a prior session already exists:
// it asks whether to continue that session or start a fresh one.
const ConfirmContinueOrNewFor = "continue_or_new"

// confirmationKind tags which question a pendingConfirmation answers.
type confirmationKind int

const (
	kindLaunch confirmationKind = iota
	kindContinueOrNew
)

// pendingConfirmation is the single-slot store: at most one pending
// confirmation at a time; a new LaunchExecutor decision overwrites the
// slot, implicitly cancelling the previous one.
type pendingConfirmation struct {
	id     string
	prompt string
	kind   confirmationKind
}

// Options configures a Core.
type Options struct {
	Router          ports.Router
	Executor        ports.Executor
	Outbound        ports.Outbound
	Session         *lifecycle.Session
	ExecutorLabel   string
	RequireConfirm  bool // not read by New; confirmation is on unless built via NewWithoutConfirmation
	confirmDisabled bool
}

// Core is the orchestrator's inbound message dispatcher. It is intended to
// be driven by a single caller one message at a time; the mutex below only
// protects the pending-confirmation slot against the sibling task that
// updates active-session context concurrently.
type Core struct {
	router         ports.Router
	executor       ports.Executor
	outbound       ports.Outbound
	session        *lifecycle.Session
	executorLabel  string
	requireConfirm bool

	mu      sync.Mutex
	pending *pendingConfirmation
	seq     int64
}

// New constructs a Core. RequireConfirm defaults to true (confirmation
// required before launching an executor) unless Options explicitly disables
// it via NewWithoutConfirmation.
func New(opts Options) *Core {
	label := opts.ExecutorLabel
	if label == "" {
		label = DefaultExecutorLabel
	}
	return &Core{
		router:         opts.Router,
		executor:       opts.Executor,
		outbound:       opts.Outbound,
		session:        opts.Session,
		executorLabel:  label,
		requireConfirm: !opts.confirmDisabled,
	}
}

// NewWithoutConfirmation constructs a Core that launches executors
// immediately on a LaunchExecutor routing decision, skipping the
// confirmation handshake. Used in automation contexts.
func NewWithoutConfirmation(opts Options) *Core {
	opts.confirmDisabled = true
	return New(opts)
}

// Handle processes one inbound Message. Callers (the App Coordinator) must
// serialize calls.
func (c *Core) Handle(ctx context.Context, msg protocol.Message) error {
	switch m := msg.(type) {
	case protocol.UserText:
		return c.handleUserText(ctx, m)
	case protocol.ConfirmResponse:
		return c.handleConfirmResponse(ctx, m)
	case protocol.Ack, protocol.Status, protocol.PromptConfirmation:
		// These types only ever flow outbound; inbound copies are ignored.
		return nil
	default:
		return nil
	}
}

func (c *Core) handleUserText(ctx context.Context, m protocol.UserText) error {
	if strings.TrimSpace(m.Text) == "" {
		return nil
	}

	if c.session != nil {
		c.session.History.Append(lifecycle.EventUserInput, map[string]string{"text": m.Text})
	}

	hasActive, sessionType := false, ""
	if c.session != nil {
		hasActive, sessionType = c.session.ActiveContext()
	}

	if c.confirmationPending() {
		return c.handleConfirmationModeText(ctx, m.Text)
	}

	result, err := c.router.Route(ctx, m.Text, ports.RouteContext{
		HasActiveSession: hasActive,
		SessionType:      sessionType,
	})
	if err != nil {
		return c.emit(ctx, protocol.Status{
			Level: protocol.LevelError,
			Text:  fmt.Sprintf("router error: %v", err),
		})
	}

	switch result.Action {
	case ports.ActionCannotParse:
		return c.emit(ctx, protocol.Status{Level: protocol.LevelInfo, Text: result.Reason})

	case ports.ActionQueryExecutor:
		status, qerr := c.executor.QueryStatus(ctx)
		if qerr != nil {
			return c.emit(ctx, protocol.Status{
				Level: protocol.LevelInfo,
				Text:  fmt.Sprintf("unable to get executor status: %v", qerr),
			})
		}
		return c.emit(ctx, protocol.Status{Level: protocol.LevelInfo, Text: status})

	case ports.ActionLaunchExecutor:
		return c.startLaunch(ctx, result.Prompt)

	default:
		return nil
	}
}

// startLaunch either mints a confirmation prompt or launches immediately,
// depending on c.requireConfirm.
func (c *Core) startLaunch(ctx context.Context, prompt string) error {
	if !c.requireConfirm {
		if err := c.executor.Launch(ctx, prompt); err != nil {
			return c.emit(ctx, protocol.Status{
				Level: protocol.LevelError,
				Text:  fmt.Sprintf("failed to start %s: %v", c.executorLabel, err),
			})
		}
		return c.emit(ctx, protocol.Status{
			Level: protocol.LevelInfo,
			Text:  fmt.Sprintf("Starting %s Code for: %s", c.executorLabel, prompt),
		})
	}

	id := c.newConfirmationID()
	c.mu.Lock()
	c.pending = &pendingConfirmation{id: id, prompt: prompt, kind: kindLaunch}
	c.mu.Unlock()

	return c.emit(ctx, protocol.PromptConfirmation{
		ID:       id,
		For:      ConfirmExecutorLaunchFor,
		Executor: c.executorLabel,
		Prompt:   prompt,
	})
}

// priorSessionExists reports whether this session's state machine has ever
// left Idle, i.e. some executor has already run during the paired session.
// This is a session-wide approximation rather than a true per-working-
// directory check: the state machine tracks one session at a time, so it
// cannot yet distinguish "ran before in this directory" from "ran before
// somewhere else."
func (c *Core) priorSessionExists() bool {
	if c.session == nil {
		return false
	}
	return c.session.StateMachine.Current() != lifecycle.StateIdle
}

func (c *Core) handleConfirmResponse(ctx context.Context, m protocol.ConfirmResponse) error {
	c.mu.Lock()
	pending := c.pending
	if pending == nil {
		c.mu.Unlock()
		return nil
	}
	if m.ID != "" && m.ID != pending.id {
		c.mu.Unlock()
		return nil
	}
	c.pending = nil
	c.mu.Unlock()

	if !m.Accept {
		return c.emit(ctx, protocol.Status{Level: protocol.LevelInfo, Text: "executor launch canceled"})
	}

	if pending.kind == kindLaunch && c.requireConfirm && c.priorSessionExists() {
		id := c.newConfirmationID()
		c.mu.Lock()
		c.pending = &pendingConfirmation{id: id, prompt: pending.prompt, kind: kindContinueOrNew}
		c.mu.Unlock()
		return c.emit(ctx, protocol.PromptConfirmation{
			ID:       id,
			For:      ConfirmContinueOrNewFor,
			Executor: c.executorLabel,
			Prompt:   fmt.Sprintf("Continue the previous %s session, or start a new one for: %s?", c.executorLabel, pending.prompt),
		})
	}

	continuation := pending.kind == kindContinueOrNew && m.Choice == "continue"

	if err := c.executor.Launch(ctx, pending.prompt); err != nil {
		return c.emit(ctx, protocol.Status{
			Level: protocol.LevelError,
			Text:  fmt.Sprintf("failed to start %s: %v", c.executorLabel, err),
		})
	}
	if continuation {
		return c.emit(ctx, protocol.Status{
			Level: protocol.LevelInfo,
			Text:  fmt.Sprintf("Continuing previous %s session for: %s", c.executorLabel, pending.prompt),
		})
	}
	return c.emit(ctx, protocol.Status{
		Level: protocol.LevelInfo,
		Text:  fmt.Sprintf("Starting %s Code for: %s", c.executorLabel, pending.prompt),
	})
}

// handleConfirmationModeText interprets free text received while a
// confirmation is pending as a natural-language confirmation. The core owns
// which mode is active; the router merely classifies whichever text it is
// handed. The mapping from ConfirmationAction to accept/decline/choice
// depends on which confirmation is currently pending: the first confirmation
// is strictly binary, so continue/new synonyms and unresolved ambiguity all
// collapse to a plain accept; the second (continue-vs-new) confirmation
// needs an explicit choice, so ambiguity there is re-asked rather than
// defaulted.
func (c *Core) handleConfirmationModeText(ctx context.Context, text string) error {
	c.mu.Lock()
	pending := c.pending
	c.mu.Unlock()
	if pending == nil {
		return nil
	}

	result, err := c.router.RouteConfirmation(ctx, text)
	if err != nil {
		return c.emit(ctx, protocol.Status{
			Level: protocol.LevelError,
			Text:  fmt.Sprintf("router error: %v", err),
		})
	}

	if pending.kind == kindContinueOrNew {
		switch result.Action {
		case ports.ConfirmationContinue:
			return c.handleConfirmResponse(ctx, protocol.ConfirmResponse{
				For: ConfirmContinueOrNewFor, Accept: true, Choice: "continue",
			})
		case ports.ConfirmationStartNew:
			return c.handleConfirmResponse(ctx, protocol.ConfirmResponse{
				For: ConfirmContinueOrNewFor, Accept: true, Choice: "new",
			})
		case ports.ConfirmationDecline:
			return c.handleConfirmResponse(ctx, protocol.ConfirmResponse{
				For: ConfirmContinueOrNewFor, Accept: false,
			})
		default:
			return c.emit(ctx, protocol.Status{
				Level: protocol.LevelInfo,
				Text:  "please say \"continue\" to resume the previous session or \"new\" to start fresh",
			})
		}
	}

	switch result.Action {
	case ports.ConfirmationContinue, ports.ConfirmationStartNew, ports.ConfirmationAmbiguous:
		// First confirmation is strictly binary (accept/decline); continue/
		// new synonyms and an unresolved ambiguous affirmative all accept
		// here, with the continue-vs-new distinction deferred to a second
		// prompt if a prior session turns out to exist.
		return c.handleConfirmResponse(ctx, protocol.ConfirmResponse{
			For:    ConfirmExecutorLaunchFor,
			Accept: true,
		})
	case ports.ConfirmationDecline:
		return c.handleConfirmResponse(ctx, protocol.ConfirmResponse{
			For:    ConfirmExecutorLaunchFor,
			Accept: false,
		})
	default:
		return c.emit(ctx, protocol.Status{
			Level: protocol.LevelInfo,
			Text:  "sorry, I didn't catch that — please confirm or cancel",
		})
	}
}

func (c *Core) confirmationPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// newConfirmationID mints a fresh id unique across this Core's lifetime:
// "confirm_" + millis-since-epoch, with a monotonic per-instance counter
// appended to guarantee uniqueness even when two calls land in the same
// millisecond.
func (c *Core) newConfirmationID() string {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.mu.Unlock()
	return "confirm_" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + strconv.FormatInt(seq, 10)
}

func (c *Core) emit(ctx context.Context, msg protocol.Message) error {
	if c.outbound == nil {
		return nil
	}
	if err := c.outbound.Send(ctx, msg); err != nil {
		log.Printf("core: outbound send failed: %v", err)
		return err
	}
	return nil
}
