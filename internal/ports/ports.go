// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package ports defines the abstract capabilities the orchestrator core
// consumes. Concrete implementations (an LLM-backed router, a subprocess
// executor, a websocket outbound sink) live outside this package; the core
// depends only on these interfaces.
package ports

import (
	"context"
	"errors"

	"github.com/wingedpig/codewalk/internal/protocol"
)

// Action is the routing decision returned by Router.Route.
type Action string

const (
	ActionCannotParse    Action = "cannot_parse"
	ActionLaunchExecutor Action = "launch_executor"
	ActionQueryExecutor  Action = "query_executor"
)

// RouteContext carries information the router needs to disambiguate
// status-like utterances during an active session.
type RouteContext struct {
	HasActiveSession bool
	SessionType      string
}

// RouteResult is what Router.Route returns.
type RouteResult struct {
	Action     Action
	Prompt     string
	Reason     string
	Confidence float64
}

// ConfirmationAction is the routing decision returned in confirmation mode,
// when free text arrives while a PromptConfirmation is pending. The core,
// not the router, decides when confirmation mode applies.
type ConfirmationAction string

const (
	ConfirmationContinue       ConfirmationAction = "continue"
	ConfirmationStartNew       ConfirmationAction = "start_new"
	ConfirmationDecline        ConfirmationAction = "decline"
	ConfirmationAmbiguous      ConfirmationAction = "ambiguous"
	ConfirmationUnintelligible ConfirmationAction = "unintelligible"
)

// ConfirmationResult is what Router.RouteConfirmation returns.
type ConfirmationResult struct {
	Action     ConfirmationAction
	Reason     string
	Confidence float64
}

// ErrRouter wraps any failure from a Router implementation.
var ErrRouter = errors.New("router error")

// Router classifies user text into a routing action.
type Router interface {
	// Route classifies text in normal mode.
	Route(ctx context.Context, text string, rc RouteContext) (RouteResult, error)

	// RouteConfirmation classifies free text received while a confirmation
	// is pending. The core, not the router, decides when this mode applies.
	RouteConfirmation(ctx context.Context, text string) (ConfirmationResult, error)
}

// ErrExecutorNotFound signals that the executor binary could not be located
// on PATH; callers map this to install guidance rather than a generic error.
var ErrExecutorNotFound = errors.New("executor: command not found")

// Executor launches and queries the external coding-agent subprocess. Launch
// is fire-and-forget from the core's perspective — the supervisor behind
// this port owns the child process lifecycle.
type Executor interface {
	// Launch starts a new executor run for prompt. It returns once the
	// subprocess has been started (or failed to start); it does not wait
	// for the subprocess to finish.
	Launch(ctx context.Context, prompt string) error

	// QueryStatus returns a short human-readable summary of the current
	// executor run, or an error if no run is active or the query failed.
	QueryStatus(ctx context.Context) (string, error)
}

// Outbound delivers a protocol message to the connected peers.
// Implementations must be non-blocking in the fast path; Status frames may
// be dropped under backpressure, but PromptConfirmation, UserText, and
// ConfirmResponse must not be dropped silently.
type Outbound interface {
	Send(ctx context.Context, msg protocol.Message) error
}
