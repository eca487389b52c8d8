// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package router provides the default, non-LLM Router port implementation.
// Production deployments are expected to back ports.Router with an LLM
// classifier; this heuristic implementation exists so the core is runnable
// and testable without one.
package router

import (
	"context"
	"strings"

	"github.com/wingedpig/codewalk/internal/ports"
)

// Heuristic is a deterministic, keyword-based Router. It never returns an
// error; RouterError handling in the core exists for LLM-backed
// implementations that can fail on network or API errors.
type Heuristic struct{}

// New returns a ready-to-use Heuristic router.
func New() *Heuristic {
	return &Heuristic{}
}

var statusPhrases = []string{
	"status", "how's it going", "hows it going", "progress",
	"how far along", "what's happening", "whats happening",
	"is it done", "are you done", "still working",
}

// Route implements ports.Router in normal mode.
func (h *Heuristic) Route(_ context.Context, text string, rc ports.RouteContext) (ports.RouteResult, error) {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	if len(trimmed) < 3 {
		return ports.RouteResult{
			Action:     ports.ActionCannotParse,
			Reason:     "I didn't catch that — could you say more?",
			Confidence: 0.2,
		}, nil
	}

	if containsAny(lower, statusPhrases) {
		if !rc.HasActiveSession {
			return ports.RouteResult{
				Action:     ports.ActionCannotParse,
				Reason:     "there's no active session to check on right now",
				Confidence: 0.6,
			}, nil
		}
		return ports.RouteResult{
			Action:     ports.ActionQueryExecutor,
			Confidence: 0.8,
		}, nil
	}

	// Anything else substantive is treated as a task description for the
	// executor. A production Router would classify intent with an LLM;
	// this heuristic optimistically launches, relying on the confirmation
	// gate to give the user a chance to decline.
	return ports.RouteResult{
		Action:     ports.ActionLaunchExecutor,
		Prompt:     trimmed,
		Confidence: 0.7,
	}, nil
}

// RouteConfirmation implements ports.Router in confirmation mode: it
// classifies continue/new synonyms, negation words, and flags single-word
// affirmatives as ambiguous rather than guessing.
func (h *Heuristic) RouteConfirmation(_ context.Context, text string) (ports.ConfirmationResult, error) {
	lower := strings.ToLower(strings.TrimSpace(text))
	words := strings.Fields(lower)

	if containsAny(lower, []string{"continue", "resume", "pick up", "where we left", "previous", "last session"}) {
		return ports.ConfirmationResult{
			Action:     ports.ConfirmationContinue,
			Reason:     "user wants to continue previous session",
			Confidence: 0.9,
		}, nil
	}

	if containsAny(lower, []string{"new", "fresh", "start over", "from scratch", "clean", "restart"}) {
		return ports.ConfirmationResult{
			Action:     ports.ConfirmationStartNew,
			Reason:     "user wants to start a new session",
			Confidence: 0.9,
		}, nil
	}

	if isNegative(words, lower) {
		return ports.ConfirmationResult{
			Action:     ports.ConfirmationDecline,
			Reason:     "user declined",
			Confidence: 0.95,
		}, nil
	}

	if isAmbiguousAffirmative(words, lower) {
		return ports.ConfirmationResult{
			Action:     ports.ConfirmationAmbiguous,
			Reason:     "user said yes but didn't specify continue or new",
			Confidence: 0.8,
		}, nil
	}

	return ports.ConfirmationResult{
		Action:     ports.ConfirmationUnintelligible,
		Reason:     "could not understand the response",
		Confidence: 0.7,
	}, nil
}

func containsAny(text string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func isNegative(words []string, text string) bool {
	for _, w := range words {
		if w == "no" || w == "nope" || w == "nah" {
			return true
		}
	}
	return containsAny(text, []string{"not now", "cancel", "never mind", "forget it", "don't", "stop"})
}

func isAmbiguousAffirmative(words []string, text string) bool {
	if len(words) == 1 {
		switch words[0] {
		case "yes", "yeah", "yep", "okay", "ok", "sure", "alright":
			return true
		}
	}
	if len(words) <= 2 && contains(words, "yes") && !containsAny(text, []string{"continue", "new", "fresh", "previous"}) {
		return true
	}
	switch text {
	case "yes please", "okay please", "sure thing":
		return true
	}
	return false
}

func contains(words []string, w string) bool {
	for _, x := range words {
		if x == w {
			return true
		}
	}
	return false
}
