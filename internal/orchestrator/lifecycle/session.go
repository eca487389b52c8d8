// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import "sync"

// Session bundles the state machine, history ring, and active-session
// context for a single orchestrated work session.
type Session struct {
	StateMachine *StateMachine
	History      *History

	mu          sync.RWMutex
	active      bool
	sessionType string
}

// NewSession returns a Session with a fresh state machine and a history
// ring of the given capacity.
func NewSession(historyCapacity int) *Session {
	s := &Session{
		StateMachine: NewStateMachine(),
		History:      NewHistory(historyCapacity),
	}
	s.History.Append(EventStarted, nil)
	return s
}

// SetActive marks the session as having a running executor, recording the
// session type so the router can disambiguate status-like utterances.
// Called by the coordinator once the supervisor confirms the child is
// running.
func (s *Session) SetActive(sessionType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = true
	s.sessionType = sessionType
}

// ClearActive marks the session as no longer having a running executor.
// Called by the coordinator on executor exit.
func (s *Session) ClearActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.sessionType = ""
}

// ActiveContext returns the information the router needs about whether an
// executor is currently running.
func (s *Session) ActiveContext() (hasActive bool, sessionType string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active, s.sessionType
}

// Transition moves the state machine to `to` and, only on success, records
// an EventStateTransition history entry naming the from/to states.
func (s *Session) Transition(to State) error {
	return s.TransitionWithReason(to, "")
}

// TransitionWithReason is Transition, additionally recording reason when
// moving into StateFailed.
func (s *Session) TransitionWithReason(to State, reason FailureReason) error {
	from := s.StateMachine.Current()
	if err := s.StateMachine.TransitionWithReason(to, reason); err != nil {
		return err
	}
	s.History.Append(EventStateTransition, map[string]string{
		"from": string(from),
		"to":   string(to),
	})
	return nil
}
