// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package broadcast is an in-process fan-out registry used alongside Redis
// pub/sub: a kill notification delivered through it reaches a
// same-process connection immediately, without waiting on pub/sub
// latency. Redis publish remains the cross-process path of record.
package broadcast

import "sync"

type subscriber struct {
	connID  string
	ch      chan []byte
	closeFn func()
}

// Registry maps a session id to the set of locally connected sockets'
// outbound channels, each tagged with the connection id that owns it so a
// single connection can be targeted (e.g. a role-steal close) as well as
// the whole session notified at once.
type Registry struct {
	mu   sync.Mutex
	subs map[string][]subscriber
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[string][]subscriber)}
}

// Register adds ch, tagged with connID, to the set notified for sid.
// closeFn, if non-nil, is invoked by NotifyConnection to force the
// connection closed rather than merely queuing a message it might never
// flush. The returned func removes the registration; callers must call it
// on connection teardown.
func (r *Registry) Register(sid, connID string, ch chan []byte, closeFn func()) (unregister func()) {
	r.mu.Lock()
	r.subs[sid] = append(r.subs[sid], subscriber{connID: connID, ch: ch, closeFn: closeFn})
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		list := r.subs[sid]
		for i, s := range list {
			if s.ch == ch {
				r.subs[sid] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(r.subs[sid]) == 0 {
			delete(r.subs, sid)
		}
	}
}

// Notify best-effort delivers payload to every channel registered for sid.
// A full channel is skipped rather than blocked on.
func (r *Registry) Notify(sid string, payload []byte) {
	r.mu.Lock()
	list := append([]subscriber(nil), r.subs[sid]...)
	r.mu.Unlock()

	for _, s := range list {
		select {
		case s.ch <- payload:
		default:
		}
	}
}

// NotifyConnection best-effort queues payload on the single connection
// connID registered for sid, then calls its closeFn — used for a
// peer-replaced close aimed only at the connection a role steal
// superseded, where delivery of the notice is best-effort but the
// connection's termination is not. It reports whether a matching,
// same-process connection was found; a false return means the superseded
// connection (if any) lives on another process and this registry cannot
// reach it.
func (r *Registry) NotifyConnection(sid, connID string, payload []byte) bool {
	r.mu.Lock()
	var target subscriber
	found := false
	for _, s := range r.subs[sid] {
		if s.connID == connID {
			target = s
			found = true
			break
		}
	}
	r.mu.Unlock()

	if !found {
		return false
	}
	select {
	case target.ch <- payload:
	default:
	}
	if target.closeFn != nil {
		target.closeFn()
	}
	return true
}
