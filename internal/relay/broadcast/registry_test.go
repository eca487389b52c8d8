// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_NotifyDeliversToRegisteredChannel(t *testing.T) {
	r := NewRegistry()
	ch := make(chan []byte, 1)
	r.Register("sess-1", "conn-1", ch, nil)

	r.Notify("sess-1", []byte("hello"))

	select {
	case got := <-ch:
		assert.Equal(t, "hello", string(got))
	default:
		t.Fatal("expected a delivered payload")
	}
}

func TestRegistry_NotifyUnknownSessionIsNoop(t *testing.T) {
	r := NewRegistry()
	assert.NotPanics(t, func() { r.Notify("nobody-home", []byte("x")) })
}

func TestRegistry_UnregisterStopsDelivery(t *testing.T) {
	r := NewRegistry()
	ch := make(chan []byte, 1)
	unregister := r.Register("sess-1", "conn-1", ch, nil)
	unregister()

	r.Notify("sess-1", []byte("hello"))

	select {
	case <-ch:
		t.Fatal("unregistered channel must not receive")
	default:
	}
}

func TestRegistry_NotifyFullChannelSkippedNotBlocked(t *testing.T) {
	r := NewRegistry()
	ch := make(chan []byte) // unbuffered, nothing draining it
	r.Register("sess-1", "conn-1", ch, nil)

	done := make(chan struct{})
	go func() {
		r.Notify("sess-1", []byte("hello"))
		close(done)
	}()
	<-done // must return promptly instead of blocking forever
}

func TestRegistry_MultipleSubscribersBothReceive(t *testing.T) {
	r := NewRegistry()
	ch1 := make(chan []byte, 1)
	ch2 := make(chan []byte, 1)
	r.Register("sess-1", "conn-1", ch1, nil)
	r.Register("sess-1", "conn-2", ch2, nil)

	r.Notify("sess-1", []byte("hi"))

	assert.Equal(t, "hi", string(<-ch1))
	assert.Equal(t, "hi", string(<-ch2))
}

func TestRegistry_UnregisterOneLeavesOtherIntact(t *testing.T) {
	r := NewRegistry()
	ch1 := make(chan []byte, 1)
	ch2 := make(chan []byte, 1)
	unregister1 := r.Register("sess-1", "conn-1", ch1, nil)
	r.Register("sess-1", "conn-2", ch2, nil)
	unregister1()

	r.Notify("sess-1", []byte("hi"))

	select {
	case <-ch1:
		t.Fatal("ch1 was unregistered")
	default:
	}
	assert.Equal(t, "hi", string(<-ch2))
}

func TestRegistry_NotifyConnection_TargetsOnlyThatConnection(t *testing.T) {
	r := NewRegistry()
	ch1 := make(chan []byte, 1)
	ch2 := make(chan []byte, 1)
	r.Register("sess-1", "conn-1", ch1, nil)
	r.Register("sess-1", "conn-2", ch2, nil)

	delivered := r.NotifyConnection("sess-1", "conn-1", []byte("steal"))
	assert.True(t, delivered)

	assert.Equal(t, "steal", string(<-ch1))
	select {
	case <-ch2:
		t.Fatal("conn-2 must not receive a notification targeted at conn-1")
	default:
	}
}

func TestRegistry_NotifyConnection_UnknownConnectionReturnsFalse(t *testing.T) {
	r := NewRegistry()
	ch := make(chan []byte, 1)
	r.Register("sess-1", "conn-1", ch, nil)

	delivered := r.NotifyConnection("sess-1", "conn-nope", []byte("x"))
	assert.False(t, delivered)
}

func TestRegistry_NotifyConnection_InvokesCloseFn(t *testing.T) {
	r := NewRegistry()
	ch := make(chan []byte, 1)
	closed := make(chan struct{})
	r.Register("sess-1", "conn-1", ch, func() { close(closed) })

	r.NotifyConnection("sess-1", "conn-1", []byte("steal"))

	select {
	case <-closed:
	default:
		t.Fatal("expected closeFn to be invoked")
	}
}

func TestRegistry_NotifyConnection_FullChannelStillInvokesCloseFn(t *testing.T) {
	r := NewRegistry()
	ch := make(chan []byte) // unbuffered, nothing draining it
	closed := make(chan struct{})
	r.Register("sess-1", "conn-1", ch, func() { close(closed) })

	delivered := r.NotifyConnection("sess-1", "conn-1", []byte("steal"))
	assert.True(t, delivered, "a matching connection was found even though the queued message was dropped")

	select {
	case <-closed:
	default:
		t.Fatal("closeFn must still run even when the notice could not be queued")
	}
}
