// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package conn handles a single relay websocket connection: hello
// authentication, role registration (including stealing the role from a
// stale connection of the same kind), Redis pub/sub fan-out between the
// two peers of a session, and heartbeat-driven TTL refresh.
package conn

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/wingedpig/codewalk/internal/protocol"
	"github.com/wingedpig/codewalk/internal/relay/broadcast"
	"github.com/wingedpig/codewalk/internal/relay/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	outboundBuffer = 256
)

// Handler serves websocket connections for the relay.
type Handler struct {
	store      *store.Store
	rdb        *redis.Client
	registry   *broadcast.Registry
	sessionTTL time.Duration
}

// NewHandler builds a connection handler backed by store and rdb (for
// pub/sub, which is a separate concern from the keyed record store).
// registry lets the admin HTTP surface deliver a kill notification, and a
// new connection deliver a role-steal close, to a same-process connection
// without waiting on pub/sub latency.
func NewHandler(st *store.Store, rdb *redis.Client, registry *broadcast.Registry, sessionTTL time.Duration) *Handler {
	return &Handler{store: st, rdb: rdb, registry: registry, sessionTTL: sessionTTL}
}

// ServeHTTP upgrades the request and runs the connection's read/write
// loops until the peer disconnects, the session is killed, the role is
// stolen by a newer connection, or an error occurs.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer wsConn.Close()

	connID := uuid.New().String()
	ctx := r.Context()

	sid, role, err := h.awaitHello(wsConn)
	if err != nil {
		log.Printf("relay: hello failed for %s: %v", connID, err)
		return
	}

	done := make(chan struct{})
	var closeOnce sync.Once
	closeConn := func() { closeOnce.Do(func() { close(done) }) }

	previous, err := h.store.RegisterRole(ctx, sid, string(role), connID)
	if err != nil {
		log.Printf("relay: register role failed: %v", err)
		return
	}
	if previous != "" && previous != connID && h.registry != nil {
		h.stealRole(sid, role, previous)
	}

	defer func() {
		deleted, err := h.store.UnregisterRole(context.Background(), sid, string(role), connID)
		if err != nil {
			log.Printf("relay: unregister role failed: %v", err)
			return
		}
		if deleted {
			h.announcePeer(context.Background(), sid, role, protocol.RelayPeerLeft)
		}
	}()

	out := make(chan []byte, outboundBuffer)

	if h.registry != nil {
		unregister := h.registry.Register(sid, connID, out, closeConn)
		defer unregister()
	}

	pubsub := h.rdb.Subscribe(ctx, store.ChannelKey(sid))
	defer pubsub.Close()

	go h.forwardPubSub(pubsub, role, out, done)

	h.announcePeer(ctx, sid, role, protocol.RelayPeerJoined)

	ack, _ := json.Marshal(protocol.RelayEnvelope{Type: protocol.RelayHelloAck, SessionID: sid})
	if err := wsConn.WriteMessage(websocket.TextMessage, ack); err != nil {
		return
	}

	go h.readLoop(wsConn, ctx, sid, role, closeConn)

	h.writeLoop(wsConn, out, done)
}

// stealRole notifies the connection a role steal superseded, via the
// same-process broadcast registry: it best-effort queues a peer-replaced
// notice and force-closes the stolen connection so it stops double-serving
// the role (at most one live connection per role, per session). A
// superseded connection living on another relay-server process is not
// reachable here; it stays open until it disconnects or errors out on its
// own (heartbeats only refresh the session TTL and do not check the role
// holder), and on teardown the compare-and-delete in UnregisterRole finds
// the newer holder, so it emits no peer-left for a role it no longer holds.
func (h *Handler) stealRole(sid string, role protocol.Role, previousConnID string) {
	payload, err := json.Marshal(protocol.RelayEnvelope{
		Type:     protocol.RelayPeerReplaced,
		SID:      sid,
		FromRole: role,
		At:       time.Now(),
	})
	if err != nil {
		return
	}
	h.registry.NotifyConnection(sid, previousConnID, payload)
}

// awaitHello blocks for the first frame, which must be a Hello matching a
// live session record; it returns the validated (sessionID, role).
func (h *Handler) awaitHello(wsConn *websocket.Conn) (string, protocol.Role, error) {
	_, data, err := wsConn.ReadMessage()
	if err != nil {
		return "", "", err
	}

	var hello protocol.Hello
	if err := json.Unmarshal(data, &hello); err != nil {
		return "", "", err
	}

	role := protocol.Role(hello.R)
	if !role.Valid() {
		return "", "", errInvalidRole
	}

	sess, err := h.store.Load(context.Background(), hello.S)
	if err != nil {
		return "", "", err
	}
	if sess.Token != hello.T {
		return "", "", errTokenMismatch
	}

	return hello.S, role, nil
}

func (h *Handler) announcePeer(ctx context.Context, sid string, role protocol.Role, typ protocol.RelayEnvelopeType) {
	env := protocol.RelayEnvelope{
		Type:     typ,
		SID:      sid,
		FromRole: role,
		At:       time.Now(),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return
	}
	h.rdb.Publish(ctx, store.ChannelKey(sid), payload)
}

// forwardPubSub relays messages from the other peer (and system
// notifications) onto out until done is closed.
func (h *Handler) forwardPubSub(pubsub *redis.PubSub, myRole protocol.Role, out chan<- []byte, done <-chan struct{}) {
	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env protocol.RelayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				continue
			}
			switch env.Type {
			case protocol.RelayFrame:
				if env.FromRole == myRole {
					continue
				}
				select {
				case out <- []byte(msg.Payload):
				case <-done:
					return
				}
			case protocol.RelayPeerJoined, protocol.RelayPeerLeft, protocol.RelaySessionKilled:
				if env.FromRole == myRole {
					continue
				}
				select {
				case out <- []byte(msg.Payload):
				case <-done:
					return
				}
			}
		case <-done:
			return
		}
	}
}

func (h *Handler) readLoop(wsConn *websocket.Conn, ctx context.Context, sid string, role protocol.Role, closeConn func()) {
	defer closeConn()
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := wsConn.ReadMessage()
		if err != nil {
			return
		}

		var probe struct {
			Type protocol.Type `json:"type"`
		}
		if err := json.Unmarshal(data, &probe); err == nil && probe.Type == protocol.TypeHeartbeat {
			h.store.Refresh(ctx, sid, h.sessionTTL)
			continue
		}

		env := protocol.RelayEnvelope{
			Type:     protocol.RelayFrame,
			SID:      sid,
			FromRole: role,
			At:       time.Now(),
			Frame:    string(data),
		}
		if msgType == websocket.BinaryMessage {
			env.Frame = base64.StdEncoding.EncodeToString(data)
			env.B64 = true
		}
		payload, err := json.Marshal(env)
		if err != nil {
			continue
		}
		h.rdb.Publish(ctx, store.ChannelKey(sid), payload)
	}
}

func (h *Handler) writeLoop(wsConn *websocket.Conn, out <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload := <-out:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
