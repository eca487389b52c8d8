// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package conn

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/codewalk/internal/protocol"
	"github.com/wingedpig/codewalk/internal/relay/broadcast"
	"github.com/wingedpig/codewalk/internal/relay/store"
)

type testServer struct {
	srv *httptest.Server
	st  *store.Store
	rdb *redis.Client
	reg *broadcast.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	st := store.New(rdb)
	reg := broadcast.NewRegistry()
	h := NewHandler(st, rdb, reg, time.Hour)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, st: st, rdb: rdb, reg: reg}
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func sendHello(t *testing.T, c *websocket.Conn, sid, token string, role protocol.Role) {
	t.Helper()
	hello := protocol.Hello{Type: protocol.TypeHello, S: sid, T: token, R: role}
	raw, err := json.Marshal(hello)
	require.NoError(t, err)
	require.NoError(t, c.WriteMessage(websocket.TextMessage, raw))
}

func readEnvelope(t *testing.T, c *websocket.Conn) protocol.RelayEnvelope {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	var env protocol.RelayEnvelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestHandshake_HelloAck(t *testing.T) {
	ts := newTestServer(t)
	sess, err := ts.st.Create(context.Background(), time.Hour)
	require.NoError(t, err)

	c := dial(t, ts.wsURL())
	sendHello(t, c, sess.ID, sess.Token, protocol.RoleWorkstation)

	env := readEnvelope(t, c)
	assert.Equal(t, protocol.RelayHelloAck, env.Type)
	assert.Equal(t, sess.ID, env.SessionID)
}

func TestHandshake_InvalidToken_ConnectionClosed(t *testing.T) {
	ts := newTestServer(t)
	sess, err := ts.st.Create(context.Background(), time.Hour)
	require.NoError(t, err)

	c := dial(t, ts.wsURL())
	sendHello(t, c, sess.ID, "wrong-token", protocol.RoleWorkstation)

	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = c.ReadMessage()
	assert.Error(t, err, "server must close the connection on a bad token")
}

func TestHandshake_UnknownSession_ConnectionClosed(t *testing.T) {
	ts := newTestServer(t)
	c := dial(t, ts.wsURL())
	sendHello(t, c, "no-such-session", "whatever", protocol.RoleWorkstation)

	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := c.ReadMessage()
	assert.Error(t, err)
}

func TestFrameForwarding_WorkstationToPhone(t *testing.T) {
	ts := newTestServer(t)
	sess, err := ts.st.Create(context.Background(), time.Hour)
	require.NoError(t, err)

	work := dial(t, ts.wsURL())
	sendHello(t, work, sess.ID, sess.Token, protocol.RoleWorkstation)
	readEnvelope(t, work) // hello-ack

	phone := dial(t, ts.wsURL())
	sendHello(t, phone, sess.ID, sess.Token, protocol.RolePhone)
	readEnvelope(t, phone) // hello-ack

	// The phone connecting triggers a peer-joined notice to the
	// workstation; drain it before asserting on the frame forward.
	joined := readEnvelope(t, work)
	assert.Equal(t, protocol.RelayPeerJoined, joined.Type)

	inner, err := protocol.Marshal(protocol.Status{Level: protocol.LevelInfo, Text: "hello from workstation"})
	require.NoError(t, err)
	require.NoError(t, work.WriteMessage(websocket.TextMessage, inner))

	env := readEnvelope(t, phone)
	require.Equal(t, protocol.RelayFrame, env.Type)
	assert.Equal(t, protocol.RoleWorkstation, env.FromRole)

	msg, err := protocol.Parse([]byte(env.Frame))
	require.NoError(t, err)
	status, ok := msg.(protocol.Status)
	require.True(t, ok)
	assert.Equal(t, "hello from workstation", status.Text)
}

func TestFrameForwarding_SenderDoesNotReceiveOwnFrame(t *testing.T) {
	ts := newTestServer(t)
	sess, err := ts.st.Create(context.Background(), time.Hour)
	require.NoError(t, err)

	work := dial(t, ts.wsURL())
	sendHello(t, work, sess.ID, sess.Token, protocol.RoleWorkstation)
	readEnvelope(t, work)

	inner, err := protocol.Marshal(protocol.Status{Level: protocol.LevelInfo, Text: "echo check"})
	require.NoError(t, err)
	require.NoError(t, work.WriteMessage(websocket.TextMessage, inner))

	work.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, _, err = work.ReadMessage()
	assert.Error(t, err, "sender must not receive its own forwarded frame")
}

func TestHeartbeat_RefreshesSessionTTL(t *testing.T) {
	ts := newTestServer(t)
	sess, err := ts.st.Create(context.Background(), time.Minute)
	require.NoError(t, err)

	c := dial(t, ts.wsURL())
	sendHello(t, c, sess.ID, sess.Token, protocol.RoleWorkstation)
	readEnvelope(t, c)

	hb, err := json.Marshal(protocol.Heartbeat{Type: protocol.TypeHeartbeat})
	require.NoError(t, err)
	require.NoError(t, c.WriteMessage(websocket.TextMessage, hb))

	// Heartbeats must not be forwarded as application frames.
	c.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, _, err = c.ReadMessage()
	assert.Error(t, err)

	exists, err := ts.st.Exists(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	// The session was created with a one-minute TTL; the heartbeat resets
	// it to the handler's one-hour sessionTTL.
	require.Eventually(t, func() bool {
		ttl, err := ts.rdb.TTL(context.Background(), "sess:"+sess.ID).Result()
		return err == nil && ttl > time.Minute
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRoleRegisteredOnConnect_UnregisteredOnDisconnect(t *testing.T) {
	ts := newTestServer(t)
	sess, err := ts.st.Create(context.Background(), time.Hour)
	require.NoError(t, err)

	c := dial(t, ts.wsURL())
	sendHello(t, c, sess.ID, sess.Token, protocol.RoleWorkstation)
	readEnvelope(t, c)

	// Give the handler goroutine a beat to finish RegisterRole before we check.
	require.Eventually(t, func() bool {
		holder, err := ts.st.RoleHolder(context.Background(), sess.ID, string(protocol.RoleWorkstation))
		return err == nil && holder != ""
	}, 2*time.Second, 10*time.Millisecond)

	c.Close()

	require.Eventually(t, func() bool {
		holder, err := ts.st.RoleHolder(context.Background(), sess.ID, string(protocol.RoleWorkstation))
		return err == nil && holder == ""
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRoleSteal_SupersededConnectionIsClosedAndSuppressesPeerLeft(t *testing.T) {
	ts := newTestServer(t)
	sess, err := ts.st.Create(context.Background(), time.Hour)
	require.NoError(t, err)

	first := dial(t, ts.wsURL())
	sendHello(t, first, sess.ID, sess.Token, protocol.RoleWorkstation)
	readEnvelope(t, first) // hello-ack

	require.Eventually(t, func() bool {
		holder, err := ts.st.RoleHolder(context.Background(), sess.ID, string(protocol.RoleWorkstation))
		return err == nil && holder != ""
	}, 2*time.Second, 10*time.Millisecond)

	phone := dial(t, ts.wsURL())
	sendHello(t, phone, sess.ID, sess.Token, protocol.RolePhone)
	readEnvelope(t, phone) // hello-ack

	second := dial(t, ts.wsURL())
	sendHello(t, second, sess.ID, sess.Token, protocol.RoleWorkstation)
	readEnvelope(t, second) // hello-ack

	// The stolen connection must be force-closed so it stops double-serving
	// the role alongside the newer one, whether or not it manages to read
	// the best-effort peer-replaced notice first.
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err = first.ReadMessage()
		if err != nil {
			break
		}
	}
	assert.Error(t, err, "the superseded connection must be force-closed")

	require.Eventually(t, func() bool {
		holder, err := ts.st.RoleHolder(context.Background(), sess.ID, string(protocol.RoleWorkstation))
		return err == nil && holder != ""
	}, 2*time.Second, 10*time.Millisecond)

	// The role steal publishes the new connection's own peer-joined, but the
	// superseded connection's teardown must not also publish a peer-left
	// for a role someone else still holds.
	env := readEnvelope(t, phone)
	assert.Equal(t, protocol.RelayPeerJoined, env.Type, "only the new connection's join, never a stale peer-left")

	phone.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	_, _, err = phone.ReadMessage()
	assert.Error(t, err, "no further announcement should follow")
}
