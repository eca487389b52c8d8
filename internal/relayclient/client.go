// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package relayclient is the orchestrator's websocket client for the
// session relay: it performs the hello handshake, sends periodic
// heartbeats to keep the session alive, exposes received messages on a
// channel, and implements ports.Outbound with Send, which writes directly
// to the socket.
package relayclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wingedpig/codewalk/internal/protocol"
)

const (
	writeWait   = 10 * time.Second
	dialTimeout = 10 * time.Second
)

// Client is a connected workstation-role relay session.
type Client struct {
	conn          *websocket.Conn
	heartbeatTick time.Duration
	inbound       chan protocol.Message
	done          chan struct{}
}

// Dial connects to wsURL, sends the hello frame for sid/token as the
// workstation role, and starts the read and heartbeat loops. heartbeatSecs
// defaults to 30 when <= 0.
func Dial(ctx context.Context, wsURL, sid, token string, heartbeatSecs int) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("relayclient: dial: %w", err)
	}

	hello := protocol.Hello{Type: protocol.TypeHello, S: sid, T: token, R: protocol.RoleWorkstation}
	data, err := json.Marshal(hello)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("relayclient: marshal hello: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		conn.Close()
		return nil, fmt.Errorf("relayclient: send hello: %w", err)
	}

	if heartbeatSecs <= 0 {
		heartbeatSecs = 30
	}

	c := &Client{
		conn:          conn,
		heartbeatTick: time.Duration(heartbeatSecs) * time.Second,
		inbound:       make(chan protocol.Message, 64),
		done:          make(chan struct{}),
	}

	go c.readLoop()
	go c.heartbeatLoop()

	return c, nil
}

// Inbound returns the channel of parsed messages received from the relay.
// It is closed when the connection terminates.
func (c *Client) Inbound() <-chan protocol.Message {
	return c.inbound
}

// Done reports when the underlying connection has terminated.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Send implements ports.Outbound by marshaling msg and writing it as a
// single text frame. The relay wraps it for the peer; this client sends
// the application-level envelope directly, unwrapped.
func (c *Client) Send(ctx context.Context, msg protocol.Message) error {
	data, err := protocol.Marshal(msg)
	if err != nil {
		return fmt.Errorf("relayclient: marshal: %w", err)
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("relayclient: send: %w", err)
	}
	return nil
}

// Close terminates the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.inbound)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var env protocol.RelayEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		switch env.Type {
		case protocol.RelaySessionKilled:
			return
		case protocol.RelayFrame:
			msg, err := protocol.Parse([]byte(env.Frame))
			if err != nil {
				continue
			}
			select {
			case c.inbound <- msg:
			default:
				log.Printf("relayclient: inbound buffer full, dropping message")
			}
		default:
			// peer-joined, peer-left, hello-ack: relay-level notifications,
			// not application messages.
		}
	}
}

func (c *Client) heartbeatLoop() {
	ticker := time.NewTicker(c.heartbeatTick)
	defer ticker.Stop()

	hb, _ := json.Marshal(protocol.Heartbeat{Type: protocol.TypeHeartbeat})

	for {
		select {
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, hb); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
