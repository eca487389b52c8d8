// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package protocol

import "time"

// Role is the label a peer claims in its hello frame.
type Role string

const (
	RoleWorkstation Role = "workstation"
	RolePhone       Role = "phone"
)

// Valid reports whether r is one of the two roles the relay accepts.
func (r Role) Valid() bool {
	return r == RoleWorkstation || r == RolePhone
}

// Other returns the role that is not r, for "forward unless sender" checks.
func (r Role) Other() Role {
	if r == RoleWorkstation {
		return RolePhone
	}
	return RoleWorkstation
}

// RelayEnvelopeType tags the outer envelope the relay wraps around peer
// traffic and system notifications.
type RelayEnvelopeType string

const (
	RelayFrame         RelayEnvelopeType = "frame"
	RelayPeerJoined    RelayEnvelopeType = "peer-joined"
	RelayPeerLeft      RelayEnvelopeType = "peer-left"
	RelaySessionKilled RelayEnvelopeType = "session-killed"
	RelayHelloAck      RelayEnvelopeType = "hello-ack"

	// RelayPeerReplaced is sent to a connection whose role has just been
	// taken over by a newer connection of the same role (a role steal);
	// the recipient should treat it as a close reason and disconnect.
	RelayPeerReplaced RelayEnvelopeType = "peer-replaced"
)

// RelayEnvelope is the outer JSON object the relay sends to connected
// peers. Frame carries the opaque inner text (or base64 binary when
// B64=true); the relay never interprets Frame's contents.
type RelayEnvelope struct {
	Type      RelayEnvelopeType `json:"type"`
	SID       string            `json:"sid,omitempty"`
	FromRole  Role              `json:"from_role,omitempty"`
	At        time.Time         `json:"at,omitempty"`
	Frame     string            `json:"frame,omitempty"`
	B64       bool              `json:"b64,omitempty"`
	Role      Role              `json:"role,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
}

// Hello is the mandatory first frame a peer must send on a new connection.
type Hello struct {
	Type Type   `json:"type"`
	S    string `json:"s"`
	T    string `json:"t"`
	R    Role   `json:"r"`
}

// Heartbeat is sent by a peer to refresh the session TTL; it is never
// forwarded to the other peer.
type Heartbeat struct {
	Type Type `json:"type"`
}

const (
	TypeHello     Type = "hello"
	TypeHeartbeat Type = "hb"
)
