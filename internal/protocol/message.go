// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package protocol defines the tagged message envelope shared by peers and
// the orchestrator core.
package protocol

import "encoding/json"

// Type is the wire-level discriminator carried by every message.
type Type string

const (
	TypeUserText           Type = "user_text"
	TypeAck                Type = "ack"
	TypeStatus             Type = "status"
	TypePromptConfirmation Type = "prompt_confirmation"
	TypeConfirmResponse    Type = "confirm_response"
)

// Level is the severity of a Status message.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Source identifies where a UserText message originated.
type Source string

const (
	SourceTyped       Source = "typed"
	SourceTranscribed Source = "transcribed"
	SourceUnspecified Source = ""
)

// Envelope is the outer shape every message shares; callers decode Payload
// into the concrete variant once Type is known.
type Envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"-"`
}

// UserText is a user utterance. Final=false marks a partial transcription
// that may be superseded by a later message sharing the same ID; the core
// treats every message as final for routing purposes and does not read
// Final.
type UserText struct {
	V      int    `json:"v,omitempty"`
	ID     string `json:"id,omitempty"`
	Text   string `json:"text"`
	Source Source `json:"source,omitempty"`
	Final  bool   `json:"final"`
}

func (UserText) messageType() Type { return TypeUserText }

// Ack is an application-level acknowledgement.
type Ack struct {
	V       int    `json:"v,omitempty"`
	ReplyTo string `json:"reply_to,omitempty"`
	Text    string `json:"text"`
}

func (Ack) messageType() Type { return TypeAck }

// Status is an informational message at a given severity.
type Status struct {
	V     int    `json:"v,omitempty"`
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

func (Status) messageType() Type { return TypeStatus }

// PromptConfirmation asks a UI to confirm a destructive action. ID is a
// unique token the responder must echo back in ConfirmResponse.
type PromptConfirmation struct {
	V          int    `json:"v,omitempty"`
	ID         string `json:"id"`
	For        string `json:"for"`
	Executor   string `json:"executor"`
	WorkingDir string `json:"working_dir,omitempty"`
	Prompt     string `json:"prompt"`
}

func (PromptConfirmation) messageType() Type { return TypePromptConfirmation }

// ConfirmResponse echoes acceptance or decline of a pending confirmation.
// ID is absent for legacy clients; absence is tolerated by the core.
// Choice disambiguates an accepted continue-vs-new confirmation ("continue"
// or "new"); it is ignored outside that second-stage prompt.
type ConfirmResponse struct {
	V      int    `json:"v,omitempty"`
	ID     string `json:"id,omitempty"`
	For    string `json:"for"`
	Accept bool   `json:"accept"`
	Choice string `json:"choice,omitempty"`
}

func (ConfirmResponse) messageType() Type { return TypeConfirmResponse }

// Message is implemented by every protocol variant.
type Message interface {
	messageType() Type
}

// Marshal serializes a Message into its tagged wire form.
func Marshal(msg Message) ([]byte, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	typeTag, err := json.Marshal(msg.messageType())
	if err != nil {
		return nil, err
	}
	fields["type"] = typeTag
	return json.Marshal(fields)
}

// Parse decodes a tagged wire message into the concrete Message variant.
// Unknown types return ErrUnknownType so callers can ignore them per the
// protocol contract ("unknown types are not errors; peers ignore them").
func Parse(data []byte) (Message, error) {
	var env struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Type {
	case TypeUserText:
		var m UserText
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeAck:
		var m Ack
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeStatus:
		var m Status
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypePromptConfirmation:
		var m PromptConfirmation
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeConfirmResponse:
		var m ConfirmResponse
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, ErrUnknownType
	}
}
