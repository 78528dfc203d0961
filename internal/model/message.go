// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Raven"
	default:
		return string(r)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single chat bubble.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Error marks an incoming bubble that shows a responder failure.
	Error bool `json:"error,omitempty"`

	// Transient presentation state (not persisted).
	Loading   bool `json:"-"`
	Revealing bool `json:"-"`
}

// NewMessage creates a message with a fresh ID and the current time.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        newID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates an outgoing message.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewLoadingMessage creates an empty incoming message in the loading state.
func NewLoadingMessage() *Message {
	msg := NewMessage(RoleAssistant, "")
	msg.Loading = true
	return msg
}

// IsUser reports whether the message is outgoing.
func (m *Message) IsUser() bool {
	return m.Role == RoleUser
}

// IsAssistant reports whether the message is incoming.
func (m *Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}

// ActionsVisible reports whether the copy affordance may be shown: the
// message is a settled incoming response that is not an error.
func (m *Message) ActionsVisible() bool {
	return m.IsAssistant() && !m.Loading && !m.Revealing && !m.Error && m.Content != ""
}

// Preview returns the first line of the content, cut to maxLen runes.
func (m *Message) Preview(maxLen int) string {
	line := m.Content
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	runes := []rune(line)
	if len(runes) > maxLen {
		return string(runes[:maxLen]) + "..."
	}
	return line
}

// Clone returns a copy of the message.
func (m *Message) Clone() *Message {
	c := *m
	return &c
}

func newID() string {
	return "msg_" + uuid.NewString()
}
