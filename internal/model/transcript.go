// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// TRANSCRIPT TYPE
// =============================================================================

// Transcript is the ordered history of messages in one chat session.
// It is not safe for concurrent use; the session controller owns it.
type Transcript struct {
	messages []*Message
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{messages: make([]*Message, 0)}
}

// Append adds a message at the end.
func (t *Transcript) Append(msg *Message) {
	t.messages = append(t.messages, msg)
}

// Messages returns the messages in order. The slice is a copy; the
// messages are shared.
func (t *Transcript) Messages() []*Message {
	out := make([]*Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// Empty reports whether there are no messages.
func (t *Transcript) Empty() bool {
	return len(t.messages) == 0
}

// Index returns the position of the message with the given ID, or -1.
func (t *Transcript) Index(id string) int {
	for i, msg := range t.messages {
		if msg.ID == id {
			return i
		}
	}
	return -1
}

// Find returns the message with the given ID, or nil.
func (t *Transcript) Find(id string) *Message {
	if i := t.Index(id); i >= 0 {
		return t.messages[i]
	}
	return nil
}

// After returns the message immediately following id, or nil.
func (t *Transcript) After(id string) *Message {
	i := t.Index(id)
	if i < 0 || i+1 >= len(t.messages) {
		return nil
	}
	return t.messages[i+1]
}

// InsertAfter places msg directly after the message with the given ID.
// It returns false if id is unknown.
func (t *Transcript) InsertAfter(id string, msg *Message) bool {
	i := t.Index(id)
	if i < 0 {
		return false
	}
	t.messages = append(t.messages, nil)
	copy(t.messages[i+2:], t.messages[i+1:])
	t.messages[i+1] = msg
	return true
}

// Remove deletes the message with the given ID.
func (t *Transcript) Remove(id string) bool {
	i := t.Index(id)
	if i < 0 {
		return false
	}
	t.messages = append(t.messages[:i], t.messages[i+1:]...)
	return true
}

// Last returns the final message, or nil if empty.
func (t *Transcript) Last() *Message {
	if len(t.messages) == 0 {
		return nil
	}
	return t.messages[len(t.messages)-1]
}

// LastUser returns the most recent outgoing message, or nil.
func (t *Transcript) LastUser() *Message {
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].IsUser() {
			return t.messages[i]
		}
	}
	return nil
}

// UserAt returns the nth outgoing message, counting from 1, or nil.
func (t *Transcript) UserAt(n int) *Message {
	if n < 1 {
		return nil
	}
	for _, m := range t.messages {
		if !m.IsUser() {
			continue
		}
		if n--; n == 0 {
			return m
		}
	}
	return nil
}

// Clear removes all messages.
func (t *Transcript) Clear() {
	t.messages = t.messages[:0]
}

// Clone returns a deep copy.
func (t *Transcript) Clone() *Transcript {
	c := &Transcript{messages: make([]*Message, len(t.messages))}
	for i, msg := range t.messages {
		c.messages[i] = msg.Clone()
	}
	return c
}

// =============================================================================
// ENCODING
// =============================================================================

// MarshalJSON encodes the transcript as an array of message records.
// Messages still loading have no content yet and are skipped.
func (t *Transcript) MarshalJSON() ([]byte, error) {
	records := make([]*Message, 0, len(t.messages))
	for _, msg := range t.messages {
		if msg.Loading {
			continue
		}
		records = append(records, msg)
	}
	return json.Marshal(records)
}

// UnmarshalJSON decodes an array of message records.
func (t *Transcript) UnmarshalJSON(data []byte) error {
	var records []*Message
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}
	for i, msg := range records {
		if msg == nil {
			return fmt.Errorf("record %d is null", i)
		}
		if !msg.Role.Valid() {
			return fmt.Errorf("record %d has unknown role %q", i, msg.Role)
		}
	}
	if records == nil {
		records = make([]*Message, 0)
	}
	t.messages = records
	return nil
}

// EncodeTranscript serializes t for the store.
func EncodeTranscript(t *Transcript) ([]byte, error) {
	return json.Marshal(t)
}

// DecodeTranscript parses a transcript written by EncodeTranscript.
func DecodeTranscript(data []byte) (*Transcript, error) {
	t := NewTranscript()
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	return t, nil
}
