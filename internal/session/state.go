// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "github.com/whiterven/ravenx/internal/model"

// State is the per-chat request state.
type State struct {
	// Pending is the last accepted prompt. A blank submission resends it.
	Pending string

	// InFlight is true from an accepted submission until its response has
	// failed or finished revealing.
	InFlight bool
}

// NewSession returns the initial state of a chat.
func NewSession() State {
	return State{}
}

// Idle reports whether a new submission would be accepted.
func (s State) Idle() bool {
	return !s.InFlight
}

// Snapshot is a read-only view of the controller.
type Snapshot struct {
	Messages []model.Message
	Titles   []string
	State    State
	Theme    string
}

// Empty reports whether the chat has no messages.
func (s Snapshot) Empty() bool {
	return len(s.Messages) == 0
}

// Last returns the final message and true, or false if there is none.
func (s Snapshot) Last() (model.Message, bool) {
	if len(s.Messages) == 0 {
		return model.Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}
