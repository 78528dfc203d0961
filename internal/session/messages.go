// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// CONTROLLER MESSAGES
// =============================================================================

// ShowLoadingMsg fires when the submission latency has elapsed.
type ShowLoadingMsg struct {
	// UserID is the outgoing message the response belongs to.
	UserID string
}

// ResponseMsg carries the responder result for a loading bubble.
type ResponseMsg struct {
	MessageID string
	Text      string
	Err       error
}

// RevealTickMsg advances the reveal of MessageID by one token.
type RevealTickMsg struct {
	MessageID string
}

// IsControllerMsg reports whether msg should be passed to Controller.Handle.
func IsControllerMsg(msg tea.Msg) bool {
	switch msg.(type) {
	case ShowLoadingMsg, ResponseMsg, RevealTickMsg:
		return true
	}
	return false
}

// after returns a command that yields msg once d has passed. A zero or
// negative d yields it immediately.
func after(d time.Duration, msg tea.Msg) tea.Cmd {
	if d <= 0 {
		return func() tea.Msg { return msg }
	}
	return tea.Tick(d, func(time.Time) tea.Msg { return msg })
}
