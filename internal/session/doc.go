// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session drives one chat: submissions, the simulated latency, the
// responder call, the word-by-word reveal, and archiving.
//
// # Key Types
//
//   - Controller: owns the transcript and the session state
//   - State: the pending message and the in-flight flag
//   - Reveal: splits a response into tokens and shows them one per tick
//   - Snapshot: an immutable copy of everything a view needs
//
// # Suspension
//
// The controller never blocks. Every wait (the latency timer, the responder
// call, each reveal tick) is returned as a tea.Cmd whose message must be fed
// back through Controller.Handle. Inside a bubbletea program that happens in
// Update; elsewhere Run executes the commands in order.
//
//	ctrl := session.New(resp, hist, session.Config{})
//	if cmd := ctrl.Submit("hello"); cmd != nil {
//	    // run cmd, pass its message to ctrl.Handle, repeat
//	}
//
// The controller is not safe for concurrent use; exactly one goroutine owns it.
package session
