// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the bubbletea model of the chat TUI.
//
// The model owns no chat state. It forwards controller messages
// (session.IsControllerMsg) to session.Controller.Handle, sends input lines
// through the slash-command dispatcher and then to Submit, and renders a
// fresh session.Snapshot after every update.
//
// # Layout
//
//	header         title, model, theme
//	[sidebar] viewport   messages, or the welcome cards when empty
//	[detail]       multi-line command output (/help, /chats)
//	[completion]   tab completion popup
//	input          text input
//	status bar     model, count, request state, notice or shortcuts
//
// The sidebar is shown from styles.LayoutWide on.
//
// # Keys
//
// enter sends, tab and shift+tab cycle completions, ctrl+n starts a new
// chat, ctrl+r regenerates, ctrl+e puts the last prompt back for editing,
// ctrl+y copies the last response, ctrl+t toggles the theme, pgup/pgdown
// scroll, esc dismisses popups, ctrl+c quits.
package chat
