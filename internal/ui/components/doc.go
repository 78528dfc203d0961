// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the visual building blocks of the chat TUI.
//
// Components are plain structs with a View method. They hold no chat state
// of their own: the chat model copies what it needs from a
// session.Snapshot before every render, so presentation is always derived
// from the records and never stored with them.
//
// # Components
//
//   - MessageBubble / MessageList: outgoing, incoming, loading and error bubbles
//   - MarkdownRenderer: glamour renderers cached per width and palette
//   - StatusBar: model, message count, request state and notices
//   - Welcome: the empty-chat screen with numbered suggestion cards
//   - CompletionPopup: tab completion candidates
//   - Sidebar: archived chat titles
//   - Spinner: the loading animation
package components
