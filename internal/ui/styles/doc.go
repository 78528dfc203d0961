// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles holds the colors and lipgloss styles of the chat TUI.
//
// Every color is a lipgloss.AdaptiveColor, so a single call to
// lipgloss.SetHasDarkBackground switches the whole palette. Theme wraps
// that call (see Theme.SetDark) and keeps the derived styles in one place.
//
// # Usage
//
//	theme := styles.NewTheme(true)
//	bubble := theme.UserBubble.Render("hello")
//	theme.SetDark(false) // light palette from the next render on
package styles
