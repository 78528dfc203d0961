// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/whiterven/ravenx/internal/ui/styles"
)

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// Shortcut is a key hint shown on the right of the status bar.
type Shortcut struct {
	Key  string
	Desc string
}

// DefaultShortcuts are the hints of the chat screen.
var DefaultShortcuts = []Shortcut{
	{"enter", "send"},
	{"tab", "complete"},
	{"ctrl+n", "new"},
	{"ctrl+r", "regen"},
	{"ctrl+t", "theme"},
	{"ctrl+c", "quit"},
}

// StatusBar shows the model, the message count, the request state and the
// latest command notice.
type StatusBar struct {
	Model    string
	Messages int
	Busy     bool

	// SpinnerFrame is shown while Busy.
	SpinnerFrame string

	// Notice replaces the shortcut hints when set.
	Notice    string
	NoticeErr bool

	Shortcuts []Shortcut
	Width     int

	theme *styles.Theme
}

// NewStatusBar creates a status bar with the default shortcuts.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{
		Shortcuts: DefaultShortcuts,
		Width:     80,
		theme:     theme,
	}
}

// View renders the status bar as a single row.
func (s *StatusBar) View() string {
	left := s.renderLeft()
	avail := s.Width - 2 - lipgloss.Width(left) - 2
	right := ""
	if avail > 0 {
		if s.Notice != "" {
			right = s.renderNotice(avail)
		} else {
			right = s.renderShortcuts(avail)
		}
	}

	gap := s.Width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	row := left + strings.Repeat(" ", gap) + right
	return s.theme.StatusBar.Width(s.Width).MaxWidth(s.Width).MaxHeight(1).Render(row)
}

func (s *StatusBar) renderLeft() string {
	parts := []string{}
	if s.Model != "" {
		parts = append(parts, s.theme.StatusModel.Render(s.Model))
	}
	parts = append(parts, fmt.Sprintf("%d msgs", s.Messages))
	if s.Busy {
		frame := s.SpinnerFrame
		if frame == "" {
			frame = "..."
		}
		parts = append(parts, s.theme.StatusBusy.Render(strings.TrimSpace(frame)+" waiting"))
	}
	return strings.Join(parts, " | ")
}

// renderNotice shows the first line of the notice; multi-line notices
// (help, /chats) are shown in full by the chat view.
func (s *StatusBar) renderNotice(width int) string {
	first, _, _ := strings.Cut(s.Notice, "\n")
	text := truncate(first, width)
	if s.NoticeErr {
		return s.theme.StatusError.Render(text)
	}
	return s.theme.StatusNotice.Render(text)
}

func (s *StatusBar) renderShortcuts(width int) string {
	var out []string
	used := 0
	for _, sc := range s.Shortcuts {
		w := runewidth.StringWidth(sc.Key) + 1 + runewidth.StringWidth(sc.Desc)
		if used > 0 {
			w += 2
		}
		if used+w > width {
			break
		}
		used += w
		out = append(out, s.theme.ShortcutKey.Render(sc.Key)+" "+s.theme.ShortcutDesc.Render(sc.Desc))
	}
	return strings.Join(out, "  ")
}
