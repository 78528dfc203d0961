// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/whiterven/ravenx/internal/ui/styles"
)

// =============================================================================
// SIDEBAR
// =============================================================================

// Sidebar lists archived chats, numbered the way /load accepts them.
type Sidebar struct {
	Titles []string
	Width  int
	Height int

	theme *styles.Theme
}

// NewSidebar creates a sidebar of the given width.
func NewSidebar(theme *styles.Theme, width int) *Sidebar {
	return &Sidebar{Width: width, theme: theme}
}

// View renders the title list. The newest chats are kept when the list is
// taller than Height.
func (s *Sidebar) View() string {
	inner := s.Width - 3
	if inner < 8 {
		inner = 8
	}

	lines := []string{s.theme.SidebarTitle.Render("Recent")}
	if len(s.Titles) == 0 {
		lines = append(lines, s.theme.Timestamp.Render("No saved chats"))
	}

	first := 0
	if s.Height > 1 && len(s.Titles) > s.Height-1 {
		first = len(s.Titles) - (s.Height - 1)
	}
	for i := first; i < len(s.Titles); i++ {
		label := fmt.Sprintf("%d. %s", i+1, s.Titles[i])
		lines = append(lines, s.theme.SidebarItem.Render(truncate(label, inner)))
	}

	style := s.theme.Sidebar.Width(s.Width - 1)
	if s.Height > 0 {
		style = style.Height(s.Height)
	}
	return style.Render(strings.Join(lines, "\n"))
}
