// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/whiterven/ravenx/internal/commands"
	"github.com/whiterven/ravenx/internal/ui/styles"
)

// =============================================================================
// COMPLETION POPUP
// =============================================================================

// CompletionPopup lists tab completion candidates above the input.
type CompletionPopup struct {
	State    *commands.CompletionState
	MaxItems int
	Width    int

	theme *styles.Theme
}

// NewCompletionPopup creates a popup showing at most 8 candidates.
func NewCompletionPopup(state *commands.CompletionState, theme *styles.Theme) *CompletionPopup {
	return &CompletionPopup{
		State:    state,
		MaxItems: 8,
		Width:    60,
		theme:    theme,
	}
}

// Visible reports whether there is anything to show.
func (p *CompletionPopup) Visible() bool {
	return p.State != nil && p.State.Visible && len(p.State.Completions) > 0
}

// View renders the popup, or "" when hidden. The window scrolls to keep
// the selection visible.
func (p *CompletionPopup) View() string {
	if !p.Visible() {
		return ""
	}

	items := p.State.Completions
	start := 0
	if p.MaxItems > 0 && len(items) > p.MaxItems {
		if p.State.Selected >= p.MaxItems {
			start = p.State.Selected - p.MaxItems + 1
		}
		items = items[start : start+p.MaxItems]
	}

	inner := p.Width - 4
	if inner < 10 {
		inner = 10
	}
	nameWidth := 0
	for _, c := range items {
		if w := runewidth.StringWidth(display(c)); w > nameWidth {
			nameWidth = w
		}
	}
	if nameWidth > inner*2/3 {
		nameWidth = inner * 2 / 3
	}

	rows := make([]string, 0, len(items)+1)
	for i, c := range items {
		name := runewidth.FillRight(truncate(display(c), nameWidth), nameWidth)
		style := p.theme.CompletionItem
		if start+i == p.State.Selected {
			style = p.theme.CompletionSelected
		}
		row := style.Render(name)
		if c.Description != "" && inner-nameWidth > 4 {
			row += "  " + p.theme.CompletionDesc.Render(truncate(c.Description, inner-nameWidth-2))
		}
		rows = append(rows, row)
	}
	if hidden := len(p.State.Completions) - len(items); hidden > 0 {
		rows = append(rows, p.theme.CompletionDesc.Render(fmt.Sprintf("+%d more", hidden)))
	}

	return p.theme.CompletionPopup.Render(strings.Join(rows, "\n"))
}

func display(c commands.Completion) string {
	if c.Display != "" {
		return c.Display
	}
	return c.Value
}
