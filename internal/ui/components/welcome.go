// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/whiterven/ravenx/internal/ui/styles"
)

// =============================================================================
// WELCOME SCREEN
// =============================================================================

// Welcome is shown while the chat is empty. Its cards are the configured
// suggestion prompts, picked with tab completion on an empty input.
type Welcome struct {
	Title       string
	Model       string
	Suggestions []string
	Width       int
	Height      int

	theme *styles.Theme
}

// NewWelcome creates the welcome screen.
func NewWelcome(theme *styles.Theme) *Welcome {
	return &Welcome{
		Title: "Hello, I'm Raven.",
		Width: 80,
		theme: theme,
	}
}

// View renders the welcome screen centered in Width x Height.
func (w *Welcome) View() string {
	cardWidth := w.Width - 8
	if cardWidth > 60 {
		cardWidth = 60
	}
	if cardWidth < 20 {
		cardWidth = 20
	}

	lines := []string{w.theme.WelcomeTitle.Render(w.Title)}
	info := "How can I help you today?"
	if w.Model != "" {
		info += " (" + w.Model + ")"
	}
	lines = append(lines, w.theme.WelcomeInfo.Render(info), "")

	for i, s := range w.Suggestions {
		num := w.theme.SuggestionNumber.Render(fmt.Sprintf("%d", i+1))
		text := truncate(s, cardWidth-4)
		card := w.theme.SuggestionCard.Width(cardWidth).Render(num + " " + text)
		lines = append(lines, card)
	}
	if len(w.Suggestions) > 0 {
		lines = append(lines, "", w.theme.WelcomeInfo.Render("Press tab to pick a suggestion, or type /help."))
	}

	box := w.theme.WelcomeBox.Render(strings.Join(lines, "\n"))
	if w.Height <= 0 {
		return lipgloss.PlaceHorizontal(w.Width, lipgloss.Center, box)
	}
	return lipgloss.Place(w.Width, w.Height, lipgloss.Center, lipgloss.Center, box)
}
