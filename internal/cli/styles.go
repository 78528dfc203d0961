// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/whiterven/ravenx/internal/ui/styles"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED CLI STYLES
// =============================================================================

var (
	// TitleStyle is used for command output headings.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.Blue)

	// LabelStyle is used for key/value labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary).
			Width(20)

	// ValueStyle is used for key/value values.
	ValueStyle = lipgloss.NewStyle().
			Foreground(styles.TextPrimary)

	SuccessStyle = lipgloss.NewStyle().Foreground(styles.Emerald)
	ErrorStyle   = lipgloss.NewStyle().Foreground(styles.Rose).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(styles.Amber)
	DimStyle     = lipgloss.NewStyle().Foreground(styles.TextMuted)

	// PromptStyle is the line-mode prompt.
	PromptStyle = lipgloss.NewStyle().
			Foreground(styles.Blue).
			Bold(true)

	// UserLabelStyle and RavenLabelStyle prefix transcript lines.
	UserLabelStyle  = lipgloss.NewStyle().Foreground(styles.Blue).Bold(true)
	RavenLabelStyle = lipgloss.NewStyle().Foreground(styles.Violet).Bold(true)

	SeparatorStyle = lipgloss.NewStyle().Foreground(styles.TextMuted)
)

// RenderSeparator returns a horizontal rule of width columns.
func RenderSeparator(width int) string {
	if width <= 0 {
		width = 40
	}
	return SeparatorStyle.Render(strings.Repeat("-", width))
}

// RenderLabel renders "label value" with an aligned label column.
func RenderLabel(label string, value any) string {
	return LabelStyle.Render(label) + ValueStyle.Render(fmt.Sprint(value))
}
