// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// ACCENT COLORS
// =============================================================================

// Blue is the brand color: header, prompt, outgoing bubbles.
var Blue = lipgloss.AdaptiveColor{Light: "#1A73E8", Dark: "#8AB4F8"}

// Violet marks the assistant label and selections.
var Violet = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#C58AF9"}

// Emerald is used for confirmations.
var Emerald = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}

// Rose is used for errors.
var Rose = lipgloss.AdaptiveColor{Light: "#D93025", Dark: "#F28B82"}

// Amber is used for the loading spinner and warnings.
var Amber = lipgloss.AdaptiveColor{Light: "#B06000", Dark: "#FDD663"}

// =============================================================================
// SURFACE COLORS
// =============================================================================

// Surface is the main background.
var Surface = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#131314"}

// SurfaceDim is used for the header and the status bar.
var SurfaceDim = lipgloss.AdaptiveColor{Light: "#F0F4F9", Dark: "#1E1F20"}

// SurfaceBright highlights cards and the selected completion.
var SurfaceBright = lipgloss.AdaptiveColor{Light: "#E9EEF6", Dark: "#282A2C"}

// Overlay is used for borders and separators.
var Overlay = lipgloss.AdaptiveColor{Light: "#C4C7C5", Dark: "#444746"}

// =============================================================================
// TEXT COLORS
// =============================================================================

var (
	TextPrimary   = lipgloss.AdaptiveColor{Light: "#1F1F1F", Dark: "#E3E3E3"}
	TextSecondary = lipgloss.AdaptiveColor{Light: "#444746", Dark: "#C4C7C5"}
	TextMuted     = lipgloss.AdaptiveColor{Light: "#747775", Dark: "#8E918F"}
)

// =============================================================================
// BUBBLE COLORS
// =============================================================================

// Outgoing bubble.
var (
	UserBubbleBg     = lipgloss.AdaptiveColor{Light: "#D3E3FD", Dark: "#1F3760"}
	UserBubbleFg     = lipgloss.AdaptiveColor{Light: "#041E49", Dark: "#D3E3FD"}
	UserBubbleBorder = lipgloss.AdaptiveColor{Light: "#1A73E8", Dark: "#8AB4F8"}
)

// Incoming bubble.
var (
	AssistantBubbleBorder = lipgloss.AdaptiveColor{Light: "#C4C7C5", Dark: "#444746"}
	AssistantBubbleFg     = lipgloss.AdaptiveColor{Light: "#1F1F1F", Dark: "#E3E3E3"}
)

// Error bubble.
var (
	ErrorBubbleBg     = lipgloss.AdaptiveColor{Light: "#FCE8E6", Dark: "#3C1F1E"}
	ErrorBubbleFg     = lipgloss.AdaptiveColor{Light: "#A50E0E", Dark: "#F6AEA9"}
	ErrorBubbleBorder = Rose
)

// =============================================================================
// STATUS HELPERS
// =============================================================================

// StatusIndicators are ASCII markers shown next to colored status text.
var StatusIndicators = struct {
	Success string
	Error   string
	Info    string
}{
	Success: "[OK]",
	Error:   "[X]",
	Info:    "[i]",
}

// RenderSuccess renders message with the success marker.
func RenderSuccess(message string) string {
	return lipgloss.NewStyle().Foreground(Emerald).Bold(true).
		Render(StatusIndicators.Success + " " + message)
}

// RenderError renders message with the error marker.
func RenderError(message string) string {
	return lipgloss.NewStyle().Foreground(Rose).Bold(true).
		Render(StatusIndicators.Error + " " + message)
}

// RenderInfo renders message with the info marker.
func RenderInfo(message string) string {
	return lipgloss.NewStyle().Foreground(Blue).
		Render(StatusIndicators.Info + " " + message)
}
