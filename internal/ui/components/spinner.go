// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/whiterven/ravenx/internal/ui/styles"
)

// =============================================================================
// SPINNER MODEL
// =============================================================================

// Spinner animates the loading bubble. It only ticks while active, so an
// idle chat does not redraw.
type Spinner struct {
	spinner  spinner.Model
	isActive bool
}

// NewSpinner creates a stopped spinner. Frames are returned unstyled; the
// bubble and the status bar style them.
func NewSpinner(cfg styles.SpinnerConfig) Spinner {
	s := spinner.New()
	s.Spinner = cfg.Spinner()
	return Spinner{spinner: s}
}

// Start activates the spinner and returns its first tick.
func (s *Spinner) Start() tea.Cmd {
	if s.isActive {
		return nil
	}
	s.isActive = true
	return s.spinner.Tick
}

// Stop deactivates the spinner; pending ticks are ignored.
func (s *Spinner) Stop() {
	s.isActive = false
}

// IsActive reports whether the spinner is running.
func (s Spinner) IsActive() bool {
	return s.isActive
}

// Update advances the animation on its own tick messages.
func (s Spinner) Update(msg tea.Msg) (Spinner, tea.Cmd) {
	if _, ok := msg.(spinner.TickMsg); !ok || !s.isActive {
		return s, nil
	}
	var cmd tea.Cmd
	s.spinner, cmd = s.spinner.Update(msg)
	return s, cmd
}

// Frame returns the current frame.
func (s Spinner) Frame() string {
	return s.spinner.View()
}
