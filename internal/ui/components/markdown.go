// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// =============================================================================
// MARKDOWN RENDERER
// =============================================================================

type rendererKey struct {
	width int
	dark  bool
}

// MarkdownRenderer renders settled assistant text with glamour. Building a
// glamour renderer parses a whole style sheet, so one is kept per width and
// palette. It is not safe for concurrent use; the chat model owns it.
type MarkdownRenderer struct {
	renderers map[rendererKey]*glamour.TermRenderer
}

// NewMarkdownRenderer creates an empty renderer cache.
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{renderers: make(map[rendererKey]*glamour.TermRenderer)}
}

// Render formats text as markdown wrapped at width cells. On a glamour
// error the text is word-wrapped as is.
func (m *MarkdownRenderer) Render(text string, width int, dark bool) string {
	if width < 10 {
		width = 10
	}
	r, err := m.renderer(rendererKey{width: width, dark: dark})
	if err != nil {
		return wordWrap(text, width)
	}
	out, err := r.Render(text)
	if err != nil {
		return wordWrap(text, width)
	}
	return strings.Trim(out, "\n")
}

func (m *MarkdownRenderer) renderer(key rendererKey) (*glamour.TermRenderer, error) {
	if r, ok := m.renderers[key]; ok {
		return r, nil
	}

	style := "light"
	if key.dark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(key.width),
	)
	if err != nil {
		return nil, err
	}

	// Resizing produces a new width each time; keep the cache small.
	if len(m.renderers) >= 8 {
		m.renderers = make(map[rendererKey]*glamour.TermRenderer)
	}
	m.renderers[key] = r
	return r, nil
}
