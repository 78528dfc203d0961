// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/whiterven/ravenx/internal/model"
	"github.com/whiterven/ravenx/internal/ui/styles"
)

var testNow = time.Date(2025, 3, 10, 15, 0, 0, 0, time.Local)

func newTestBubble(msg model.Message, width int) *MessageBubble {
	b := NewMessageBubble(msg, styles.NewTheme(true))
	b.Width = width
	b.Now = testNow
	return b
}

// firstNonBlank returns the index of the first non-space cell in line.
func firstNonBlank(line string) int {
	return len(line) - len(strings.TrimLeft(line, " "))
}

// =============================================================================
// MESSAGE BUBBLE TESTS
// =============================================================================

func TestUserBubbleRightAligned(t *testing.T) {
	msg := model.Message{Role: model.RoleUser, Content: "hi", Timestamp: testNow}
	view := newTestBubble(msg, 80).View()

	lines := strings.Split(view, "\n")
	for _, line := range lines {
		if w := lipgloss.Width(line); w != 80 {
			t.Errorf("line %q is %d wide, want 80", line, w)
		}
	}
	if !strings.Contains(view, "hi") || !strings.Contains(view, "You") {
		t.Errorf("view missing content or label:\n%s", view)
	}
	if firstNonBlank(lines[len(lines)-1]) < 40 {
		t.Errorf("outgoing bubble should hug the right edge:\n%s", view)
	}
}

func TestAssistantBubbleLeftAligned(t *testing.T) {
	msg := model.Message{Role: model.RoleAssistant, Content: "hello there", Timestamp: testNow}
	view := newTestBubble(msg, 80).View()

	for _, line := range strings.Split(view, "\n") {
		if firstNonBlank(line) != 0 {
			t.Errorf("incoming line %q should start at column 0", line)
		}
	}
	if !strings.Contains(view, "Raven") || !strings.Contains(view, "hello there") {
		t.Errorf("view missing label or content:\n%s", view)
	}
	if !strings.Contains(view, "3:00 PM") {
		t.Errorf("view missing timestamp:\n%s", view)
	}
}

func TestLoadingBubble(t *testing.T) {
	msg := model.Message{Role: model.RoleAssistant, Loading: true}
	b := newTestBubble(msg, 80)
	b.SpinnerFrame = ".. "

	view := b.View()
	if !strings.Contains(view, "Thinking") || !strings.Contains(view, "..") {
		t.Errorf("loading bubble = %q", view)
	}
}

func TestErrorBubble(t *testing.T) {
	msg := model.Message{Role: model.RoleAssistant, Content: "API key not valid", Error: true}
	view := newTestBubble(msg, 80).View()

	if !strings.Contains(view, "[X] API key not valid") {
		t.Errorf("error bubble = %q", view)
	}
}

func TestMarkdownOnlyWhenSettled(t *testing.T) {
	md := NewMarkdownRenderer()

	revealing := model.Message{Role: model.RoleAssistant, Content: "**bold**", Revealing: true}
	b := newTestBubble(revealing, 80)
	b.Markdown = md
	if view := b.View(); !strings.Contains(view, "**bold**") {
		t.Errorf("revealing text should stay raw:\n%s", view)
	}

	settled := revealing
	settled.Revealing = false
	b = newTestBubble(settled, 80)
	b.Markdown = md
	view := b.View()
	if strings.Contains(view, "**") || !strings.Contains(view, "bold") {
		t.Errorf("settled text should go through markdown:\n%s", view)
	}
}

func TestBubbleWrapsToWidth(t *testing.T) {
	long := strings.Repeat("word ", 60)
	msg := model.Message{Role: model.RoleAssistant, Content: long}
	view := newTestBubble(msg, 60).View()

	for _, line := range strings.Split(view, "\n") {
		if w := lipgloss.Width(line); w > 60 {
			t.Errorf("line is %d wide, want <= 60", w)
		}
	}
}

func TestMessageList(t *testing.T) {
	ml := NewMessageList(styles.NewTheme(true))
	if ml.View() != "" {
		t.Error("empty list should render nothing")
	}

	ml.Messages = []model.Message{
		{Role: model.RoleUser, Content: "question"},
		{Role: model.RoleAssistant, Content: "answer"},
	}
	ml.Now = testNow
	view := ml.View()
	if strings.Index(view, "question") > strings.Index(view, "answer") {
		t.Errorf("messages out of order:\n%s", view)
	}
}

// =============================================================================
// MARKDOWN RENDERER TESTS
// =============================================================================

func TestMarkdownRendererCaches(t *testing.T) {
	md := NewMarkdownRenderer()
	md.Render("# Title", 40, true)
	md.Render("more", 40, true)
	if len(md.renderers) != 1 {
		t.Errorf("renderers = %d, want 1", len(md.renderers))
	}
	md.Render("x", 40, false)
	if len(md.renderers) != 2 {
		t.Errorf("renderers = %d, want 2", len(md.renderers))
	}

	for w := 20; w < 40; w++ {
		md.Render("x", w, true)
	}
	if len(md.renderers) > 8 {
		t.Errorf("cache grew to %d renderers", len(md.renderers))
	}
}
