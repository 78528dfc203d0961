// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/whiterven/ravenx/internal/model"
	"github.com/whiterven/ravenx/internal/ui/styles"
)

// =============================================================================
// MESSAGE BUBBLE COMPONENT
// =============================================================================

// MessageBubble renders one message for a viewport of Width cells.
type MessageBubble struct {
	Message       model.Message
	Width         int
	ShowTimestamp bool

	// SpinnerFrame is shown inside a loading bubble.
	SpinnerFrame string

	// Markdown renders settled incoming text. Nil means plain text.
	Markdown *MarkdownRenderer

	// Now is used for timestamps; zero means time.Now.
	Now time.Time

	theme *styles.Theme
}

// NewMessageBubble creates a bubble with timestamps shown.
func NewMessageBubble(msg model.Message, theme *styles.Theme) *MessageBubble {
	return &MessageBubble{
		Message:       msg,
		Width:         80,
		ShowTimestamp: true,
		theme:         theme,
	}
}

// View renders the message bubble.
func (b *MessageBubble) View() string {
	if b.Message.IsUser() {
		return b.renderUserBubble()
	}
	return b.renderIncomingBubble()
}

// ==========================================================================
// OUTGOING BUBBLE (right-aligned)
// ==========================================================================

func (b *MessageBubble) renderUserBubble() string {
	contentWidth := b.contentWidth()
	text := wordWrap(b.Message.Content, contentWidth)
	bubble := b.theme.UserBubble.Render(text)

	header := b.theme.UserLabel.Render(model.RoleUser.DisplayName())
	if ts := b.renderTimestamp(); ts != "" {
		header = ts + " " + header
	}

	block := lipgloss.JoinVertical(lipgloss.Right, header, bubble)
	return lipgloss.PlaceHorizontal(b.Width, lipgloss.Right, block)
}

// ==========================================================================
// INCOMING BUBBLE (left-aligned)
// ==========================================================================

func (b *MessageBubble) renderIncomingBubble() string {
	contentWidth := b.contentWidth()
	msg := b.Message

	var bubble string
	switch {
	case msg.Loading:
		frame := b.SpinnerFrame
		if frame == "" {
			frame = "..."
		}
		bubble = b.theme.LoadingBubble.Render(b.theme.Spinner.Render(frame) + " Thinking")

	case msg.Error:
		bubble = b.theme.ErrorBubble.Render(wordWrap(styles.StatusIndicators.Error+" "+msg.Content, contentWidth))

	case msg.Revealing || b.Markdown == nil:
		bubble = b.theme.AssistantBubble.Render(wordWrap(msg.Content, contentWidth))

	default:
		bubble = b.theme.AssistantBubble.Render(b.Markdown.Render(msg.Content, contentWidth, b.theme.IsDark))
	}

	header := b.theme.AssistantLabel.Render(model.RoleAssistant.DisplayName())
	if ts := b.renderTimestamp(); ts != "" && !msg.Loading {
		header += " " + ts
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, bubble)
}

// ==========================================================================
// HELPER METHODS
// ==========================================================================

// contentWidth is the text width inside the border and padding.
func (b *MessageBubble) contentWidth() int {
	w := styles.BubbleWidth(b.Width) - 4
	if w < 10 {
		w = 10
	}
	return w
}

func (b *MessageBubble) renderTimestamp() string {
	if !b.ShowTimestamp {
		return ""
	}
	now := b.Now
	if now.IsZero() {
		now = time.Now()
	}
	ts := formatTimestamp(b.Message.Timestamp, now)
	if ts == "" {
		return ""
	}
	return b.theme.Timestamp.Render(ts)
}

// =============================================================================
// MESSAGE LIST COMPONENT
// =============================================================================

// MessageList renders a whole transcript.
type MessageList struct {
	Messages       []model.Message
	Width          int
	ShowTimestamps bool
	SpinnerFrame   string
	Markdown       *MarkdownRenderer
	Now            time.Time
	theme          *styles.Theme
}

// NewMessageList creates an empty list.
func NewMessageList(theme *styles.Theme) *MessageList {
	return &MessageList{
		Width:          80,
		ShowTimestamps: true,
		theme:          theme,
	}
}

// View renders all messages separated by a blank line.
func (ml *MessageList) View() string {
	if len(ml.Messages) == 0 {
		return ""
	}

	bubbles := make([]string, 0, len(ml.Messages))
	for _, msg := range ml.Messages {
		bubble := NewMessageBubble(msg, ml.theme)
		bubble.Width = ml.Width
		bubble.ShowTimestamp = ml.ShowTimestamps
		bubble.SpinnerFrame = ml.SpinnerFrame
		bubble.Markdown = ml.Markdown
		bubble.Now = ml.Now
		bubbles = append(bubbles, bubble.View())
	}
	return strings.Join(bubbles, "\n\n")
}
