// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/whiterven/ravenx/internal/model"
	"github.com/whiterven/ravenx/internal/session"
	"github.com/whiterven/ravenx/internal/ui/components"
	"github.com/whiterven/ravenx/internal/ui/styles"
	"github.com/whiterven/ravenx/internal/util"
)

// =============================================================================
// MAIN RENDER
// =============================================================================

// View renders the complete chat screen. The viewport was sized and filled
// by refresh during the last Update.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	body := m.viewport.View()
	if m.showSidebar() {
		sb := components.NewSidebar(m.theme, sidebarWidth)
		sb.Titles = m.ctrl.Titles()
		sb.Height = m.viewport.Height
		body = lipgloss.JoinHorizontal(lipgloss.Top, sb.View(), body)
	}

	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderFooter())
}

// refresh sizes the viewport to what the header and footer leave and
// fills it from a fresh snapshot. It keeps following the newest message
// when the view was already at the bottom.
func (m *Model) refresh() {
	m.syncTheme()
	if m.width == 0 || m.height == 0 {
		return
	}

	height := m.height - lipgloss.Height(m.renderHeader()) - lipgloss.Height(m.renderFooter())
	if height < 1 {
		height = 1
	}
	width := m.width
	if m.showSidebar() {
		width -= sidebarWidth
	}

	m.viewport.Width = width
	m.viewport.Height = height

	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderMessages(m.ctrl.Snapshot(), width, height))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m Model) showSidebar() bool {
	return m.theme.GetLayoutMode() == styles.LayoutWide
}

// =============================================================================
// SECTIONS
// =============================================================================

func (m Model) renderHeader() string {
	left := m.theme.HeaderTitle.Render("Raven")
	if m.modelName != "" {
		left += " " + m.theme.HeaderSubtitle.Render(m.modelName)
	}
	right := m.theme.HeaderSubtitle.Render("light")
	if m.theme.IsDark {
		right = m.theme.HeaderSubtitle.Render("dark")
	}

	gap := m.width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Width(m.width).MaxWidth(m.width).MaxHeight(1).
		Render(left + strings.Repeat(" ", gap) + right)
}

// renderFooter stacks the detail panel, the completion popup, the input
// and the status bar.
func (m Model) renderFooter() string {
	var parts []string
	if d := m.renderDetail(); d != "" {
		parts = append(parts, d)
	}

	popup := components.NewCompletionPopup(m.completion, m.theme)
	popup.Width = minInt(m.width, 72)
	if v := popup.View(); v != "" {
		parts = append(parts, v)
	}

	parts = append(parts,
		m.theme.InputContainer.Width(m.width).Render(m.input.View()),
		m.renderStatusBar(),
	)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderDetail shows multi-line command output, cut to a third of the
// screen.
func (m Model) renderDetail() string {
	if m.detail == "" {
		return ""
	}
	lines := strings.Split(m.detail, "\n")
	maxLines := m.height / 3
	if maxLines < 3 {
		maxLines = 3
	}
	if len(lines) > maxLines {
		hidden := len(lines) - maxLines + 1
		lines = append(lines[:maxLines-1], fmt.Sprintf("... %d more lines (esc to close)", hidden))
	}
	for i, line := range lines {
		lines[i] = util.TruncateWidth(line, m.width-4)
	}

	style := m.theme.CompletionPopup
	if m.noticeErr {
		style = style.BorderForeground(styles.Rose)
	}
	return style.Render(strings.Join(lines, "\n"))
}

func (m Model) renderStatusBar() string {
	snap := m.ctrl.Snapshot()
	sb := components.NewStatusBar(m.theme)
	sb.Width = m.width
	sb.Model = m.modelName
	sb.Messages = len(snap.Messages)
	sb.Busy = snap.State.InFlight
	sb.SpinnerFrame = m.spinner.Frame()
	sb.Notice = m.notice
	sb.NoticeErr = m.noticeErr
	return sb.View()
}

// renderMessages renders the transcript, or the welcome cards when the
// chat is empty.
func (m Model) renderMessages(snap session.Snapshot, width, height int) string {
	if snap.Empty() {
		w := components.NewWelcome(m.theme)
		w.Model = m.modelName
		w.Suggestions = m.suggestions
		w.Width = width
		w.Height = height
		return w.View()
	}

	m.bubbles.retain(snap.Messages)
	frame := m.spinner.Frame()
	out := make([]string, 0, len(snap.Messages))
	for _, msg := range snap.Messages {
		out = append(out, m.bubbles.render(msg, width, func() string {
			b := components.NewMessageBubble(msg, m.theme)
			b.Width = width
			b.SpinnerFrame = frame
			b.Markdown = m.markdown
			return b.View()
		}))
	}
	return strings.Join(out, "\n\n")
}

// =============================================================================
// BUBBLE CACHE
// =============================================================================

// bubbleCache keeps the rendering of settled messages, so a reveal tick
// re-renders only the bubble that changed.
type bubbleCache struct {
	entries map[string]cachedBubble
}

type cachedBubble struct {
	key  string
	view string
}

func newBubbleCache() *bubbleCache {
	return &bubbleCache{entries: make(map[string]cachedBubble)}
}

func (c *bubbleCache) render(msg model.Message, width int, draw func() string) string {
	if msg.Loading || msg.Revealing {
		return draw()
	}
	key := fmt.Sprintf("%d|%t|%s", width, msg.Error, msg.Content)
	if e, ok := c.entries[msg.ID]; ok && e.key == key {
		return e.view
	}
	view := draw()
	c.entries[msg.ID] = cachedBubble{key: key, view: view}
	return view
}

// retain drops entries of messages that are no longer shown.
func (c *bubbleCache) retain(msgs []model.Message) {
	if len(c.entries) <= len(msgs) {
		return
	}
	keep := make(map[string]cachedBubble, len(msgs))
	for _, msg := range msgs {
		if e, ok := c.entries[msg.ID]; ok {
			keep[msg.ID] = e
		}
	}
	c.entries = keep
}

func (c *bubbleCache) reset() {
	c.entries = make(map[string]cachedBubble)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
