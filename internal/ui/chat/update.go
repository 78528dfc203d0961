// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/whiterven/ravenx/internal/commands"
	"github.com/whiterven/ravenx/internal/session"
)

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Update handles a message and re-renders from a fresh snapshot.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.input.Width = msg.Width - 6
		if m.input.Width < 10 {
			m.input.Width = 10
		}

	case tea.KeyMsg:
		var cmd tea.Cmd
		m, cmd = m.handleKey(msg)
		cmds = append(cmds, cmd)

	case commands.NoticeMsg:
		m.setNotice(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	default:
		if session.IsControllerMsg(msg) {
			cmds = append(cmds, m.ctrl.Handle(msg))
			break
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	cmds = append(cmds, m.syncSpinner())
	m.refresh()
	return m, tea.Batch(cmds...)
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keyMap.Dismiss):
		m.completion.Clear()
		m.clearNotice()
		return m, nil

	case key.Matches(msg, m.keyMap.Complete):
		m.cycleCompletion(true)
		return m, nil

	case key.Matches(msg, m.keyMap.CompletePrev):
		m.cycleCompletion(false)
		return m, nil

	case key.Matches(msg, m.keyMap.Submit):
		return m.submit()

	case key.Matches(msg, m.keyMap.Edit):
		if last := m.ctrl.LastUser(); last != nil {
			m.input.SetValue("/edit " + last.Content)
			m.input.CursorEnd()
			m.completion.Clear()
		}
		return m, nil

	case key.Matches(msg, m.keyMap.PageUp):
		m.viewport.ViewUp()
		return m, nil

	case key.Matches(msg, m.keyMap.PageDown):
		m.viewport.ViewDown()
		return m, nil

	case key.Matches(msg, m.keyMap.LineUp):
		m.viewport.LineUp(1)
		return m, nil

	case key.Matches(msg, m.keyMap.LineDown):
		m.viewport.LineDown(1)
		return m, nil
	}

	for _, kc := range m.keyMap.keyCommands() {
		if key.Matches(msg, kc.binding) {
			return m, m.run(kc.line)
		}
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before {
		m.completion.Clear()
	}
	return m, cmd
}

// submit sends the input line. The input is cleared only when the line
// was accepted.
func (m Model) submit() (Model, tea.Cmd) {
	line := m.input.Value()
	m.completion.Clear()

	cmd := m.run(line)
	if cmd == nil {
		if m.ctrl.State().InFlight {
			m.setNotice(commands.NoticeMsg{Text: "A response is still on its way.", Err: true})
		}
		return m, nil
	}

	m.clearNotice()
	m.input.Reset()
	m.viewport.GotoBottom()
	return m, cmd
}

// run sends line through the command dispatcher, then to Submit.
func (m Model) run(line string) tea.Cmd {
	cmd, handled := m.dispatcher.Intercept(m.ctrl, line)
	if !handled {
		cmd = m.ctrl.Submit(line)
	}
	return cmd
}

// cycleCompletion opens the popup, or moves its selection, and puts the
// selected value in the input. A single candidate is accepted at once.
func (m *Model) cycleCompletion(forward bool) {
	if !m.completion.Visible {
		input := m.input.Value()
		m.completion.Update(input, m.completer.Complete(input))
		if !m.completion.Visible {
			return
		}
		if !forward {
			m.completion.Prev()
		}
	} else if forward {
		m.completion.Next()
	} else {
		m.completion.Prev()
	}

	value := m.completion.Accept()
	if len(m.completion.Completions) == 1 {
		m.completion.Clear()
	}
	m.input.SetValue(value)
	m.input.CursorEnd()
}

func containsNewline(s string) bool {
	return strings.ContainsRune(s, '\n')
}
