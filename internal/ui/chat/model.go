// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/whiterven/ravenx/internal/commands"
	"github.com/whiterven/ravenx/internal/history"
	"github.com/whiterven/ravenx/internal/session"
	"github.com/whiterven/ravenx/internal/ui/components"
	"github.com/whiterven/ravenx/internal/ui/styles"
)

// Input limits.
const (
	inputCharLimit = 100000
	sidebarWidth   = 28
)

// Placeholders of the input line.
const (
	placeholderIdle    = "Message Raven (tab for suggestions, /help for commands)"
	placeholderWaiting = "Waiting for Raven..."
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Options configures the chat model.
type Options struct {
	// ModelName is shown in the header and the status bar.
	ModelName string

	// Suggestions are offered on tab with an empty input.
	Suggestions []string

	// Markdown renders settled responses with glamour.
	Markdown bool

	// Registry holds the slash commands. Nil means commands.NewRegistry.
	Registry *commands.Registry

	// Commands is handed to command handlers. Nil means a context whose
	// Copy is Clipboard.
	Commands *commands.Context

	Logger zerolog.Logger
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctrl       *session.Controller
	dispatcher *commands.Dispatcher
	completer  *commands.Completer
	completion *commands.CompletionState

	// Styling
	theme    *styles.Theme
	markdown *components.MarkdownRenderer
	bubbles  *bubbleCache

	// Dimensions
	width  int
	height int

	// UI Components
	viewport viewport.Model
	input    textinput.Model
	spinner  components.Spinner
	keyMap   KeyMap

	// Feedback from the last command. detail holds multi-line output.
	notice    string
	noticeErr bool
	detail    string

	modelName   string
	suggestions []string
	log         zerolog.Logger
}

// New creates the chat model around ctrl. The controller should already
// be restored.
func New(ctrl *session.Controller, opts Options) Model {
	theme := styles.NewTheme(ctrl.Theme() != history.ThemeLight)

	registry := opts.Registry
	if registry == nil {
		registry = commands.NewRegistry()
	}
	cmdCtx := opts.Commands
	if cmdCtx == nil {
		cmdCtx = &commands.Context{Copy: Clipboard}
	}

	completer := commands.NewCompleter(registry)
	completer.TitlesFn = ctrl.Titles
	completer.Suggestions = opts.Suggestions

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = placeholderIdle
	ti.CharLimit = inputCharLimit
	ti.PromptStyle = theme.InputPrompt
	ti.PlaceholderStyle = theme.InputPlaceholder
	ti.Focus()

	m := Model{
		ctrl:        ctrl,
		dispatcher:  commands.NewDispatcher(registry, cmdCtx),
		completer:   completer,
		completion:  commands.NewCompletionState(),
		theme:       theme,
		bubbles:     newBubbleCache(),
		viewport:    viewport.New(80, 20),
		input:       ti,
		spinner:     components.NewSpinner(styles.DotsSpinner),
		keyMap:      DefaultKeyMap(),
		modelName:   opts.ModelName,
		suggestions: opts.Suggestions,
		log:         opts.Logger.With().Str("component", "tui").Logger(),
	}
	if opts.Markdown {
		m.markdown = components.NewMarkdownRenderer()
	}
	return m
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Controller returns the chat controller.
func (m Model) Controller() *session.Controller {
	return m.ctrl
}

// =============================================================================
// STATE SYNC
// =============================================================================

// syncTheme follows the controller's theme, which /theme may have changed.
func (m *Model) syncTheme() {
	dark := m.ctrl.Theme() != history.ThemeLight
	if dark != m.theme.IsDark {
		m.theme.SetDark(dark)
		m.bubbles.reset()
		m.log.Debug().Bool("dark", dark).Msg("Theme switched")
	}
}

// syncSpinner runs the spinner while a response is in flight.
func (m *Model) syncSpinner() tea.Cmd {
	if m.ctrl.State().InFlight {
		m.input.Placeholder = placeholderWaiting
		return m.spinner.Start()
	}
	m.input.Placeholder = placeholderIdle
	m.spinner.Stop()
	return nil
}

// setNotice shows command feedback. Multi-line output also goes to the
// detail panel above the input.
func (m *Model) setNotice(n commands.NoticeMsg) {
	m.notice = n.Text
	m.noticeErr = n.Err
	m.detail = ""
	if containsNewline(n.Text) {
		m.detail = n.Text
	}
	if n.Err {
		m.log.Debug().Str("notice", n.Text).Msg("Command failed")
	}
}

func (m *Model) clearNotice() {
	m.notice = ""
	m.noticeErr = false
	m.detail = ""
}
