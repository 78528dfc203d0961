// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/whiterven/ravenx/internal/history"
	"github.com/whiterven/ravenx/internal/model"
	"github.com/whiterven/ravenx/internal/responder"
)

// Default timings.
const (
	DefaultLatency        = 500 * time.Millisecond
	DefaultRevealInterval = 75 * time.Millisecond
)

// Config holds the controller timings.
type Config struct {
	// Latency is the pause between an accepted submission and the loading
	// bubble. Negative means none; zero means DefaultLatency.
	Latency time.Duration

	// RevealInterval is the time between reveal steps. Negative means none;
	// zero means DefaultRevealInterval.
	RevealInterval time.Duration

	// Theme is used when no theme has been saved.
	Theme string
}

func (c Config) withDefaults() Config {
	if c.Latency == 0 {
		c.Latency = DefaultLatency
	}
	if c.RevealInterval == 0 {
		c.RevealInterval = DefaultRevealInterval
	}
	if c.Theme == "" {
		c.Theme = history.ThemeDark
	}
	return c
}

// Controller runs a single chat. See the package documentation for the
// ownership rules.
type Controller struct {
	cfg       Config
	responder responder.Responder
	history   *history.Manager
	log       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	transcript *model.Transcript
	titles     []string
	state      State
	theme      string

	reveal   *Reveal
	revealID string
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) {
		c.log = log.With().Str("component", "session").Logger()
	}
}

// WithContext sets the parent context of responder calls.
func WithContext(ctx context.Context) Option {
	return func(c *Controller) {
		c.ctx = ctx
	}
}

// New creates a controller with an empty chat. Call Restore to load the
// persisted one.
func New(r responder.Responder, h *history.Manager, cfg Config, opts ...Option) *Controller {
	cfg = cfg.withDefaults()
	c := &Controller{
		cfg:        cfg,
		responder:  r,
		history:    h,
		log:        zerolog.Nop(),
		ctx:        context.Background(),
		transcript: model.NewTranscript(),
		titles:     []string{},
		state:      NewSession(),
		theme:      cfg.Theme,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Restore loads the current transcript, the title list and the theme from
// history.
func (c *Controller) Restore() error {
	t, err := c.history.LoadCurrent()
	if err != nil {
		return err
	}
	titles, err := c.history.List()
	if err != nil {
		return err
	}
	theme, err := c.history.Theme()
	if err != nil {
		return err
	}

	c.transcript = t
	c.titles = titles
	if theme != "" {
		c.theme = theme
	}
	if last := t.LastUser(); last != nil {
		c.state.Pending = last.Content
	}
	c.log.Debug().Int("messages", t.Len()).Int("titles", len(titles)).Msg("Chat restored")
	return nil
}

// =============================================================================
// SUBMISSION
// =============================================================================

// Submit sends raw as a new prompt. A blank raw resends the pending prompt.
// It returns nil when the submission is rejected (nothing to send, or a
// response is in flight); a non-nil command means the input may be cleared.
func (c *Controller) Submit(raw string) tea.Cmd {
	text := strings.TrimSpace(raw)
	if text == "" {
		text = c.state.Pending
	}
	if text == "" || !c.state.Idle() {
		return nil
	}

	c.state = State{Pending: text, InFlight: true}
	user := model.NewUserMessage(text)
	c.transcript.Append(user)

	c.log.Debug().Str("message", user.ID).Msg("Submission accepted")
	return after(c.cfg.Latency, ShowLoadingMsg{UserID: user.ID})
}

// Edit replaces the text of an outgoing message and asks again.
func (c *Controller) Edit(id, text string) tea.Cmd {
	text = strings.TrimSpace(text)
	if text == "" || !c.state.Idle() {
		return nil
	}
	m := c.transcript.Find(id)
	if m == nil || !m.IsUser() {
		return nil
	}
	m.Content = text
	return c.rerun(m)
}

// Regenerate asks again for an outgoing message.
func (c *Controller) Regenerate(id string) tea.Cmd {
	if !c.state.Idle() {
		return nil
	}
	m := c.transcript.Find(id)
	if m == nil || !m.IsUser() {
		return nil
	}
	return c.rerun(m)
}

// rerun drops the response that follows user and requests a new one,
// without the submission latency.
func (c *Controller) rerun(user *model.Message) tea.Cmd {
	if next := c.transcript.After(user.ID); next != nil && next.IsAssistant() {
		c.transcript.Remove(next.ID)
	}
	c.state = State{Pending: user.Content, InFlight: true}
	return c.showLoading(user)
}

// showLoading inserts a loading bubble after user and starts the request.
func (c *Controller) showLoading(user *model.Message) tea.Cmd {
	loading := model.NewLoadingMessage()
	c.transcript.InsertAfter(user.ID, loading)
	return c.request(loading.ID, user.Content)
}

// request returns a command that calls the responder. It runs on another
// goroutine under bubbletea, so it captures everything it needs.
func (c *Controller) request(messageID, prompt string) tea.Cmd {
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.cancel = cancel

	r := c.responder
	return func() tea.Msg {
		defer cancel()
		text, err := r.Complete(ctx, prompt)
		return ResponseMsg{MessageID: messageID, Text: text, Err: err}
	}
}

// =============================================================================
// MESSAGE HANDLING
// =============================================================================

// Handle applies a controller message and returns the next command, if any.
// Messages for bubbles that no longer exist are ignored.
func (c *Controller) Handle(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case ShowLoadingMsg:
		user := c.transcript.Find(msg.UserID)
		if user == nil || !c.state.InFlight {
			return nil
		}
		return c.showLoading(user)

	case ResponseMsg:
		return c.handleResponse(msg)

	case RevealTickMsg:
		return c.handleRevealTick(msg)
	}
	return nil
}

func (c *Controller) handleResponse(msg ResponseMsg) tea.Cmd {
	m := c.transcript.Find(msg.MessageID)
	if m == nil || !m.Loading {
		c.log.Debug().Str("message", msg.MessageID).Msg("Dropping stale response")
		return nil
	}
	m.Loading = false

	if msg.Err != nil {
		m.Content = responder.Message(msg.Err)
		m.Error = true
		c.state.InFlight = false

		var rerr *responder.Error
		ev := c.log.Warn().Err(msg.Err).Str("message", m.ID)
		if errors.As(msg.Err, &rerr) {
			ev = ev.Int("status", rerr.Status)
		}
		ev.Msg("Responder failed")
		return nil
	}

	c.reveal = NewReveal(msg.Text)
	c.revealID = m.ID
	m.Revealing = true
	m.Content = ""
	return after(c.cfg.RevealInterval, RevealTickMsg{MessageID: m.ID})
}

func (c *Controller) handleRevealTick(msg RevealTickMsg) tea.Cmd {
	if c.reveal == nil || msg.MessageID != c.revealID {
		return nil
	}
	m := c.transcript.Find(msg.MessageID)
	if m == nil {
		c.stopReveal()
		return nil
	}

	c.reveal.Step()
	m.Content = c.reveal.Shown()
	if !c.reveal.Done() {
		return after(c.cfg.RevealInterval, RevealTickMsg{MessageID: m.ID})
	}

	m.Revealing = false
	c.stopReveal()
	c.state.InFlight = false
	if err := c.history.SaveCurrent(c.transcript); err != nil {
		c.log.Error().Err(err).Msg("Failed to save chat")
	}
	return nil
}

func (c *Controller) stopReveal() {
	c.reveal = nil
	c.revealID = ""
}

// abandon forgets any request or reveal in progress. Their late messages
// find no bubble and are dropped.
func (c *Controller) abandon() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.stopReveal()
	c.state = NewSession()
}

// =============================================================================
// CHAT LIFECYCLE
// =============================================================================

// NewSession archives a non-empty chat under a derived title and starts an
// empty one.
func (c *Controller) NewSession() error {
	if !c.transcript.Empty() {
		title, err := c.history.NextTitle(c.state.Pending)
		if err != nil {
			return err
		}
		if err := c.history.Save(title, c.transcript); err != nil {
			return err
		}
		c.titles = append(c.titles, title)
		c.log.Info().Str("title", title).Msg("Chat archived")
	}

	c.abandon()
	c.transcript = model.NewTranscript()
	if err := c.history.SaveCurrent(c.transcript); err != nil {
		return err
	}
	return nil
}

// LoadChat replaces the chat with the one archived under title. An unknown
// title leaves everything unchanged.
func (c *Controller) LoadChat(title string) error {
	t, err := c.history.Load(title)
	if errors.Is(err, history.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	c.abandon()
	c.transcript = t
	if last := t.LastUser(); last != nil {
		c.state.Pending = last.Content
	}
	c.log.Info().Str("title", title).Int("messages", t.Len()).Msg("Chat loaded")
	return nil
}

// ClearAll deletes saved chats and empties the chat and the title list.
func (c *Controller) ClearAll() error {
	if err := c.history.ClearAll(); err != nil {
		return err
	}
	c.abandon()
	c.transcript = model.NewTranscript()
	c.titles = []string{}
	return nil
}

// =============================================================================
// THEME
// =============================================================================

// Theme returns history.ThemeLight or history.ThemeDark.
func (c *Controller) Theme() string {
	return c.theme
}

// ToggleTheme flips between light and dark and persists the choice.
func (c *Controller) ToggleTheme() (string, error) {
	next := history.ThemeLight
	if c.theme == history.ThemeLight {
		next = history.ThemeDark
	}
	if err := c.history.SetTheme(next); err != nil {
		return c.theme, fmt.Errorf("toggle theme: %w", err)
	}
	c.theme = next
	return next, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// State returns the request state.
func (c *Controller) State() State {
	return c.state
}

// Titles returns the archived titles in order.
func (c *Controller) Titles() []string {
	out := make([]string, len(c.titles))
	copy(out, c.titles)
	return out
}

// LastUser returns the most recent outgoing message, or nil.
func (c *Controller) LastUser() *model.Message {
	if m := c.transcript.LastUser(); m != nil {
		return m.Clone()
	}
	return nil
}

// UserAt returns the nth outgoing message, counting from 1, or nil.
func (c *Controller) UserAt(n int) *model.Message {
	if m := c.transcript.UserAt(n); m != nil {
		return m.Clone()
	}
	return nil
}

// LastResponse returns the most recent settled incoming message, or nil.
func (c *Controller) LastResponse() *model.Message {
	msgs := c.transcript.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].ActionsVisible() {
			return msgs[i].Clone()
		}
	}
	return nil
}

// Transcript returns a deep copy of the chat.
func (c *Controller) Transcript() *model.Transcript {
	return c.transcript.Clone()
}

// Snapshot copies everything a view renders.
func (c *Controller) Snapshot() Snapshot {
	msgs := c.transcript.Messages()
	out := make([]model.Message, len(msgs))
	for i, m := range msgs {
		out[i] = *m
	}
	return Snapshot{
		Messages: out,
		Titles:   c.Titles(),
		State:    c.state,
		Theme:    c.theme,
	}
}
