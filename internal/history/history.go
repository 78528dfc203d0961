// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history manages saved chats on top of a kv.Store: the current
// transcript, the ordered list of archived titles, and the theme preference.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/whiterven/ravenx/internal/kv"
	"github.com/whiterven/ravenx/internal/model"
	"github.com/whiterven/ravenx/internal/util"
)

// Store keys.
const (
	KeyCurrent = "saved-chats"
	KeyTitles  = "chat-titles"
	KeyTheme   = "themeColor"
)

// Theme values persisted under KeyTheme.
const (
	ThemeLight = "light_mode"
	ThemeDark  = "dark_mode"
)

// Clear scopes.
const (
	// ScopeAll wipes every key in the store.
	ScopeAll = "all"
	// ScopeChats removes the current transcript, the title list and the
	// titled transcripts, keeping other keys such as the theme.
	ScopeChats = "chats"
)

// TitleRunes is the length of a title derived from the pending message.
const TitleRunes = 30

// Errors.
var (
	// ErrNotFound is returned by Load for an unknown title.
	ErrNotFound = errors.New("history: chat not found")
	// ErrReservedTitle is returned by Save for a title that names a store key
	// the manager uses itself.
	ErrReservedTitle = errors.New("history: reserved title")
)

// Reserved reports whether title collides with one of the manager's keys.
func Reserved(title string) bool {
	switch title {
	case KeyCurrent, KeyTitles, KeyTheme:
		return true
	}
	return false
}

// Manager reads and writes chats. It holds no state of its own besides the
// store, so several managers over one store agree.
type Manager struct {
	store      kv.Store
	clearScope string
	log        zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClearScope sets what ClearAll removes. Unknown values mean ScopeAll.
func WithClearScope(scope string) Option {
	return func(m *Manager) {
		m.clearScope = scope
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) {
		m.log = log.With().Str("component", "history").Logger()
	}
}

// New returns a Manager over store.
func New(store kv.Store, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		clearScope: ScopeAll,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// =============================================================================
// ARCHIVED CHATS
// =============================================================================

// Save stores transcript under title and appends title to the title list.
// Titles are not deduplicated: saving a title twice shadows the earlier
// transcript and lists the title twice.
func (m *Manager) Save(title string, t *model.Transcript) error {
	if Reserved(title) {
		return fmt.Errorf("%w: %q", ErrReservedTitle, title)
	}
	data, err := model.EncodeTranscript(t)
	if err != nil {
		return fmt.Errorf("history: encode %q: %w", title, err)
	}
	if err := m.store.Set(title, string(data)); err != nil {
		return fmt.Errorf("history: save %q: %w", title, err)
	}

	titles, err := m.List()
	if err != nil {
		return err
	}
	titles = append(titles, title)
	if err := m.writeTitles(titles); err != nil {
		return err
	}

	m.log.Debug().Str("title", title).Int("messages", t.Len()).Msg("Chat archived")
	return nil
}

// List returns the archived titles in the order they were saved.
func (m *Manager) List() ([]string, error) {
	raw, ok, err := m.store.Get(KeyTitles)
	if err != nil {
		return nil, fmt.Errorf("history: read titles: %w", err)
	}
	if !ok || raw == "" {
		return []string{}, nil
	}

	var titles []string
	if err := json.Unmarshal([]byte(raw), &titles); err != nil {
		// Treat a damaged index as empty.
		m.log.Warn().Err(err).Msg("Ignoring unreadable title list")
		return []string{}, nil
	}
	if titles == nil {
		titles = []string{}
	}
	return titles, nil
}

// Load returns the transcript saved under title, or ErrNotFound.
func (m *Manager) Load(title string) (*model.Transcript, error) {
	if Reserved(title) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, title)
	}
	raw, ok, err := m.store.Get(title)
	if err != nil {
		return nil, fmt.Errorf("history: load %q: %w", title, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, title)
	}
	t, err := model.DecodeTranscript([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("history: load %q: %w", title, err)
	}
	return t, nil
}

// ClearAll removes saved chats according to the clear scope.
func (m *Manager) ClearAll() error {
	if m.clearScope == ScopeChats {
		return m.clearChats()
	}
	if err := m.store.Clear(); err != nil {
		return fmt.Errorf("history: clear: %w", err)
	}
	m.log.Info().Msg("Store cleared")
	return nil
}

func (m *Manager) clearChats() error {
	titles, err := m.List()
	if err != nil {
		return err
	}
	keys := append(titles, KeyCurrent, KeyTitles)
	for _, k := range keys {
		if k == KeyTheme {
			continue
		}
		if err := m.store.Delete(k); err != nil {
			return fmt.Errorf("history: clear %q: %w", k, err)
		}
	}
	m.log.Info().Int("chats", len(titles)).Msg("Saved chats cleared")
	return nil
}

// NextTitle derives the archive title for a chat: the first TitleRunes runes
// of pending, or "Chat N" where N is one more than the number of titles.
// A pending text that would name a reserved key also gets "Chat N".
func (m *Manager) NextTitle(pending string) (string, error) {
	if strings.TrimSpace(pending) != "" {
		if title := util.FirstRunes(pending, TitleRunes); !Reserved(title) {
			return title, nil
		}
	}
	titles, err := m.List()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Chat %d", len(titles)+1), nil
}

func (m *Manager) writeTitles(titles []string) error {
	data, err := json.Marshal(titles)
	if err != nil {
		return fmt.Errorf("history: encode titles: %w", err)
	}
	if err := m.store.Set(KeyTitles, string(data)); err != nil {
		return fmt.Errorf("history: write titles: %w", err)
	}
	return nil
}

// =============================================================================
// CURRENT CHAT
// =============================================================================

// SaveCurrent persists the transcript being displayed.
func (m *Manager) SaveCurrent(t *model.Transcript) error {
	data, err := model.EncodeTranscript(t)
	if err != nil {
		return fmt.Errorf("history: encode current chat: %w", err)
	}
	if err := m.store.Set(KeyCurrent, string(data)); err != nil {
		return fmt.Errorf("history: save current chat: %w", err)
	}
	return nil
}

// LoadCurrent restores the transcript saved by SaveCurrent. A missing key
// yields an empty transcript.
func (m *Manager) LoadCurrent() (*model.Transcript, error) {
	raw, ok, err := m.store.Get(KeyCurrent)
	if err != nil {
		return nil, fmt.Errorf("history: load current chat: %w", err)
	}
	if !ok || raw == "" {
		return model.NewTranscript(), nil
	}
	t, err := model.DecodeTranscript([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("history: load current chat: %w", err)
	}
	return t, nil
}

// =============================================================================
// THEME
// =============================================================================

// Theme returns the persisted theme, or "" if none was saved.
func (m *Manager) Theme() (string, error) {
	v, ok, err := m.store.Get(KeyTheme)
	if err != nil {
		return "", fmt.Errorf("history: read theme: %w", err)
	}
	if !ok {
		return "", nil
	}
	return v, nil
}

// SetTheme persists theme, which must be ThemeLight or ThemeDark.
func (m *Manager) SetTheme(theme string) error {
	if theme != ThemeLight && theme != ThemeDark {
		return fmt.Errorf("history: invalid theme %q", theme)
	}
	if err := m.store.Set(KeyTheme, theme); err != nil {
		return fmt.Errorf("history: write theme: %w", err)
	}
	return nil
}
