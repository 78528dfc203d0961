// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"sort"
	"sync"
	"time"
)

// =============================================================================
// SESSIONS
// =============================================================================

// Exchange is one message and the reply to it.
type Exchange struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
}

// Session is one client's conversation.
type Session struct {
	ID           string
	CreatedAt    time.Time
	LastActivity time.Time
	MessageCount int
	History      []Exchange

	conv Conversation
	// send serializes messages within the session.
	send sync.Mutex
}

// SessionDetail is the /api/session/info body for a known session.
type SessionDetail struct {
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	MessageCount int       `json:"message_count"`
}

// SessionSummary is one entry of SessionList.
type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	MessageCount int       `json:"message_count"`
	LastActivity time.Time `json:"last_activity"`
}

// SessionList is the /api/session/info body without a known session.
type SessionList struct {
	ActiveSessions int              `json:"active_sessions"`
	Sessions       []SessionSummary `json:"sessions"`
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry holds the live sessions. Every cleanupEvery-th message of a
// session triggers removal of sessions idle longer than ttl.
type Registry struct {
	mu           sync.Mutex
	sessions     map[string]*Session
	ttl          time.Duration
	cleanupEvery int
	now          func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(ttl time.Duration, cleanupEvery int) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
	r.SetLimits(ttl, cleanupEvery)
	return r
}

// SetLimits changes the idle TTL and the cleanup cadence.
func (r *Registry) SetLimits(ttl time.Duration, cleanupEvery int) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if cleanupEvery < 1 {
		cleanupEvery = 10
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ttl = ttl
	r.cleanupEvery = cleanupEvery
}

// GetOrCreate returns the session for id, starting a conversation with
// start when there is none.
func (r *Registry) GetOrCreate(id string, start func() (Conversation, error)) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		return s, nil
	}
	conv, err := start()
	if err != nil {
		return nil, err
	}
	now := r.now()
	s := &Session{ID: id, CreatedAt: now, LastActivity: now, conv: conv}
	r.sessions[id] = s
	return s, nil
}

// Record notes a completed exchange and returns the session's message count.
func (r *Registry) Record(s *Session, message, response string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	s.LastActivity = now
	s.MessageCount++
	s.History = append(s.History, Exchange{Timestamp: now, Message: message, Response: response})

	if s.MessageCount%r.cleanupEvery == 0 {
		r.cleanupLocked(now)
	}
	return s.MessageCount
}

// Delete removes id. It reports whether the session existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	return ok
}

// Cleanup removes idle sessions and returns how many went.
func (r *Registry) Cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cleanupLocked(r.now())
}

func (r *Registry) cleanupLocked(now time.Time) int {
	removed := 0
	for id, s := range r.sessions {
		if now.Sub(s.LastActivity) > r.ttl {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// Detail describes id.
func (r *Registry) Detail(id string) (SessionDetail, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return SessionDetail{}, false
	}
	return SessionDetail{
		SessionID:    s.ID,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
		MessageCount: s.MessageCount,
	}, true
}

// History returns a copy of the exchanges in id.
func (r *Registry) History(id string) []Exchange {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	return append([]Exchange(nil), s.History...)
}

// List summarizes every session, ordered by ID.
func (r *Registry) List() SessionList {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := SessionList{
		ActiveSessions: len(r.sessions),
		Sessions:       make([]SessionSummary, 0, len(r.sessions)),
	}
	for _, s := range r.sessions {
		list.Sessions = append(list.Sessions, SessionSummary{
			SessionID:    s.ID,
			MessageCount: s.MessageCount,
			LastActivity: s.LastActivity,
		})
	}
	sort.Slice(list.Sessions, func(i, j int) bool {
		return list.Sessions[i].SessionID < list.Sessions[j].SessionID
	})
	return list
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
