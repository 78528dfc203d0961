// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "strings"

// Reveal shows a response one space-separated word at a time.
type Reveal struct {
	tokens []string
	next   int
	shown  strings.Builder
}

// NewReveal splits text on single spaces. Runs of spaces produce empty
// tokens, so the joined result reproduces text exactly. Empty text yields
// one empty token.
func NewReveal(text string) *Reveal {
	return &Reveal{tokens: strings.Split(text, " ")}
}

// Step appends the next token, preceded by a space after the first, and
// returns the appended fragment. It returns "" once done.
func (r *Reveal) Step() string {
	if r.Done() {
		return ""
	}
	frag := r.tokens[r.next]
	if r.next > 0 {
		frag = " " + frag
	}
	r.next++
	r.shown.WriteString(frag)
	return frag
}

// Shown returns the text revealed so far.
func (r *Reveal) Shown() string {
	return r.shown.String()
}

// Done reports whether every token has been shown.
func (r *Reveal) Done() bool {
	return r.next >= len(r.tokens)
}

// Len returns the number of tokens, which is the number of steps.
func (r *Reveal) Len() int {
	return len(r.tokens)
}
