// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"sort"
	"strings"
)

// =============================================================================
// COMPLETER
// =============================================================================

// Completer handles tab completion for commands, arguments and prompts.
type Completer struct {
	registry *Registry

	// TitlesFn returns the archived titles for ArgTypeTitle arguments.
	TitlesFn func() []string

	// Suggestions are prompt starters offered for plain text input.
	Suggestions []string
}

// NewCompleter creates a new completer with the given registry.
func NewCompleter(registry *Registry) *Completer {
	return &Completer{registry: registry}
}

// Complete returns completions for input. Each Value is the full line
// that replaces input when accepted.
func (c *Completer) Complete(input string) []Completion {
	input = strings.TrimLeft(input, " \t")

	if !IsCommand(input) {
		return c.completeSuggestions(input)
	}

	name := ExtractCommandName(input)
	if name == input {
		return c.completeCommands(name)
	}

	cmd := c.registry.Get(name)
	if cmd == nil || len(cmd.Args) == 0 {
		return nil
	}

	rest := strings.TrimLeft(input[len(name):], " \t")
	if cmd.RawArgs {
		return c.completeArg(cmd, cmd.Args[0], rest)
	}

	// Only the first argument of quote-split commands is completed.
	if strings.ContainsAny(rest, " \t") {
		return nil
	}
	return c.completeArg(cmd, cmd.Args[0], rest)
}

// =============================================================================
// COMMAND COMPLETION
// =============================================================================

// completeCommands returns completions for command names.
func (c *Completer) completeCommands(partial string) []Completion {
	var completions []Completion
	partial = strings.ToLower(partial)

	for _, cmd := range c.registry.All() {
		if cmd.Hidden {
			continue
		}

		if strings.HasPrefix(strings.ToLower(cmd.Name), partial) {
			completions = append(completions, Completion{
				Value:       commandValue(cmd, cmd.Name),
				Display:     cmd.Name,
				Description: cmd.Description,
				Score:       calculateScore(cmd.Name, partial),
			})
		}

		for _, alias := range cmd.Aliases {
			if strings.HasPrefix(strings.ToLower(alias), partial) {
				completions = append(completions, Completion{
					Value:       commandValue(cmd, alias),
					Display:     alias + " -> " + cmd.Name,
					Description: cmd.Description,
					Score:       calculateScore(alias, partial) - 10,
				})
			}
		}
	}

	sortCompletions(completions)
	return completions
}

// commandValue appends a space when the command takes arguments.
func commandValue(cmd *Command, name string) string {
	if len(cmd.Args) > 0 {
		return name + " "
	}
	return name
}

// =============================================================================
// ARGUMENT COMPLETION
// =============================================================================

func (c *Completer) completeArg(cmd *Command, arg ArgDef, partial string) []Completion {
	var values []string
	switch arg.Type {
	case ArgTypeEnum:
		values = arg.Values
	case ArgTypeTitle:
		if c.TitlesFn != nil {
			values = c.TitlesFn()
		}
	default:
		return nil
	}

	completions := matchList(values, partial, arg.Type == ArgTypeTitle)
	for i := range completions {
		completions[i].Value = cmd.Name + " " + completions[i].Value
	}
	return completions
}

// completeSuggestions offers prompt starters for plain text. An empty
// input lists them in their configured order, matching the numbered cards.
func (c *Completer) completeSuggestions(input string) []Completion {
	var completions []Completion
	if input == "" {
		for _, s := range c.Suggestions {
			completions = append(completions, Completion{Value: s, Display: s})
		}
	} else {
		completions = matchList(c.Suggestions, input, false)
	}
	for i := range completions {
		completions[i].Description = "suggestion"
	}
	return completions
}

// matchList returns values that start with partial, ignoring case. With
// substring set, values containing partial are included at a lower score.
func matchList(values []string, partial string, substring bool) []Completion {
	var completions []Completion
	lower := strings.ToLower(partial)
	seen := make(map[string]bool, len(values))

	for _, value := range values {
		if seen[value] {
			continue
		}
		v := strings.ToLower(value)
		score := 0
		switch {
		case strings.HasPrefix(v, lower):
			score = calculateScore(value, partial)
		case substring && strings.Contains(v, lower):
			score = calculateScore(value, partial) - 40
		default:
			continue
		}
		seen[value] = true
		completions = append(completions, Completion{
			Value:   value,
			Display: value,
			Score:   score,
		})
	}

	sortCompletions(completions)
	return completions
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// calculateScore ranks a match. Higher score = better match.
func calculateScore(value, partial string) int {
	value = strings.ToLower(value)
	partial = strings.ToLower(partial)

	score := 100
	if value == partial {
		return score + 100
	}
	if strings.HasPrefix(value, partial) {
		score += 50
		score += 20 - len(value)
	}
	score -= len(value) / 2
	return score
}

// sortCompletions sorts completions by score (descending), then alphabetically.
func sortCompletions(completions []Completion) {
	sort.SliceStable(completions, func(i, j int) bool {
		if completions[i].Score != completions[j].Score {
			return completions[i].Score > completions[j].Score
		}
		return completions[i].Value < completions[j].Value
	})
}

// =============================================================================
// COMPLETION NAVIGATION
// =============================================================================

// CompletionState holds the state for cycling through completions.
type CompletionState struct {
	// OriginalInput is the input the completions were computed for.
	OriginalInput string

	Completions []Completion

	// Selected index (-1 for none)
	Selected int

	Visible bool
}

// NewCompletionState creates a new completion state.
func NewCompletionState() *CompletionState {
	return &CompletionState{Selected: -1}
}

// Update replaces the completions and selects the first.
func (cs *CompletionState) Update(input string, completions []Completion) {
	cs.OriginalInput = input
	cs.Completions = completions
	cs.Selected = 0
	cs.Visible = len(completions) > 0
}

// Next moves to the next completion.
func (cs *CompletionState) Next() {
	if len(cs.Completions) == 0 {
		return
	}
	cs.Selected = (cs.Selected + 1) % len(cs.Completions)
}

// Prev moves to the previous completion.
func (cs *CompletionState) Prev() {
	if len(cs.Completions) == 0 {
		return
	}
	cs.Selected--
	if cs.Selected < 0 {
		cs.Selected = len(cs.Completions) - 1
	}
}

// Accept returns the selected completion value, or empty if there is none.
func (cs *CompletionState) Accept() string {
	if sel := cs.GetSelected(); sel != nil {
		return sel.Value
	}
	if len(cs.Completions) > 0 {
		return cs.Completions[0].Value
	}
	return ""
}

// Clear clears the completion state.
func (cs *CompletionState) Clear() {
	cs.OriginalInput = ""
	cs.Completions = nil
	cs.Selected = -1
	cs.Visible = false
}

// GetSelected returns the currently selected completion, or nil.
func (cs *CompletionState) GetSelected() *Completion {
	if cs.Selected < 0 || cs.Selected >= len(cs.Completions) {
		return nil
	}
	return &cs.Completions[cs.Selected]
}
