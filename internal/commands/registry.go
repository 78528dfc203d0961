// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"sort"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/whiterven/ravenx/internal/export"
	"github.com/whiterven/ravenx/internal/session"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// Command represents a slash command that can be executed.
type Command struct {
	// Name is the primary command name (e.g., "/help")
	Name string

	// Aliases are alternative names (e.g., "/h", "/?")
	Aliases []string

	// Description is shown in help and completion
	Description string

	// Usage shows argument syntax (e.g., "/load <title>")
	Usage string

	// Args defines the expected arguments
	Args []ArgDef

	// RawArgs passes everything after the name as a single argument,
	// untouched by quote handling.
	RawArgs bool

	// Handler is the function that executes the command
	Handler func(ctx *Context, args []string) tea.Cmd

	// Hidden commands don't appear in help
	Hidden bool

	// Category for grouping in help display
	Category string
}

// ArgDef defines an argument for a command.
type ArgDef struct {
	Name        string
	Required    bool
	Type        ArgType
	Description string

	// Values for enum types
	Values []string
}

// ArgType indicates what kind of completion to provide.
type ArgType int

const (
	ArgTypeString ArgType = iota // Free-form string
	ArgTypeTitle                 // Archived chat title
	ArgTypeEnum                  // One of predefined values
)

// Help categories, in display order.
const (
	CategoryChat     = "Chat"
	CategoryHistory  = "History"
	CategorySettings = "Settings"
	CategoryGeneral  = "General"
)

var categoryOrder = []string{CategoryChat, CategoryHistory, CategorySettings, CategoryGeneral}

// =============================================================================
// CONTEXT
// =============================================================================

// Context gives handlers access to the chat. Controller is set by the
// Dispatcher before every call; the other fields are optional.
type Context struct {
	// Controller is the chat being driven.
	Controller *session.Controller

	// Registry is used by /help.
	Registry *Registry

	// Export configures /export. Nil means export.DefaultOptions.
	Export *export.Options

	// Copy places text on the clipboard. Nil disables /copy.
	Copy func(text string) error

	// Confirm asks a yes/no question. Nil means only an explicit "yes"
	// argument confirms.
	Confirm func(prompt string) bool
}

// =============================================================================
// COMMAND REGISTRY
// =============================================================================

// Registry holds all registered commands.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]*Command
}

// NewRegistry creates a registry with all built-in commands.
func NewRegistry() *Registry {
	r := NewEmptyRegistry()
	r.registerBuiltins()
	return r
}

// NewEmptyRegistry creates a registry without commands.
func NewEmptyRegistry() *Registry {
	return &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]*Command),
	}
}

// Register adds a command to the registry.
func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = cmd
	}
}

// Get retrieves a command by name or alias.
func (r *Registry) Get(name string) *Command {
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	if cmd, ok := r.aliases[name]; ok {
		return cmd
	}
	return nil
}

// All returns all registered commands sorted by name.
func (r *Registry) All() []*Command {
	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// ByCategory returns visible commands grouped by category, each group
// sorted by name.
func (r *Registry) ByCategory() map[string][]*Command {
	result := make(map[string][]*Command)
	for _, cmd := range r.All() {
		if cmd.Hidden {
			continue
		}
		category := cmd.Category
		if category == "" {
			category = CategoryGeneral
		}
		result[category] = append(result[category], cmd)
	}
	return result
}

// =============================================================================
// BUILT-IN COMMANDS
// =============================================================================

func (r *Registry) registerBuiltins() {
	// Chat
	r.Register(&Command{
		Name:        "/new",
		Aliases:     []string{"/n"},
		Description: "Archive this chat and start a new one",
		Category:    CategoryChat,
		Handler:     HandleNew,
	})

	r.Register(&Command{
		Name:        "/regen",
		Aliases:     []string{"/r", "/retry"},
		Description: "Ask again for the last message, or message n",
		Usage:       "/regen [n]",
		Args: []ArgDef{
			{Name: "n", Required: false, Type: ArgTypeString, Description: "Message number, counting your messages from 1"},
		},
		Category: CategoryChat,
		Handler:  HandleRegenerate,
	})

	r.Register(&Command{
		Name:        "/edit",
		Aliases:     []string{"/e"},
		Description: "Replace the last message (or message #n) and ask again",
		Usage:       "/edit [#n] <text>",
		Args: []ArgDef{
			{Name: "text", Required: true, Type: ArgTypeString, Description: "New message text"},
		},
		RawArgs:  true,
		Category: CategoryChat,
		Handler:  HandleEdit,
	})

	r.Register(&Command{
		Name:        "/copy",
		Aliases:     []string{"/y"},
		Description: "Copy the last response to the clipboard",
		Category:    CategoryChat,
		Handler:     HandleCopy,
	})

	// History
	r.Register(&Command{
		Name:        "/chats",
		Aliases:     []string{"/list"},
		Description: "List archived chats",
		Category:    CategoryHistory,
		Handler:     HandleChats,
	})

	r.Register(&Command{
		Name:        "/load",
		Aliases:     []string{"/l"},
		Description: "Open an archived chat",
		Usage:       "/load <title|number>",
		Args: []ArgDef{
			{Name: "title", Required: true, Type: ArgTypeTitle, Description: "Title or number from /chats"},
		},
		RawArgs:  true,
		Category: CategoryHistory,
		Handler:  HandleLoad,
	})

	r.Register(&Command{
		Name:        "/clear",
		Description: "Delete every saved chat",
		Usage:       "/clear [yes]",
		Args: []ArgDef{
			{Name: "confirm", Required: false, Type: ArgTypeEnum, Values: []string{"yes"}, Description: "Skip the confirmation"},
		},
		Category: CategoryHistory,
		Handler:  HandleClear,
	})

	r.Register(&Command{
		Name:        "/export",
		Description: "Export this chat to a file",
		Usage:       "/export [md|json|html]",
		Args: []ArgDef{
			{Name: "format", Required: false, Type: ArgTypeEnum, Values: []string{"md", "json", "html"}, Description: "Export format"},
		},
		Category: CategoryHistory,
		Handler:  HandleExport,
	})

	// Settings
	r.Register(&Command{
		Name:        "/theme",
		Aliases:     []string{"/t"},
		Description: "Switch between light and dark",
		Category:    CategorySettings,
		Handler:     HandleTheme,
	})

	// General
	r.Register(&Command{
		Name:        "/help",
		Aliases:     []string{"/h", "/?"},
		Description: "Show commands",
		Usage:       "/help [command]",
		Args: []ArgDef{
			{Name: "command", Required: false, Type: ArgTypeString, Description: "Command to describe"},
		},
		Category: CategoryGeneral,
		Handler:  HandleHelp,
	})

	r.Register(&Command{
		Name:        "/quit",
		Aliases:     []string{"/q", "/exit"},
		Description: "Exit ravenx",
		Category:    CategoryGeneral,
		Handler:     HandleQuit,
	})
}

// =============================================================================
// COMPLETION TYPE
// =============================================================================

// Completion represents a completion suggestion.
type Completion struct {
	// Value is the whole input line after accepting the completion.
	Value string

	// Display text
	Display string

	// Description shown alongside
	Description string

	// Score for ranking (higher = better match)
	Score int
}
