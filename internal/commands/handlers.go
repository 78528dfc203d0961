// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/whiterven/ravenx/internal/export"
	"github.com/whiterven/ravenx/internal/history"
	"github.com/whiterven/ravenx/internal/model"
	"github.com/whiterven/ravenx/internal/session"
	"github.com/whiterven/ravenx/internal/util"
)

// =============================================================================
// MESSAGE TYPES
// =============================================================================

// NoticeMsg is feedback from a command, shown in the status line or
// printed by the REPL.
type NoticeMsg struct {
	Text string
	Err  bool
}

// Notice returns a command that delivers an informational NoticeMsg.
func Notice(format string, args ...any) tea.Cmd {
	text := fmt.Sprintf(format, args...)
	return func() tea.Msg {
		return NoticeMsg{Text: text}
	}
}

// Errorf returns a command that delivers an error NoticeMsg.
func Errorf(format string, args ...any) tea.Cmd {
	text := fmt.Sprintf(format, args...)
	return func() tea.Msg {
		return NoticeMsg{Text: text, Err: true}
	}
}

// =============================================================================
// DISPATCHER
// =============================================================================

// Dispatcher parses lines and runs the matching command.
type Dispatcher struct {
	registry *Registry
	parser   *Parser
	ctx      *Context
}

// NewDispatcher creates a dispatcher. ctx may be nil.
func NewDispatcher(registry *Registry, ctx *Context) *Dispatcher {
	if ctx == nil {
		ctx = &Context{}
	}
	if ctx.Registry == nil {
		ctx.Registry = registry
	}
	return &Dispatcher{
		registry: registry,
		parser:   NewParser(registry),
		ctx:      ctx,
	}
}

// Registry returns the command registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Intercept implements session.Interceptor. Lines that are not commands are
// left for Submit; "//text" is submitted as "/text".
func (d *Dispatcher) Intercept(c *session.Controller, line string) (tea.Cmd, bool) {
	result := d.parser.Parse(line)
	if result.Escaped {
		return c.Submit(result.Prompt()), true
	}
	if !result.IsCommand {
		return nil, false
	}

	if result.Command == nil {
		return Errorf("Unknown command %s. Type /help for the list.", result.CommandName), true
	}
	if err := ValidateArgs(result.Command, result.Args); err != nil {
		if result.Command.Usage != "" {
			return Errorf("%v\nUsage: %s", err, result.Command.Usage), true
		}
		return Errorf("%v", err), true
	}

	d.ctx.Controller = c
	return result.Command.Handler(d.ctx, result.Args), true
}

// =============================================================================
// CHAT HANDLERS
// =============================================================================

// HandleNew archives the current chat and starts an empty one.
func HandleNew(ctx *Context, args []string) tea.Cmd {
	if err := ctx.Controller.NewSession(); err != nil {
		return Errorf("Could not start a new chat: %v", err)
	}
	return Notice("Started a new chat.")
}

// HandleRegenerate asks again for the last outgoing message, or for
// message n of /regen n.
func HandleRegenerate(ctx *Context, args []string) tea.Cmd {
	number := ""
	if len(args) > 0 {
		number = args[0]
	}
	target, fail := targetMessage(ctx, number, "regenerate")
	if fail != nil {
		return fail
	}
	return ctx.Controller.Regenerate(target.ID)
}

// HandleEdit replaces the last outgoing message and asks again. A leading
// "#n" picks message n instead.
func HandleEdit(ctx *Context, args []string) tea.Cmd {
	number, text := splitMessageNumber(args[0])
	if strings.TrimSpace(text) == "" {
		return Errorf("Usage: /edit [#n] <text>")
	}
	target, fail := targetMessage(ctx, number, "edit")
	if fail != nil {
		return fail
	}
	return ctx.Controller.Edit(target.ID, text)
}

// targetMessage resolves the outgoing message a /regen or /edit acts on.
// An empty number means the last one.
func targetMessage(ctx *Context, number, verb string) (*model.Message, tea.Cmd) {
	var target *model.Message
	if number == "" {
		target = ctx.Controller.LastUser()
		if target == nil {
			return nil, Errorf("Nothing to %s yet.", verb)
		}
	} else {
		n, err := strconv.Atoi(strings.TrimPrefix(number, "#"))
		if err != nil || n < 1 {
			return nil, Errorf("Message number must be a positive integer, got %q.", number)
		}
		if target = ctx.Controller.UserAt(n); target == nil {
			return nil, Errorf("There is no message %d.", n)
		}
	}
	if !ctx.Controller.State().Idle() {
		return nil, Errorf("A response is still on its way.")
	}
	return target, nil
}

// splitMessageNumber splits "#3 new text" into "#3" and "new text". Text
// without a leading #n is returned whole.
func splitMessageNumber(raw string) (number, text string) {
	head, rest, _ := strings.Cut(strings.TrimSpace(raw), " ")
	if len(head) < 2 || head[0] != '#' {
		return "", raw
	}
	if _, err := strconv.Atoi(head[1:]); err != nil {
		return "", raw
	}
	return head, strings.TrimSpace(rest)
}

// HandleCopy copies the last settled response.
func HandleCopy(ctx *Context, args []string) tea.Cmd {
	resp := ctx.Controller.LastResponse()
	if resp == nil {
		return Errorf("No response to copy yet.")
	}
	if ctx.Copy == nil {
		return Errorf("Clipboard is not available here.")
	}

	copyFn := ctx.Copy
	text := resp.Content
	return func() tea.Msg {
		if err := copyFn(text); err != nil {
			return NoticeMsg{Text: fmt.Sprintf("Copy failed: %v", err), Err: true}
		}
		return NoticeMsg{Text: fmt.Sprintf("Copied %d characters.", len([]rune(text)))}
	}
}

// =============================================================================
// HISTORY HANDLERS
// =============================================================================

// HandleChats lists archived titles with their numbers.
func HandleChats(ctx *Context, args []string) tea.Cmd {
	titles := ctx.Controller.Titles()
	if len(titles) == 0 {
		return Notice("No archived chats.")
	}

	var sb strings.Builder
	sb.WriteString("Archived chats:\n")
	for i, title := range titles {
		fmt.Fprintf(&sb, "  %2d. %s\n", i+1, title)
	}
	return Notice("%s", strings.TrimRight(sb.String(), "\n"))
}

// HandleLoad opens an archived chat by title or by its /chats number.
func HandleLoad(ctx *Context, args []string) tea.Cmd {
	title, ok := ResolveTitle(ctx.Controller.Titles(), args[0])
	if !ok {
		return Errorf("No saved chat named %q. Type /chats for the list.", args[0])
	}
	if err := ctx.Controller.LoadChat(title); err != nil {
		return Errorf("Could not load %q: %v", title, err)
	}
	return Notice("Loaded %q.", title)
}

// ResolveTitle matches arg against titles exactly, then as a 1-based index.
func ResolveTitle(titles []string, arg string) (string, bool) {
	for _, t := range titles {
		if t == arg {
			return t, true
		}
	}
	if n, err := strconv.Atoi(strings.TrimSpace(arg)); err == nil && n >= 1 && n <= len(titles) {
		return titles[n-1], true
	}
	return "", false
}

// HandleClear deletes every saved chat after confirmation.
func HandleClear(ctx *Context, args []string) tea.Cmd {
	confirmed := len(args) > 0 && strings.EqualFold(args[0], "yes")
	if !confirmed && ctx.Confirm != nil {
		confirmed = ctx.Confirm("Delete every saved chat?")
	}
	if !confirmed {
		return Notice("This deletes every saved chat. Run /clear yes to confirm.")
	}

	if err := ctx.Controller.ClearAll(); err != nil {
		return Errorf("Could not clear chats: %v", err)
	}
	return Notice("All chats deleted.")
}

// HandleExport writes the current chat to a file.
func HandleExport(ctx *Context, args []string) tea.Cmd {
	format := export.FormatMarkdown
	if len(args) > 0 {
		format = strings.ToLower(args[0])
	}

	transcript := ctx.Controller.Transcript()
	if transcript.Empty() {
		return Errorf("Nothing to export yet.")
	}

	opts := export.DefaultOptions()
	if ctx.Export != nil {
		o := *ctx.Export
		opts = &o
	}
	opts.Theme = "dark"
	if ctx.Controller.Theme() == history.ThemeLight {
		opts.Theme = "light"
	}

	exporter, err := export.ForFormat(format, opts)
	if err != nil {
		return Errorf("%v", err)
	}

	title := "Current chat"
	if pending := ctx.Controller.State().Pending; pending != "" {
		title = util.FirstRunes(pending, history.TitleRunes)
	}
	chat := export.NewChat(title, transcript)

	return func() tea.Msg {
		path, err := export.ToFile(chat, exporter, opts)
		if err != nil {
			return NoticeMsg{Text: fmt.Sprintf("Export failed: %v", err), Err: true}
		}
		return NoticeMsg{Text: "Exported to " + path}
	}
}

// =============================================================================
// SETTINGS AND GENERAL HANDLERS
// =============================================================================

// HandleTheme toggles light and dark.
func HandleTheme(ctx *Context, args []string) tea.Cmd {
	theme, err := ctx.Controller.ToggleTheme()
	if err != nil {
		return Errorf("%v", err)
	}
	if theme == history.ThemeLight {
		return Notice("Theme: light")
	}
	return Notice("Theme: dark")
}

// HandleHelp shows the command list, or one command.
func HandleHelp(ctx *Context, args []string) tea.Cmd {
	topic := ""
	if len(args) > 0 {
		topic = args[0]
	}
	return Notice("%s", GenerateHelpText(ctx.Registry, topic))
}

// HandleQuit exits the application.
func HandleQuit(ctx *Context, args []string) tea.Cmd {
	return tea.Quit
}

// =============================================================================
// HELP TEXT GENERATION
// =============================================================================

// GenerateHelpText lists all visible commands by category, or describes
// the command named by topic.
func GenerateHelpText(r *Registry, topic string) string {
	if r == nil {
		return ""
	}
	topic = strings.TrimSpace(topic)
	if topic != "" {
		return commandHelp(r, topic)
	}

	var sb strings.Builder
	sb.WriteString("Available Commands\n")
	sb.WriteString("==================\n")

	categories := r.ByCategory()
	for _, category := range categoryOrder {
		cmds := categories[category]
		if len(cmds) == 0 {
			continue
		}
		sb.WriteString("\n" + category + "\n")
		sb.WriteString(strings.Repeat("-", len(category)) + "\n")
		for _, cmd := range cmds {
			name := cmd.Name
			if cmd.Usage != "" {
				name = cmd.Usage
			}
			fmt.Fprintf(&sb, "  %-26s %s\n", name, cmd.Description)
		}
	}

	sb.WriteString("\nStart a prompt with // to send a leading slash.\n")
	return sb.String()
}

func commandHelp(r *Registry, topic string) string {
	if !strings.HasPrefix(topic, "/") {
		topic = "/" + topic
	}
	cmd := r.Get(topic)
	if cmd == nil {
		return fmt.Sprintf("Unknown command: %s", topic)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s  %s\n", cmd.Name, cmd.Description)
	if cmd.Usage != "" {
		fmt.Fprintf(&sb, "  Usage:   %s\n", cmd.Usage)
	}
	if len(cmd.Aliases) > 0 {
		fmt.Fprintf(&sb, "  Aliases: %s\n", strings.Join(cmd.Aliases, ", "))
	}
	for _, arg := range cmd.Args {
		req := "optional"
		if arg.Required {
			req = "required"
		}
		fmt.Fprintf(&sb, "  <%s> %s, %s\n", arg.Name, req, arg.Description)
	}
	return strings.TrimRight(sb.String(), "\n")
}
