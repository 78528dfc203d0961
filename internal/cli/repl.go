// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/peterh/liner"
	"github.com/rs/zerolog"

	"github.com/whiterven/ravenx/internal/commands"
	"github.com/whiterven/ravenx/internal/model"
	"github.com/whiterven/ravenx/internal/session"
)

// =============================================================================
// LINE INPUT
// =============================================================================

// LineReader reads one line of input after showing prompt.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// ChatCLI provides input history, line editing and tab completion for the
// line mode chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a liner-backed reader. An empty historyFile keeps
// history in memory only. completer may be nil.
func NewChatCLI(historyFile string, completer *commands.Completer) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	if completer != nil {
		line.SetCompleter(func(input string) []string {
			return completionValues(completer.Complete(input))
		})
	}

	c := &ChatCLI{line: line, historyFile: historyFile}
	c.LoadHistory()
	return c
}

func chatHistoryPath(configDir string) string {
	return filepath.Join(configDir, "chat_history")
}

func completionValues(cs []commands.Completion) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Value)
	}
	return out
}

// LoadHistory loads input history from file.
func (c *ChatCLI) LoadHistory() {
	if c.historyFile == "" {
		return
	}
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadLine reads a line with the given prompt and records it in history.
func (c *ChatCLI) ReadLine(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory writes input history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if c.historyFile == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() error {
	c.SaveHistory()
	return c.line.Close()
}

// =============================================================================
// REPL
// =============================================================================

// REPL drives a controller from a LineReader and prints the chat as it
// changes. Each line's reply is fully revealed before the next prompt.
type REPL struct {
	In  LineReader
	Out io.Writer

	// Registry holds the slash commands. Nil means commands.NewRegistry.
	Registry *commands.Registry

	// Model is shown in the banner.
	Model string

	// Copy backs /copy. Nil disables it.
	Copy func(text string) error

	Log zerolog.Logger
}

// Run reads lines until EOF, an interrupt at the prompt, /quit or ctx is
// done.
func (r *REPL) Run(ctx context.Context, ctrl *session.Controller) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	registry := r.Registry
	if registry == nil {
		registry = commands.NewRegistry()
	}
	d := commands.NewDispatcher(registry, &commands.Context{
		Copy:    r.Copy,
		Confirm: r.confirm,
	})
	view := newPlainView(r.Out)
	r.printBanner()

	idle := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- session.Run(ctx, ctrl, view,
			session.WithInterceptor(d.Intercept),
			session.WithMessageHandler(view.handle),
			session.WithIdleHandler(func() {
				select {
				case idle <- struct{}{}:
				default:
				}
			}),
		)
	}()

	var submit func(string)
	select {
	case submit = <-view.submits:
	case err := <-done:
		return ignoreCanceled(err)
	}

	for !view.quitting() {
		line, err := r.In.ReadLine(PromptStyle.Render("you> "))
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, liner.ErrPromptAborted) {
				r.Log.Warn().Err(err).Msg("Input failed")
			}
			fmt.Fprintln(r.Out)
			break
		}

		view.expect(line)
		submit(line)
		select {
		case <-idle:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}

	cancel()
	return ignoreCanceled(<-done)
}

func (r *REPL) printBanner() {
	title := RavenLabelStyle.Render("Raven")
	if r.Model != "" {
		title += DimStyle.Render(" (" + r.Model + ")")
	}
	fmt.Fprintln(r.Out, title)
	fmt.Fprintln(r.Out, DimStyle.Render("Type /help for commands, tab to complete, /quit to leave."))
	fmt.Fprintln(r.Out)
}

// confirm runs on the driver goroutine while Run waits for the chain, so
// reading input here does not race the prompt loop.
func (r *REPL) confirm(prompt string) bool {
	answer, err := r.In.ReadLine(WarningStyle.Render("[!]") + " " + prompt + " [y/N] ")
	return err == nil && isYes(answer)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// =============================================================================
// PLAIN VIEW
// =============================================================================

// plainView prints each message once, and the incoming text as it is
// revealed.
type plainView struct {
	mu      sync.Mutex
	out     io.Writer
	shown   map[string]string
	settled map[string]bool
	typed   string
	quit    bool

	submits chan func(string)
}

func newPlainView(out io.Writer) *plainView {
	return &plainView{
		out:     out,
		shown:   make(map[string]string),
		settled: make(map[string]bool),
		submits: make(chan func(string), 1),
	}
}

func (v *plainView) OnSubmit(fn func(string)) {
	v.submits <- fn
}

func (v *plainView) Render(s session.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()

	present := make(map[string]bool, len(s.Messages))
	for i := range s.Messages {
		m := &s.Messages[i]
		present[m.ID] = true
		v.print(m)
	}
	for id := range v.shown {
		if !present[id] {
			delete(v.shown, id)
			delete(v.settled, id)
		}
	}
}

func (v *plainView) print(m *model.Message) {
	prev, seen := v.shown[m.ID]
	switch {
	case m.IsUser():
		if seen && prev == m.Content {
			return
		}
		// The prompt already echoed what was typed.
		if !seen && m.Content == v.typed {
			v.typed = ""
		} else {
			fmt.Fprintf(v.out, "%s %s\n", UserLabelStyle.Render("you:"), m.Content)
		}
		v.shown[m.ID] = m.Content

	case m.Loading:

	case m.Error:
		if !seen {
			fmt.Fprintf(v.out, "%s %s\n\n", ErrorStyle.Render("[X]"), m.Content)
			v.shown[m.ID] = m.Content
			v.settled[m.ID] = true
		}

	default:
		if v.settled[m.ID] {
			return
		}
		if !seen {
			fmt.Fprint(v.out, RavenLabelStyle.Render("raven:")+" ")
		}
		if strings.HasPrefix(m.Content, prev) {
			fmt.Fprint(v.out, m.Content[len(prev):])
		} else {
			fmt.Fprint(v.out, "\n"+m.Content)
		}
		v.shown[m.ID] = m.Content
		if !m.Revealing {
			fmt.Fprint(v.out, "\n\n")
			v.settled[m.ID] = true
		}
	}
}

// expect records a line typed at the prompt so its bubble is not printed
// a second time.
func (v *plainView) expect(line string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.typed = strings.TrimSpace(line)
}

func (v *plainView) handle(msg tea.Msg) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch msg := msg.(type) {
	case commands.NoticeMsg:
		if msg.Err {
			fmt.Fprintf(v.out, "%s %s\n", ErrorStyle.Render("[X]"), msg.Text)
		} else {
			fmt.Fprintln(v.out, msg.Text)
		}
	case tea.QuitMsg:
		v.quit = true
	}
}

func (v *plainView) quitting() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.quit
}
