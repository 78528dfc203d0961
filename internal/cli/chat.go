// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/whiterven/ravenx/internal/commands"
	"github.com/whiterven/ravenx/internal/config"
	"github.com/whiterven/ravenx/internal/kv"
	"github.com/whiterven/ravenx/internal/logging"
	"github.com/whiterven/ravenx/internal/responder"
	"github.com/whiterven/ravenx/internal/session"
	"github.com/whiterven/ravenx/internal/ui/chat"
)

// chatOptions holds the chat command flags.
type chatOptions struct {
	plain bool
}

func (o *chatOptions) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.plain, "plain", false, "line mode instead of the full-screen interface")
}

func newChatCommand(g *globalOptions) *cobra.Command {
	opts := &chatOptions{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat (the default command)",
		Example: `  ravenx chat
  ravenx chat --plain
  ravenx chat --backend proxy --ephemeral`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, g, opts)
		},
	}
	opts.bind(cmd)
	return cmd
}

// runChat restores the saved chat and hands it to the TUI, or to the line
// mode REPL when asked to or when stdin is not a terminal.
func runChat(cmd *cobra.Command, g *globalOptions, opts *chatOptions) error {
	cfg, err := g.loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := a.newResponder(ctx)
	if err != nil {
		return err
	}
	ctrl, err := a.newController(ctx, r)
	if err != nil {
		return err
	}

	if opts.plain || !IsTTY() {
		return runPlainChat(ctx, cmd, a, ctrl)
	}
	return runTUI(ctx, a, ctrl)
}

// =============================================================================
// FULL-SCREEN CHAT
// =============================================================================

func runTUI(ctx context.Context, a *app, ctrl *session.Controller) error {
	m := chat.New(ctrl, chat.Options{
		ModelName:   modelLabel(a.cfg),
		Suggestions: a.cfg.UI.Suggestions,
		Markdown:    a.cfg.UI.Markdown,
		Commands:    &commands.Context{Copy: chat.Clipboard},
		Logger:      a.log,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	a.log.Info().Str("model", a.cfg.Responder.Model).Msg("Chat started")
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("chat interface: %w", err)
	}
	a.log.Info().Msg("Chat ended")
	return archiveOnExit(ctrl, a.log)
}

// archiveOnExit files the open chat in the sidebar list, so the next start
// opens an empty chat. An empty chat is left alone.
func archiveOnExit(ctrl *session.Controller, log zerolog.Logger) error {
	if ctrl.Snapshot().Empty() {
		return nil
	}
	if err := ctrl.NewSession(); err != nil {
		return fmt.Errorf("archive chat: %w", err)
	}
	log.Debug().Int("chats", len(ctrl.Titles())).Msg("Open chat archived on exit")
	return nil
}

// =============================================================================
// LINE MODE CHAT
// =============================================================================

func runPlainChat(ctx context.Context, cmd *cobra.Command, a *app, ctrl *session.Controller) error {
	historyFile := ""
	if a.cfg.Store.Backend != kv.BackendMemory {
		if dir, err := config.ConfigDir(); err == nil {
			historyFile = chatHistoryPath(dir)
		}
	}

	registry := commands.NewRegistry()
	completer := commands.NewCompleter(registry)
	completer.TitlesFn = ctrl.Titles
	completer.Suggestions = a.cfg.UI.Suggestions

	in := NewChatCLI(historyFile, completer)
	defer in.Close()

	repl := &REPL{
		In:       in,
		Out:      cmd.OutOrStdout(),
		Registry: registry,
		Model:    modelLabel(a.cfg),
		Copy:     chat.Clipboard,
		Log:      logging.Component(a.log, "repl"),
	}
	if err := repl.Run(ctx, ctrl); err != nil {
		return err
	}
	return archiveOnExit(ctrl, a.log)
}

func modelLabel(cfg *config.Config) string {
	if cfg.Responder.Backend == responder.BackendProxy {
		return cfg.Responder.Model + " via proxy"
	}
	return cfg.Responder.Model
}
