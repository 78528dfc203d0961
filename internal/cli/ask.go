// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/whiterven/ravenx/internal/ui/components"
)

type askOptions struct {
	markdown bool
}

func newAskCommand(g *globalOptions) *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask <prompt>...",
		Short: "Send one prompt and print the answer",
		Long: `Send one prompt through the configured responder and print the answer.

The words are joined with spaces. A single "-" reads the prompt from stdin.
Nothing is saved to the chat history.`,
		Example: `  ravenx ask "What is a goroutine?"
  git diff | ravenx ask -`,
		Args: minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, g, opts, args)
		},
	}
	cmd.Flags().BoolVar(&opts.markdown, "markdown", false, "render the answer as markdown (default: ui.markdown on a terminal)")
	return cmd
}

func runAsk(cmd *cobra.Command, g *globalOptions, opts *askOptions, args []string) error {
	prompt := strings.Join(args, " ")
	if prompt == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read prompt: %w", err)
		}
		prompt = string(data)
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return &UsageError{Field: "prompt", Reason: "prompt is empty", Example: cmd.Example}
	}

	cfg, err := g.loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	r, err := a.newResponder(cmd.Context())
	if err != nil {
		return err
	}

	a.log.Debug().Int("length", len(prompt)).Msg("Asking")
	text, err := r.Complete(cmd.Context(), prompt)
	if err != nil {
		return err
	}

	markdown := opts.markdown
	if !cmd.Flags().Changed("markdown") {
		markdown = cfg.UI.Markdown && IsStdoutTTY()
	}
	if markdown {
		text = components.NewMarkdownRenderer().Render(text, GetTerminalWidth(), lipgloss.HasDarkBackground())
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}
