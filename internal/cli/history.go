// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/whiterven/ravenx/internal/commands"
	"github.com/whiterven/ravenx/internal/history"
	"github.com/whiterven/ravenx/internal/model"
)

func newHistoryCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or clear saved chats",
		Example: `  ravenx history list
  ravenx history show 2
  ravenx history clear --yes`,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved chats, oldest first",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(a *app) error {
				return listChats(cmd.OutOrStdout(), a.hist)
			})
		},
	}

	show := &cobra.Command{
		Use:   "show <title|number>",
		Short: "Print a saved chat",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(a *app) error {
				title, t, err := loadChat(a.hist, args[0])
				if err != nil {
					return err
				}
				printTranscript(cmd.OutOrStdout(), title, t)
				return nil
			})
		},
	}

	var yes bool
	clear := &cobra.Command{
		Use:   "clear",
		Short: "Delete every saved chat",
		Long: `Delete every saved chat and the current chat.

With store.clear_scope = "all" the whole store is wiped, including the
theme. With "chats" the theme is kept.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := RequireConfirmation("Delete every saved chat", ConfirmationOptions{
				Yes:         yes,
				Interactive: IsTTY(),
				In:          cmd.InOrStdin(),
				Out:         cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return nil
			}
			return withApp(cmd, g, func(a *app) error {
				if err := a.hist.ClearAll(); err != nil {
					return NewCommandError("history", "clear", "could not clear the store", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("[OK]")+" All chats deleted.")
				return nil
			})
		},
	}
	clear.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	cmd.AddCommand(list, show, clear)
	return cmd
}

// withApp loads the configuration, opens the store and runs fn.
func withApp(cmd *cobra.Command, g *globalOptions, fn func(*app) error) error {
	cfg, err := g.loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func listChats(w io.Writer, h *history.Manager) error {
	titles, err := h.List()
	if err != nil {
		return NewCommandError("history", "list", "could not read titles", err)
	}
	if len(titles) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No saved chats."))
		return nil
	}
	for i, title := range titles {
		fmt.Fprintf(w, "%3d. %s\n", i+1, title)
	}
	return nil
}

// loadChat resolves arg as a title or a list number and loads the chat.
func loadChat(h *history.Manager, arg string) (string, *model.Transcript, error) {
	titles, err := h.List()
	if err != nil {
		return "", nil, err
	}
	title, ok := commands.ResolveTitle(titles, arg)
	if !ok {
		return "", nil, &NotFoundError{Resource: "chat", ID: arg}
	}
	t, err := h.Load(title)
	if err != nil {
		return "", nil, err
	}
	return title, t, nil
}

func printTranscript(w io.Writer, title string, t *model.Transcript) {
	fmt.Fprintln(w, TitleStyle.Render(title))
	fmt.Fprintln(w, RenderSeparator(len([]rune(title))))
	for _, m := range t.Messages() {
		label := RavenLabelStyle.Render("Raven")
		if m.IsUser() {
			label = UserLabelStyle.Render("You")
		}
		stamp := ""
		if !m.Timestamp.IsZero() {
			stamp = DimStyle.Render(m.Timestamp.Local().Format("Jan 2 15:04")) + " "
		}
		content := m.Content
		if m.Error {
			content = ErrorStyle.Render("[X]") + " " + content
		}
		fmt.Fprintf(w, "\n%s%s\n%s\n", stamp, label, WrapText(content, 0))
	}
}
