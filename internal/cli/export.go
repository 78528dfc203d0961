// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/whiterven/ravenx/internal/export"
	"github.com/whiterven/ravenx/internal/history"
	"github.com/whiterven/ravenx/internal/model"
)

type exportOptions struct {
	format     string
	output     string
	dir        string
	stdout     bool
	open       bool
	timestamps bool
}

func newExportCommand(g *globalOptions) *cobra.Command {
	opts := &exportOptions{}
	cmd := &cobra.Command{
		Use:   "export [title|number]",
		Short: "Write a saved chat to a file",
		Long: `Render a saved chat as markdown, JSON or standalone HTML.

Without an argument the current chat is exported. The file is written to
--output, or under --dir with a name derived from the title.`,
		Example: `  ravenx export 1
  ravenx export "Plan my week" --format html --open
  ravenx export --format json --stdout | jq .`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				return exactArgs(1)(cmd, args)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(a *app) error {
				return runExport(cmd, a, opts, args)
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.format, "format", "f", export.FormatMarkdown, "md, json or html")
	flags.StringVarP(&opts.output, "output", "o", "", "file to write")
	flags.StringVar(&opts.dir, "dir", ".", "directory for the generated file name")
	flags.BoolVar(&opts.stdout, "stdout", false, "print instead of writing a file")
	flags.BoolVar(&opts.open, "open", false, "open the file afterwards")
	flags.BoolVar(&opts.timestamps, "timestamps", true, "include message times")
	return cmd
}

func runExport(cmd *cobra.Command, a *app, opts *exportOptions, args []string) error {
	var (
		title string
		t     *model.Transcript
		err   error
	)
	if len(args) == 1 {
		title, t, err = loadChat(a.hist, args[0])
	} else {
		title = "Current chat"
		t, err = a.hist.LoadCurrent()
	}
	if err != nil {
		return err
	}

	chat := export.NewChat(title, t)
	if len(chat.Messages) == 0 {
		return NewCommandError("export", "render", fmt.Sprintf("%q has no messages", title), export.ErrEmptyChat)
	}

	eo := export.DefaultOptions()
	eo.OutputDir = opts.dir
	eo.OpenAfterExport = opts.open
	eo.IncludeTimestamps = opts.timestamps
	if theme, err := a.hist.Theme(); err == nil && theme == history.ThemeLight {
		eo.Theme = "light"
	}

	exporter, err := export.ForFormat(opts.format, eo)
	if err != nil {
		if errors.Is(err, export.ErrUnknownFormat) {
			return &UsageError{Field: "format", Value: opts.format, Reason: "unknown format", Example: "--format " + strings.Join(export.Formats(), "|")}
		}
		return err
	}

	switch {
	case opts.stdout:
		content, err := exporter.Export(chat)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(content)
		return err

	case opts.output != "":
		if err := export.WriteFile(chat, exporter, opts.output); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("[OK]")+" Exported to "+opts.output)
		return nil

	default:
		path, err := export.ToFile(chat, exporter, eo)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("[OK]")+" Exported to "+path)
		return nil
	}
}
