// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/whiterven/ravenx/internal/config"
	"github.com/whiterven/ravenx/internal/kv"
)

// Version information, set by main from build flags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// GLOBAL FLAGS
// =============================================================================

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	backend    string
	model      string
	store      string
	dataDir    string
	logLevel   string
	ephemeral  bool
}

func (o *globalOptions) bind(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&o.configPath, "config", "", "config file (default ~/.ravenx/config.toml)")
	flags.StringVar(&o.backend, "backend", "", "responder backend: gemini, genai or proxy")
	flags.StringVarP(&o.model, "model", "m", "", "model name")
	flags.StringVar(&o.store, "store", "", "store backend: file, pebble, sqlite or memory")
	flags.StringVar(&o.dataDir, "data-dir", "", "store directory (default ~/.ravenx/data)")
	flags.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.BoolVar(&o.ephemeral, "ephemeral", false, "keep nothing on disk (memory store, no log file)")
}

// loadConfig reads the configuration, then applies .env files and flags.
// Warnings go to warn.
func (o *globalOptions) loadConfig(warn io.Writer) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(warn, "%s %v\n", WarningStyle.Render("[!]"), err)
	}

	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFromPath(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	o.applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	config.SetGlobal(cfg)
	return cfg, nil
}

// applyFlags writes the flags that were given over cfg.
func (o *globalOptions) applyFlags(cfg *config.Config) {
	overrides := []struct {
		flag   string
		target *string
	}{
		{o.backend, &cfg.Responder.Backend},
		{o.model, &cfg.Responder.Model},
		{o.store, &cfg.Store.Backend},
		{o.dataDir, &cfg.Store.Dir},
		{o.logLevel, &cfg.Log.Level},
	}
	for _, ov := range overrides {
		if ov.flag != "" {
			*ov.target = ov.flag
		}
	}
	if o.ephemeral {
		cfg.Store.Backend = kv.BackendMemory
	}
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCommand builds the ravenx command tree. Without a subcommand it
// starts a chat.
func NewRootCommand() *cobra.Command {
	g := &globalOptions{}
	chatOpts := &chatOptions{}

	root := &cobra.Command{
		Use:   "ravenx",
		Short: "Chat with Gemini from the terminal",
		Long: `ravenx is a terminal chat client for Gemini.

Run it without a command to start chatting. Use "ravenx serve" to run the
API proxy that keeps the key on a server, and point clients at it with
--backend proxy.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, g, chatOpts)
		},
	}
	root.SetVersionTemplate(versionString() + "\n")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Field: "flag", Reason: err.Error()}
	})
	g.bind(root)
	chatOpts.bind(root)

	root.AddCommand(
		newChatCommand(g),
		newServeCommand(g),
		newAskCommand(g),
		newHistoryCommand(g),
		newExportCommand(g),
		newConfigCommand(g),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context) int {
	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		DisplayError(os.Stderr, err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// =============================================================================
// ARGUMENT VALIDATION
// =============================================================================

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return &UsageError{
			Field:   "argument",
			Value:   args[0],
			Reason:  fmt.Sprintf("%s takes no arguments", cmd.CommandPath()),
			Example: cmd.Example,
		}
	}
	return nil
}

// exactArgs is cobra.ExactArgs returning a UsageError.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return &UsageError{
				Field:   "arguments",
				Reason:  fmt.Sprintf("%s takes %d argument(s), got %d", cmd.CommandPath(), n, len(args)),
				Example: cmd.Example,
			}
		}
		return nil
	}
}

// minArgs is cobra.MinimumNArgs returning a UsageError.
func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return &UsageError{
				Field:   "arguments",
				Reason:  fmt.Sprintf("%s needs at least %d argument(s)", cmd.CommandPath(), n),
				Example: cmd.Example,
			}
		}
		return nil
	}
}
