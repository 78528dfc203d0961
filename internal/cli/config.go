// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/whiterven/ravenx/internal/config"
)

func newConfigCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the configuration",
		Example: `  ravenx config show
  ravenx config get responder.model
  ravenx config set ui.theme light
  ravenx config set server.allowed_origins "http://localhost:3000,https://chat.example.com"`,
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (secrets redacted)",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), cfg.String())
			return nil
		},
	}

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, exists, err := configFilePath(g)
			if err != nil {
				return err
			}
			if !exists {
				p += DimStyle.Render(" (not created yet)")
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	}

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Print one value (dot notation)",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			v, err := cfg.Redacted().Get(args[0])
			if err != nil {
				return unknownKey(args[0], err)
			}
			if list, ok := v.([]string); ok {
				v = strings.Join(list, ",")
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one value in the config file",
		Long: `Change one value in the config file.

Only the file is read and written: environment variables and flags are not
saved. Lists are comma separated; durations look like "500ms" or "24h".`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setConfigValue(cmd, g, args[0], args[1])
		},
	}

	keys := &cobra.Command{
		Use:   "keys",
		Short: "List every key",
		Args:  noArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, k := range config.GetAllKeys() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
		},
	}

	cmd.AddCommand(show, path, get, set, keys)
	return cmd
}

// configFilePath returns --config, else the TOML file, else the JSON file,
// else the default TOML path; exists reports whether it is on disk.
func configFilePath(g *globalOptions) (path string, exists bool, err error) {
	if g.configPath != "" {
		_, statErr := os.Stat(g.configPath)
		return g.configPath, statErr == nil, nil
	}
	tomlPath, err := config.ConfigPathTOML()
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath, true, nil
	}
	jsonPath, err := config.ConfigPathJSON()
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(jsonPath); err == nil {
		return jsonPath, true, nil
	}
	return tomlPath, false, nil
}

func setConfigValue(cmd *cobra.Command, g *globalOptions, key, value string) error {
	path, exists, err := configFilePath(g)
	if err != nil {
		return err
	}

	cfg := config.Default()
	if exists {
		if strings.HasSuffix(path, ".json") {
			err = config.LoadJSON(cfg, path)
		} else {
			err = config.LoadTOML(cfg, path)
		}
		if err != nil {
			return err
		}
	}
	cfg.Source = path

	if err := cfg.Set(key, value); err != nil {
		return unknownKey(key, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := config.Save(cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s updated in %s\n", SuccessStyle.Render("[OK]"), key, path)
	return nil
}

func unknownKey(key string, err error) error {
	return &UsageError{
		Field:   "key",
		Value:   key,
		Reason:  err.Error(),
		Example: "ravenx config keys",
	}
}
