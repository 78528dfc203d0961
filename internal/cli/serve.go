// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/whiterven/ravenx/internal/config"
	"github.com/whiterven/ravenx/internal/logging"
	"github.com/whiterven/ravenx/internal/server"
)

type serveOptions struct {
	addr    string
	noWatch bool
}

func newServeCommand(g *globalOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API proxy that holds the Gemini key",
		Long: `Run the HTTP and websocket proxy in front of Gemini.

Clients reach it with --backend proxy and responder.proxy_url. The API key
stays on the server. Edits to the config file are picked up without a
restart (system prompt, generation settings, rate limits, origins, token).`,
		Example: `  ravenx serve
  ravenx serve --addr 127.0.0.1:5000
  GEMINI_API_KEY=... ravenx serve --model gemini-1.5-flash`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, g, opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default server.addr)")
	cmd.Flags().BoolVar(&opts.noWatch, "no-watch", false, "do not reload the config file on change")
	return cmd
}

func runServe(cmd *cobra.Command, g *globalOptions, opts *serveOptions) error {
	cfg, err := g.loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}

	logger, logs, err := logging.New(logging.Options{
		Level:   cfg.Log.Level,
		Writer:  cmd.ErrOrStderr(),
		Console: true,
	})
	if err != nil {
		return err
	}
	defer logs.Close()
	logging.Install(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	up, err := server.NewGenAIUpstream(ctx, cfg.ResponderConfig())
	if err != nil {
		return err
	}
	srv := server.New(server.SettingsFromConfig(cfg), up,
		server.WithLogger(logging.Component(logger, "server")),
	)

	if !opts.noWatch {
		if path := watchPath(cfg); path != "" {
			go watchConfig(ctx, g, opts, srv, path, logger)
		}
	}

	logger.Info().
		Str("version", Version).
		Str("model", cfg.Responder.Model).
		Bool("auth", cfg.Server.Token != "").
		Float64("rate_limit", cfg.Server.RateLimit).
		Msg("Starting proxy")
	return srv.Run(ctx)
}

// watchPath is the file the configuration came from, or the default TOML
// path so that a file created later is picked up.
func watchPath(cfg *config.Config) string {
	if cfg.Source != "" {
		return cfg.Source
	}
	path, err := config.ConfigPathTOML()
	if err != nil {
		return ""
	}
	return path
}

func watchConfig(ctx context.Context, g *globalOptions, opts *serveOptions, srv *server.Server, path string, log zerolog.Logger) {
	err := config.Watch(ctx, path, log, func(next *config.Config) {
		g.applyFlags(next)
		if opts.addr != "" {
			next.Server.Addr = opts.addr
		}
		if err := next.Validate(); err != nil {
			log.Warn().Err(err).Msg("Ignoring config change")
			return
		}
		config.SetGlobal(next)
		srv.Apply(server.SettingsFromConfig(next))
	})
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Config reload disabled")
	}
}
