// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/whiterven/ravenx/internal/config"
	"github.com/whiterven/ravenx/internal/history"
	"github.com/whiterven/ravenx/internal/kv"
	"github.com/whiterven/ravenx/internal/logging"
	"github.com/whiterven/ravenx/internal/responder"
	"github.com/whiterven/ravenx/internal/session"
)

// app is the client side wiring shared by chat, ask, history and export:
// a file logger, the store and the history manager on top of it.
type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	logs   io.Closer
	store  kv.Store
	hist   *history.Manager
	closed bool
}

// openApp opens the logger and the store described by cfg. A memory store
// also disables the log file.
func openApp(cfg *config.Config) (*app, error) {
	logOpts := logging.Options{Level: cfg.Log.Level}
	if cfg.Store.Backend == kv.BackendMemory {
		logOpts.Writer = io.Discard
	} else {
		file, err := cfg.LogFile()
		if err != nil {
			return nil, err
		}
		logOpts.File = file
	}
	logger, logs, err := logging.New(logOpts)
	if err != nil {
		return nil, err
	}
	logging.Install(logger)

	storeOpts, err := cfg.StoreOptions()
	if err != nil {
		logs.Close()
		return nil, err
	}
	store, err := kv.Open(storeOpts)
	if err != nil {
		logs.Close()
		return nil, fmt.Errorf("open %s store: %w", storeOpts.Backend, err)
	}
	logger.Debug().Str("backend", storeOpts.Backend).Str("dir", storeOpts.Dir).Msg("Store opened")

	return &app{
		cfg:   cfg,
		log:   logger,
		logs:  logs,
		store: store,
		hist: history.New(store,
			history.WithClearScope(cfg.Store.ClearScope),
			history.WithLogger(logging.Component(logger, "history")),
		),
	}, nil
}

// newResponder builds the configured responder.
func (a *app) newResponder(ctx context.Context) (responder.Responder, error) {
	rc := a.cfg.ResponderConfig()
	rc.Logger = logging.Component(a.log, "responder")
	r, err := responder.New(ctx, rc)
	if errors.Is(err, responder.ErrNotConfigured) {
		return nil, fmt.Errorf("%w (or use --backend proxy with responder.proxy_url)", err)
	}
	return r, err
}

// newController creates the chat controller and restores the saved chat.
func (a *app) newController(ctx context.Context, r responder.Responder) (*session.Controller, error) {
	ctrl := session.New(r, a.hist, sessionConfig(a.cfg),
		session.WithLogger(a.log),
		session.WithContext(ctx),
	)
	if err := ctrl.Restore(); err != nil {
		return nil, fmt.Errorf("restore chat: %w", err)
	}
	return ctrl, nil
}

// Close releases the store and the log file.
func (a *app) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	err := a.store.Close()
	if cerr := a.logs.Close(); err == nil {
		err = cerr
	}
	return err
}

// sessionConfig maps [chat] to controller timings. In the config file zero
// means no delay; the controller reads zero as its default.
func sessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		Latency:        noDelay(cfg.Chat.Latency.Duration),
		RevealInterval: noDelay(cfg.Chat.RevealInterval.Duration),
		Theme:          cfg.UI.Theme,
	}
}

func noDelay(d time.Duration) time.Duration {
	if d <= 0 {
		return -1
	}
	return d
}
