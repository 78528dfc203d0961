// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// =============================================================================
// HOT RELOAD
// =============================================================================

// DefaultWatchDebounce collapses the bursts of events editors produce when
// saving a file.
const DefaultWatchDebounce = 250 * time.Millisecond

// Watcher reloads a config file when it changes on disk.
type Watcher struct {
	path     string
	debounce time.Duration
	log      zerolog.Logger
	onChange func(*Config)
}

// NewWatcher creates a watcher for path. onChange receives every config that
// loads and validates; broken edits are logged and skipped.
func NewWatcher(path string, log zerolog.Logger, onChange func(*Config)) *Watcher {
	return &Watcher{
		path:     path,
		debounce: DefaultWatchDebounce,
		log:      log.With().Str("component", "config").Logger(),
		onChange: onChange,
	}
}

// SetDebounce overrides DefaultWatchDebounce.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Run watches until ctx is done. The parent directory is watched rather than
// the file, so atomic rename-over saves are seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.log.Debug().Str("path", w.path).Msg("Watching config")

	name := filepath.Base(w.path)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("Config watcher error")

		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadFromPath(w.path)
	if err != nil {
		w.log.Warn().Err(err).Str("path", w.path).Msg("Ignoring config change")
		return
	}
	w.log.Info().Str("path", w.path).Msg("Config reloaded")
	if w.onChange != nil {
		w.onChange(cfg)
	}
}

// Watch is NewWatcher(path, log, onChange).Run(ctx).
func Watch(ctx context.Context, path string, log zerolog.Logger, onChange func(*Config)) error {
	return NewWatcher(path, log, onChange).Run(ctx)
}
