// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package kv

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Store is a string key-value store.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(key string) (string, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
	// Keys returns every key in ascending order.
	Keys() ([]string, error)
	// Clear removes every key.
	Clear() error
	// Close releases the backend. Further calls return ErrClosed.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendPebble = "pebble"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// File names used inside Options.Dir.
const (
	fileStoreName   = "store.json"
	pebbleStoreName = "store.pebble"
	sqliteStoreName = "store.db"
)

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("kv: store is closed")

	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("kv: unknown backend")
)

// Options selects and locates a backend.
type Options struct {
	Backend string
	Dir     string
}

// Open creates the store described by opts. An empty backend means file.
func Open(opts Options) (Store, error) {
	backend := opts.Backend
	if backend == "" {
		backend = BackendFile
	}
	if backend != BackendMemory && opts.Dir == "" {
		return nil, fmt.Errorf("kv: %s backend needs a data directory", backend)
	}

	switch backend {
	case BackendFile:
		return OpenFile(filepath.Join(opts.Dir, fileStoreName))
	case BackendPebble:
		return OpenPebble(filepath.Join(opts.Dir, pebbleStoreName))
	case BackendSQLite:
		return OpenSQLite(filepath.Join(opts.Dir, sqliteStoreName))
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// Backends lists the names Open accepts.
func Backends() []string {
	return []string{BackendFile, BackendPebble, BackendSQLite, BackendMemory}
}
