// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package kv provides the persistent string key-value store behind chat
// history.
//
// The store has no transactional guarantees: each Set or Delete stands on its
// own, as with a browser's local storage. Several backends implement the same
// Store interface.
//
// # Backends
//
//   - file: one JSON document, replaced atomically on every write (default)
//   - pebble: an LSM key-value database directory
//   - sqlite: a single kv table in a SQLite file (pure Go driver)
//   - memory: a map, for tests and ephemeral sessions
//
// # Usage
//
//	store, err := kv.Open(kv.Options{Backend: kv.BackendFile, Dir: dataDir})
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//	err = store.Set("themeColor", "light_mode")
package kv
