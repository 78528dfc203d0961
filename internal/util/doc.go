// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared by the store, history and UI code.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file replacement (temp file, fsync, rename)
//   - FirstRunes: rune-safe prefix used for chat titles
//   - TruncateWidth: display-width truncation for terminal cells
//   - SingleLine: collapses line breaks for one-line labels
//
// # Usage
//
//	err := util.AtomicWriteFile(path, data, 0600)
//	title := util.FirstRunes(pending, 30)
package util
