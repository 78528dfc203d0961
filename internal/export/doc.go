// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders saved chats to Markdown, JSON and standalone HTML.
//
// # Key Types
//
//   - Chat: a titled transcript ready for export
//   - Exporter: one output format
//   - Options: metadata, timestamps, theme and output directory
//
// # Usage
//
//	chat := export.NewChat("Chat 1", transcript)
//	exp, err := export.ForFormat("html", nil)
//	if err != nil {
//	    return err
//	}
//	path, err := export.ToFile(chat, exp, nil)
//
// HTML bodies are converted from Markdown with goldmark, sanitized with
// bluemonday, and fenced code blocks are highlighted with chroma.
package export
