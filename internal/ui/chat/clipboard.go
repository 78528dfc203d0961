// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/atotto/clipboard"
	"github.com/muesli/termenv"
)

// =============================================================================
// CLIPBOARD UTILITIES
// =============================================================================

// Clipboard copies text to the system clipboard. Without a clipboard tool
// (over SSH, in a bare container) it falls back to an OSC 52 sequence,
// which most terminal emulators forward to the local clipboard.
func Clipboard(text string) error {
	if !clipboard.Unsupported {
		if err := clipboard.WriteAll(text); err == nil {
			return nil
		}
	}
	termenv.Copy(text)
	return nil
}
