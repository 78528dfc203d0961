// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the ravenx command line.
//
// Commands:
//
//	ravenx [chat] [--plain]       Interactive chat (TUI, or line mode)
//	ravenx serve                  Run the API proxy
//	ravenx ask "<prompt>"         Send one prompt and print the answer
//	ravenx history list           List saved chats
//	ravenx history show <title>   Print a saved chat
//	ravenx history clear          Delete saved chats
//	ravenx export <title>         Write a saved chat to a file
//	ravenx config show|path       Inspect the configuration
//	ravenx config get|set         Read or change one key
//	ravenx version                Print version information
//
// Global flags:
//
//	--config PATH     Config file (default ~/.ravenx/config.toml)
//	--backend NAME    Responder backend: gemini, genai or proxy
//	--model NAME      Model name
//	--store NAME      Store backend: file, pebble, sqlite or memory
//	--data-dir DIR    Store directory
//	--log-level LVL   debug, info, warn or error
//	--ephemeral       Keep nothing on disk (memory store)
//
// Exit codes follow errors.go: 2 for usage errors, 3 for configuration
// errors, 5 for network errors and 7 for unknown chats.
package cli
