// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package responder turns a prompt into a model response.
//
// Every backend sends the prompt as a single-turn request and returns plain
// text with bold markers removed. Failures carry the server's message in a
// *Error so the chat view can show it verbatim.
//
// # Backends
//
//   - gemini: direct REST call to the generateContent endpoint
//   - genai: the same call through the google.golang.org/genai SDK
//   - proxy: POST /api/chat against a ravenx proxy that holds the API key
//
// There is no retry and no streaming.
package responder
