// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the ravenx proxy: an HTTP API that keeps the
// Gemini API key and multi-turn chat sessions on the server, so clients
// only send a session ID and a message.
//
// # Endpoints
//
//   - GET  /api/test          - Liveness check
//   - POST /api/chat          - Send a message in a session
//   - POST /api/reset         - Forget a session
//   - GET  /api/session/info  - One session, or all of them
//   - GET  /api/ws            - Websocket; one reply frame per request frame
//
// # Middleware
//
//   - Request logging (zerolog) with request IDs
//   - Panic recovery
//   - Security headers
//   - CORS allow-list
//   - Per-IP token bucket rate limiting (golang.org/x/time/rate)
//   - Optional bearer token with constant-time comparison
//
// # Key Types
//
//   - Server: router, middleware and lifecycle
//   - Registry: sessions with idle expiry
//   - Upstream: starts conversations; GenAIUpstream is the real one
//
// # Usage
//
//	up, err := server.NewGenAIUpstream(ctx, cfg.ResponderConfig())
//	if err != nil {
//		return err
//	}
//	srv := server.New(server.SettingsFromConfig(cfg), up, server.WithLogger(log))
//	return srv.Run(ctx)
package server
