// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for ravenx.
//
// Supports both TOML and JSON configuration formats, with defaults,
// .env files, environment variable overrides, validation and hot reload.
//
// # Key Types
//
//   - Config: main configuration structure
//   - ResponderConfig: which backend answers prompts, and its credentials
//   - ChatConfig: latency and reveal timings
//   - StoreConfig: persistent store backend and location
//   - ServerConfig: the proxy server, its limits and generation settings
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (RAVENX_*, GEMINI_API_KEY), including ones set
//     by .env files in the working directory and ~/.ravenx
//   - ~/.ravenx/config.toml
//   - ~/.ravenx/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	r, err := responder.New(ctx, cfg.ResponderConfig())
package config
