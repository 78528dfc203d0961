// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// isolate points HOME at a temp dir and clears the override variables.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	for _, env := range []string{
		"GEMINI_API_KEY", "GOOGLE_API_KEY", "RAVENX_BACKEND", "RAVENX_MODEL",
		"RAVENX_PROXY_URL", "RAVENX_PROXY_TOKEN", "RAVENX_STORE", "RAVENX_DATA_DIR",
		"RAVENX_SERVER_ADDR", "RAVENX_SERVER_TOKEN", "RAVENX_LOG_LEVEL", "RAVENX_THEME",
	} {
		t.Setenv(env, "")
	}
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// =============================================================================
// GLOBAL
// =============================================================================

// TestConfig_ConcurrentAccess tests that Global() and SetGlobal() can be
// called concurrently. Run with: go test -race ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := Default()
			c.Responder.Model = "test-model"
			SetGlobal(c)
		}()
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}

func TestConfig_ConcurrentReload(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()
	_ = Global()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := ReloadGlobal(); err != nil {
				t.Errorf("ReloadGlobal() error = %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			_ = Global()
		}()
	}
	wg.Wait()
}

func TestConfig_SetGlobalOverwrites(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	first := Default()
	first.Responder.Model = "first"
	SetGlobal(first)
	if got := Global().Responder.Model; got != "first" {
		t.Errorf("Global().Responder.Model = %q, want %q", got, "first")
	}

	second := Default()
	second.Responder.Model = "second"
	SetGlobal(second)
	if got := Global().Responder.Model; got != "second" {
		t.Errorf("Global().Responder.Model = %q, want %q", got, "second")
	}
}

// =============================================================================
// DEFAULTS AND LOADING
// =============================================================================

func TestConfig_Default(t *testing.T) {
	cfg := Default()

	if cfg.Responder.Backend != "gemini" {
		t.Errorf("Responder.Backend = %q, want %q", cfg.Responder.Backend, "gemini")
	}
	if cfg.Chat.Latency.Duration != 500*time.Millisecond {
		t.Errorf("Chat.Latency = %v, want 500ms", cfg.Chat.Latency)
	}
	if cfg.Chat.RevealInterval.Duration != 75*time.Millisecond {
		t.Errorf("Chat.RevealInterval = %v, want 75ms", cfg.Chat.RevealInterval)
	}
	if cfg.Server.Addr != "127.0.0.1:5000" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.SessionTTL.Duration != 24*time.Hour || cfg.Server.CleanupEvery != 10 {
		t.Errorf("Server session settings = %v/%d, want 24h/10", cfg.Server.SessionTTL, cfg.Server.CleanupEvery)
	}
	if cfg.Server.MaxOutputTokens != 8192 {
		t.Errorf("Server.MaxOutputTokens = %d, want 8192", cfg.Server.MaxOutputTokens)
	}
	if !strings.HasPrefix(cfg.Server.SystemPrompt, "You're RavenIV") {
		t.Errorf("Server.SystemPrompt = %q", cfg.Server.SystemPrompt)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestConfig_LoadWithoutFiles(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source != "" {
		t.Errorf("Source = %q, want empty", cfg.Source)
	}
	if cfg.Store.Backend != "file" {
		t.Errorf("Store.Backend = %q, want file", cfg.Store.Backend)
	}
}

func TestConfig_LoadTOML(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, ".ravenx", "config.toml")
	writeFile(t, path, `
[responder]
backend = "proxy"
proxy_url = "http://localhost:5000"

[chat]
latency = "0s"
reveal_interval = "10ms"

[store]
backend = "sqlite"

[server]
session_ttl = "1h"
allowed_origins = ["https://example.com"]
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source != path {
		t.Errorf("Source = %q, want %q", cfg.Source, path)
	}
	if cfg.Responder.Backend != "proxy" || cfg.Responder.ProxyURL != "http://localhost:5000" {
		t.Errorf("Responder = %+v", cfg.Responder)
	}
	if cfg.Chat.Latency.Duration != 0 || cfg.Chat.RevealInterval.Duration != 10*time.Millisecond {
		t.Errorf("Chat = %+v", cfg.Chat)
	}
	if cfg.Store.Backend != "sqlite" {
		t.Errorf("Store.Backend = %q, want sqlite", cfg.Store.Backend)
	}
	if cfg.Server.SessionTTL.Duration != time.Hour {
		t.Errorf("Server.SessionTTL = %v, want 1h", cfg.Server.SessionTTL)
	}
	// Unset keys keep their defaults.
	if cfg.Responder.Model != "gemini-1.5-pro" {
		t.Errorf("Responder.Model = %q, want default", cfg.Responder.Model)
	}
	if len(cfg.Server.AllowedOrigins) != 1 {
		t.Errorf("Server.AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config mode = %o, want 600", perm)
	}
}

func TestConfig_LoadJSON(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, ".ravenx", "config.json")
	writeFile(t, path, `{"ui": {"theme": "light"}, "log": {"level": "debug"}}`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.UI.Theme != "light" || cfg.Log.Level != "debug" {
		t.Errorf("UI.Theme/Log.Level = %q/%q", cfg.UI.Theme, cfg.Log.Level)
	}
}

func TestConfig_LoadInvalid(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, ".ravenx", "config.toml"), "[store]\nbackend = \"redis\"\n")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should reject an unknown store backend")
	}
	var verrs ValidateErrors
	if !errors.As(err, &verrs) || verrs[0].Field != "store.backend" {
		t.Errorf("Load() error = %v, want store.backend validation error", err)
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("GOOGLE_API_KEY", "google-key")
	t.Setenv("RAVENX_MODEL", "gemini-2.0-flash")
	t.Setenv("RAVENX_STORE", "memory")
	t.Setenv("RAVENX_THEME", "light")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Responder.APIKey != "google-key" {
		t.Errorf("APIKey = %q, want google-key", cfg.Responder.APIKey)
	}
	if cfg.Responder.Model != "gemini-2.0-flash" || cfg.Store.Backend != "memory" || cfg.UI.Theme != "light" {
		t.Errorf("overrides not applied: %+v", cfg)
	}

	t.Setenv("GEMINI_API_KEY", "gemini-key")
	cfg.ApplyEnvOverrides()
	if cfg.Responder.APIKey != "gemini-key" {
		t.Errorf("GEMINI_API_KEY should win, got %q", cfg.Responder.APIKey)
	}
}

func TestConfig_LoadDotEnv(t *testing.T) {
	home := isolate(t)
	os.Unsetenv("RAVENX_MODEL")
	t.Cleanup(func() { os.Unsetenv("RAVENX_MODEL") })
	writeFile(t, filepath.Join(home, ".ravenx", ".env"), "RAVENX_MODEL=from-dotenv\n")

	if err := LoadDotEnv(); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("RAVENX_MODEL"); got != "from-dotenv" {
		t.Errorf("RAVENX_MODEL = %q, want from-dotenv", got)
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"valid default", func(c *Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Responder.Backend = "openai" }, "responder.backend"},
		{"proxy without url", func(c *Config) { c.Responder.Backend = "proxy" }, "responder.proxy_url"},
		{"bad proxy url", func(c *Config) {
			c.Responder.Backend = "proxy"
			c.Responder.ProxyURL = "localhost"
		}, "responder.proxy_url"},
		{"bad base url", func(c *Config) { c.Responder.BaseURL = "ftp://x" }, "responder.base_url"},
		{"negative latency", func(c *Config) { c.Chat.Latency = D(-time.Second) }, "chat.latency"},
		{"unknown store", func(c *Config) { c.Store.Backend = "redis" }, "store.backend"},
		{"bad clear scope", func(c *Config) { c.Store.ClearScope = "some" }, "store.clear_scope"},
		{"zero burst", func(c *Config) { c.Server.RateBurst = 0 }, "server.rate_burst"},
		{"no cleanup", func(c *Config) { c.Server.CleanupEvery = 0 }, "server.cleanup_every"},
		{"hot temperature", func(c *Config) { c.Server.Temperature = 3 }, "server.temperature"},
		{"bad top_p", func(c *Config) { c.Server.TopP = 1.5 }, "server.top_p"},
		{"bad theme", func(c *Config) { c.UI.Theme = "blue" }, "ui.theme"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()

			if tt.field == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			var verrs ValidateErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("Validate() = %v, want ValidateErrors", err)
			}
			found := false
			for _, e := range verrs {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("Validate() = %v, want an error on %s", err, tt.field)
			}
		})
	}
}

// =============================================================================
// GET/SET, CLONE, STRING
// =============================================================================

func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	if v, err := cfg.Get("server.addr"); err != nil || v != "127.0.0.1:5000" {
		t.Errorf("Get(server.addr) = %v, %v", v, err)
	}
	if v, err := cfg.Get("chat.reveal_interval"); err != nil || v != "75ms" {
		t.Errorf("Get(chat.reveal_interval) = %v, %v", v, err)
	}

	sets := map[string]string{
		"responder.model":          "gemini-2.0-flash",
		"chat.latency":             "1s",
		"server.rate_burst":        "20",
		"server.temperature":       "0.5",
		"ui.markdown":              "false",
		"ui.suggestions":           "one, two,,three",
		"server.max_output_tokens": "1024",
	}
	for k, v := range sets {
		if err := cfg.Set(k, v); err != nil {
			t.Errorf("Set(%s, %s) error = %v", k, v, err)
		}
	}

	if cfg.Responder.Model != "gemini-2.0-flash" {
		t.Errorf("Responder.Model = %q", cfg.Responder.Model)
	}
	if cfg.Chat.Latency.Duration != time.Second {
		t.Errorf("Chat.Latency = %v, want 1s", cfg.Chat.Latency)
	}
	if cfg.Server.RateBurst != 20 || cfg.Server.Temperature != 0.5 || cfg.Server.MaxOutputTokens != 1024 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.UI.Markdown {
		t.Error("UI.Markdown should be false")
	}
	if got := strings.Join(cfg.UI.Suggestions, "|"); got != "one|two|three" {
		t.Errorf("UI.Suggestions = %q", got)
	}

	for _, key := range []string{"", "nope", "server.nope", "server.addr.x", "source", "chat.latency.duration"} {
		if err := cfg.Set(key, "x"); err == nil {
			t.Errorf("Set(%q) should fail", key)
		}
	}
	if err := cfg.Set("server.rate_burst", "many"); err == nil {
		t.Error("Set(server.rate_burst, many) should fail")
	}
}

func TestConfig_GetAllKeys(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		if _, err := cfg.Get(key); err != nil {
			t.Errorf("Get(%s) error = %v", key, err)
		}
	}
}

func TestConfig_Clone(t *testing.T) {
	original := Default()
	clone := original.Clone()

	clone.Responder.Model = "changed"
	clone.UI.Suggestions[0] = "changed"
	clone.Server.AllowedOrigins = append(clone.Server.AllowedOrigins, "x")

	if original.Responder.Model == "changed" {
		t.Error("Clone shares Responder")
	}
	if original.UI.Suggestions[0] == "changed" {
		t.Error("Clone shares UI.Suggestions")
	}
	if len(original.Server.AllowedOrigins) != 2 {
		t.Error("Clone shares Server.AllowedOrigins")
	}
}

func TestConfig_StringRedacts(t *testing.T) {
	cfg := Default()
	cfg.Responder.APIKey = "AIza-secret"
	cfg.Server.Token = "bearer-secret"

	out := cfg.String()
	if strings.Contains(out, "AIza-secret") || strings.Contains(out, "bearer-secret") {
		t.Errorf("String() leaks secrets:\n%s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Errorf("String() = %q, want redaction marker", out)
	}
	if cfg.Responder.APIKey != "AIza-secret" {
		t.Error("String() modified the config")
	}
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	for _, name := range []string{"config.toml", "config.json"} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.Source = filepath.Join(dir, "nested", name)
			cfg.Responder.Model = "saved-model"
			cfg.Server.RateLimit = 5

			if err := Save(cfg); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			info, err := os.Stat(cfg.Source)
			if err != nil {
				t.Fatal(err)
			}
			if perm := info.Mode().Perm(); perm != 0600 {
				t.Errorf("mode = %o, want 600", perm)
			}

			loaded, err := LoadFromPath(cfg.Source)
			if err != nil {
				t.Fatalf("LoadFromPath() error = %v", err)
			}
			if loaded.Responder.Model != "saved-model" || loaded.Server.RateLimit != 5 {
				t.Errorf("loaded = %+v", loaded)
			}
			if loaded.Chat.RevealInterval != cfg.Chat.RevealInterval {
				t.Errorf("RevealInterval = %v, want %v", loaded.Chat.RevealInterval, cfg.Chat.RevealInterval)
			}
		})
	}
}

func TestConfig_DerivedPaths(t *testing.T) {
	home := isolate(t)
	cfg := Default()

	dir, err := cfg.DataDir()
	if err != nil || dir != filepath.Join(home, ".ravenx", "data") {
		t.Errorf("DataDir() = %q, %v", dir, err)
	}
	logFile, err := cfg.LogFile()
	if err != nil || logFile != filepath.Join(home, ".ravenx", "ravenx.log") {
		t.Errorf("LogFile() = %q, %v", logFile, err)
	}

	cfg.Store.Dir = "/srv/ravenx"
	opts, err := cfg.StoreOptions()
	if err != nil || opts.Dir != "/srv/ravenx" || opts.Backend != "file" {
		t.Errorf("StoreOptions() = %+v, %v", opts, err)
	}

	rc := cfg.ResponderConfig()
	if rc.Model != cfg.Responder.Model || rc.Backend != "gemini" {
		t.Errorf("ResponderConfig() = %+v", rc)
	}
}

// =============================================================================
// WATCH
// =============================================================================

func TestConfig_Watch(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[ui]\ntheme = \"dark\"\n")

	changes := make(chan *Config, 8)
	w := NewWatcher(path, zerolog.Nop(), func(c *Config) {
		select {
		case changes <- c:
		default:
		}
	})
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Rewrite until the watcher is up and reports the change.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	var got *Config
	for got == nil {
		select {
		case got = <-changes:
		case <-tick.C:
			writeFile(t, path, "[ui]\ntheme = \"light\"\n")
		case <-deadline:
			t.Fatal("watcher never reported the change")
		}
	}
	if got.UI.Theme != "light" {
		t.Errorf("reloaded theme = %q, want light", got.UI.Theme)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestConfig_WatchSkipsInvalid(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[ui]\ntheme = \"dark\"\n")

	called := false
	w := NewWatcher(path, zerolog.Nop(), func(*Config) { called = true })
	writeFile(t, path, "[ui]\ntheme = \"purple\"\n")
	w.reload()
	if called {
		t.Error("onChange called for an invalid config")
	}
}
