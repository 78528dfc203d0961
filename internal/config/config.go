// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/whiterven/ravenx/internal/history"
	"github.com/whiterven/ravenx/internal/kv"
	"github.com/whiterven/ravenx/internal/responder"
	"github.com/whiterven/ravenx/internal/util"
)

// =============================================================================
// DURATION
// =============================================================================

// Duration is a time.Duration written as a string ("500ms", "24h") in both
// TOML and JSON.
type Duration struct {
	time.Duration
}

// D wraps d.
func D(d time.Duration) Duration {
	return Duration{Duration: d}
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete ravenx configuration.
type Config struct {
	Responder ResponderConfig `toml:"responder" json:"responder"`
	Chat      ChatConfig      `toml:"chat" json:"chat"`
	Store     StoreConfig     `toml:"store" json:"store"`
	Server    ServerConfig    `toml:"server" json:"server"`
	UI        UIConfig        `toml:"ui" json:"ui"`
	Log       LogConfig       `toml:"log" json:"log"`

	// Source is the file the configuration was read from, if any.
	Source string `toml:"-" json:"-"`
}

// ResponderConfig selects and configures the Remote Responder.
type ResponderConfig struct {
	// Backend is "gemini" (REST), "genai" (SDK) or "proxy" (ravenx serve).
	Backend string `toml:"backend" json:"backend"`
	// APIKey is the Gemini API key. Not needed for the proxy backend.
	APIKey string `toml:"api_key" json:"api_key"`
	Model  string `toml:"model" json:"model"`
	// BaseURL overrides the REST endpoint root.
	BaseURL string `toml:"base_url" json:"base_url"`
	// ProxyURL is the root of a ravenx serve instance.
	ProxyURL string `toml:"proxy_url" json:"proxy_url"`
	// ProxyToken is sent as a bearer token to the proxy.
	ProxyToken string `toml:"proxy_token" json:"proxy_token"`
	// Timeout bounds one request; 0 means no timeout.
	Timeout Duration `toml:"timeout" json:"timeout"`
}

// ChatConfig holds the chat timings. Zero disables a delay.
type ChatConfig struct {
	Latency        Duration `toml:"latency" json:"latency"`
	RevealInterval Duration `toml:"reveal_interval" json:"reveal_interval"`
}

// StoreConfig selects the persistent store.
type StoreConfig struct {
	// Backend is "file", "pebble", "sqlite" or "memory".
	Backend string `toml:"backend" json:"backend"`
	// Dir holds the store files. Empty means ~/.ravenx/data.
	Dir string `toml:"dir" json:"dir"`
	// ClearScope is "all" (wipe the store) or "chats" (keep the theme).
	ClearScope string `toml:"clear_scope" json:"clear_scope"`
}

// ServerConfig configures ravenx serve.
type ServerConfig struct {
	Addr string `toml:"addr" json:"addr"`
	// Token, when set, is required as a bearer token on /api routes.
	Token          string   `toml:"token" json:"token"`
	AllowedOrigins []string `toml:"allowed_origins" json:"allowed_origins"`

	// RateLimit is requests per second per client IP; 0 disables limiting.
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`
	RateBurst int     `toml:"rate_burst" json:"rate_burst"`

	SessionTTL   Duration `toml:"session_ttl" json:"session_ttl"`
	CleanupEvery int      `toml:"cleanup_every" json:"cleanup_every"`

	Temperature     float32 `toml:"temperature" json:"temperature"`
	TopP            float32 `toml:"top_p" json:"top_p"`
	TopK            float32 `toml:"top_k" json:"top_k"`
	MaxOutputTokens int32   `toml:"max_output_tokens" json:"max_output_tokens"`
	SystemPrompt    string  `toml:"system_prompt" json:"system_prompt"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	// Theme is used until the user toggles it: "dark" or "light".
	Theme string `toml:"theme" json:"theme"`
	// Markdown renders settled responses through glamour.
	Markdown bool `toml:"markdown" json:"markdown"`
	// Suggestions are offered as prompt starters on an empty chat.
	Suggestions []string `toml:"suggestions" json:"suggestions"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level" json:"level"`
	// File receives client logs. Empty means ~/.ravenx/ravenx.log.
	File string `toml:"file" json:"file"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// DefaultSystemPrompt is the proxy's system instruction.
const DefaultSystemPrompt = `You're RavenIV, a powerful and intelligent assistant designed to provide helpful, accurate, and engaging responses.
Remember to:
1. Always greet users by name if known
2. Maintain context throughout conversations
3. Provide detailed, well-structured responses
4. Ask clarifying questions when needed
5. Be factual and accurate while remaining engaging`

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Responder: ResponderConfig{
			Backend: responder.BackendGemini,
			Model:   responder.DefaultModel,
			BaseURL: responder.DefaultBaseURL,
		},
		Chat: ChatConfig{
			Latency:        D(500 * time.Millisecond),
			RevealInterval: D(75 * time.Millisecond),
		},
		Store: StoreConfig{
			Backend:    kv.BackendFile,
			ClearScope: history.ScopeAll,
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:5000",
			AllowedOrigins:  []string{"http://localhost:5000", "http://127.0.0.1:5000"},
			RateLimit:       2,
			RateBurst:       10,
			SessionTTL:      D(24 * time.Hour),
			CleanupEvery:    10,
			Temperature:     0.9,
			TopP:            0.95,
			TopK:            40,
			MaxOutputTokens: 8192,
			SystemPrompt:    DefaultSystemPrompt,
		},
		UI: UIConfig{
			Theme:    "dark",
			Markdown: true,
			Suggestions: []string{
				"Help me plan a weekend trip on a budget",
				"Explain how goroutines differ from threads",
				"Write a short poem about the night sky",
				"Suggest a healthy dinner I can cook in 20 minutes",
			},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the ravenx configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".ravenx"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// DataDir returns the store directory: Store.Dir, or ~/.ravenx/data.
func (c *Config) DataDir() (string, error) {
	if c.Store.Dir != "" {
		return c.Store.Dir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data"), nil
}

// LogFile returns Log.File, or ~/.ravenx/ravenx.log.
func (c *Config) LogFile() (string, error) {
	if c.Log.File != "" {
		return c.Log.File, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "ravenx.log"), nil
}

// ensureSecurePermissions forces config files to 0600; they may hold keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// LoadDotEnv loads .env from the working directory and from the config
// directory. Variables already set in the environment win.
func LoadDotEnv() error {
	paths := []string{".env"}
	if dir, err := ConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, ".env"))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	if tomlPath, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			return LoadFromPath(tomlPath)
		}
	}
	if jsonPath, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			return LoadFromPath(jsonPath)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	fillDefaults(cfg)
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	fillDefaults(cfg)
	return nil
}

// LoadFromPath loads a specific file over the defaults, applies environment
// overrides and validates the result.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}
	cfg.Source = path

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults restores values a file blanked out.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Responder.Backend == "" {
		cfg.Responder.Backend = defaults.Responder.Backend
	}
	if cfg.Responder.Model == "" {
		cfg.Responder.Model = defaults.Responder.Model
	}
	if cfg.Responder.BaseURL == "" {
		cfg.Responder.BaseURL = defaults.Responder.BaseURL
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = defaults.Store.Backend
	}
	if cfg.Store.ClearScope == "" {
		cfg.Store.ClearScope = defaults.Store.ClearScope
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaults.Server.Addr
	}
	if cfg.Server.SessionTTL.Duration == 0 {
		cfg.Server.SessionTTL = defaults.Server.SessionTTL
	}
	if cfg.Server.CleanupEvery == 0 {
		cfg.Server.CleanupEvery = defaults.Server.CleanupEvery
	}
	if cfg.Server.MaxOutputTokens == 0 {
		cfg.Server.MaxOutputTokens = defaults.Server.MaxOutputTokens
	}
	if strings.TrimSpace(cfg.Server.SystemPrompt) == "" {
		cfg.Server.SystemPrompt = defaults.Server.SystemPrompt
	}

	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to Source, or to the default TOML file.
func Save(cfg *Config) error {
	path := cfg.Source
	if path == "" {
		p, err := ConfigPathTOML()
		if err != nil {
			return err
		}
		path = p
	}
	if strings.HasSuffix(path, ".json") {
		return SaveJSON(cfg, path)
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file with mode 0600.
func SaveTOML(cfg *Config, path string) error {
	var sb strings.Builder
	sb.WriteString("# ravenx configuration file\n")
	sb.WriteString("# Generated by ravenx - edit with care\n\n")

	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, []byte(sb.String()), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON saves the configuration to a JSON file with mode 0600.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Validate validates the configuration and returns ValidateErrors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Responder
	if !oneOf(c.Responder.Backend, responder.Backends()) {
		add("responder.backend", "invalid backend '%s', must be one of: %s",
			c.Responder.Backend, strings.Join(responder.Backends(), ", "))
	}
	if c.Responder.BaseURL != "" && !validURL(c.Responder.BaseURL) {
		add("responder.base_url", "invalid URL '%s'", c.Responder.BaseURL)
	}
	if c.Responder.Backend == responder.BackendProxy {
		if c.Responder.ProxyURL == "" {
			add("responder.proxy_url", "required when backend is proxy")
		} else if !validURL(c.Responder.ProxyURL) {
			add("responder.proxy_url", "invalid URL '%s'", c.Responder.ProxyURL)
		}
	}
	if c.Responder.Timeout.Duration < 0 {
		add("responder.timeout", "must not be negative")
	}

	// Chat
	if c.Chat.Latency.Duration < 0 {
		add("chat.latency", "must not be negative")
	}
	if c.Chat.RevealInterval.Duration < 0 {
		add("chat.reveal_interval", "must not be negative")
	}

	// Store
	if !oneOf(c.Store.Backend, kv.Backends()) {
		add("store.backend", "invalid backend '%s', must be one of: %s",
			c.Store.Backend, strings.Join(kv.Backends(), ", "))
	}
	if !oneOf(c.Store.ClearScope, []string{history.ScopeAll, history.ScopeChats}) {
		add("store.clear_scope", "invalid scope '%s', must be one of: all, chats", c.Store.ClearScope)
	}

	// Server
	if c.Server.Addr == "" {
		add("server.addr", "must not be empty")
	}
	if c.Server.RateLimit < 0 {
		add("server.rate_limit", "must not be negative")
	}
	if c.Server.RateBurst < 0 {
		add("server.rate_burst", "must not be negative")
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst == 0 {
		add("server.rate_burst", "must be at least 1 when rate_limit is set")
	}
	if c.Server.SessionTTL.Duration <= 0 {
		add("server.session_ttl", "must be positive")
	}
	if c.Server.CleanupEvery < 1 {
		add("server.cleanup_every", "must be at least 1")
	}
	if c.Server.Temperature < 0 || c.Server.Temperature > 2 {
		add("server.temperature", "must be between 0 and 2")
	}
	if c.Server.TopP < 0 || c.Server.TopP > 1 {
		add("server.top_p", "must be between 0 and 1")
	}
	if c.Server.TopK < 0 {
		add("server.top_k", "must not be negative")
	}
	if c.Server.MaxOutputTokens <= 0 {
		add("server.max_output_tokens", "must be positive")
	}

	// UI
	if !oneOf(c.UI.Theme, []string{"dark", "light"}) {
		add("ui.theme", "invalid theme '%s', must be one of: dark, light", c.UI.Theme)
	}

	// Log
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil || c.Log.Level == "" {
		add("log.level", "invalid level '%s'", c.Log.Level)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - GEMINI_API_KEY (or GOOGLE_API_KEY): responder.api_key
//   - RAVENX_BACKEND, RAVENX_MODEL, RAVENX_PROXY_URL, RAVENX_PROXY_TOKEN
//   - RAVENX_STORE, RAVENX_DATA_DIR
//   - RAVENX_SERVER_ADDR, RAVENX_SERVER_TOKEN
//   - RAVENX_LOG_LEVEL, RAVENX_THEME
func (c *Config) ApplyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Responder.APIKey = key
	} else if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.Responder.APIKey = key
	}

	overrides := []struct {
		env    string
		target *string
	}{
		{"RAVENX_BACKEND", &c.Responder.Backend},
		{"RAVENX_MODEL", &c.Responder.Model},
		{"RAVENX_PROXY_URL", &c.Responder.ProxyURL},
		{"RAVENX_PROXY_TOKEN", &c.Responder.ProxyToken},
		{"RAVENX_STORE", &c.Store.Backend},
		{"RAVENX_DATA_DIR", &c.Store.Dir},
		{"RAVENX_SERVER_ADDR", &c.Server.Addr},
		{"RAVENX_SERVER_TOKEN", &c.Server.Token},
		{"RAVENX_LOG_LEVEL", &c.Log.Level},
		{"RAVENX_THEME", &c.UI.Theme},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

// =============================================================================
// DERIVED SETTINGS
// =============================================================================

// ResponderConfig converts the [responder] section for responder.New.
func (c *Config) ResponderConfig() responder.Config {
	return responder.Config{
		Backend:    c.Responder.Backend,
		APIKey:     c.Responder.APIKey,
		Model:      c.Responder.Model,
		BaseURL:    c.Responder.BaseURL,
		ProxyURL:   c.Responder.ProxyURL,
		ProxyToken: c.Responder.ProxyToken,
		Timeout:    c.Responder.Timeout.Duration,
	}
}

// StoreOptions converts the [store] section for kv.Open.
func (c *Config) StoreOptions() (kv.Options, error) {
	dir, err := c.DataDir()
	if err != nil {
		return kv.Options{}, err
	}
	return kv.Options{Backend: c.Store.Backend, Dir: dir}, nil
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "server.addr").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	if d, ok := field.Interface().(Duration); ok {
		return d.String(), nil
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() || (i == 0 && fieldName == "Source") {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct || field.Type() == reflect.TypeOf(Duration{}) {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field
// name. Known initialisms are matched case-insensitively by the caller.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(part[:1]))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		if u, ok := field.Addr().Interface().(encoding.TextUnmarshaler); ok {
			return u.UnmarshalText([]byte(strVal))
		}
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int32, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float32, reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strVal)
			if err != nil {
				boolVal = strings.EqualFold(strVal, "yes")
			}
			field.SetBool(boolVal)
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, item := range strings.Split(strVal, ",") {
					if item = strings.TrimSpace(item); item != "" {
						items = append(items, item)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"responder.backend",
		"responder.api_key",
		"responder.model",
		"responder.base_url",
		"responder.proxy_url",
		"responder.proxy_token",
		"responder.timeout",
		"chat.latency",
		"chat.reveal_interval",
		"store.backend",
		"store.dir",
		"store.clear_scope",
		"server.addr",
		"server.token",
		"server.allowed_origins",
		"server.rate_limit",
		"server.rate_burst",
		"server.session_ttl",
		"server.cleanup_every",
		"server.temperature",
		"server.top_p",
		"server.top_k",
		"server.max_output_tokens",
		"server.system_prompt",
		"ui.theme",
		"ui.markdown",
		"ui.suggestions",
		"log.level",
		"log.file",
	}
}

// =============================================================================
// COPY AND DISPLAY
// =============================================================================

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	clone.UI.Suggestions = append([]string(nil), c.UI.Suggestions...)
	return &clone
}

// Redacted returns a copy with credentials replaced.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	for _, s := range []*string{&safe.Responder.APIKey, &safe.Responder.ProxyToken, &safe.Server.Token} {
		if *s != "" {
			*s = "[REDACTED]"
		}
	}
	return safe
}

// String returns the redacted configuration as TOML.
func (c *Config) String() string {
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(c.Redacted()); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return sb.String()
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
