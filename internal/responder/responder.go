// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package responder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Backend names.
const (
	BackendGemini = "gemini"
	BackendGenAI  = "genai"
	BackendProxy  = "proxy"
)

const (
	// DefaultBaseURL is the Gemini REST root used by the gemini backend.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1"

	// DefaultModel is the model used when none is configured.
	DefaultModel = "gemini-1.5-pro"

	// MaxResponseSize bounds how much of a response body is read.
	MaxResponseSize = 10 * 1024 * 1024

	// EmptyResponseMessage is the error text for a response with no candidates.
	EmptyResponseMessage = "empty response from model"
)

var (
	// ErrNotConfigured indicates the backend is missing its API key or URL.
	ErrNotConfigured = errors.New("responder not configured")

	// ErrUnknownBackend indicates an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown responder backend")
)

// Error is a failed response. Message is what the server said, or the raw
// body when it said nothing parseable.
type Error struct {
	Status  int
	Message string
}

// Error returns the message alone; it is shown to the user as-is.
func (e *Error) Error() string {
	return e.Message
}

// Responder completes a prompt.
type Responder interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Func adapts a function to the Responder interface.
type Func func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f Func) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Config selects and configures a backend.
type Config struct {
	Backend  string
	APIKey   string
	Model    string
	BaseURL  string
	ProxyURL string

	// ProxyToken is sent as a bearer token to the proxy, if set.
	ProxyToken string

	// Timeout bounds each request. Zero leaves the HTTP client default.
	Timeout time.Duration

	// HTTPClient overrides the shared client. Tests point it at httptest.
	HTTPClient *http.Client

	Logger zerolog.Logger
}

// New builds the responder for cfg.Backend. An empty backend means gemini.
func New(ctx context.Context, cfg Config) (Responder, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	backend := cfg.Backend
	if backend == "" {
		backend = BackendGemini
	}

	switch backend {
	case BackendGemini:
		return NewGemini(cfg)
	case BackendGenAI:
		return NewGenAI(ctx, cfg)
	case BackendProxy:
		return NewProxy(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// Backends lists the names New accepts.
func Backends() []string {
	return []string{BackendGemini, BackendGenAI, BackendProxy}
}

var boldPattern = regexp.MustCompile(`\*\*(.*?)\*\*`)

// StripBold removes **bold** markers, keeping the enclosed text.
func StripBold(s string) string {
	return boldPattern.ReplaceAllString(s, "$1")
}

// Message returns the user-facing text of err: the server message for an
// *Error, otherwise err.Error().
func Message(err error) string {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Message
	}
	return err.Error()
}

// =============================================================================
// HTTP HELPERS
// =============================================================================

var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
}

// httpClient returns cfg's client, or a copy of the shared one carrying
// cfg.Timeout.
func httpClient(cfg Config) *http.Client {
	if cfg.HTTPClient != nil {
		return cfg.HTTPClient
	}
	if cfg.Timeout <= 0 {
		return sharedHTTPClient
	}
	c := *sharedHTTPClient
	c.Timeout = cfg.Timeout
	return &c
}

// readResponse reads the body up to MaxResponseSize.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

func trimBaseURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}
