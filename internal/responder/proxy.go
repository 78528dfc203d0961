// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ProxyRequest is the body of POST /api/chat.
type ProxyRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ProxyResponse is the body returned by POST /api/chat.
type ProxyResponse struct {
	Response     string `json:"response,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
	MessageCount int    `json:"message_count,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Proxy forwards prompts to a ravenx proxy server. The server keeps the
// API key and the multi-turn history for this client's session.
type Proxy struct {
	baseURL    string
	token      string
	sessionID  string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewProxy returns a proxy responder with a fresh session ID.
func NewProxy(cfg Config) (*Proxy, error) {
	base := trimBaseURL(cfg.ProxyURL)
	if base == "" {
		return nil, fmt.Errorf("%w: proxy URL is not set", ErrNotConfigured)
	}
	return &Proxy{
		baseURL:    base,
		token:      cfg.ProxyToken,
		sessionID:  uuid.NewString(),
		httpClient: httpClient(cfg),
		log:        cfg.Logger.With().Str("component", "responder").Str("backend", BackendProxy).Logger(),
	}, nil
}

// SessionID returns the server-side session this client speaks in.
func (p *Proxy) SessionID() string {
	return p.sessionID
}

// Complete posts prompt to /api/chat.
func (p *Proxy) Complete(ctx context.Context, prompt string) (string, error) {
	bodyBytes, err := json.Marshal(ProxyRequest{SessionID: p.sessionID, Message: prompt})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return "", err
	}

	var pr ProxyResponse
	jsonErr := json.Unmarshal(body, &pr)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if jsonErr == nil && pr.Error != "" {
			return "", &Error{Status: resp.StatusCode, Message: pr.Error}
		}
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", &Error{Status: resp.StatusCode, Message: msg}
	}
	if jsonErr != nil {
		return "", fmt.Errorf("failed to parse response: %w", jsonErr)
	}
	if pr.Response == "" {
		return "", &Error{Status: resp.StatusCode, Message: EmptyResponseMessage}
	}

	p.log.Debug().Str("session", p.sessionID).Int("message_count", pr.MessageCount).Msg("Proxy response")
	return StripBold(pr.Response), nil
}
