// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package responder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// GenAI completes prompts through the Google Gen AI SDK.
type GenAI struct {
	client *genai.Client
	model  string
	log    zerolog.Logger
}

// NewGenAI creates an SDK-backed responder. cfg.BaseURL, when set, replaces
// the API root (the SDK appends its own version segment).
func NewGenAI(ctx context.Context, cfg Config) (*GenAI, error) {
	client, err := NewGenAIClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &GenAI{
		client: client,
		model:  model,
		log:    cfg.Logger.With().Str("component", "responder").Str("backend", BackendGenAI).Logger(),
	}, nil
}

// NewGenAIClient builds a Gemini API client from cfg. The proxy server uses
// it for its multi-turn upstream.
func NewGenAIClient(ctx context.Context, cfg Config) (*genai.Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY is not set", ErrNotConfigured)
	}

	cc := &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient(cfg),
	}
	if base := trimBaseURL(cfg.BaseURL); base != "" {
		cc.HTTPOptions.BaseURL = base + "/"
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return client, nil
}

// Complete sends prompt as a single user turn.
func (g *GenAI) Complete(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", FromGenAIError(err)
	}
	text, ok := FirstText(resp)
	if !ok {
		return "", &Error{Status: http.StatusOK, Message: EmptyResponseMessage}
	}

	g.log.Debug().Int("candidates", len(resp.Candidates)).Msg("API response")
	return StripBold(text), nil
}

// FirstText returns the first candidate's first text part, the same part the
// REST backend reads. ok is false when there is no such part.
func FirstText(resp *genai.GenerateContentResponse) (text string, ok bool) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", false
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 || content.Parts[0] == nil {
		return "", false
	}
	return content.Parts[0].Text, true
}

// FromGenAIError maps an SDK API error to *Error. Other errors pass through.
func FromGenAIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Status
		}
		return &Error{Status: apiErr.Code, Message: msg}
	}
	return err
}
