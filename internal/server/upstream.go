// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/whiterven/ravenx/internal/responder"
)

// =============================================================================
// UPSTREAM
// =============================================================================

// GenerationConfig is what a new conversation is started with.
type GenerationConfig struct {
	Model           string
	SystemPrompt    string
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int32
}

// Upstream starts conversations with the model.
type Upstream interface {
	StartChat(ctx context.Context, gen GenerationConfig) (Conversation, error)
}

// Conversation is one multi-turn chat. It carries its own history; Send is
// never called concurrently on the same conversation.
type Conversation interface {
	Send(ctx context.Context, message string) (string, error)
}

// =============================================================================
// GENAI UPSTREAM
// =============================================================================

// GenAIUpstream starts chats through the Google Gen AI SDK.
type GenAIUpstream struct {
	client *genai.Client
}

// NewGenAIUpstream creates an upstream from the responder settings (API key,
// base URL, timeout).
func NewGenAIUpstream(ctx context.Context, cfg responder.Config) (*GenAIUpstream, error) {
	client, err := responder.NewGenAIClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &GenAIUpstream{client: client}, nil
}

// StartChat creates an empty chat with gen applied.
func (u *GenAIUpstream) StartChat(ctx context.Context, gen GenerationConfig) (Conversation, error) {
	model := gen.Model
	if model == "" {
		model = responder.DefaultModel
	}
	chat, err := u.client.Chats.Create(ctx, model, contentConfig(gen), nil)
	if err != nil {
		return nil, err
	}
	return &genaiConversation{chat: chat}, nil
}

// contentConfig maps gen to the SDK config. Safety filters are off, as in
// the hosted RavenIV deployment.
func contentConfig(gen GenerationConfig) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(gen.Temperature),
		TopP:            genai.Ptr(gen.TopP),
		TopK:            genai.Ptr(gen.TopK),
		MaxOutputTokens: gen.MaxOutputTokens,
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
		},
	}
	if prompt := strings.TrimSpace(gen.SystemPrompt); prompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(prompt, genai.RoleUser)
	}
	return cfg
}

type genaiConversation struct {
	chat *genai.Chat
}

func (c *genaiConversation) Send(ctx context.Context, message string) (string, error) {
	resp, err := c.chat.SendMessage(ctx, genai.Part{Text: message})
	if err != nil {
		return "", responder.FromGenAIError(err)
	}
	text, ok := responder.FirstText(resp)
	if !ok || text == "" {
		return "", &responder.Error{Status: http.StatusOK, Message: responder.EmptyResponseMessage}
	}
	return text, nil
}
