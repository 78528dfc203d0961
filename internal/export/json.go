// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/whiterven/ravenx/internal/model"
)

// JSONExporter writes the chat records plus metadata. Options do not filter
// the output; the records are complete so they can be re-imported.
type JSONExporter struct {
	options *Options
}

// jsonDocument is the exported shape.
type jsonDocument struct {
	Title      string          `json:"title"`
	ExportedAt string          `json:"exported_at"`
	Generator  string          `json:"generator"`
	Counts     jsonCounts      `json:"counts"`
	Messages   []model.Message `json:"messages"`
}

type jsonCounts struct {
	User      int `json:"user"`
	Assistant int `json:"assistant"`
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export converts a chat to indented JSON.
func (e *JSONExporter) Export(chat *Chat) ([]byte, error) {
	if chat == nil {
		return nil, fmt.Errorf("chat is nil")
	}
	user, assistant := chat.Count()
	doc := jsonDocument{
		Title:      chat.Title,
		ExportedAt: chat.ExportedAt.UTC().Format(time.RFC3339),
		Generator:  "ravenx",
		Counts:     jsonCounts{User: user, Assistant: assistant},
		Messages:   chat.Messages,
	}
	if doc.Messages == nil {
		doc.Messages = []model.Message{}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
