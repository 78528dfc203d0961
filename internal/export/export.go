// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/whiterven/ravenx/internal/model"
	"github.com/whiterven/ravenx/internal/util"
)

// =============================================================================
// CHAT
// =============================================================================

// Chat is a titled transcript prepared for export.
type Chat struct {
	Title      string          `json:"title"`
	ExportedAt time.Time       `json:"exported_at"`
	Messages   []model.Message `json:"messages"`
}

// NewChat copies the settled messages of t. Loading bubbles are skipped.
func NewChat(title string, t *model.Transcript) *Chat {
	c := &Chat{Title: title, ExportedAt: time.Now()}
	if t == nil {
		return c
	}
	for _, m := range t.Messages() {
		if m.Loading {
			continue
		}
		c.Messages = append(c.Messages, *m)
	}
	return c
}

// StartedAt returns the timestamp of the first message, or the zero time.
func (c *Chat) StartedAt() time.Time {
	if len(c.Messages) == 0 {
		return time.Time{}
	}
	return c.Messages[0].Timestamp
}

// Count returns the number of outgoing and incoming messages.
func (c *Chat) Count() (user, assistant int) {
	for _, m := range c.Messages {
		if m.IsUser() {
			user++
		} else {
			assistant++
		}
	}
	return user, assistant
}

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter renders a chat into one format.
type Exporter interface {
	// Export converts a chat to the target format and returns the content.
	Export(chat *Chat) ([]byte, error)

	// FileExtension returns the file extension, with the dot.
	FileExtension() string

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

// Supported format names.
const (
	FormatMarkdown = "md"
	FormatJSON     = "json"
	FormatHTML     = "html"
)

// ErrUnknownFormat is returned by ForFormat.
var ErrUnknownFormat = errors.New("unknown export format")

// ErrEmptyChat is returned when exporting a chat without messages.
var ErrEmptyChat = errors.New("chat has no messages")

// Formats lists the format names ForFormat accepts.
func Formats() []string {
	return []string{FormatMarkdown, FormatJSON, FormatHTML}
}

// ForFormat returns the exporter for name ("md", "markdown", "json", "html").
func ForFormat(name string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case FormatMarkdown, "markdown":
		return NewMarkdownExporter(opts), nil
	case FormatJSON:
		return NewJSONExporter(opts), nil
	case FormatHTML, "htm":
		return NewHTMLExporter(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownFormat, name, strings.Join(Formats(), ", "))
	}
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is where ToFile writes. Default: current directory.
	OutputDir string

	// OpenAfterExport opens the file in the default application.
	OpenAfterExport bool

	// IncludeMetadata adds a header with title, dates and counts.
	IncludeMetadata bool

	// IncludeTimestamps adds per-message times.
	IncludeTimestamps bool

	// Theme for HTML export: "light" or "dark".
	Theme string
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeMetadata:   true,
		IncludeTimestamps: true,
		Theme:             "dark",
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ToFile exports chat with exporter and writes it into opts.OutputDir under
// a name derived from the title. It returns the written path.
func ToFile(chat *Chat, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	name := fmt.Sprintf("ravenx_%s_%s%s",
		sanitizeFilename(chat.Title),
		time.Now().Format("20060102_150405"),
		exporter.FileExtension(),
	)
	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, name)
	if err := WriteFile(chat, exporter, path); err != nil {
		return "", err
	}

	if opts.OpenAfterExport {
		// Non-fatal; the file exists.
		_ = openFile(path)
	}
	return path, nil
}

// WriteFile exports chat to exactly path.
func WriteFile(chat *Chat, exporter Exporter, path string) error {
	content, err := exporter.Export(chat)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, content, 0644, 0755); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename replaces characters that are unsafe in file names.
func sanitizeFilename(s string) string {
	s = util.FirstRunes(strings.TrimSpace(s), 50)

	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			b.WriteRune('_')
		case r < 32 || r == 127:
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "chat"
	}
	return b.String()
}

// openFile opens a file in the default application for the OS.
func openFile(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", `""`, path)
	case "darwin":
		cmd = exec.Command("open", path)
	case "linux":
		cmd = exec.Command("xdg-open", path)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return cmd.Start()
}

// roleLabel returns the heading used for a message.
func roleLabel(m model.Message) string {
	if m.Error {
		return m.Role.DisplayName() + " (error)"
	}
	return m.Role.DisplayName()
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// formatShortTimestamp formats a timestamp for inline display.
func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}
