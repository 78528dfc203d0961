// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter writes a standalone page with embedded CSS.
type HTMLExporter struct {
	options  *Options
	markdown goldmark.Markdown
	policy   *bluemonday.Policy
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Theme != "light" {
		opts.Theme = "dark"
	}
	return &HTMLExporter{
		options:  opts,
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy:   bluemonday.UGCPolicy(),
	}
}

// Export converts a chat to HTML.
func (e *HTMLExporter) Export(chat *Chat) ([]byte, error) {
	if chat == nil {
		return nil, fmt.Errorf("chat is nil")
	}
	if len(chat.Messages) == 0 {
		return nil, ErrEmptyChat
	}

	var sb strings.Builder

	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", html.EscapeString(chat.Title))
	sb.WriteString("    <meta name=\"generator\" content=\"ravenx\">\n")
	sb.WriteString(pageCSS)
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n", e.options.Theme)
	sb.WriteString("    <div class=\"container\">\n")

	if e.options.IncludeMetadata {
		sb.WriteString(e.renderHeader(chat))
	}

	sb.WriteString("        <main class=\"chat\">\n")
	for _, msg := range chat.Messages {
		body, err := e.renderBody(msg.Content)
		if err != nil {
			return nil, fmt.Errorf("render message %s: %w", msg.ID, err)
		}

		classes := "message " + msg.Role.String()
		if msg.Error {
			classes += " error"
		}
		fmt.Fprintf(&sb, "            <div class=\"%s\">\n", classes)
		sb.WriteString("                <div class=\"message-header\">\n")
		fmt.Fprintf(&sb, "                    <span class=\"role\">%s</span>\n", html.EscapeString(roleLabel(msg)))
		if e.options.IncludeTimestamps {
			fmt.Fprintf(&sb, "                    <span class=\"timestamp\">%s</span>\n", formatShortTimestamp(msg.Timestamp))
		}
		sb.WriteString("                </div>\n")
		sb.WriteString("                <div class=\"message-content\">\n")
		sb.WriteString(body)
		sb.WriteString("                </div>\n")
		sb.WriteString("            </div>\n")
	}
	sb.WriteString("        </main>\n")

	sb.WriteString("        <footer class=\"footer\">\n")
	fmt.Fprintf(&sb, "            <p>Exported from <strong>ravenx</strong> on %s</p>\n",
		chat.ExportedAt.Format("January 2, 2006 at 3:04 PM"))
	sb.WriteString("        </footer>\n")
	sb.WriteString("    </div>\n")
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

func (e *HTMLExporter) renderHeader(chat *Chat) string {
	user, assistant := chat.Count()

	var sb strings.Builder
	sb.WriteString("        <header class=\"header\">\n")
	fmt.Fprintf(&sb, "            <h1>%s</h1>\n", html.EscapeString(chat.Title))
	sb.WriteString("            <div class=\"metadata\">\n")
	if started := chat.StartedAt(); !started.IsZero() {
		fmt.Fprintf(&sb, "                <span><strong>Started:</strong> %s</span>\n", formatTimestamp(started))
	}
	fmt.Fprintf(&sb, "                <span><strong>Prompts:</strong> %d</span>\n", user)
	fmt.Fprintf(&sb, "                <span><strong>Responses:</strong> %d</span>\n", assistant)
	sb.WriteString("            </div>\n")
	sb.WriteString("        </header>\n")
	return sb.String()
}

// =============================================================================
// CONTENT RENDERING
// =============================================================================

// fencePattern matches a fenced code block and its language tag.
var fencePattern = regexp.MustCompile("(?s)```([a-zA-Z0-9_+#.-]*)[^\n]*\n(.*?)```")

const codePlaceholder = "RAVENXCODEBLOCK"

// renderBody converts message Markdown to sanitized HTML. Fenced code is
// cut out first, highlighted by chroma, and spliced back after sanitizing.
func (e *HTMLExporter) renderBody(content string) (string, error) {
	var blocks []string
	prose := fencePattern.ReplaceAllStringFunc(content, func(match string) string {
		parts := fencePattern.FindStringSubmatch(match)
		blocks = append(blocks, e.highlight(parts[2], parts[1]))
		return fmt.Sprintf("\n\n%s%d\n\n", codePlaceholder, len(blocks)-1)
	})

	var buf bytes.Buffer
	if err := e.markdown.Convert([]byte(prose), &buf); err != nil {
		return "", err
	}
	out := string(e.policy.SanitizeBytes(buf.Bytes()))

	for i, block := range blocks {
		token := fmt.Sprintf("%s%d", codePlaceholder, i)
		if strings.Contains(out, "<p>"+token+"</p>") {
			out = strings.Replace(out, "<p>"+token+"</p>", block, 1)
		} else {
			out = strings.Replace(out, token, block, 1)
		}
	}
	return out, nil
}

// highlight renders code as inline-styled HTML.
func (e *HTMLExporter) highlight(code, language string) string {
	code = strings.TrimRight(code, "\n")

	label := ""
	if language != "" {
		label = fmt.Sprintf("<div class=\"code-lang\">%s</div>", html.EscapeString(language))
	}

	var lexer chroma.Lexer
	if language != "" {
		lexer = lexers.Get(language)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	styleName := "monokai"
	if e.options.Theme == "light" {
		styleName = "github"
	}
	style := chromaStyles.Get(styleName)
	if style == nil {
		style = chromaStyles.Fallback
	}

	plain := fmt.Sprintf("<div class=\"code-block\">%s<pre><code>%s</code></pre></div>", label, html.EscapeString(code))

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return plain
	}
	var buf bytes.Buffer
	formatter := chromahtml.New(chromahtml.WithClasses(false), chromahtml.TabWidth(4))
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return plain
	}
	return fmt.Sprintf("<div class=\"code-block\">%s%s</div>", label, buf.String())
}

// =============================================================================
// EMBEDDED CSS
// =============================================================================

var pageCSS = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { font-family: -apple-system, "Segoe UI", Roboto, Arial, sans-serif; line-height: 1.6; }
        .dark-theme { background: #131314; color: #e3e3e3; --bubble-user: #2a2a3c; --bubble-bot: #1e1f20; --muted: #9aa0a6; --error: #f28b82; }
        .light-theme { background: #ffffff; color: #1f1f1f; --bubble-user: #e9eef6; --bubble-bot: #f4f6fb; --muted: #5f6368; --error: #d93025; }
        .container { max-width: 880px; margin: 0 auto; padding: 32px 16px; }
        .header { margin-bottom: 24px; }
        .header h1 { font-size: 1.6rem; margin-bottom: 8px; }
        .metadata { display: flex; gap: 16px; flex-wrap: wrap; color: var(--muted); font-size: 0.9rem; }
        .message { padding: 12px 16px; border-radius: 12px; margin: 12px 0; max-width: 85%; }
        .message.user { background: var(--bubble-user); margin-left: auto; }
        .message.assistant { background: var(--bubble-bot); }
        .message.error .message-content { color: var(--error); }
        .message-header { display: flex; justify-content: space-between; font-size: 0.8rem; color: var(--muted); margin-bottom: 4px; }
        .message-content p { margin: 6px 0; }
        .message-content code { font-family: "SF Mono", Consolas, monospace; }
        .code-block { margin: 8px 0; border-radius: 8px; overflow: hidden; }
        .code-block pre { padding: 12px; overflow-x: auto; }
        .code-lang { font-size: 0.75rem; padding: 4px 12px; color: var(--muted); }
        .footer { margin-top: 32px; text-align: center; color: var(--muted); font-size: 0.85rem; }
    </style>
`
