// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whiterven/ravenx/internal/config"
	"github.com/whiterven/ravenx/internal/history"
	"github.com/whiterven/ravenx/internal/kv"
	"github.com/whiterven/ravenx/internal/model"
	"github.com/whiterven/ravenx/internal/responder"
	"github.com/whiterven/ravenx/internal/session"
)

// =============================================================================
// HELPERS
// =============================================================================

const candidateBody = `{"candidates":[{"content":{"role":"model","parts":[{"text":"**Hello** world"}]}}]}`

// isolate points HOME at a temp dir and clears the environment overrides.
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
	t.Cleanup(config.ResetGlobalForTesting)
	return home
}

func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// seedStore saves archived chats into a file store under dir.
func seedStore(t *testing.T, dir string, chats map[string][]string) {
	t.Helper()
	store, err := kv.Open(kv.Options{Backend: kv.BackendFile, Dir: dir})
	require.NoError(t, err)
	defer store.Close()

	h := history.New(store)
	for _, title := range []string{"Plan my week", "Explain goroutines"} {
		contents, ok := chats[title]
		if !ok {
			continue
		}
		tr := model.NewTranscript()
		for i, c := range contents {
			role := model.RoleUser
			if i%2 == 1 {
				role = model.RoleAssistant
			}
			tr.Append(model.NewMessage(role, c))
		}
		require.NoError(t, h.Save(title, tr))
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

// scriptReader replays lines and records the prompts it was shown.
type scriptReader struct {
	mu      sync.Mutex
	lines   []string
	prompts []string
}

func (s *scriptReader) ReadLine(prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scriptReader) remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

func newTestController(t *testing.T, fn func(prompt string) (string, error)) *session.Controller {
	t.Helper()
	r := responder.Func(func(_ context.Context, prompt string) (string, error) {
		return fn(prompt)
	})
	c := session.New(r, history.New(kv.NewMemory()), session.Config{Latency: -1, RevealInterval: -1})
	require.NoError(t, c.Restore())
	return c
}

func echo(prompt string) (string, error) {
	return "echo: " + prompt, nil
}

// =============================================================================
// ERRORS AND CONFIRMATION
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", &UsageError{Field: "flag", Reason: "bad"}, ExitUsageError},
		{"not found type", &NotFoundError{Resource: "chat", ID: "x"}, ExitNotFoundError},
		{"history not found", fmt.Errorf("load: %w", history.ErrNotFound), ExitNotFoundError},
		{"validation", fmt.Errorf("invalid config: %w", config.ValidateErrors{{Field: "ui.theme", Message: "bad"}}), ExitConfigError},
		{"not configured", fmt.Errorf("%w: no key", responder.ErrNotConfigured), ExitConfigError},
		{"unknown store", fmt.Errorf("%w: %q", kv.ErrUnknownBackend, "redis"), ExitConfigError},
		{"remote", &responder.Error{Status: 429, Message: "rate limited"}, ExitNetworkError},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestCommandError(t *testing.T) {
	inner := errors.New("disk full")
	err := NewCommandError("history", "clear", "could not clear the store", inner)
	assert.Equal(t, "history clear failed: could not clear the store: disk full", err.Error())
	assert.ErrorIs(t, err, inner)
}

func TestRequireConfirmation(t *testing.T) {
	ok, err := RequireConfirmation("Delete", ConfirmationOptions{Yes: true})
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = RequireConfirmation("Delete", ConfirmationOptions{})
	assert.ErrorIs(t, err, ErrConfirmationRequired)

	for answer, want := range map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "\n": false, "": false} {
		var out bytes.Buffer
		ok, err := RequireConfirmation("Delete", ConfirmationOptions{
			Interactive: true,
			In:          strings.NewReader(answer),
			Out:         &out,
		})
		require.NoError(t, err)
		assert.Equal(t, want, ok, "answer %q", answer)
		assert.Contains(t, out.String(), "Delete? [y/N]")
	}
}

// =============================================================================
// CONFIGURATION
// =============================================================================

func TestApplyFlags(t *testing.T) {
	cfg := config.Default()
	g := &globalOptions{backend: "genai", model: "gemini-1.5-flash", dataDir: "/tmp/x", ephemeral: true}
	g.applyFlags(cfg)

	assert.Equal(t, "genai", cfg.Responder.Backend)
	assert.Equal(t, "gemini-1.5-flash", cfg.Responder.Model)
	assert.Equal(t, "/tmp/x", cfg.Store.Dir)
	assert.Equal(t, kv.BackendMemory, cfg.Store.Backend)
	assert.Equal(t, config.Default().Log.Level, cfg.Log.Level)
}

func TestSessionConfig_ZeroMeansNoDelay(t *testing.T) {
	cfg := config.Default()
	cfg.Chat.Latency = config.D(0)
	cfg.Chat.RevealInterval = config.D(30 * time.Millisecond)
	cfg.UI.Theme = history.ThemeLight

	sc := sessionConfig(cfg)
	assert.Equal(t, time.Duration(-1), sc.Latency)
	assert.Equal(t, 30*time.Millisecond, sc.RevealInterval)
	assert.Equal(t, history.ThemeLight, sc.Theme)
}

func TestConfigCommands(t *testing.T) {
	home := isolate(t)
	wantPath := filepath.Join(home, ".ravenx", "config.toml")

	out, _, err := runCLI(t, "", "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, wantPath)
	assert.Contains(t, out, "not created yet")

	out, _, err = runCLI(t, "", "config", "set", "ui.theme", "light")
	require.NoError(t, err)
	assert.Contains(t, out, "ui.theme updated")
	assert.FileExists(t, wantPath)

	out, _, err = runCLI(t, "", "config", "get", "ui.theme")
	require.NoError(t, err)
	assert.Equal(t, "light\n", out)

	out, _, err = runCLI(t, "", "config", "path")
	require.NoError(t, err)
	assert.NotContains(t, out, "not created yet")
}

func TestConfigSet_DoesNotPersistEnvironment(t *testing.T) {
	home := isolate(t)
	t.Setenv("GEMINI_API_KEY", "secret-key")

	_, _, err := runCLI(t, "", "config", "set", "chat.latency", "250ms")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(home, ".ravenx", "config.toml"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret-key")
	assert.Contains(t, string(data), "250ms")
}

func TestConfigShowAndGet_RedactSecrets(t *testing.T) {
	isolate(t)
	t.Setenv("GEMINI_API_KEY", "secret-key")

	out, _, err := runCLI(t, "", "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "secret-key")
	assert.Contains(t, out, "[REDACTED]")

	out, _, err = runCLI(t, "", "config", "get", "responder.api_key")
	require.NoError(t, err)
	assert.Equal(t, "[REDACTED]\n", out)
}

func TestConfigErrors(t *testing.T) {
	isolate(t)

	_, _, err := runCLI(t, "", "config", "get", "nope.key")
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	_, _, err = runCLI(t, "", "config", "set", "ui.theme", "purple")
	assert.Equal(t, ExitConfigError, GetExitCode(err))

	_, _, err = runCLI(t, "", "--store", "redis", "history", "list")
	assert.Equal(t, ExitConfigError, GetExitCode(err))

	_, _, err = runCLI(t, "", "config", "get")
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	_, _, err = runCLI(t, "", "--no-such-flag")
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestVersionCommand(t *testing.T) {
	isolate(t)
	out, _, err := runCLI(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "ravenx "+Version)
	assert.Contains(t, out, GitCommit)
}

// =============================================================================
// HISTORY AND EXPORT
// =============================================================================

func TestHistoryCommands(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	seedStore(t, dir, map[string][]string{
		"Plan my week":       {"plan my week", "Monday: rest"},
		"Explain goroutines": {"explain goroutines", "They are cheap threads"},
	})

	out, _, err := runCLI(t, "", "--data-dir", dir, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "1. Plan my week")
	assert.Contains(t, out, "2. Explain goroutines")

	out, _, err = runCLI(t, "", "--data-dir", dir, "history", "show", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Explain goroutines")
	assert.Contains(t, out, "They are cheap threads")

	out, _, err = runCLI(t, "", "--data-dir", dir, "history", "show", "Plan my week")
	require.NoError(t, err)
	assert.Contains(t, out, "Monday: rest")

	_, _, err = runCLI(t, "", "--data-dir", dir, "history", "show", "9")
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))
}

func TestHistoryClear(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	seedStore(t, dir, map[string][]string{"Plan my week": {"plan my week", "ok"}})

	// Tests have no terminal, so --yes is required.
	_, _, err := runCLI(t, "", "--data-dir", dir, "history", "clear")
	assert.ErrorIs(t, err, ErrConfirmationRequired)

	out, _, err := runCLI(t, "", "--data-dir", dir, "history", "clear", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "All chats deleted.")

	out, _, err = runCLI(t, "", "--data-dir", dir, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No saved chats.")
}

func TestEphemeral_WritesNothing(t *testing.T) {
	home := isolate(t)

	out, _, err := runCLI(t, "", "--ephemeral", "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No saved chats.")
	assert.NoDirExists(t, filepath.Join(home, ".ravenx"))
}

func TestExportCommand(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	seedStore(t, dir, map[string][]string{"Plan my week": {"plan my week", "Monday: rest"}})

	out, _, err := runCLI(t, "", "--data-dir", dir, "export", "1", "--format", "json", "--stdout")
	require.NoError(t, err)
	assert.Contains(t, out, `"title": "Plan my week"`)
	assert.Contains(t, out, "Monday: rest")

	target := filepath.Join(t.TempDir(), "week.md")
	out, _, err = runCLI(t, "", "--data-dir", dir, "export", "Plan my week", "-o", target)
	require.NoError(t, err)
	assert.Contains(t, out, target)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Monday: rest")

	outDir := t.TempDir()
	_, _, err = runCLI(t, "", "--data-dir", dir, "export", "1", "--format", "html", "--dir", outDir)
	require.NoError(t, err)
	matches, err := filepath.Glob(filepath.Join(outDir, "*.html"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestExportCommand_Errors(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	seedStore(t, dir, map[string][]string{"Plan my week": {"plan my week", "ok"}})

	_, _, err := runCLI(t, "", "--data-dir", dir, "export", "1", "--format", "pdf", "--stdout")
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	_, _, err = runCLI(t, "", "--data-dir", dir, "export", "missing")
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))

	// The current chat is empty.
	_, _, err = runCLI(t, "", "--data-dir", dir, "export", "--stdout")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no messages")
}

// =============================================================================
// ASK
// =============================================================================

func TestAskCommand(t *testing.T) {
	home := isolate(t)

	var (
		mu     sync.Mutex
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(body))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, candidateBody)
	}))
	defer srv.Close()

	cfgPath := filepath.Join(home, "ask.toml")
	writeFile(t, cfgPath, fmt.Sprintf("[responder]\nbackend = \"gemini\"\napi_key = \"test-key\"\nbase_url = %q\n", srv.URL))

	out, _, err := runCLI(t, "", "--config", cfgPath, "--ephemeral", "ask", "say", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello world\n", out)

	out, _, err = runCLI(t, "  from stdin \n", "--config", cfgPath, "--ephemeral", "ask", "-")
	require.NoError(t, err)
	assert.Equal(t, "Hello world\n", out)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 2)
	assert.Contains(t, bodies[0], "say hi")
	assert.Contains(t, bodies[1], "from stdin")
}

func TestAskCommand_Errors(t *testing.T) {
	isolate(t)

	_, _, err := runCLI(t, "", "--ephemeral", "ask", "hello")
	assert.ErrorIs(t, err, responder.ErrNotConfigured)
	assert.Equal(t, ExitConfigError, GetExitCode(err))

	_, _, err = runCLI(t, "   ", "--ephemeral", "ask", "-")
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	_, _, err = runCLI(t, "", "ask")
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

// =============================================================================
// LINE MODE CHAT
// =============================================================================

func TestREPL_ChatAndCommands(t *testing.T) {
	c := newTestController(t, echo)
	in := &scriptReader{lines: []string{"hello", "/chats"}}
	var out bytes.Buffer

	repl := &REPL{In: in, Out: &out, Model: "gemini-1.5-pro"}
	require.NoError(t, repl.Run(context.Background(), c))

	text := out.String()
	assert.Contains(t, text, "gemini-1.5-pro")
	assert.Contains(t, text, "echo: hello")
	assert.Contains(t, text, "No archived chats.")
	// The typed prompt is not printed a second time.
	assert.NotContains(t, text, "you: hello")
	assert.Len(t, in.prompts, 3)
}

func TestREPL_QuitStopsReading(t *testing.T) {
	c := newTestController(t, echo)
	in := &scriptReader{lines: []string{"/quit", "never sent"}}
	var out bytes.Buffer

	require.NoError(t, (&REPL{In: in, Out: &out}).Run(context.Background(), c))
	assert.Equal(t, 1, in.remaining())
	assert.True(t, c.Snapshot().Empty())
}

func TestREPL_ClearAsksForConfirmation(t *testing.T) {
	c := newTestController(t, echo)
	in := &scriptReader{lines: []string{"first", "/new", "/clear", "y"}}
	var out bytes.Buffer

	require.NoError(t, (&REPL{In: in, Out: &out}).Run(context.Background(), c))
	assert.Empty(t, c.Titles())
	assert.Contains(t, out.String(), "All chats deleted.")

	var asked bool
	for _, p := range in.prompts {
		if strings.Contains(p, "Delete every saved chat?") {
			asked = true
		}
	}
	assert.True(t, asked, "prompts: %q", in.prompts)
}

func TestArchiveOnExit(t *testing.T) {
	c := newTestController(t, echo)
	in := &scriptReader{lines: []string{"keep this chat", "/quit"}}
	var out bytes.Buffer

	require.NoError(t, (&REPL{In: in, Out: &out}).Run(context.Background(), c))
	require.NoError(t, archiveOnExit(c, zerolog.Nop()))

	assert.Equal(t, []string{"keep this chat"}, c.Titles())
	assert.True(t, c.Snapshot().Empty())

	// Nothing new to file on a second exit.
	require.NoError(t, archiveOnExit(c, zerolog.Nop()))
	assert.Equal(t, []string{"keep this chat"}, c.Titles())
}

func TestREPL_ResponderErrorIsPrinted(t *testing.T) {
	c := newTestController(t, func(string) (string, error) {
		return "", &responder.Error{Status: 429, Message: "rate limited"}
	})
	in := &scriptReader{lines: []string{"hi"}}
	var out bytes.Buffer

	require.NoError(t, (&REPL{In: in, Out: &out}).Run(context.Background(), c))
	assert.Contains(t, out.String(), "rate limited")
}

func TestREPL_UnknownCommand(t *testing.T) {
	c := newTestController(t, echo)
	in := &scriptReader{lines: []string{"/bogus"}}
	var out bytes.Buffer

	require.NoError(t, (&REPL{In: in, Out: &out}).Run(context.Background(), c))
	assert.Contains(t, out.String(), "Unknown command /bogus")
	assert.True(t, c.Snapshot().Empty())
}

func TestREPL_CancelledContext(t *testing.T) {
	c := newTestController(t, echo)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := &scriptReader{lines: []string{"hello"}}
	require.NoError(t, (&REPL{In: in, Out: io.Discard}).Run(ctx, c))
}

func TestPlainView_PrintsEachMessageOnce(t *testing.T) {
	var out bytes.Buffer
	v := newPlainView(&out)

	restored := model.NewUserMessage("restored question")
	typed := model.NewUserMessage("typed question")
	reply := model.NewMessage(model.RoleAssistant, "Hel")
	reply.Revealing = true

	v.expect("typed question")
	snap := func() session.Snapshot {
		return session.Snapshot{Messages: []model.Message{*restored, *typed, *reply}}
	}
	v.Render(snap())
	reply.Content = "Hello there"
	v.Render(snap())
	reply.Revealing = false
	v.Render(snap())
	v.Render(snap())

	text := out.String()
	assert.Equal(t, 1, strings.Count(text, "restored question"))
	assert.NotContains(t, text, "typed question")
	assert.Equal(t, 1, strings.Count(text, "Hello there"))
	assert.True(t, strings.HasSuffix(text, "Hello there\n\n"), "output %q", text)
}

func TestPlainView_ErrorAndEdit(t *testing.T) {
	var out bytes.Buffer
	v := newPlainView(&out)

	user := model.NewUserMessage("first")
	failed := model.NewMessage(model.RoleAssistant, "rate limited")
	failed.Error = true

	v.Render(session.Snapshot{Messages: []model.Message{*user, *failed}})
	v.Render(session.Snapshot{Messages: []model.Message{*user, *failed}})
	assert.Equal(t, 1, strings.Count(out.String(), "rate limited"))

	// An edited prompt is printed again.
	user.Content = "second"
	v.Render(session.Snapshot{Messages: []model.Message{*user}})
	assert.Contains(t, out.String(), "second")
}

func TestCompletionHelpers(t *testing.T) {
	assert.Equal(t, filepath.Join("cfg", "chat_history"), chatHistoryPath("cfg"))
	assert.Equal(t, "ravenx "+Version, versionString())
	assert.Equal(t, -1*time.Nanosecond, noDelay(0))
}
