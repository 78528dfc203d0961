// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/whiterven/ravenx/internal/config"
	"github.com/whiterven/ravenx/internal/responder"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fakeUpstream struct {
	mu       sync.Mutex
	started  []GenerationConfig
	startErr error
	sendErr  error
}

func (f *fakeUpstream) StartChat(ctx context.Context, gen GenerationConfig) (Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started = append(f.started, gen)
	return &fakeConversation{up: f}, nil
}

func (f *fakeUpstream) starts() []GenerationConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]GenerationConfig(nil), f.started...)
}

type fakeConversation struct {
	up    *fakeUpstream
	turns []string
}

func (c *fakeConversation) Send(ctx context.Context, message string) (string, error) {
	c.up.mu.Lock()
	err := c.up.sendErr
	c.up.mu.Unlock()
	if err != nil {
		return "", err
	}
	c.turns = append(c.turns, message)
	return fmt.Sprintf("reply %d to %s", len(c.turns), message), nil
}

func testSettings() Settings {
	return Settings{
		Addr:           "127.0.0.1:0",
		AllowedOrigins: []string{"http://localhost:5000"},
		SessionTTL:     24 * time.Hour,
		CleanupEvery:   10,
		Generation: GenerationConfig{
			Model:           "gemini-test",
			SystemPrompt:    "You're RavenIV",
			Temperature:     0.9,
			TopP:            0.95,
			TopK:            40,
			MaxOutputTokens: 8192,
		},
	}
}

func newTestServer(t *testing.T, settings Settings) (*Server, *fakeUpstream) {
	t.Helper()
	up := &fakeUpstream{}
	return New(settings, up, WithLogger(zerolog.Nop())), up
}

func do(t *testing.T, s *Server, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("response is not JSON: %q (%v)", rec.Body.String(), err)
	}
	return v
}

// =============================================================================
// ENDPOINTS
// =============================================================================

func TestHandleTest(t *testing.T) {
	s, _ := newTestServer(t, testSettings())
	rec := do(t, s, http.MethodGet, "/api/test", nil, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode[TestResponse](t, rec)
	if body.Status != "ok" || body.Message != "Server is running" {
		t.Errorf("body = %+v", body)
	}
	if _, err := time.Parse(time.RFC3339, body.Timestamp); err != nil {
		t.Errorf("timestamp %q: %v", body.Timestamp, err)
	}
}

func TestHandleChat_Validation(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		status int
		errMsg string
	}{
		{"missing session", map[string]string{"message": "hi"}, 400, ErrMsgSessionRequired},
		{"blank message", map[string]string{"session_id": "s1", "message": "  "}, 400, ErrMsgMessageRequired},
		{"invalid json", "{nope", 400, ErrMsgInvalidRequest},
		{"too long", map[string]string{"session_id": "s1", "message": strings.Repeat("x", MaxMessageLength+1)}, 400,
			fmt.Sprintf("Message exceeds maximum length of %d", MaxMessageLength)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, up := newTestServer(t, testSettings())
			rec := do(t, s, http.MethodPost, "/api/chat", tt.body, nil)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if got := decode[responder.ProxyResponse](t, rec).Error; got != tt.errMsg {
				t.Errorf("error = %q, want %q", got, tt.errMsg)
			}
			if len(up.starts()) != 0 || s.Sessions().Len() != 0 {
				t.Error("a rejected request must not start a session")
			}
		})
	}
}

func TestHandleChat_MultiTurn(t *testing.T) {
	s, up := newTestServer(t, testSettings())

	send := func(session, message string) responder.ProxyResponse {
		rec := do(t, s, http.MethodPost, "/api/chat", responder.ProxyRequest{SessionID: session, Message: message}, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		return decode[responder.ProxyResponse](t, rec)
	}

	first := send("alpha", "hello")
	second := send("alpha", "again")
	other := send("beta", "hi")

	if first.Response != "reply 1 to hello" || first.MessageCount != 1 || first.SessionID != "alpha" {
		t.Errorf("first = %+v", first)
	}
	if second.Response != "reply 2 to again" || second.MessageCount != 2 {
		t.Errorf("second = %+v (history not kept)", second)
	}
	if other.Response != "reply 1 to hi" || other.MessageCount != 1 {
		t.Errorf("other = %+v", other)
	}

	starts := up.starts()
	if len(starts) != 2 {
		t.Fatalf("started %d chats, want 2", len(starts))
	}
	if starts[0] != testSettings().Generation {
		t.Errorf("generation = %+v", starts[0])
	}

	hist := s.Sessions().History("alpha")
	if len(hist) != 2 || hist[1].Message != "again" || hist[1].Response != "reply 2 to again" {
		t.Errorf("history = %+v", hist)
	}
}

func TestHandleChat_UpstreamError(t *testing.T) {
	s, up := newTestServer(t, testSettings())
	up.sendErr = &responder.Error{Status: 429, Message: "quota exceeded"}

	rec := do(t, s, http.MethodPost, "/api/chat", responder.ProxyRequest{SessionID: "s", Message: "hi"}, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := decode[responder.ProxyResponse](t, rec).Error; got != "Error generating response: quota exceeded" {
		t.Errorf("error = %q", got)
	}
	detail, ok := s.Sessions().Detail("s")
	if !ok || detail.MessageCount != 0 {
		t.Errorf("detail = %+v, %v; a failed send does not count", detail, ok)
	}
}

func TestHandleChat_StartError(t *testing.T) {
	s, up := newTestServer(t, testSettings())
	up.startErr = errors.New("no key")

	rec := do(t, s, http.MethodPost, "/api/chat", responder.ProxyRequest{SessionID: "s", Message: "hi"}, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := decode[responder.ProxyResponse](t, rec).Error; got != "Error creating chat session: no key" {
		t.Errorf("error = %q", got)
	}
	if s.Sessions().Len() != 0 {
		t.Error("failed start must not register a session")
	}
}

func TestHandleReset(t *testing.T) {
	s, _ := newTestServer(t, testSettings())
	do(t, s, http.MethodPost, "/api/chat", responder.ProxyRequest{SessionID: "s", Message: "hi"}, nil)

	for _, id := range []string{"s", "unknown", ""} {
		rec := do(t, s, http.MethodPost, "/api/reset", ResetRequest{SessionID: id}, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("reset %q status = %d", id, rec.Code)
		}
		body := decode[ResetResponse](t, rec)
		if !body.Success || body.Message != "Session reset successfully" {
			t.Errorf("reset %q body = %+v", id, body)
		}
	}
	if s.Sessions().Len() != 0 {
		t.Errorf("Len() = %d after reset", s.Sessions().Len())
	}

	// The next message starts over.
	rec := do(t, s, http.MethodPost, "/api/chat", responder.ProxyRequest{SessionID: "s", Message: "fresh"}, nil)
	if got := decode[responder.ProxyResponse](t, rec); got.MessageCount != 1 || got.Response != "reply 1 to fresh" {
		t.Errorf("after reset = %+v", got)
	}
}

func TestHandleSessionInfo(t *testing.T) {
	clock := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	s := New(testSettings(), &fakeUpstream{}, WithClock(func() time.Time { return clock }))
	do(t, s, http.MethodPost, "/api/chat", responder.ProxyRequest{SessionID: "b", Message: "1"}, nil)
	do(t, s, http.MethodPost, "/api/chat", responder.ProxyRequest{SessionID: "a", Message: "1"}, nil)
	do(t, s, http.MethodPost, "/api/chat", responder.ProxyRequest{SessionID: "a", Message: "2"}, nil)

	detail := decode[SessionDetail](t, do(t, s, http.MethodGet, "/api/session/info?session_id=a", nil, nil))
	if detail.SessionID != "a" || detail.MessageCount != 2 || !detail.CreatedAt.Equal(clock) {
		t.Errorf("detail = %+v", detail)
	}

	for _, path := range []string{"/api/session/info", "/api/session/info?session_id=zzz"} {
		list := decode[SessionList](t, do(t, s, http.MethodGet, path, nil, nil))
		if list.ActiveSessions != 2 || len(list.Sessions) != 2 {
			t.Fatalf("%s: list = %+v", path, list)
		}
		if list.Sessions[0].SessionID != "a" || list.Sessions[0].MessageCount != 2 {
			t.Errorf("%s: first = %+v", path, list.Sessions[0])
		}
	}
}

func TestNotFound(t *testing.T) {
	s, _ := newTestServer(t, testSettings())
	rec := do(t, s, http.MethodGet, "/v1/models", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

// =============================================================================
// MIDDLEWARE THROUGH THE ROUTER
// =============================================================================

func TestAuth(t *testing.T) {
	settings := testSettings()
	settings.Token = "s3cret"
	s, _ := newTestServer(t, settings)
	body := responder.ProxyRequest{SessionID: "s", Message: "hi"}

	if rec := do(t, s, http.MethodPost, "/api/chat", body, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}
	bad := http.Header{"Authorization": {"Bearer wrong"}}
	if rec := do(t, s, http.MethodPost, "/api/chat", body, bad); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", rec.Code)
	}
	basic := http.Header{"Authorization": {"Basic czNjcmV0"}}
	if rec := do(t, s, http.MethodPost, "/api/chat", body, basic); rec.Code != http.StatusUnauthorized {
		t.Errorf("basic auth: status = %d, want 401", rec.Code)
	}
	good := http.Header{"Authorization": {"Bearer s3cret"}}
	if rec := do(t, s, http.MethodPost, "/api/chat", body, good); rec.Code != http.StatusOK {
		t.Errorf("good token: status = %d, want 200", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/test", nil, nil); rec.Code != http.StatusOK {
		t.Errorf("/api/test should stay public, status = %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	settings := testSettings()
	settings.RateLimit = 0.001
	settings.RateBurst = 2
	s, _ := newTestServer(t, settings)

	var codes []int
	for i := 0; i < 3; i++ {
		codes = append(codes, do(t, s, http.MethodGet, "/api/session/info", nil, nil).Code)
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}

	s.Apply(testSettings()) // rate_limit 0 disables
	if rec := do(t, s, http.MethodGet, "/api/session/info", nil, nil); rec.Code != http.StatusOK {
		t.Errorf("after disabling: status = %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t, testSettings())

	preflight := http.Header{
		"Origin":                        {"http://localhost:5000"},
		"Access-Control-Request-Method": {"POST"},
	}
	rec := do(t, s, http.MethodOptions, "/api/chat", nil, preflight)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5000" {
		t.Errorf("Allow-Origin = %q", got)
	}

	rec = do(t, s, http.MethodGet, "/api/test", nil, http.Header{"Origin": {"http://evil.example"}})
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got Allow-Origin %q", got)
	}
}

func TestSecurityHeaders(t *testing.T) {
	s, _ := newTestServer(t, testSettings())
	rec := do(t, s, http.MethodGet, "/api/test", nil, nil)

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestApply(t *testing.T) {
	s, up := newTestServer(t, testSettings())
	do(t, s, http.MethodPost, "/api/chat", responder.ProxyRequest{SessionID: "old", Message: "hi"}, nil)

	next := testSettings()
	next.Addr = "127.0.0.1:9"
	next.Token = "tok"
	next.Generation.Temperature = 0.2
	next.Generation.SystemPrompt = "Be brief."
	s.Apply(next)

	if got := s.Settings(); got.Token != "tok" || got.Generation.Temperature != 0.2 {
		t.Errorf("Settings() = %+v", got)
	}
	if rec := do(t, s, http.MethodGet, "/api/session/info", nil, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("new token not enforced, status = %d", rec.Code)
	}

	auth := http.Header{"Authorization": {"Bearer tok"}}
	do(t, s, http.MethodPost, "/api/chat", responder.ProxyRequest{SessionID: "new", Message: "hi"}, auth)
	starts := up.starts()
	if len(starts) != 2 || starts[1].Temperature != 0.2 || starts[1].SystemPrompt != "Be brief." {
		t.Errorf("new session generation = %+v", starts)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestValidateBearerToken(t *testing.T) {
	tests := []struct {
		token, expected string
		want            bool
	}{
		{"abc", "abc", true},
		{"abc", "abd", false},
		{"", "abc", false},
		{"abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		if got := ValidateBearerToken(tt.token, tt.expected); got != tt.want {
			t.Errorf("ValidateBearerToken(%q, %q) = %v, want %v", tt.token, tt.expected, got, tt.want)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"direct", "203.0.113.7:5555", "", "", "203.0.113.7"},
		{"untrusted forwarder ignored", "203.0.113.7:5555", "198.51.100.1", "", "203.0.113.7"},
		{"trusted proxy xff", "127.0.0.1:5555", "198.51.100.1, 10.0.0.1", "", "198.51.100.1"},
		{"trusted proxy x-real-ip", "10.1.2.3:80", "", "198.51.100.2", "198.51.100.2"},
		{"garbage header", "192.168.1.1:80", "not-an-ip", "", "192.168.1.1"},
		{"no port", "198.51.100.9", "", "", "198.51.100.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := GetClientIP(r); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Responder.Model = "gemini-2.0-flash"
	cfg.Server.Token = "tok"

	got := SettingsFromConfig(cfg)
	if got.Addr != "127.0.0.1:5000" || got.Token != "tok" || got.CleanupEvery != 10 {
		t.Errorf("settings = %+v", got)
	}
	if got.SessionTTL != 24*time.Hour {
		t.Errorf("SessionTTL = %v", got.SessionTTL)
	}
	gen := got.Generation
	if gen.Model != "gemini-2.0-flash" || gen.Temperature != 0.9 || gen.TopP != 0.95 || gen.TopK != 40 || gen.MaxOutputTokens != 8192 {
		t.Errorf("generation = %+v", gen)
	}
	if !strings.HasPrefix(gen.SystemPrompt, "You're RavenIV") {
		t.Errorf("SystemPrompt = %q", gen.SystemPrompt)
	}
}

// =============================================================================
// WEBSOCKET AND LIFECYCLE
// =============================================================================

func dialWS(t *testing.T, ts *httptest.Server, query string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws" + query
	return websocket.DefaultDialer.Dial(url, nil)
}

func TestWebSocket(t *testing.T) {
	s, _ := newTestServer(t, testSettings())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := dialWS(t, ts, "")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	exchange := func(frame string) responder.ProxyResponse {
		t.Helper()
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Fatal(err)
		}
		var resp responder.ProxyResponse
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&resp); err != nil {
			t.Fatal(err)
		}
		return resp
	}

	if got := exchange(`{"session_id":"ws","message":"one"}`); got.Response != "reply 1 to one" || got.MessageCount != 1 {
		t.Errorf("first = %+v", got)
	}
	if got := exchange(`{"session_id":"ws","message":"two"}`); got.Response != "reply 2 to two" || got.MessageCount != 2 {
		t.Errorf("second = %+v", got)
	}
	if got := exchange(`not json`); got.Error != ErrMsgInvalidRequest {
		t.Errorf("invalid frame = %+v", got)
	}
	if got := exchange(`{"session_id":"ws"}`); got.Error != ErrMsgMessageRequired {
		t.Errorf("empty message = %+v", got)
	}
}

func TestWebSocket_Auth(t *testing.T) {
	settings := testSettings()
	settings.Token = "tok"
	s, _ := newTestServer(t, settings)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	_, resp, err := dialWS(t, ts, "")
	if err == nil {
		t.Fatal("dial without token should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %v, want 401", resp)
	}

	conn, _, err := dialWS(t, ts, "?token=tok")
	if err != nil {
		t.Fatalf("dial with token: %v", err)
	}
	conn.Close()
}

func TestServer_StartShutdown(t *testing.T) {
	s, _ := newTestServer(t, testSettings())
	addr, err := s.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + addr.String() + "/api/test")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if _, err := http.Get("http://" + addr.String() + "/api/test"); err == nil {
		t.Error("server still answering after Shutdown")
	}
}

func TestServer_Run(t *testing.T) {
	s, _ := newTestServer(t, testSettings())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}
