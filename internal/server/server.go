// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/whiterven/ravenx/internal/config"
	"github.com/whiterven/ravenx/internal/responder"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// MaxRequestBodySize bounds request bodies and websocket frames (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// MaxMessageLength is the longest message accepted, in bytes.
	MaxMessageLength = 100000

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// limiterSweep is how often idle rate limit buckets are dropped.
	limiterSweep = 5 * time.Minute
)

// Error messages returned to clients.
const (
	ErrMsgSessionRequired = "Session ID is required"
	ErrMsgMessageRequired = "Message is required"
	ErrMsgInvalidRequest  = "Invalid request format"
)

// ============================================================================
// SETTINGS
// ============================================================================

// Settings is everything the server reads from configuration.
type Settings struct {
	Addr           string
	Token          string
	AllowedOrigins []string
	RateLimit      float64
	RateBurst      int
	SessionTTL     time.Duration
	CleanupEvery   int
	Generation     GenerationConfig
}

// SettingsFromConfig extracts the [server] section plus the model name.
func SettingsFromConfig(cfg *config.Config) Settings {
	s := cfg.Server
	return Settings{
		Addr:           s.Addr,
		Token:          s.Token,
		AllowedOrigins: append([]string(nil), s.AllowedOrigins...),
		RateLimit:      s.RateLimit,
		RateBurst:      s.RateBurst,
		SessionTTL:     s.SessionTTL.Duration,
		CleanupEvery:   s.CleanupEvery,
		Generation: GenerationConfig{
			Model:           cfg.Responder.Model,
			SystemPrompt:    s.SystemPrompt,
			Temperature:     s.Temperature,
			TopP:            s.TopP,
			TopK:            s.TopK,
			MaxOutputTokens: s.MaxOutputTokens,
		},
	}
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the proxy HTTP server.
type Server struct {
	mu       sync.RWMutex
	settings Settings
	cors     *CORSConfig

	upstream Upstream
	sessions *Registry
	limiter  *RateLimiter
	router   chi.Router
	server   *http.Server
	log      zerolog.Logger

	ws *wsTracker
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) {
		s.log = log.With().Str("component", "server").Logger()
	}
}

// WithClock replaces time.Now for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.sessions.now = now
	}
}

// New creates a server. It does not listen until Run or Start.
func New(settings Settings, up Upstream, opts ...Option) *Server {
	s := &Server{
		settings: settings,
		cors:     NewCORSConfig(settings.AllowedOrigins),
		upstream: up,
		sessions: NewRegistry(settings.SessionTTL, settings.CleanupEvery),
		limiter:  NewRateLimiter(settings.RateLimit, settings.RateBurst),
		log:      zerolog.Nop(),
		ws:       newWSTracker(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

// Handler returns the router with all middleware.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sessions returns the session registry.
func (s *Server) Sessions() *Registry {
	return s.sessions
}

// Settings returns the settings in effect.
func (s *Server) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Apply swaps in reloaded settings. Generation settings apply to sessions
// started afterwards; the listen address cannot change while running.
func (s *Server) Apply(next Settings) {
	s.mu.Lock()
	prev := s.settings
	if next.Addr != prev.Addr && s.server != nil {
		s.log.Warn().Str("addr", next.Addr).Msg("Listen address change needs a restart")
		next.Addr = prev.Addr
	}
	s.settings = next
	s.cors = NewCORSConfig(next.AllowedOrigins)
	s.mu.Unlock()

	s.limiter.SetLimit(next.RateLimit, next.RateBurst)
	s.sessions.SetLimits(next.SessionTTL, next.CleanupEvery)

	s.log.Info().
		Float64("rate_limit", next.RateLimit).
		Int("rate_burst", next.RateBurst).
		Dur("session_ttl", next.SessionTTL).
		Str("model", next.Generation.Model).
		Bool("auth", next.Token != "").
		Msg("Settings applied")
}

func (s *Server) token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Token
}

func (s *Server) corsConfig() *CORSConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cors
}

func (s *Server) generation() GenerationConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Generation
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(LoggingMiddleware(s.log))
	r.Use(RecoveryMiddleware(s.log))
	r.Use(SecurityHeadersMiddleware())
	r.Use(CORSMiddleware(s.corsConfig))

	r.Route("/api", func(r chi.Router) {
		r.Get("/test", s.handleTest)

		r.Group(func(r chi.Router) {
			r.Use(RateLimitMiddleware(s.limiter, s.log))
			r.Use(AuthMiddleware(s.token, s.log))
			r.Post("/chat", s.handleChat)
			r.Post("/reset", s.handleReset)
			r.Get("/session/info", s.handleSessionInfo)
			r.Get("/ws", s.handleWS)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	s.router = r
}

// ============================================================================
// HANDLERS
// ============================================================================

// TestResponse is the /api/test body.
type TestResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// ResetRequest is the /api/reset body.
type ResetRequest struct {
	SessionID string `json:"session_id"`
}

// ResetResponse is the /api/reset reply.
type ResetResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) now() time.Time {
	return s.sessions.now()
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TestResponse{
		Status:    "ok",
		Message:   "Server is running",
		Timestamp: s.now().Format(time.RFC3339),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req responder.ProxyRequest
	if status, msg := decodeBody(w, r, &req); status != 0 {
		writeError(w, status, msg)
		return
	}
	resp, status := s.chat(r.Context(), req)
	writeJSON(w, status, resp)
}

// chat answers one message. The HTTP and websocket handlers share it.
func (s *Server) chat(ctx context.Context, req responder.ProxyRequest) (responder.ProxyResponse, int) {
	if strings.TrimSpace(req.SessionID) == "" {
		return responder.ProxyResponse{Error: ErrMsgSessionRequired}, http.StatusBadRequest
	}
	if strings.TrimSpace(req.Message) == "" {
		return responder.ProxyResponse{Error: ErrMsgMessageRequired}, http.StatusBadRequest
	}
	if len(req.Message) > MaxMessageLength {
		return responder.ProxyResponse{
			Error: fmt.Sprintf("Message exceeds maximum length of %d", MaxMessageLength),
		}, http.StatusBadRequest
	}

	log := s.log.With().Str("session", req.SessionID).Logger()
	sess, err := s.sessions.GetOrCreate(req.SessionID, func() (Conversation, error) {
		log.Debug().Msg("Starting session")
		return s.upstream.StartChat(ctx, s.generation())
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to start session")
		return responder.ProxyResponse{
			Error: fmt.Sprintf("Error creating chat session: %v", err),
		}, http.StatusInternalServerError
	}

	sess.send.Lock()
	defer sess.send.Unlock()

	text, err := sess.conv.Send(ctx, req.Message)
	if err != nil {
		ev := log.Error().Err(err)
		var rerr *responder.Error
		if errors.As(err, &rerr) {
			ev = ev.Int("status", rerr.Status)
		}
		ev.Msg("Upstream failed")
		return responder.ProxyResponse{
			Error: fmt.Sprintf("Error generating response: %v", err),
		}, http.StatusInternalServerError
	}

	count := s.sessions.Record(sess, req.Message, text)
	log.Debug().Int("message_count", count).Msg("Message answered")
	return responder.ProxyResponse{
		Response:     text,
		SessionID:    req.SessionID,
		MessageCount: count,
	}, http.StatusOK
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if status, msg := decodeBody(w, r, &req); status != 0 {
		writeError(w, status, msg)
		return
	}
	if req.SessionID != "" && s.sessions.Delete(req.SessionID) {
		s.log.Info().Str("session", req.SessionID).Msg("Session reset")
	}
	writeJSON(w, http.StatusOK, ResetResponse{
		Success:   true,
		Message:   "Session reset successfully",
		Timestamp: s.now().Format(time.RFC3339),
	})
}

func (s *Server) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("session_id"); id != "" {
		if detail, ok := s.sessions.Detail(id); ok {
			writeJSON(w, http.StatusOK, detail)
			return
		}
	}
	writeJSON(w, http.StatusOK, s.sessions.List())
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start listens on the configured address in the background and returns the
// bound address.
func (s *Server) Start() (net.Addr, error) {
	s.mu.Lock()
	addr := s.settings.Addr
	s.mu.Unlock()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("Proxy listening")
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("Server stopped")
		}
	}()
	return ln.Addr(), nil
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if _, err := s.Start(); err != nil {
		return err
	}

	sweep := time.NewTicker(limiterSweep)
	defer sweep.Stop()
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
			defer cancel()
			return s.Shutdown(shutdownCtx)
		case <-sweep.C:
			s.limiter.Cleanup(limiterSweep)
			if n := s.sessions.Cleanup(); n > 0 {
				s.log.Info().Int("removed", n).Msg("Idle sessions removed")
			}
		}
	}
}

// Shutdown stops accepting requests, closes websockets and waits for
// in-flight requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	s.log.Info().Msg("Shutting down")
	s.ws.closeAll()
	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	s.ws.wait(ctx)
	return err
}

// ============================================================================
// HELPERS
// ============================================================================

// decodeBody reads a size-limited JSON body. A non-zero status means the
// request should be rejected with msg.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) (int, string) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Request body exceeds maximum size of %d bytes", MaxRequestBodySize)
		}
		return http.StatusBadRequest, ErrMsgInvalidRequest
	}
	return 0, ""
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": message}.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, responder.ProxyResponse{Error: message})
}

// ============================================================================
// WEBSOCKET
// ============================================================================

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 20 * time.Second
	wsWriteWait  = 10 * time.Second
)

func (s *Server) upgrader() *websocket.Upgrader {
	cors := s.corsConfig()
	return &websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || cors.isOriginAllowed(origin)
		},
	}
}

// handleWS answers each text frame {session_id, message} with one frame
// shaped like the /api/chat reply. Frames are handled in order.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}
	if !s.ws.add(conn) {
		_ = conn.Close()
		return
	}
	defer s.ws.remove(conn)

	conn.SetReadLimit(MaxRequestBodySize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	var writeMu sync.Mutex
	write := func(messageType int, data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteMessage(messageType, data)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := write(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	ctx := r.Context()
	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Msg("Websocket closed")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var req responder.ProxyRequest
		var resp responder.ProxyResponse
		if err := json.Unmarshal(data, &req); err != nil {
			resp = responder.ProxyResponse{Error: ErrMsgInvalidRequest}
		} else {
			resp, _ = s.chat(ctx, req)
		}

		out, err := json.Marshal(resp)
		if err != nil {
			return
		}
		if err := write(websocket.TextMessage, out); err != nil {
			return
		}
	}
}

// wsTracker holds open websockets so Shutdown can close them; the HTTP
// server forgets hijacked connections.
type wsTracker struct {
	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

func newWSTracker() *wsTracker {
	return &wsTracker{conns: make(map[*websocket.Conn]struct{})}
}

func (t *wsTracker) add(c *websocket.Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.conns[c] = struct{}{}
	t.wg.Add(1)
	return true
}

func (t *wsTracker) remove(c *websocket.Conn) {
	t.mu.Lock()
	if _, ok := t.conns[c]; ok {
		delete(t.conns, c)
		_ = c.Close()
		t.wg.Done()
	}
	t.mu.Unlock()
}

func (t *wsTracker) closeAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	deadline := time.Now().Add(time.Second)
	for c := range t.conns {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"), deadline)
		_ = c.Close()
	}
}

func (t *wsTracker) wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
