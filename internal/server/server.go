// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jeranaias/rigrun-pal/internal/host"
)

// Version is reported by /health.
var Version = "dev"

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8788"

	// MaxRequestBodySize bounds chat request bodies. Editor documents are
	// sent inline, so this is generous.
	MaxRequestBodySize = 8 << 20

	// ClientPruneInterval is how often idle rate-limit buckets are dropped.
	ClientPruneInterval = time.Minute

	// ClientIdleTimeout is how long a client may be idle before its
	// rate-limit bucket is dropped.
	ClientIdleTimeout = 10 * time.Minute
)

// ============================================================================
// SERVER
// ============================================================================

// HealthCheck probes a backend; nil means healthy.
type HealthCheck func(ctx context.Context) error

// Options configures a Server.
type Options struct {
	Addr string
	// Model is attached to every chat request.
	Model host.LanguageModel
	// ModelCheck, if set, is probed by /health.
	ModelCheck HealthCheck
	// RateLimit is the sustained requests per second per client; zero
	// disables rate limiting.
	RateLimit float64
	RateBurst int
	Logger    *log.Logger
}

// Server is the HTTP chat host.
type Server struct {
	addr     string
	router   *http.ServeMux
	server   *http.Server
	registry *Registry
	limiter  *RateLimiter
	logger   *log.Logger

	model      host.LanguageModel
	modelCheck HealthCheck

	started  time.Time
	requests atomic.Int64
	failures atomic.Int64

	mu sync.RWMutex
}

// New creates a server around registry.
func New(registry *Registry, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	s := &Server{
		addr:       opts.Addr,
		router:     http.NewServeMux(),
		registry:   registry,
		logger:     opts.Logger,
		model:      opts.Model,
		modelCheck: opts.ModelCheck,
		started:    time.Now(),
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = NewRateLimiter(opts.RateLimit, burst)
		s.limiter.StartCleanup(ClientPruneInterval, ClientIdleTimeout)
	}

	s.setupRoutes()
	return s
}

// SetModel replaces the model attached to new requests.
func (s *Server) SetModel(model host.LanguageModel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
}

// Registry returns the server's chat registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /v1/agents", s.handleAgents)
	s.router.HandleFunc("POST /v1/agents/{id}/chat", s.handleChat)
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		RecoveryMiddleware(),
		LoggingMiddleware(s.logger),
	}
	if s.limiter != nil {
		middlewares = append(middlewares, RateLimitMiddleware(s.limiter))
	}
	return Chain(middlewares...)(s.router)
}

// ============================================================================
// REQUEST TYPES
// ============================================================================

// ChatBody is the body of POST /v1/agents/{id}/chat.
type ChatBody struct {
	Command string      `json:"command"`
	Prompt  string      `json:"prompt"`
	Editor  *EditorBody `json:"editor,omitempty"`
}

// EditorBody carries the document and selection of an editor request.
type EditorBody struct {
	URI       string     `json:"uri"`
	Text      string     `json:"text"`
	Selection host.Range `json:"selection"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Agents      int    `json:"agents"`
	ModelStatus string `json:"model_status"`
	Requests    int64  `json:"requests"`
	Failures    int64  `json:"failures"`
	Uptime      string `json:"uptime"`
}

// AgentsResponse is the body of GET /v1/agents.
type AgentsResponse struct {
	Agents []AgentInfo `json:"agents"`
}

// ============================================================================
// HANDLERS
// ============================================================================

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:   "ok",
		Version:  Version,
		Agents:   len(s.registry.Agents()),
		Requests: s.requests.Load(),
		Failures: s.failures.Load(),
		Uptime:   time.Since(s.started).Round(time.Second).String(),
	}

	if s.modelCheck != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.modelCheck(ctx); err == nil {
			health.ModelStatus = "ok"
		} else {
			health.ModelStatus = "unavailable"
			health.Status = "degraded"
		}
	} else {
		health.ModelStatus = "not_configured"
	}

	writeJSON(w, http.StatusOK, health)
}

// handleAgents handles GET /v1/agents.
func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, AgentsResponse{Agents: s.registry.Agents()})
}

// handleChat handles POST /v1/agents/{id}/chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	id := r.PathValue("id")

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	var body ChatBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.failures.Add(1)
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	handler, err := s.registry.Handler(id)
	if err != nil {
		s.failures.Add(1)
		writeError(w, statusFor(err), err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	s.mu.RLock()
	model := s.model
	s.mu.RUnlock()

	req := toChatRequest(body, model)
	stream := newSSEStream(w, flusher)
	log.Printf("CHAT_START | agent=%s command=%s stream=%s location=%s", id, body.Command, stream.id, req.Location)

	err = handler(r.Context(), req, stream)
	if err != nil {
		s.failures.Add(1)
		log.Printf("CHAT_FAILED | agent=%s stream=%s error=%v", id, stream.id, err)
		if !stream.Started() {
			writeError(w, statusFor(err), err.Error())
			return
		}
		stream.fail(err)
	}
	parts := stream.done()
	log.Printf("CHAT_DONE | agent=%s stream=%s parts=%d", id, stream.id, parts)
}

func toChatRequest(body ChatBody, model host.LanguageModel) *host.ChatRequest {
	req := &host.ChatRequest{
		Command:  body.Command,
		Prompt:   body.Prompt,
		Location: host.LocationPanel,
		Model:    model,
	}
	if body.Editor != nil {
		req.Location = host.LocationEditor
		req.Editor = &host.EditorData{
			Document:  &host.TextDocument{URI: body.Editor.URI, Text: body.Editor.Text},
			Selection: body.Editor.Selection,
		}
	}
	return req
}

// statusFor maps handler errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, host.ErrNoCommand):
		return http.StatusBadRequest
	case errors.Is(err, host.ErrUnknownAgent), errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, fs.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, host.ErrNoModel):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// ListenAndServe starts the HTTP server and blocks until it stops.
func (s *Server) ListenAndServe() error {
	s.mu.Lock()
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		// No WriteTimeout: chat streams last as long as the model runs.
	}
	srv := s.server
	s.mu.Unlock()

	log.Printf("SERVER_START | addr=%s version=%s", s.addr, Version)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server and its rate-limit cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}

	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}

	log.Printf("SERVER_SHUTDOWN | requests=%d failures=%d", s.requests.Load(), s.failures.Load())
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    status,
		},
	})
}
