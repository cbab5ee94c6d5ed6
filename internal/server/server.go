// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/cors"

	"github.com/jeranaias/omnitool/internal/config"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// HealthMessage is reported by the health endpoint.
	HealthMessage = "Ollama Proxy Server is Running"

	// ProxyErrorMessage is returned when the local daemon cannot be reached.
	ProxyErrorMessage = "Failed to connect to local Ollama instance via proxy."

	// RelayErrorMessage is returned when the cloud API cannot be reached.
	RelayErrorMessage = "Failed to reach cloud API via proxy."

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout = 5 * time.Second
)

// ============================================================================
// STATS
// ============================================================================

// Stats counts gateway traffic.
type Stats struct {
	StartTime time.Time
	proxied   atomic.Int64
	relayed   atomic.Int64
	failures  atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Uptime   string `json:"uptime"`
	Proxied  int64  `json:"proxied"`
	Relayed  int64  `json:"relayed"`
	Failures int64  `json:"failures"`
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Uptime:   time.Since(s.StartTime).Round(time.Second).String(),
		Proxied:  s.proxied.Load(),
		Relayed:  s.relayed.Load(),
		Failures: s.failures.Load(),
	}
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the local proxy gateway. It relays the daemon API and the cloud
// API to a browser client on the same origin and serves the client itself.
type Server struct {
	cfg        config.GatewayConfig
	ollamaURL  *url.URL
	proxy      *httputil.ReverseProxy
	relay      *http.Client
	cloudHosts map[string]bool
	limiter    *RateLimiter
	logger     *log.Logger
	stats      *Stats
	mux        *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRelayClient sets the HTTP client used for cloud relaying.
func WithRelayClient(c *http.Client) Option {
	return func(s *Server) {
		if c != nil {
			s.relay = c
		}
	}
}

// WithProxyTransport sets the transport used to reach the daemon.
func WithProxyTransport(rt http.RoundTripper) Option {
	return func(s *Server) {
		if rt != nil {
			s.proxy.Transport = rt
		}
	}
}

// New creates a gateway for cfg.
func New(cfg config.GatewayConfig, opts ...Option) (*Server, error) {
	target, err := url.Parse(cfg.OllamaHost)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid ollama host %q", cfg.OllamaHost)
	}

	s := &Server{
		cfg:        cfg,
		ollamaURL:  target,
		relay:      &http.Client{},
		cloudHosts: make(map[string]bool, len(cfg.CloudHosts)),
		logger:     log.Default(),
		stats:      &Stats{StartTime: time.Now()},
		mux:        http.NewServeMux(),
	}
	for _, h := range cfg.CloudHosts {
		s.cloudHosts[strings.ToLower(strings.TrimSpace(h))] = true
	}
	if cfg.RateLimit > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	s.proxy = s.newOllamaProxy()

	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s, nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
}

// Stats returns the traffic counters.
func (s *Server) Stats() StatsSnapshot {
	return s.stats.Snapshot()
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	// Daemon API
	s.mux.HandleFunc("POST /api/chat", s.handleProxy)
	s.mux.HandleFunc("POST /api/generate", s.handleProxy)
	s.mux.HandleFunc("GET /api/tags", s.handleProxy)

	// Cloud pass-through
	s.mux.HandleFunc("POST /api/cloud", s.handleCloudRelay)

	// Health and client
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /", s.handleStatic)
}

// Handler returns the routed handler wrapped in the middleware chain.
// Permissive CORS sits outermost so preflight requests are answered before
// rate limiting.
func (s *Server) Handler() http.Handler {
	limitBytes := int64(s.cfg.BodyLimitMB) * 1024 * 1024

	h := Chain(
		RecoveryMiddleware(s.logger),
		LoggingMiddleware(s.logger),
		RateLimitMiddleware(s.limiter, s.logger),
		SecurityHeadersMiddleware(),
		BodyLimitMiddleware(limitBytes),
	)(s.mux)

	return cors.AllowAll().Handler(h)
}

// ============================================================================
// HEALTH AND STATIC FILES
// ============================================================================

// HealthResponse is the gateway health document.
type HealthResponse struct {
	Status     string         `json:"status"`
	Message    string         `json:"message"`
	OllamaHost string         `json:"ollamaHost"`
	Stats      *StatsSnapshot `json:"stats,omitempty"`
}

func (s *Server) health() HealthResponse {
	return HealthResponse{Status: "ok", Message: HealthMessage, OllamaHost: s.cfg.OllamaHost}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := s.health()
	snap := s.stats.Snapshot()
	resp.Stats = &snap
	writeJSON(w, http.StatusOK, resp)
}

// handleRoot serves the client to browsers and the health document to
// everything else.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if acceptsHTML(r) {
		if index, ok := s.indexPath(); ok {
			http.ServeFile(w, r, index)
			return
		}
	}
	writeJSON(w, http.StatusOK, s.health())
}

// handleStatic serves files from the static directory, falling back to
// index.html for client-side routes.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Not Found"})
		return
	}
	if s.cfg.StaticDir == "" {
		http.NotFound(w, r)
		return
	}

	clean := path.Clean("/" + r.URL.Path)
	file := filepath.Join(s.cfg.StaticDir, filepath.FromSlash(clean))
	if info, err := os.Stat(file); err == nil && !info.IsDir() {
		http.ServeFile(w, r, file)
		return
	}

	index, ok := s.indexPath()
	if !ok {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, index)
}

func (s *Server) indexPath() (string, bool) {
	if s.cfg.StaticDir == "" {
		return "", false
	}
	index := filepath.Join(s.cfg.StaticDir, "index.html")
	if info, err := os.Stat(index); err != nil || info.IsDir() {
		return "", false
	}
	return index, true
}

func acceptsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("SERVER_START | addr=%s ollama=%s static=%s", ln.Addr(), s.cfg.OllamaHost, s.cfg.StaticDir)
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		s.logger.Printf("SERVER_SHUTDOWN | starting graceful shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Printf("SERVER_SHUTDOWN | err=%v", err)
			return err
		}
		s.logger.Printf("SERVER_STOPPED | %+v", s.stats.Snapshot())
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// ============================================================================
// HELPERS
// ============================================================================

// ErrorResponse is the JSON error body of the gateway.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
