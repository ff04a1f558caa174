// Package server exposes the orchestrator over HTTP: a small JSON API for
// submitting and inspecting render jobs, and a WebSocket endpoint that
// streams job lifecycle events to connected dashboards.
package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/prismvfx/farmhand/render"
	"github.com/prismvfx/farmhand/stream"
)

// ShutdownTimeout is how long to wait for graceful shutdown
const ShutdownTimeout = 10 * time.Second

// Config carries the listener settings.
type Config struct {
	ListenAddr string
	// Keepalive is the WebSocket ping cadence. Zero, or any value that
	// would not fit inside the pong timeout, selects the default.
	Keepalive time.Duration
}

// Server serves the job API and the event stream.
type Server struct {
	cfg    Config
	orch   *render.Orchestrator
	hub    *stream.Hub
	logger *zap.SugaredLogger

	httpServer *http.Server
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// New wires a Server around an orchestrator and its event hub.
func New(cfg Config, orch *render.Orchestrator, hub *stream.Hub, log *zap.SugaredLogger) *Server {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8420"
	}
	// A ping cadence at or past pongWait would let every idle connection's
	// read deadline expire between pings.
	if cfg.Keepalive <= 0 || cfg.Keepalive >= pongWait {
		cfg.Keepalive = pingPeriod
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:    cfg,
		orch:   orch,
		hub:    hub,
		logger: log,
		ctx:    ctx,
		cancel: cancel,
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)
	s.httpServer = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}
	return s
}

// setupRoutes configures all HTTP handlers
func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.HandleHealth)
	mux.HandleFunc("/ws", s.HandleWebSocket)
	mux.HandleFunc("/api/jobs", s.HandleJobs)      // List (GET) / submit (POST)
	mux.HandleFunc("/api/jobs/", s.HandleJob)      // Single job (GET) and cancel (POST /cancel)
	mux.HandleFunc("/api/farms", s.HandleFarms)    // Capability snapshot (GET)
	mux.HandleFunc("/api/analytics", s.HandleAnalytics)
	mux.HandleFunc("/api/store/stats", s.HandleStoreStats)
}

// Start begins serving. It blocks until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.logger.Infow("HTTP server listening", "addr", s.cfg.ListenAddr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop drains the listener and waits for WebSocket pumps to exit.
func (s *Server) Stop() {
	s.cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warnw("HTTP shutdown error", "error", err)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Infow("All client goroutines stopped cleanly")
	case <-time.After(ShutdownTimeout):
		s.logger.Warnw("Client shutdown timed out, forcing exit", "timeout", ShutdownTimeout)
	}
}

// HandleHealth reports liveness plus a few cheap table counters.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"jobs":        len(s.orch.Snapshot()),
		"subscribers": s.hub.SubscriberCount(),
	})
}

// allowLocalOrigin validates WebSocket origins for browser clients. Requests
// with no Origin header (CLI tools, tests) pass through.
func allowLocalOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, prefix := range []string{
		"http://localhost", "https://localhost",
		"http://127.0.0.1", "https://127.0.0.1",
	} {
		if strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return false
}
