package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mikan/convo/internal/metrics"
	"github.com/mikan/convo/pkg/session"
)

// Options configures the HTTP server.
type Options struct {
	Host string
	Port int

	// ShutdownTimeout bounds the graceful drain. Zero means 30s.
	ShutdownTimeout time.Duration
}

// Server exposes the agent runtime over HTTP: chat with optional SSE
// streaming, session inspection and control, health and metrics.
type Server struct {
	options   Options
	manager   *session.Manager
	logger    zerolog.Logger
	server    *http.Server
	startTime time.Time

	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// New creates a Server.
func New(options Options, manager *session.Manager, logger zerolog.Logger) (*Server, error) {
	if manager == nil {
		return nil, fmt.Errorf("session manager is required")
	}

	if options.Host == "" {
		options.Host = "0.0.0.0"
	}
	if options.Port == 0 {
		options.Port = 8420
	}
	if options.ShutdownTimeout == 0 {
		options.ShutdownTimeout = 30 * time.Second
	}

	return &Server{
		options:   options,
		manager:   manager,
		logger:    logger,
		startTime: time.Now(),
	}, nil
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/chat", s.track(s.handleChat))
	mux.HandleFunc("GET /v1/sessions", s.track(s.handleListSessions))
	mux.HandleFunc("GET /v1/sessions/{id}/history", s.track(s.handleHistory))
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.track(s.handleDeleteSession))
	mux.HandleFunc("POST /v1/sessions/{id}/abort", s.track(s.handleAbort))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	return mux
}

// Start runs the server until it is stopped. It blocks.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler: s.Handler(),
	}

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Msg("Starting HTTP server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Stop drains in-flight requests, then shuts the listener down.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down HTTP server")

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(s.options.ShutdownTimeout):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

// track refuses new work during shutdown and counts in-flight requests.
func (s *Server) track(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.shutdownMu.RLock()
		shuttingDown := s.isShuttingDown
		s.shutdownMu.RUnlock()

		if shuttingDown {
			writeError(w, http.StatusServiceUnavailable, "server is shutting down")
			return
		}

		s.inFlightReqs.Add(1)
		defer s.inFlightReqs.Done()

		next(w, r)
	}
}
