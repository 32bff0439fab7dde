// Package api exposes the HTTP surface of the relay: job submission, status
// polling, artifact retrieval, health, and a WebSocket progress feed.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/voxrelay/voxrelay/internal/artifact"
	"github.com/voxrelay/voxrelay/internal/config"
	"github.com/voxrelay/voxrelay/internal/dispatch"
	"github.com/voxrelay/voxrelay/internal/job"
	"github.com/voxrelay/voxrelay/internal/synth"
)

// Server handles HTTP API requests.
type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	server     *http.Server
	dispatcher *dispatch.Dispatcher
	store      *job.Store
	chain      *synth.Chain
	artifacts  *artifact.Store
	startedAt  time.Time
}

// New creates a new API server.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	dispatcher *dispatch.Dispatcher,
	store *job.Store,
	chain *synth.Chain,
	artifacts *artifact.Store,
) *Server {
	s := &Server{
		cfg:        cfg,
		logger:     logger,
		dispatcher: dispatcher,
		store:      store,
		chain:      chain,
		artifacts:  artifacts,
		startedAt:  time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/tts", s.withAuth(s.handleTTS))
	mux.HandleFunc("GET /api/job/{id}", s.handleJob)
	mux.HandleFunc("GET /api/download/{id}", s.handleDownload)
	mux.HandleFunc("GET /api/events/{id}", s.handleEvents)
	mux.Handle("GET /audio/", http.StripPrefix("/audio/",
		http.FileServer(http.Dir(artifacts.Dir()))))

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: mux,
		// No WriteTimeout: the WebSocket feed outlives any fixed budget.
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
