// Package server exposes the search service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/similivec/similivec/internal/config"
	"github.com/similivec/similivec/pkg/search"
)

// Server holds the HTTP interface and the search service behind it.
type Server struct {
	Service *search.Service

	cfg         config.ServerConfig
	httpServer  *http.Server
	handler     http.Handler
	taskManager *TaskManager
	corpus      *CorpusSyncer
	knnK        int
}

// Option customizes a Server.
type Option func(*Server)

// WithCorpus reports the syncer's state in /api/stats.
func WithCorpus(cs *CorpusSyncer) Option {
	return func(s *Server) { s.corpus = cs }
}

// WithKnnK sets the default k of /api/knn.
func WithKnnK(k int) Option {
	return func(s *Server) { s.knnK = k }
}

// NewServer wires the routes and middlewares. The service must be ready to
// answer queries; Run only starts listening.
func NewServer(svc *search.Service, cfg config.ServerConfig, opts ...Option) *Server {
	s := &Server{
		Service:     svc,
		cfg:         cfg,
		taskManager: NewTaskManager(),
		knnK:        search.DefaultKnnK,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	s.registerHTTPHandlers(mux)

	// Chain middlewares: Recovery -> Logging -> CORS -> Auth -> Mux
	// Recovery must be outer-most to catch everything.
	var handler http.Handler = mux
	handler = s.AuthMiddleware(handler)
	handler = s.CORSMiddleware(handler)
	handler = s.LoggingMiddleware(handler)
	handler = s.RecoveryMiddleware(handler)

	rootMux := http.NewServeMux()
	rootMux.HandleFunc("GET /healthz", s.handleHealthz)
	rootMux.Handle("/", handler)
	s.handler = rootMux

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      rootMux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the complete handler chain, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// Run listens until Shutdown is called.
func (s *Server) Run() error {
	slog.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server startup failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones. It does not
// stop the corpus syncer; the caller owns it.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("starting graceful shutdown of HTTP server")
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}
	return nil
}
