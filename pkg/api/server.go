package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"carelog/factstore/pkg/config"
	"carelog/factstore/pkg/fact"
	"carelog/factstore/pkg/fact/query"
	"carelog/factstore/pkg/fact/storage"
	"carelog/factstore/pkg/telemetry/health"
	"carelog/factstore/pkg/telemetry/metrics"
)

// Server is the HTTP report server for the fact store.
type Server struct {
	config   *config.Config
	backend  storage.Backend
	registry *fact.Registry
	members  query.CarenetMembership
	metrics  *metrics.Collector
	checker  *health.Checker

	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a report server. members may be nil when carenet
// scoping is not available on the backend.
func NewServer(cfg *config.Config, backend storage.Backend, registry *fact.Registry, members query.CarenetMembership, collector *metrics.Collector) *Server {
	checker := health.New(0)
	if pinger, ok := backend.(interface {
		Ping(ctx context.Context) error
	}); ok {
		checker.RegisterCheck("storage", pinger.Ping)
	}

	return &Server{
		config:   cfg,
		backend:  backend,
		registry: registry,
		members:  members,
		metrics:  collector,
		checker:  checker,
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	handler := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           s.config.Server.ListenAddress,
		Handler:        handler,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		IdleTimeout:    s.config.Server.IdleTimeout,
		MaxHeaderBytes: s.config.Server.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting report server",
			"address", s.config.Server.ListenAddress,
			"backend", s.config.Storage.Backend,
		)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		slog.Info("initiating graceful shutdown", "timeout", s.config.Server.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("report server stopped")
	})

	return shutdownErr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// setupRoutes configures HTTP routes and the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	reportHandler := NewReportHandler(s.registry, s.backend, s.members, s.config.Query, s.metrics)
	ingestHandler := NewIngestHandler(s.registry, s.backend, s.metrics)

	mux.Handle("GET /records/{record}/reports/{type}/{$}", reportHandler)
	mux.Handle("GET /reports/{type}/{$}", reportHandler)
	mux.Handle("GET /records/{record}/reports/{type}/{fact}/{$}", reportHandler)
	mux.Handle("POST /records/{record}/facts/{$}", ingestHandler)

	mux.HandleFunc("/healthz", s.checker.LivenessHandler())
	mux.HandleFunc("/readyz", s.checker.ReadinessHandler())

	if s.config.Telemetry.Metrics.Enabled && s.metrics != nil {
		mux.Handle(s.config.Telemetry.Metrics.Path, s.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = RequestIDMiddleware(handler)
	handler = LoggingMiddleware(handler)
	handler = RecoveryMiddleware(handler)

	return handler
}
