// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer. It connects the store, service,
// handlers and middleware, and owns start-up and graceful shutdown.
//
// DEPENDENCY INJECTION FLOW:
//
//	main.go:      config.Load() → server.New(cfg, logger)
//	server.New:   OpenStore(cfg.DB) → CrateService → CrateHandler → routes
//
// This is the "composition root" pattern: all dependencies are wired in
// one place rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/crates-api/internal/config"
	"github.com/sakif/crates-api/internal/handler"
	"github.com/sakif/crates-api/internal/middleware"
	"github.com/sakif/crates-api/internal/repository"
	mysqlRepo "github.com/sakif/crates-api/internal/repository/mysql"
	postgresRepo "github.com/sakif/crates-api/internal/repository/postgres"
	sqliteRepo "github.com/sakif/crates-api/internal/repository/sqlite"
	"github.com/sakif/crates-api/internal/service"
)

// shutdownTimeout is how long in-flight requests get to finish on SIGINT/SIGTERM.
const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store (a connection pool). Start closes it after the
// HTTP server has drained, so no request can lose its connection mid-query.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	store  repository.Store
}

// OpenStore connects to the database selected by cfg.Driver.
//
// For file-backed SQLite the parent directory is created first (like `mkdir -p`).
func OpenStore(ctx context.Context, cfg config.DBConfig) (repository.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		if cfg.DSN != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		return sqliteRepo.New(cfg.DSN, sqliteRepo.Options{
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
	case config.DriverPostgres:
		return postgresRepo.New(ctx, cfg.DSN, postgresRepo.Options{
			MaxConns:        int32(cfg.MaxOpenConns),
			MaxConnLifetime: cfg.ConnMaxLifetime,
		})
	case config.DriverMySQL:
		return mysqlRepo.New(cfg.DSN, mysqlRepo.Options{
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// New opens the configured store and builds the router.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	store, err := OpenStore(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return NewWithStore(cfg, logger, store), nil
}

// NewWithStore builds a Server around an already-open store. Tests use it
// to inject an in-memory database.
func NewWithStore(cfg config.Config, logger *slog.Logger, store repository.Store) *Server {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, e.g. for httptest.NewServer.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz        → store ping
//	GET    /metrics        → Prometheus exposition
//	GET    /crates         → list (max 100)
//	GET    /crates/{id}    → get one
//	POST   /crates         → create
//	PUT    /crates/{id}    → update
//	DELETE /crates/{id}    → delete
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: tags the request so every later log line can carry it
//  2. RealIP: extracts real client IP from proxy headers
//  3. Logger: logs each request with timing info
//  4. Metrics: counts requests per route pattern
//  5. Recoverer: catches panics and returns 500 instead of crashing
//  6. Timeout: cancels the request context after RequestTimeout; the
//     context reaches every database call
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(chimiddleware.Timeout(s.config.RequestTimeout))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	crateService := service.NewCrateService(s.store, s.logger)
	crateHandler := handler.NewCrateHandler(crateService, s.logger)

	s.router.Group(func(r chi.Router) {
		// Bodies on POST/PUT must be JSON; anything else is 415.
		r.Use(chimiddleware.AllowContentType("application/json"))
		crateHandler.Routes(r)
	})
}

// handleHealth reports whether the store can hand out a working connection.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`"unavailable"` + "\n"))
		return
	}
	w.Write([]byte(`"ok"` + "\n"))
}

// Close releases the store. Start calls it on return; tests that never
// call Start call it directly.
func (s *Server) Close() error {
	return s.store.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the connection pool
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.config.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("driver", s.config.DB.Driver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
