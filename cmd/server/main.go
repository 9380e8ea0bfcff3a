// Package main is the entry point for the crates API server.
//
// The main package is kept minimal. Its job is to:
//  1. Read configuration (env vars and an optional crates.yaml, via internal/config)
//  2. Create the logger
//  3. Build and start the server
//
// All actual logic lives in imported packages (internal/server, internal/handler, etc.).
package main

import (
	"log/slog"
	"os"

	"github.com/sakif/crates-api/internal/config"
	"github.com/sakif/crates-api/internal/server"
)

func main() {
	// A bootstrap logger for config errors, before we know the configured level.
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Log levels (from least to most severe): Debug → Info → Warn → Error
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	srv, err := server.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create server",
			slog.String("driver", cfg.DB.Driver),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
