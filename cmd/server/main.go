// Package main is the entry point for the TopTuitions server.
//
// main stays minimal: read configuration, create the logger, start the
// server. Everything else lives under internal/.
//
// Configuration comes from the environment and an optional .env file
// (ENV_FILE overrides the path); see internal/config for every key.
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/toptuitions/toptuitions/internal/config"
	"github.com/toptuitions/toptuitions/internal/server"
)

func main() {
	cfg, err := config.Load(config.EnvFile())
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Log levels (least to most severe): Debug → Info → Warn → Error.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	// The database directory must exist before SQLite can create the file.
	if cfg.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
