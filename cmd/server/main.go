// Package main is the entry point for the group study API server.
//
// The main package is kept minimal. Its job is to:
// 1. Read configuration (config.yaml, .env, environment)
// 2. Create the logger
// 3. Start the server
//
// All actual logic lives in internal/.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/sakif/group-study/internal/config"
	"github.com/sakif/group-study/internal/server"
)

func main() {
	configFile := flag.String("config", "", "path to a config file (default: ./config.yaml or ./config/config.yaml if present)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		// No configured logger yet.
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Validate already checked the level string.
	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if !cfg.Auth.CookieSecure {
		logger.Warn("session cookie is not Secure; use only for local HTTP development")
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
