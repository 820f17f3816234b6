// Package main is the entry point for the linkstash server. It reads
// configuration from the environment, sets up logging, and hands off to
// internal/server.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sakif/linkstash/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		logger.Error("failed to create database directory", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func loadConfig() (server.Config, error) {
	cfg := server.Config{
		Port:    8080,
		DBPath:  "data/linkstash.db",
		BlobDir: "data/blobs",
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return cfg, fmt.Errorf("invalid PORT %q", portStr)
		}
		cfg.Port = port
	}

	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("BLOB_DIR"); v != "" {
		cfg.BlobDir = v
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}

	// JWT_SECRET has no safe default. Generate one with:
	//   openssl rand -hex 32
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET must be set")
	}

	cfg.GitHubClientID = os.Getenv("GITHUB_CLIENT_ID")
	cfg.GitHubClientSecret = os.Getenv("GITHUB_CLIENT_SECRET")
	cfg.GitHubCallbackURL = os.Getenv("GITHUB_CALLBACK_URL")
	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}

	if v := os.Getenv("SWEEP_INTERVAL"); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid SWEEP_INTERVAL %q", v)
		}
		cfg.SweepInterval = interval
	}

	cfg.ChromePath = os.Getenv("CHROME_PATH")
	cfg.CaptureDisabled = os.Getenv("CAPTURE_DISABLED") == "1"

	return cfg, nil
}
