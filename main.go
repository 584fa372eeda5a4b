package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/parlor/parlor/pkg/config"
	"github.com/parlor/parlor/pkg/utils"
)

// main starts the chat server: it loads configuration, wires the HTTP API
// and the websocket gateway, and runs until interrupted.
func main() {
	// Optional .env file for local development (PARLOR_PORT, PARLOR_JWT_SECRET, ...).
	_ = godotenv.Load()

	// Initialize logging system
	utils.InitLogger()
	logger := utils.GetLogger()

	if _, err := config.EnsureDefaultConfig(); err != nil {
		logger.Warn("Failed to write default config", "error", err)
	}

	cfg, _, err := config.Load()
	if err != nil {
		logger.Warn("Failed to load config; falling back to defaults", "error", err)
		cfg = &config.AppConfig{}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := NewServer(cfg)
	if err != nil {
		logger.Error("Failed to initialize server", "error", err)
		os.Exit(1)
	}

	if err := server.Start(ctx); err != nil {
		logger.Error("Failed to start server", "error", err)
		os.Exit(1)
	}

	// Block until interrupted; Start shuts the listener down on ctx cancel.
	<-ctx.Done()
}
