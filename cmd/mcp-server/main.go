// Package main provides the MCP entry point. It needs no external services:
// predictions are cached in memory and outcomes are kept in SQLite.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/bd4predict/predict-api/internal/app"
	"github.com/bd4predict/predict-api/internal/config"
	"github.com/bd4predict/predict-api/internal/logging"
	"github.com/bd4predict/predict-api/internal/mcp"
)

func main() {
	_ = godotenv.Load()

	// Load lightweight configuration
	lite := config.LoadLiteConfig()
	if err := lite.EnsureDataDir(); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	cfg := lite.ToConfig()

	// stdout carries the protocol, so logs go to stderr
	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	logger.WithField("data_dir", lite.DataDir).Infof("Starting BD4Predict MCP Server with transport: %s", lite.Transport)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	application, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize services")
	}

	// The MCP server takes ownership of the feedback store
	server, err := mcp.NewServer(cfg.MCP, application.Predictions,
		mcp.WithLogger(logger),
		mcp.WithFeedbackStore(application.Outcomes),
	)
	if err != nil {
		application.Close()
		logger.WithError(err).Fatal("Failed to create MCP server")
	}
	application.Outcomes = nil
	defer application.Close()
	defer server.Close()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("MCP server failed")
		return
	}

	logger.Info("BD4Predict MCP Server stopped")
}
