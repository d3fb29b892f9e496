// Package main is the entry point for the SitePulse analytics server.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mbeckert/sitepulse/internal/api"
	"github.com/mbeckert/sitepulse/internal/config"
	"github.com/mbeckert/sitepulse/internal/insights"
	"github.com/mbeckert/sitepulse/internal/litecache"
	"github.com/mbeckert/sitepulse/internal/logstore"
	"github.com/mbeckert/sitepulse/internal/receiver"
	"github.com/mbeckert/sitepulse/internal/snapshot"
	"github.com/mbeckert/sitepulse/internal/source"
)

func main() {
	log.Println("Starting SitePulse analytics server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	ctx := context.Background()

	// Analytics source backend
	src, err := source.New(ctx, source.Config{
		Backend:            cfg.SourceBackend,
		SQLitePath:         cfg.SQLitePath,
		ClickHouseAddr:     cfg.ClickHouseAddr,
		ClickHouseDatabase: cfg.ClickHouseDatabase,
	})
	if err != nil {
		log.Fatalf("Failed to create %s source: %v", cfg.SourceBackend, err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Printf("Error closing source: %v", err)
		}
	}()

	// Insight rule thresholds, optionally tuned from a YAML file
	thresholds := insights.DefaultThresholds()
	if cfg.ThresholdsFile != "" {
		thresholds, err = insights.LoadThresholds(cfg.ThresholdsFile)
		if err != nil {
			log.Fatalf("Failed to load thresholds from %s: %v", cfg.ThresholdsFile, err)
		}
		log.Printf("Loaded insight thresholds from %s", cfg.ThresholdsFile)
	}
	engine := insights.NewEngine(thresholds)

	logs := logstore.New()

	orch := snapshot.New(src, logs, engine, snapshot.Options{
		CollectTimeout: cfg.CollectTimeout,
		LogWindow:      cfg.LogWindow,
		LogLimit:       cfg.LogLimit,
	})

	lite := litecache.NewManager(litecache.Options{
		MaxAge: cfg.LiteMaxAge,
	})

	// OTLP log receivers feeding the issue store
	slogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	httpReceiver := receiver.NewHTTPReceiver(cfg.HTTPAddr, logs, slogger)
	grpcReceiver := receiver.NewGRPCReceiver(cfg.GRPCAddr, logs, slogger)

	// REST API server
	apiServer := api.NewServer(cfg.APIAddr, orch, logs, lite)

	// Start servers in goroutines
	errChan := make(chan error, 3)

	go func() {
		log.Printf("Starting OTLP HTTP receiver on %s", cfg.HTTPAddr)
		if err := httpReceiver.Start(); err != nil {
			errChan <- fmt.Errorf("OTLP HTTP receiver error: %w", err)
		}
	}()

	go func() {
		log.Printf("Starting OTLP gRPC receiver on %s", cfg.GRPCAddr)
		if err := grpcReceiver.Start(); err != nil {
			errChan <- fmt.Errorf("OTLP gRPC receiver error: %w", err)
		}
	}()

	go func() {
		log.Printf("Starting REST API server on %s", cfg.APIAddr)
		if err := apiServer.Start(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Give servers time to start
	time.Sleep(100 * time.Millisecond)
	log.Println("All servers started successfully")
	log.Println("OTLP log endpoints:")
	log.Printf("  - HTTP: http://%s/v1/logs", cfg.HTTPAddr)
	log.Printf("  - gRPC: %s", cfg.GRPCAddr)
	log.Println("API endpoints:")
	log.Printf("  - Snapshot: http://%s/api/v1/analytics/snapshot", cfg.APIAddr)
	log.Printf("  - Aggregate: http://%s/api/v1/analytics/aggregate", cfg.APIAddr)
	log.Printf("  - Insights: http://%s/api/v1/analytics/insights", cfg.APIAddr)
	log.Printf("  - Log issues: http://%s/api/v1/logs/issues", cfg.APIAddr)
	log.Printf("  - Lite snapshot: http://%s/api/v1/lite/snapshot", cfg.APIAddr)
	log.Printf("  - Health: http://%s/api/v1/health", cfg.APIAddr)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		log.Fatalf("Server error: %v", err)
	case sig := <-sigChan:
		log.Printf("Received signal: %v, shutting down...", sig)
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Println("Shutting down servers...")
	if err := httpReceiver.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down OTLP HTTP receiver: %v", err)
	}
	if err := grpcReceiver.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down OTLP gRPC receiver: %v", err)
	}
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down API server: %v", err)
	}

	log.Println("Shutdown complete")
}
