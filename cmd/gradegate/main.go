// Package main is the entry point for the GradeGate server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"gradegate/internal/assembler"
	"gradegate/internal/budget"
	"gradegate/internal/config"
	httpserver "gradegate/internal/http"
	"gradegate/internal/normalizer"
	"gradegate/internal/pipeline"
	"gradegate/internal/provider"
	"gradegate/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "config.toml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := telemetry.NewLogger(cfg.Telemetry.LogFormat, cfg.Telemetry.LogLevel)
	slog.SetDefault(logger)

	slog.Info("Starting GradeGate",
		"version", "0.1.0",
		"http_port", cfg.Server.HTTPPort,
		"provider", cfg.Provider.Name,
	)

	var metrics *telemetry.Metrics
	if cfg.Telemetry.PrometheusEnabled {
		metrics = telemetry.NewMetrics(prometheus.DefaultRegisterer)
	}

	generator, err := provider.NewGenerator(cfg)
	if err != nil {
		slog.Error("Failed to initialize provider", "error", err)
		os.Exit(1)
	}

	fileStore := provider.NewFileStore(cfg)
	if gfs, ok := fileStore.(*provider.GeminiFileStore); ok && metrics != nil {
		gfs.OnDedupHit = func() { metrics.UploadDedupHits.Inc() }
	}

	asm := assembler.New(assembler.Options{
		InjectionSensitivity: cfg.Pipeline.InjectionSensitivity,
		InlineImageLimit:     cfg.Pipeline.InlineImageLimit,
		FileStore:            fileStore,
		Metrics:              metrics,
		Logger:               logger,
	})

	pl := pipeline.New(pipeline.Options{
		Assembler:   asm,
		Budget:      budget.New(cfg.Pipeline.BaseMaxTokens, cfg.Pipeline.RetryMaxTokens),
		Generator:   generator,
		Normalizer:  normalizer.New(metrics, logger),
		Temperature: cfg.Pipeline.Temperature,
		Metrics:     metrics,
		Logger:      logger,
	})

	server := httpserver.NewServer(cfg, pl, metrics)
	defer server.Close()

	srv := server.HTTPServer()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", srv.Addr)
		errChan <- srv.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case err := <-errChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped")
}
