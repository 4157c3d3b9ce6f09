package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "time/tzdata"

	"github.com/platformbuilds/mirador-insights/internal/api"
	"github.com/platformbuilds/mirador-insights/internal/bootstrap"
	"github.com/platformbuilds/mirador-insights/internal/config"
	"github.com/platformbuilds/mirador-insights/internal/monitoring"
	"github.com/platformbuilds/mirador-insights/internal/tracing"
	"github.com/platformbuilds/mirador-insights/internal/version"
	"github.com/platformbuilds/mirador-insights/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logger.New(cfg.LogLevel)
	logger.Info("Starting mirador-insights", "version", version.Version, "commit", version.Commit, "environment", cfg.Environment)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	if cfg.Monitoring.PrometheusEnabled {
		monitoring.Register(version.Version)
	}

	// NewTracerProvider installs the global provider that the pipeline's
	// tracer resolves, so no explicit tracer needs to be passed to Build.
	if cfg.Monitoring.TracingEnabled && cfg.Monitoring.OTLPEndpoint != "" {
		tp, err := tracing.NewTracerProvider(ctx, tracing.Options{
			ServiceName:    "mirador-insights",
			ServiceVersion: version.Version,
			Endpoint:       cfg.Monitoring.OTLPEndpoint,
			Insecure:       cfg.Monitoring.OTLPInsecure,
			SampleRatio:    cfg.Monitoring.SampleRatio,
		})
		if err != nil {
			logger.Error("Tracing disabled: failed to create tracer provider", "error", err)
		} else {
			defer func() {
				shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
				defer done()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					logger.Warn("Failed to flush traces", "error", err)
				}
			}()
			logger.Info("OpenTelemetry tracing enabled", "endpoint", cfg.Monitoring.OTLPEndpoint)
		}
	}

	app, err := bootstrap.Build(ctx, cfg, logger, bootstrap.Options{})
	if err != nil {
		logger.Fatal("Failed to initialize insights pipeline", "error", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("Failed to close resources", "error", err)
		}
	}()

	if cfg.Catalog.Watch && cfg.Catalog.Path != "" {
		go func() {
			if err := app.Catalog.Watch(ctx); err != nil {
				logger.Error("Catalog watcher stopped", "error", err)
			}
		}()
	}

	server := api.NewServer(cfg, logger, app.Provider, app.Window, app.ReadinessChecks()...)
	if err := server.Start(ctx); err != nil {
		logger.Error("Server stopped with error", "error", err)
		cancel()
	}

	logger.Info("mirador-insights shutdown complete")
}
