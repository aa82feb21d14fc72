package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/collabify/cachekit/internal/cache"
	"github.com/collabify/cachekit/internal/config"
	"github.com/collabify/cachekit/internal/logger"
	"github.com/collabify/cachekit/internal/telemetry"
	"github.com/collabify/cachekit/internal/worker"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize telemetry
	if cfg.OtelExporterOTLPEndpoint != "" {
		shutdown, err := telemetry.InitTelemetry(ctx, cfg.ServiceName+"-worker", cfg.ServiceVersion, cfg.Env,
			cfg.OtelExporterOTLPEndpoint, telemetry.ParseHeaders(cfg.OtelExporterOTLPHeaders))
		if err != nil {
			slog.Warn("Failed to init telemetry", "error", err)
		} else {
			defer shutdown(ctx)
		}
	}

	// Initialize logger with OTel support
	logger := logger.New(cfg.Env)
	slog.SetDefault(logger)

	if cfg.Cache.Store == config.StoreMemory {
		logger.Warn("Worker is using an in-process store; queued invalidations will not reach the server's cache")
	}

	facade, closer, err := cache.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open cache store: %v", err)
	}
	defer closer.Close()

	workerMetrics, err := worker.NewWorkerMetrics()
	if err != nil {
		logger.Warn("Failed to init worker metrics", "error", err)
	}

	invalidator := worker.NewCacheInvalidator(facade, logger)
	mux := worker.NewMux(invalidator.Handlers(), workerMetrics)
	srv := worker.NewServer(cfg, logger)

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down worker...")
		srv.Shutdown()
	}()

	logger.Info("Starting worker", "redis", cfg.RedisAddr(), "db", cfg.RedisDB)

	if err := srv.Run(mux); err != nil {
		log.Fatalf("Worker failed: %v", err)
	}
}
