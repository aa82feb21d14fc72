package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	_ "github.com/joho/godotenv/autoload"
	"github.com/riandyrn/otelchi"
	otelchimetric "github.com/riandyrn/otelchi/metric"
	"go.opentelemetry.io/otel"

	"github.com/collabify/cachekit/internal/api"
	"github.com/collabify/cachekit/internal/cache"
	"github.com/collabify/cachekit/internal/config"
	"github.com/collabify/cachekit/internal/graphql"
	"github.com/collabify/cachekit/internal/logger"
	"github.com/collabify/cachekit/internal/projects"
	"github.com/collabify/cachekit/internal/telemetry"
	"github.com/collabify/cachekit/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize telemetry
	if cfg.OtelExporterOTLPEndpoint != "" {
		shutdown, err := telemetry.InitTelemetry(ctx, cfg.ServiceName, cfg.ServiceVersion, cfg.Env,
			cfg.OtelExporterOTLPEndpoint, telemetry.ParseHeaders(cfg.OtelExporterOTLPHeaders))
		if err != nil {
			slog.Warn("Failed to init telemetry", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	// Initialize logger with OTel support
	logger := logger.New(cfg.Env)
	slog.SetDefault(logger)

	facade, closer, err := cache.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open cache store: %v", err)
	}
	defer closer.Close()

	var source projects.Source
	if cfg.AuthToken != "" {
		source = projects.NewGraphQLSource(graphql.NewClient(cfg.GraphQLEndpoint, cfg.AuthToken))
		logger.Info("Serving lookups from GraphQL", "endpoint", cfg.GraphQLEndpoint)
	} else {
		source = projects.SampleSource{ProjectDelay: time.Second, UserDelay: 500 * time.Millisecond}
		logger.Info("AUTH_TOKEN not set, serving sample data")
	}
	service := projects.NewService(facade, source)

	// Asynq client for queued invalidations
	asynqClient := worker.NewClient(cfg)
	defer asynqClient.Close()

	apiServer := api.NewServer(cfg, service, facade, asynqClient, logger)

	r := chi.NewRouter()

	r.Use(otelchi.Middleware(cfg.ServiceName,
		otelchi.WithChiRoutes(r),
		otelchi.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health"
		}),
	))

	// HTTP metrics
	metricCfg := otelchimetric.NewBaseConfig(cfg.ServiceName, otelchimetric.WithMeterProvider(otel.GetMeterProvider()))
	r.Use(otelchimetric.NewRequestDurationMillis(metricCfg))
	r.Use(otelchimetric.NewRequestInFlight(metricCfg))
	r.Use(otelchimetric.NewResponseSizeBytes(metricCfg))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	apiServer.Register(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", "error", err)
		}
	}()

	logger.Info("Starting server", "port", cfg.Port, "store", cfg.Cache.Store)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
