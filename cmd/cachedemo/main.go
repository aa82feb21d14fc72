package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/collabify/cachekit/internal/cache"
	"github.com/collabify/cachekit/internal/config"
	"github.com/collabify/cachekit/internal/logger"
	"github.com/collabify/cachekit/internal/projects"
)

// Fetches the same project twice, clears the project lookups and fetches
// again, logging how long each call took.
func main() {
	projectID := flag.String("project", "fbff1d57", "project id to look up")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logger.New(cfg.Env)
	slog.SetDefault(logger)

	facade, closer, err := cache.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open cache store: %v", err)
	}
	defer closer.Close()

	service := projects.NewService(facade, projects.SampleSource{ProjectDelay: time.Second, UserDelay: 500 * time.Millisecond})

	fetch := func(label string) {
		logger.Info(label)
		start := time.Now()
		details, err := service.ProjectDetails(ctx, *projectID)
		if err != nil {
			logger.Error("Lookup failed", "error", err)
			return
		}
		logger.Info("Project details", "project", details, "took", time.Since(start))
	}

	fetch("Getting project details first time (expect delay)...")
	fetch("Getting project details second time (should be cached)...")

	service.InvalidateProjects(ctx)

	fetch("Getting project details after cache clear (expect delay again)...")
}
