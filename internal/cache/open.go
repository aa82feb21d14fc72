package cache

import (
	"context"
	"io"
	"log/slog"

	"github.com/collabify/cachekit/internal/config"
	"github.com/collabify/cachekit/internal/metrics"
	"github.com/collabify/cachekit/internal/store"
	"github.com/collabify/cachekit/internal/utils"
)

// Open builds a Facade over the store selected in cfg. An unreachable Redis
// is logged and tolerated: the facade degrades to calling operations
// directly until the store comes back.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Facade, io.Closer, error) {
	opts := []Option{
		WithLogger(logger),
		WithTimeout(cfg.Cache.OperationTimeout),
		WithTracing(),
	}
	if cfg.Cache.Singleflight {
		opts = append(opts, WithSingleflight())
	}
	if m, err := metrics.NewCacheMetrics(); err != nil {
		logger.Warn("Failed to init cache metrics", "error", err)
	} else {
		opts = append(opts, WithMetrics(m))
	}

	if cfg.Cache.Store == config.StoreMemory {
		s := store.NewMemoryStore(cfg.Cache.MemorySweepInterval)
		logger.Info("Using in-process cache store")
		return New(s, opts...), s, nil
	}

	client, err := store.NewRedisClient(store.RedisOptions{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Tracing:  cfg.OtelExporterOTLPEndpoint != "",
	})
	if err != nil {
		return nil, nil, err
	}
	s := store.NewRedisStore(client)

	_, err = utils.WithRetry(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.Ping(ctx)
	}, utils.StoreConnectConfig())
	if err != nil {
		logger.Warn("Cache store unreachable, continuing without cache until it recovers",
			"addr", cfg.RedisAddr(), "error", err)
	} else {
		logger.Info("Connected to cache store", "addr", cfg.RedisAddr(), "db", cfg.RedisDB)
	}

	return New(s, opts...), s, nil
}
