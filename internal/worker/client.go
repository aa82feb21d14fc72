package worker

import (
	"github.com/collabify/cachekit/internal/config"
	"github.com/hibiken/asynq"
)

// RedisClientOpt builds the asynq connection options from the Redis settings
// shared with the cache store.
func RedisClientOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

// NewClient creates a new Asynq client for enqueueing tasks
func NewClient(cfg *config.Config) *asynq.Client {
	return asynq.NewClient(RedisClientOpt(cfg))
}
