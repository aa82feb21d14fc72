package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Invalidator drops cached entries whose keys start with prefix and reports
// how many were removed. Store failures are returned so the task is retried.
type Invalidator interface {
	TryInvalidate(ctx context.Context, prefix string) (int, error)
}

type CacheInvalidator struct {
	cache  Invalidator
	logger *slog.Logger
}

func NewCacheInvalidator(cache Invalidator, logger *slog.Logger) *CacheInvalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &CacheInvalidator{cache: cache, logger: logger}
}

// HandleInvalidateCache runs a queued invalidation. Payloads that cannot be
// decoded or carry no prefix are dropped without retry.
func (h *CacheInvalidator) HandleInvalidateCache(ctx context.Context, t *asynq.Task) error {
	var payload InvalidateCachePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Prefix == "" {
		return fmt.Errorf("empty prefix: %w", asynq.SkipRetry)
	}

	deleted, err := h.cache.TryInvalidate(ctx, payload.Prefix)
	if err != nil {
		h.logger.WarnContext(ctx, "Cache invalidation failed, will retry", "prefix", payload.Prefix, "error", err)
		return fmt.Errorf("invalidate %q: %w", payload.Prefix, err)
	}
	h.logger.InfoContext(ctx, "Invalidated cache prefix", "prefix", payload.Prefix, "deleted", deleted)

	if w := t.ResultWriter(); w != nil {
		result, _ := json.Marshal(map[string]any{"prefix": payload.Prefix, "deleted": deleted})
		_, _ = w.Write(result)
	}
	return nil
}

// Handlers maps task types to their handlers.
func (h *CacheInvalidator) Handlers() map[string]asynq.HandlerFunc {
	return map[string]asynq.HandlerFunc{
		TypeInvalidateCache: h.HandleInvalidateCache,
	}
}
