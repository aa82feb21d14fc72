package worker

import (
	"context"
	"log/slog"

	"github.com/collabify/cachekit/internal/config"
	"github.com/hibiken/asynq"
)

// NewServer creates a new Asynq server for processing tasks
func NewServer(cfg *config.Config, logger *slog.Logger) *asynq.Server {
	return asynq.NewServer(
		RedisClientOpt(cfg),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				QueueDefault: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.ErrorContext(ctx, "Task failed", "type", task.Type(), "error", err)
			}),
		},
	)
}

// NewMux registers the task handlers behind the tracing and metrics middleware.
func NewMux(handlers map[string]asynq.HandlerFunc, metrics *WorkerMetrics) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Use(OTelMiddleware, metrics.Middleware)
	for taskType, handler := range handlers {
		mux.HandleFunc(taskType, handler)
	}
	return mux
}
