package worker

import (
	"context"
	"errors"

	"github.com/collabify/cachekit/internal/telemetry"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelMiddleware wraps asynq task handlers with a consumer span.
func OTelMiddleware(h asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		taskID, _ := asynq.GetTaskID(ctx)
		queueName, _ := asynq.GetQueueName(ctx)
		retryCount, _ := asynq.GetRetryCount(ctx)

		ctx, span := telemetry.Tracer("worker").Start(ctx, "task "+t.Type(),
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("messaging.system", "asynq"),
				attribute.String("task.id", taskID),
				attribute.String("task.type", t.Type()),
				attribute.String("task.queue", queueName),
				attribute.Int("task.retry_count", retryCount),
				attribute.Int("task.payload_size", len(t.Payload())),
			),
		)
		defer span.End()

		err := h.ProcessTask(ctx, t)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.Bool("task.skip_retry", errors.Is(err, asynq.SkipRetry)))
		}
		return err
	})
}
