package cache

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Operation is any computation that can be memoized. Arguments are passed
// through untouched; NamedArg values act as keyword arguments.
type Operation[T any] func(ctx context.Context, args ...any) (T, error)

// Memoize wraps op so that results are cached under name for ttl.
//
// Errors returned by op are passed back unchanged and are never cached.
// Arguments or results that cannot be serialized disable caching for that
// call only.
//
// Hits are decoded from JSON into T, so T should be a concrete type. With an
// interface-typed T (any, map[string]any) numbers come back as float64 and a
// hit is not equal to the fresh result it replaced.
func Memoize[T any](f *Facade, name string, ttl time.Duration, op Operation[T]) Operation[T] {
	if ttl <= 0 {
		ttl = f.defaultTTL
	}

	return func(ctx context.Context, args ...any) (T, error) {
		key, err := DeriveKey(name, args...)
		if err != nil {
			f.logger.WarnContext(ctx, "Cannot derive cache key, calling without cache", "operation", name, "error", err)
			return op(ctx, args...)
		}

		ctx, span := f.tracer.Start(ctx, "cache.memoize", trace.WithAttributes(
			attribute.String("cache.operation", name),
			attribute.String("cache.key", key),
		))
		defer span.End()

		if v, ok := lookup[T](ctx, f, name, key); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return v, nil
		}
		span.SetAttributes(attribute.Bool("cache.hit", false))

		var result T
		if f.group == nil {
			result, err = compute(ctx, f, name, key, ttl, op, args)
		} else {
			result, err = computeShared(ctx, f, name, key, ttl, op, args)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return result, err
	}
}

func lookup[T any](ctx context.Context, f *Facade, name, key string) (T, bool) {
	var zero T

	res := f.read(ctx, key)
	if res.err != nil {
		f.metrics.RecordStoreError(ctx, "get")
		f.logger.ErrorContext(ctx, "Error reading cache", "key", key, "operation", name, "error", res.err)
		return zero, false
	}
	if !res.found {
		f.metrics.RecordMiss(ctx, name)
		f.logger.InfoContext(ctx, "Cache miss", "key", key, "operation", name)
		return zero, false
	}

	v, err := Decode[T](res.data)
	if err != nil {
		f.metrics.RecordStoreError(ctx, "get")
		f.logger.ErrorContext(ctx, "Error reading cache", "key", key, "operation", name, "error", err)
		return zero, false
	}

	f.metrics.RecordHit(ctx, name)
	f.logger.InfoContext(ctx, "Cache hit", "key", key, "operation", name)
	return v, true
}

// computeShared runs one computation per key for all concurrent callers. The
// computation is detached from the first caller's cancellation; each caller
// stops waiting when its own context ends.
func computeShared[T any](ctx context.Context, f *Facade, name, key string, ttl time.Duration, op Operation[T], args []any) (T, error) {
	ch := f.group.DoChan(key, func() (any, error) {
		return compute(context.WithoutCancel(ctx), f, name, key, ttl, op, args)
	})

	select {
	case res := <-ch:
		v, _ := res.Val.(T)
		return v, res.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func compute[T any](ctx context.Context, f *Facade, name, key string, ttl time.Duration, op Operation[T], args []any) (T, error) {
	start := time.Now()
	result, err := op(ctx, args...)
	f.metrics.RecordCompute(ctx, name, time.Since(start).Seconds())
	if err != nil {
		return result, err
	}

	f.write(ctx, name, key, result, ttl)
	return result, nil
}
