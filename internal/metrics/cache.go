package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("collabify/cache")

// CacheMetrics records cache facade activity. A nil *CacheMetrics is valid
// and records nothing.
type CacheMetrics struct {
	hits            metric.Int64Counter
	misses          metric.Int64Counter
	storeErrors     metric.Int64Counter
	invalidated     metric.Int64Counter
	computeDuration metric.Float64Histogram
}

func NewCacheMetrics() (*CacheMetrics, error) {
	return NewCacheMetricsWithMeter(meter)
}

func NewCacheMetricsWithMeter(m metric.Meter) (*CacheMetrics, error) {
	hits, err := m.Int64Counter(
		"cache.hits.total",
		metric.WithDescription("Total number of cache hits"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	misses, err := m.Int64Counter(
		"cache.misses.total",
		metric.WithDescription("Total number of cache misses"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	storeErrors, err := m.Int64Counter(
		"cache.store_errors.total",
		metric.WithDescription("Total number of failed store round-trips"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	invalidated, err := m.Int64Counter(
		"cache.invalidated.total",
		metric.WithDescription("Total number of entries removed by prefix invalidation"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	computeDuration, err := m.Float64Histogram(
		"cache.compute.duration",
		metric.WithDescription("Duration of wrapped computations run on a cache miss"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	return &CacheMetrics{
		hits:            hits,
		misses:          misses,
		storeErrors:     storeErrors,
		invalidated:     invalidated,
		computeDuration: computeDuration,
	}, nil
}

func (m *CacheMetrics) RecordHit(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.hits.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.operation", operation)))
}

func (m *CacheMetrics) RecordMiss(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.misses.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.operation", operation)))
}

// RecordStoreError counts a failed store call; op is one of get, set, keys, del.
func (m *CacheMetrics) RecordStoreError(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.storeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (m *CacheMetrics) RecordInvalidated(ctx context.Context, prefix string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.invalidated.Add(ctx, int64(count), metric.WithAttributes(attribute.String("cache.prefix", prefix)))
}

func (m *CacheMetrics) RecordCompute(ctx context.Context, operation string, seconds float64) {
	if m == nil {
		return
	}
	m.computeDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("cache.operation", operation)))
}
