package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if data, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	return sums
}

func TestCacheMetrics_Records(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewCacheMetricsWithMeter(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordHit(ctx, "get_user_info")
	m.RecordHit(ctx, "get_user_info")
	m.RecordMiss(ctx, "get_user_info")
	m.RecordStoreError(ctx, "get")
	m.RecordInvalidated(ctx, "get_user_info:", 3)
	m.RecordInvalidated(ctx, "get_user_info:", 0)
	m.RecordCompute(ctx, "get_user_info", 0.2)

	sums := collect(t, reader)
	assert.Equal(t, int64(2), sums["cache.hits.total"])
	assert.Equal(t, int64(1), sums["cache.misses.total"])
	assert.Equal(t, int64(1), sums["cache.store_errors.total"])
	assert.Equal(t, int64(3), sums["cache.invalidated.total"])
}

func TestCacheMetrics_NilSafe(t *testing.T) {
	var m *CacheMetrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordHit(ctx, "op")
		m.RecordMiss(ctx, "op")
		m.RecordStoreError(ctx, "set")
		m.RecordInvalidated(ctx, "op:", 1)
		m.RecordCompute(ctx, "op", 1)
	})
}
