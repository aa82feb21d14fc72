// Package cache memoizes function results in an external key-value store.
//
// A Facade owns nothing but its store handle: entries live in the store,
// expire there, and are removed there by prefix. Store failures never reach
// callers; a broken store only turns every call into a direct computation.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/collabify/cachekit/internal/errors"
	"github.com/collabify/cachekit/internal/metrics"
	"github.com/collabify/cachekit/internal/store"
	"github.com/collabify/cachekit/internal/telemetry"
)

const (
	DefaultTTL               = 60 * time.Second
	DefaultTimeout           = 250 * time.Millisecond
	DefaultInvalidateTimeout = 5 * time.Second
)

// Facade memoizes operations against a Store.
type Facade struct {
	store             store.Store
	logger            *slog.Logger
	metrics           *metrics.CacheMetrics
	tracer            trace.Tracer
	timeout           time.Duration
	invalidateTimeout time.Duration
	defaultTTL        time.Duration
	group             *singleflight.Group
}

// Option configures a Facade.
type Option func(*Facade)

func WithLogger(l *slog.Logger) Option {
	return func(f *Facade) {
		if l != nil {
			f.logger = l
		}
	}
}

func WithMetrics(m *metrics.CacheMetrics) Option {
	return func(f *Facade) {
		f.metrics = m
	}
}

// WithTracing enables a span per memoized call.
func WithTracing() Option {
	return func(f *Facade) {
		f.tracer = telemetry.Tracer("cache")
	}
}

// WithTimeout bounds each GET and SET round-trip. A timed-out call counts as
// a store failure.
func WithTimeout(d time.Duration) Option {
	return func(f *Facade) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithInvalidateTimeout bounds a whole Invalidate call (key listing plus delete).
func WithInvalidateTimeout(d time.Duration) Option {
	return func(f *Facade) {
		if d > 0 {
			f.invalidateTimeout = d
		}
	}
}

// WithDefaultTTL sets the expiry used when a call site passes ttl <= 0.
func WithDefaultTTL(d time.Duration) Option {
	return func(f *Facade) {
		if d > 0 {
			f.defaultTTL = d
		}
	}
}

// WithSingleflight coalesces concurrent misses on the same key inside this
// process so that only one of them runs the computation.
func WithSingleflight() Option {
	return func(f *Facade) {
		f.group = &singleflight.Group{}
	}
}

// New creates a Facade over s.
func New(s store.Store, opts ...Option) *Facade {
	f := &Facade{
		store:             s,
		logger:            slog.Default(),
		tracer:            noop.NewTracerProvider().Tracer("cache"),
		timeout:           DefaultTimeout,
		invalidateTimeout: DefaultInvalidateTimeout,
		defaultTTL:        DefaultTTL,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// readResult is the outcome of a store read. Failures are carried here and
// consumed by the caller; they never leave the package.
type readResult struct {
	data  []byte
	found bool
	err   error
}

func (f *Facade) read(ctx context.Context, key string) readResult {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	data, err := f.store.Get(ctx, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return readResult{}
	case err != nil:
		return readResult{err: err}
	default:
		return readResult{data: data, found: true}
	}
}

func (f *Facade) write(ctx context.Context, name, key string, value any, ttl time.Duration) {
	data, err := Encode(value)
	if err != nil {
		f.logger.WarnContext(ctx, "Error encoding result for cache", "key", key, "operation", name, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := f.store.Set(ctx, key, data, ttl); err != nil {
		f.metrics.RecordStoreError(ctx, "set")
		f.logger.ErrorContext(ctx, "Error setting cache", "key", key, "operation", name, "error", err)
	}
}

// Invalidate deletes every entry whose key starts with prefix and returns the
// number removed. Store failures are logged and reported as 0. An empty
// prefix is refused because it would match the whole database.
func (f *Facade) Invalidate(ctx context.Context, prefix string) int {
	n, err := f.TryInvalidate(ctx, prefix)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			f.logger.WarnContext(ctx, "Refusing to clear cache with empty prefix")
		} else {
			f.logger.ErrorContext(ctx, "Error clearing cache", "prefix", prefix, "error", err)
		}
		return 0
	}
	return n
}

// TryInvalidate is Invalidate for callers that retry: store failures are
// returned instead of being logged away.
func (f *Facade) TryInvalidate(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, apperrors.NewValidationError("empty invalidation prefix", "EMPTY_PREFIX", "Pass an operation prefix such as \"get_user_info:\".")
	}

	ctx, cancel := context.WithTimeout(ctx, f.invalidateTimeout)
	defer cancel()

	keys, err := f.store.Keys(ctx, store.EscapePattern(prefix)+"*")
	if err != nil {
		f.metrics.RecordStoreError(ctx, "keys")
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	n, err := f.store.Del(ctx, keys...)
	if err != nil {
		f.metrics.RecordStoreError(ctx, "del")
		return 0, err
	}

	f.metrics.RecordInvalidated(ctx, prefix, int(n))
	f.logger.InfoContext(ctx, "Cleared cache keys", "count", n, "prefix", prefix)
	return int(n), nil
}
