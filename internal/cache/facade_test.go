package cache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/collabify/cachekit/internal/errors"
	"github.com/collabify/cachekit/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// failingStore answers every command with a connection error.
type failingStore struct{}

var errDown = apperrors.NewStoreUnavailableError("redis unreachable", "STORE_DOWN", errors.New("dial tcp 127.0.0.1:6379: connect: connection refused"))

func (failingStore) Get(context.Context, string) ([]byte, error) { return nil, errDown }
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errDown
}
func (failingStore) Keys(context.Context, string) ([]string, error) { return nil, errDown }
func (failingStore) Del(context.Context, ...string) (int64, error)  { return 0, errDown }

// slowStore blocks until the context is done.
type slowStore struct{}

func (slowStore) Get(ctx context.Context, _ string) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (slowStore) Set(ctx context.Context, _ string, _ []byte, _ time.Duration) error {
	<-ctx.Done()
	return ctx.Err()
}
func (slowStore) Keys(ctx context.Context, _ string) ([]string, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (slowStore) Del(ctx context.Context, _ ...string) (int64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestFacade(t *testing.T, opts ...Option) (*Facade, *store.MemoryStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 3, 26, 12, 0, 0, 0, time.UTC)}
	s := store.NewMemoryStore(0, store.WithClock(clock.Now))
	t.Cleanup(func() { s.Close() })
	return New(s, append([]Option{WithLogger(quietLogger())}, opts...)...), s, clock
}

type project struct {
	ID string `json:"id"`
}

func countingOp(calls *atomic.Int32) Operation[project] {
	return func(ctx context.Context, args ...any) (project, error) {
		calls.Add(1)
		return project{ID: args[0].(string)}, nil
	}
}

func TestMemoize_HitDoesNotRecompute(t *testing.T) {
	f, _, _ := newTestFacade(t)
	var calls atomic.Int32
	get := Memoize(f, "get_project", 2*time.Minute, countingOp(&calls))

	ctx := context.Background()
	first, err := get(ctx, "P1")
	require.NoError(t, err)
	second, err := get(ctx, "P1")
	require.NoError(t, err)

	assert.Equal(t, project{ID: "P1"}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())

	_, err = get(ctx, "P2")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestMemoize_ExpiryRecomputes(t *testing.T) {
	f, _, clock := newTestFacade(t)
	var calls atomic.Int32
	get := Memoize(f, "get_project", 10*time.Second, countingOp(&calls))

	ctx := context.Background()
	_, _ = get(ctx, "P1")
	clock.Advance(9 * time.Second)
	_, _ = get(ctx, "P1")
	assert.Equal(t, int32(1), calls.Load())

	clock.Advance(2 * time.Second)
	_, _ = get(ctx, "P1")
	assert.Equal(t, int32(2), calls.Load())
}

func TestMemoize_DefaultTTL(t *testing.T) {
	f, _, clock := newTestFacade(t, WithDefaultTTL(30*time.Second))
	var calls atomic.Int32
	get := Memoize(f, "get_project", 0, countingOp(&calls))

	ctx := context.Background()
	_, _ = get(ctx, "P1")
	clock.Advance(29 * time.Second)
	_, _ = get(ctx, "P1")
	assert.Equal(t, int32(1), calls.Load())

	clock.Advance(time.Second)
	_, _ = get(ctx, "P1")
	assert.Equal(t, int32(2), calls.Load())
}

func TestMemoize_InvalidationIsSelective(t *testing.T) {
	f, _, _ := newTestFacade(t)
	var projectCalls, userCalls atomic.Int32
	getProject := Memoize(f, "get_project", time.Minute, countingOp(&projectCalls))
	getUser := Memoize(f, "get_user", time.Minute, countingOp(&userCalls))

	ctx := context.Background()
	_, _ = getProject(ctx, "P1")
	_, _ = getProject(ctx, "P2")
	_, _ = getUser(ctx, "U1")

	assert.Equal(t, 2, f.Invalidate(ctx, "get_project:"))

	_, _ = getProject(ctx, "P1")
	_, _ = getUser(ctx, "U1")
	assert.Equal(t, int32(3), projectCalls.Load())
	assert.Equal(t, int32(1), userCalls.Load())
}

func TestInvalidate_EdgeCases(t *testing.T) {
	f, s, _ := newTestFacade(t)
	ctx := context.Background()

	assert.Equal(t, 0, f.Invalidate(ctx, "nothing:"))

	require.NoError(t, s.Set(ctx, "op:1", []byte("1"), time.Minute))
	require.NoError(t, s.Set(ctx, "op*:1", []byte("1"), time.Minute))

	assert.Equal(t, 0, f.Invalidate(ctx, ""), "empty prefix must be refused")
	assert.Equal(t, 2, s.Len())

	assert.Equal(t, 1, f.Invalidate(ctx, "op*"), "glob characters in the prefix are literal")
	keys, _ := s.Keys(ctx, "*")
	assert.Equal(t, []string{"op:1"}, keys)
}

func TestMemoize_StoreDownDegrades(t *testing.T) {
	var buf bytes.Buffer
	f := New(failingStore{}, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	var calls atomic.Int32
	get := Memoize(f, "get_project", time.Minute, countingOp(&calls))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		got, err := get(ctx, "P1")
		require.NoError(t, err)
		assert.Equal(t, project{ID: "P1"}, got)
	}
	assert.Equal(t, int32(3), calls.Load())
	assert.Contains(t, buf.String(), "Error reading cache")
	assert.Contains(t, buf.String(), "Error setting cache")

	assert.Equal(t, 0, f.Invalidate(ctx, "get_project:"))
	assert.Contains(t, buf.String(), "Error clearing cache")
}

func TestTryInvalidate_ReportsStoreFailures(t *testing.T) {
	ctx := context.Background()

	down := New(failingStore{}, WithLogger(quietLogger()))
	n, err := down.TryInvalidate(ctx, "get_project:")
	assert.Equal(t, 0, n)
	assert.True(t, apperrors.IsStoreUnavailable(err))

	_, err = down.TryInvalidate(ctx, "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	f, s, _ := newTestFacade(t)
	require.NoError(t, s.Set(ctx, "get_project:a", []byte(`{}`), time.Minute))
	n, err = f.TryInvalidate(ctx, "get_project:")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoize_StoreTimeoutDegrades(t *testing.T) {
	f := New(slowStore{}, WithLogger(quietLogger()), WithTimeout(10*time.Millisecond), WithInvalidateTimeout(10*time.Millisecond))
	var calls atomic.Int32
	get := Memoize(f, "get_project", time.Minute, countingOp(&calls))

	start := time.Now()
	got, err := get(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, project{ID: "P1"}, got)
	assert.Less(t, time.Since(start), time.Second)

	assert.Equal(t, 0, f.Invalidate(context.Background(), "get_project:"))
}

func TestMemoize_OperationErrorPropagatesAndIsNotCached(t *testing.T) {
	f, s, _ := newTestFacade(t)
	boom := errors.New("project service unavailable")
	var calls atomic.Int32
	get := Memoize(f, "get_project", time.Minute, func(ctx context.Context, args ...any) (project, error) {
		calls.Add(1)
		return project{}, boom
	})

	ctx := context.Background()
	_, err := get(ctx, "P1")
	assert.Same(t, boom, err)
	_, err = get(ctx, "P1")
	assert.Same(t, boom, err)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 0, s.Len())
}

func TestMemoize_UnserializableArgsBypassCache(t *testing.T) {
	f, s, _ := newTestFacade(t)
	var calls atomic.Int32
	get := Memoize(f, "get_project", time.Minute, func(ctx context.Context, args ...any) (string, error) {
		calls.Add(1)
		return "computed", nil
	})

	ctx := context.Background()
	ch := make(chan int)
	for i := 0; i < 2; i++ {
		got, err := get(ctx, ch)
		require.NoError(t, err)
		assert.Equal(t, "computed", got)
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 0, s.Len())
}

func TestMemoize_UnserializableResultIsReturnedButNotStored(t *testing.T) {
	f, s, _ := newTestFacade(t)
	get := Memoize(f, "make_chan", time.Minute, func(ctx context.Context, args ...any) (chan int, error) {
		return make(chan int), nil
	})

	got, err := get(context.Background(), "x")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Equal(t, 0, s.Len())
}

func TestMemoize_CorruptEntryTreatedAsMiss(t *testing.T) {
	f, s, _ := newTestFacade(t)
	var calls atomic.Int32
	get := Memoize(f, "get_project", time.Minute, countingOp(&calls))

	key, err := DeriveKey("get_project", "P1")
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, key, []byte("{corrupt"), time.Minute))

	got, err := get(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, project{ID: "P1"}, got)
	assert.Equal(t, int32(1), calls.Load())

	// the fresh result replaced the corrupt payload
	_, _ = get(ctx, "P1")
	assert.Equal(t, int32(1), calls.Load())
}

func TestMemoize_NamedArgs(t *testing.T) {
	f, _, _ := newTestFacade(t)
	var calls atomic.Int32
	list := Memoize(f, "list_tasks", time.Minute, func(ctx context.Context, args ...any) ([]string, error) {
		calls.Add(1)
		return []string{"t1", "t2"}, nil
	})

	ctx := context.Background()
	_, _ = list(ctx, "P1", Named("status", "todo"), Named("limit", 10))
	_, _ = list(ctx, "P1", Named("limit", 10), Named("status", "todo"))
	assert.Equal(t, int32(1), calls.Load())

	_, _ = list(ctx, "P1", Named("limit", 20), Named("status", "todo"))
	assert.Equal(t, int32(2), calls.Load())
}

func TestMemoize_ProjectScenario(t *testing.T) {
	f, _, _ := newTestFacade(t)
	var calls atomic.Int32
	op := Memoize(f, "op", 120*time.Second, func(ctx context.Context, args ...any) (map[string]any, error) {
		calls.Add(1)
		return map[string]any{"id": args[0]}, nil
	})

	ctx := context.Background()
	first, err := op(ctx, "P1")
	require.NoError(t, err)
	second, err := op(ctx, "P1")
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"id": "P1"}, first)
	assert.Equal(t, map[string]any{"id": "P1"}, second)
	assert.Equal(t, int32(1), calls.Load())

	assert.Equal(t, 1, f.Invalidate(ctx, "op:"))

	third, err := op(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "P1"}, third)
	assert.Equal(t, int32(2), calls.Load())
}

func TestMemoize_LogsHitAndMiss(t *testing.T) {
	var buf bytes.Buffer
	s := store.NewMemoryStore(0)
	defer s.Close()
	f := New(s, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	var calls atomic.Int32
	get := Memoize(f, "get_project", time.Minute, countingOp(&calls))

	_, _ = get(context.Background(), "P1")
	_, _ = get(context.Background(), "P1")

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "Cache miss"))
	assert.Equal(t, 1, strings.Count(out, "Cache hit"))
	assert.Contains(t, out, "operation=get_project")
}

func TestMemoize_ConcurrentCallersWithoutCoalescing(t *testing.T) {
	f, _, _ := newTestFacade(t)
	var calls atomic.Int32
	get := Memoize(f, "get_project", time.Minute, countingOp(&calls))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := get(context.Background(), "P1")
			assert.NoError(t, err)
			assert.Equal(t, project{ID: "P1"}, got)
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestMemoize_SingleflightCoalescesMisses(t *testing.T) {
	f, _, _ := newTestFacade(t, WithSingleflight())
	var calls atomic.Int32
	release := make(chan struct{})
	get := Memoize(f, "get_project", time.Minute, func(ctx context.Context, args ...any) (project, error) {
		calls.Add(1)
		<-release
		return project{ID: args[0].(string)}, nil
	})

	const callers = 16
	var wg sync.WaitGroup
	results := make([]project, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := get(context.Background(), "P1")
			assert.NoError(t, err)
			results[i] = got
		}(i)
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, project{ID: "P1"}, r)
	}
}

func TestMemoize_SingleflightCallerCancelDoesNotFailOthers(t *testing.T) {
	f, s, _ := newTestFacade(t, WithSingleflight())
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	get := Memoize(f, "get_project", time.Minute, func(ctx context.Context, args ...any) (project, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		select {
		case <-release:
		case <-ctx.Done():
			return project{}, ctx.Err()
		}
		return project{ID: args[0].(string)}, nil
	})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := get(firstCtx, "P1")
		firstErr <- err
	}()
	<-started

	type outcome struct {
		got project
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		got, err := get(context.Background(), "P1")
		second <- outcome{got, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, project{ID: "P1"}, res.got)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, s.Len())
}
