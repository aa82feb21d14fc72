package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/collabify/cachekit/internal/errors"
)

const scanBatch = 100

// RedisOptions describes how to reach the Redis server.
type RedisOptions struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
	Tracing     bool
}

// NewRedisClient creates a go-redis client, optionally instrumented with
// OpenTelemetry tracing.
func NewRedisClient(opts RedisOptions) (*redis.Client, error) {
	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 2 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: dialTimeout,
	})

	if opts.Tracing {
		if err := redisotel.InstrumentTracing(client); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	return client, nil
}

// RedisStore is a Redis-backed Store.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError("redis GET failed", "STORE_GET_FAILED", err)
	}
	return data, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return apperrors.NewStoreUnavailableError("redis SET failed", "STORE_SET_FAILED", err)
	}
	return nil
}

// Keys walks the keyspace with SCAN so large databases are not blocked the
// way a single KEYS call would block them.
func (s *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	seen := make(map[string]struct{})
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return nil, apperrors.NewStoreUnavailableError("redis SCAN failed", "STORE_KEYS_FAILED", err)
		}
		for _, k := range keys {
			seen[k] = struct{}{}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, apperrors.NewStoreUnavailableError("redis DEL failed", "STORE_DEL_FAILED", err)
	}
	return n, nil
}

// Ping checks that the server answers.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return apperrors.NewStoreUnavailableError("redis PING failed", "STORE_PING_FAILED", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
