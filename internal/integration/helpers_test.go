package integration

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/collabify/cachekit/internal/api"
	"github.com/collabify/cachekit/internal/cache"
	"github.com/collabify/cachekit/internal/config"
	"github.com/collabify/cachekit/internal/projects"
	"github.com/collabify/cachekit/internal/store"
)

const testSecret = "integration-secret"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createTestToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	tokenString, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tokenString
}

// countingSource counts how often each lookup actually reaches the source.
type countingSource struct {
	projects.SampleSource
	projectCalls atomic.Int32
	userCalls    atomic.Int32
}

func (s *countingSource) ProjectDetails(ctx context.Context, projectID string) (projects.ProjectDetails, error) {
	s.projectCalls.Add(1)
	return s.SampleSource.ProjectDetails(ctx, projectID)
}

func (s *countingSource) UserInfo(ctx context.Context, userSub string) (projects.UserInfo, error) {
	s.userCalls.Add(1)
	return s.SampleSource.UserInfo(ctx, userSub)
}

type stack struct {
	cfg    *config.Config
	router http.Handler
	facade *cache.Facade
	source *countingSource
}

func testConfig() *config.Config {
	cfg := &config.Config{JWTSecret: testSecret, RedisHost: "localhost", RedisPort: 6379}
	cfg.SetCacheDefaults()
	return cfg
}

func newStack(t *testing.T, s store.Store, enqueuer api.Enqueuer) *stack {
	t.Helper()
	cfg := testConfig()

	facade := cache.New(s, cache.WithLogger(discardLogger()))
	source := &countingSource{}
	service := projects.NewService(facade, source)

	r := chi.NewRouter()
	api.NewServer(cfg, service, facade, enqueuer, discardLogger()).Register(r)
	return &stack{cfg: cfg, router: r, facade: facade, source: source}
}

func redisAvailable(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "localhost:6379",
		DialTimeout: 100 * time.Millisecond,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}
