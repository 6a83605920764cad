package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RedisRateLimiterStore is a fixed-window echo RateLimiterStore shared by every replica.
// Redis errors fail open.
type RedisRateLimiterStore struct {
	client *redis.Client
	limit  int64
	window time.Duration
	prefix string
}

func NewRedisRateLimiterStore(client *redis.Client, limit int, window time.Duration) *RedisRateLimiterStore {
	return &RedisRateLimiterStore{client: client, limit: int64(limit), window: window, prefix: "ratelimit:"}
}

func (s *RedisRateLimiterStore) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	key := s.prefix + identifier
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, s.window)
		return nil
	})
	if err != nil {
		slog.Warn("rate limiter unavailable, allowing request", "error", err)
		return true, nil
	}
	count := incr.Val()
	return count <= s.limit, nil
}

// RateLimiter limits each client IP to limit requests per window. With a nil
// client it falls back to echo's in-memory token bucket.
func RateLimiter(client *redis.Client, limit int, window time.Duration) echo.MiddlewareFunc {
	var store echomw.RateLimiterStore
	if client != nil {
		store = NewRedisRateLimiterStore(client, limit, window)
	} else {
		store = echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(float64(limit) / window.Seconds()),
			Burst:     limit,
			ExpiresIn: window,
		})
	}

	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests from this IP, please try again later.")
		},
	})
}
