package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	KeyPrefix         string
}

// RateLimitMiddleware is a fixed-window limiter keyed by actor, falling back
// to the remote address. A nil client or a redis failure lets requests through.
func RateLimitMiddleware(redisClient *redis.Client, config RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if redisClient == nil || config.RequestsPerWindow <= 0 {
			return next
		}
		limit := strconv.Itoa(config.RequestsPerWindow)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := config.KeyPrefix + ":" + limitSubject(r)

			count, resetIn, err := hit(r.Context(), redisClient, key, config.Window)
			if err != nil {
				logger.Error("rate limiter unavailable", zap.String("key", key), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", limit)
			remaining := int64(config.RequestsPerWindow) - count
			if remaining >= 0 {
				w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
				next.ServeHTTP(w, r)
				return
			}

			logger.Warn("rate limit exceeded",
				zap.String("key", key),
				zap.Int64("count", count),
				zap.Int("limit", config.RequestsPerWindow),
			)
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(resetIn).Unix(), 10))
			w.Header().Set("Retry-After", strconv.Itoa(int(resetIn.Seconds())))
			RespondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		})
	}
}

// hit counts one request in the window that key belongs to and reports
// how long until that window closes.
func hit(ctx context.Context, client *redis.Client, key string, window time.Duration) (int64, time.Duration, error) {
	pipe := client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}

	resetIn := ttl.Val()
	if resetIn < 0 {
		if err := client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		resetIn = window
	}
	return incr.Val(), resetIn, nil
}

func limitSubject(r *http.Request) string {
	if userID, ok := GetUserID(r.Context()); ok {
		return "actor:" + userID
	}
	return "addr:" + r.RemoteAddr
}
