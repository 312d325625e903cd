package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"edurender/internal/pkg/logger"
)

// RateLimitConfig configures the redis-backed fixed-window limiter.
type RateLimitConfig struct {
	RDB       *redis.Client
	Limit     int
	Window    time.Duration
	KeyPrefix string
	Log       *logger.Logger
}

// RateLimit limits requests per client IP using a redis counter with a
// fixed expiry window. Redis errors fail open so the limiter never takes
// the API down with it.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rl:"
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.RDB == nil || cfg.Limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key := cfg.KeyPrefix + clientIP(r)

			count, err := cfg.RDB.Incr(ctx, key).Result()
			if err != nil {
				if cfg.Log != nil {
					cfg.Log.Warn("rate limiter unavailable, allowing request", "error", err.Error())
				}
				next.ServeHTTP(w, r)
				return
			}

			if count == 1 {
				cfg.RDB.Expire(ctx, key, cfg.Window)
			}

			ttl, _ := cfg.RDB.TTL(ctx, key).Result()
			reset := int(ttl.Seconds())
			if reset < 0 {
				reset = 0
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.Limit))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", reset))

			if count > int64(cfg.Limit) {
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":{"code":"RESOURCE_EXHAUSTED","message":"rate limit exceeded"}}`))
				return
			}

			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", cfg.Limit-int(count)))
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if host := r.RemoteAddr; host != "" {
		if i := strings.LastIndex(host, ":"); i > 0 {
			return host[:i]
		}
		return host
	}
	return "anonymous"
}
