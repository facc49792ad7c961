// redis_ratelimit.go provides a Redis-backed rate limiter for routes whose
// limit must hold across replicas. The in-memory limiter in ratelimit.go is
// per-process; a horizontally scaled deployment would multiply its effective
// cap by the replica count. The public signup intake is the one route where
// that matters, so it uses this limiter whenever Redis is configured.
package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// RedisRateLimitMiddleware enforces a shared per-IP limit using the GCRA
// limiter from redis_rate. It fails open when Redis is unreachable: dropping
// signups because the cache is down is worse than briefly losing the limit.
func RedisRateLimitMiddleware(client *redis.Client, cfg RateLimitConfig, logger *slog.Logger) gin.HandlerFunc {
	limiter := redis_rate.NewLimiter(client)
	limit := redis_rate.PerMinute(cfg.RequestsPerMinute)
	limit.Burst = cfg.BurstSize

	return func(c *gin.Context) {
		key := "ratelimit:" + c.FullPath() + ":" + c.ClientIP()

		res, err := limiter.Allow(c.Request.Context(), key, limit)
		if err != nil {
			logger.Warn("redis rate limiter unavailable, allowing request", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerMinute))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if res.Allowed == 0 {
			retryAfter := int(res.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}
