package middleware

import (
	"net/http"
	"strconv"
	"time"

	"number_baseball/internal/metrics"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

// UseRedis shares rdb with the rate limiter. A nil client turns the Redis
// limiter into a pass-through.
func UseRedis(rdb *redis.Client) {
	redisClient = rdb
}

// RedisRateLimit is a fixed-window limiter keyed by client IP, using
// INCR/EXPIRE. Redis errors fail open.
// key format: rl:<window_seconds>:<ip>
func RedisRateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil {
			c.Next()
			return
		}

		key := "rl:" + strconv.FormatInt(int64(window.Seconds()), 10) + ":" + c.ClientIP()
		ctx := c.Request.Context()

		val, err := redisClient.Incr(ctx, key).Result()
		if err != nil {
			c.Header("X-RateLimit-Error", "redis-error")
			c.Next()
			return
		}
		if val == 1 {
			redisClient.Expire(ctx, key, window)
		}

		if val > int64(maxRequests) {
			metrics.RateLimitBlocked.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		metrics.RateLimitRequests.WithLabelValues(c.FullPath()).Inc()
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(int64(maxRequests)-val, 10))

		c.Next()
	}
}
