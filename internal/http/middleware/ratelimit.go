package middleware

import (
	"net/http"
	"sync"
	"time"

	"number_baseball/internal/metrics"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// memoryLimiter hands out one token bucket per client IP.
type memoryLimiter struct {
	mu       sync.Mutex
	clients  map[string]*limiterEntry
	every    rate.Limit
	burst    int
	idleTTL  time.Duration
	lastScan time.Time
}

func (m *memoryLimiter) get(key string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if now.Sub(m.lastScan) > m.idleTTL {
		for k, e := range m.clients {
			if now.Sub(e.lastSeen) > m.idleTTL {
				delete(m.clients, k)
			}
		}
		m.lastScan = now
	}

	e, ok := m.clients[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(m.every, m.burst)}
		m.clients[key] = e
	}
	e.lastSeen = now
	return e.lim
}

// MemoryRateLimit allows about maxRequests per window per client IP, held in
// process memory. Used when Redis is not configured.
func MemoryRateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	m := &memoryLimiter{
		clients: make(map[string]*limiterEntry),
		every:   rate.Every(window / time.Duration(maxRequests)),
		burst:   maxRequests,
		idleTTL: 2 * window,
	}
	return func(c *gin.Context) {
		if !m.get(c.ClientIP()).Allow() {
			metrics.RateLimitBlocked.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		metrics.RateLimitRequests.WithLabelValues(c.FullPath()).Inc()
		c.Next()
	}
}

// RateLimit picks the Redis limiter when a client was shared through
// UseRedis and the in-memory one otherwise.
func RateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	if redisClient != nil {
		return RedisRateLimit(maxRequests, window)
	}
	return MemoryRateLimit(maxRequests, window)
}
