package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/bd4predict/predict-api/internal/domain"
)

// maxTrackedClients bounds the number of per-client limiters kept in memory.
const maxTrackedClients = 10000

// RateLimiter hands out one token bucket per client IP. Idle clients are
// forgotten after ten minutes.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
}

// NewRateLimiter creates a limiter allowing rps requests per second with the given burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		limiters: expirable.NewLRU[string, *rate.Limiter](maxTrackedClients, nil, 10*time.Minute),
	}
}

// Allow reports whether the client may make a request now.
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	limiter, ok := rl.limiters.Get(client)
	if !ok {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters.Add(client, limiter)
	}
	rl.mu.Unlock()
	return limiter.Allow()
}

// RateLimit rejects requests above the configured per-client rate with 429.
func RateLimit(config domain.RateLimitConfig) gin.HandlerFunc {
	if !config.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := NewRateLimiter(config.RequestsPerSecond, config.Burst)
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, domain.NewAPIError(
				domain.ErrRateLimit,
				"Rate limit exceeded",
				"",
				c.GetString(RequestIDKey),
			))
			return
		}
		c.Next()
	}
}
