package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/berserkarray/webscraperv2/config"
	"github.com/berserkarray/webscraperv2/models"
)

const (
	limiterIdleTTL   = time.Hour
	limiterSweepTick = 5 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per identity (API key, or client IP
// when auth is off). Scrapes drive a real browser, so the default budget is
// small.
type RateLimiter struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*limiterEntry
}

// NewRateLimiter creates a limiter and starts a janitor that evicts
// identities idle for an hour. The janitor exits when ctx is done.
func NewRateLimiter(ctx context.Context, cfg config.RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		rps:      rate.Limit(cfg.RequestsPerSecond),
		burst:    max(cfg.Burst, 1),
		limiters: make(map[string]*limiterEntry),
	}
	go rl.sweep(ctx)
	return rl
}

func (rl *RateLimiter) get(identity string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	entry, ok := rl.limiters[identity]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.limiters[identity] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

func (rl *RateLimiter) sweep(ctx context.Context) {
	ticker := time.NewTicker(limiterSweepTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			cutoff := now.Add(-limiterIdleTTL)
			rl.mu.Lock()
			for id, entry := range rl.limiters {
				if entry.lastSeen.Before(cutoff) {
					delete(rl.limiters, id)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Middleware rejects requests over budget with 429 and a Retry-After hint.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := c.GetString(APIKeyKey)
		if identity == "" {
			identity = c.ClientIP()
		}

		r := rl.get(identity).Reserve()
		if delay := r.Delay(); delay > 0 {
			r.Cancel()
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Detail: "rate limit exceeded, please slow down",
				Code:   models.ErrCodeRateLimited,
			})
			return
		}

		c.Next()
	}
}
