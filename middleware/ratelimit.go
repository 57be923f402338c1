package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedRateLimiter keeps one limiter per key (payment ID for manual checks).
// Stale entries are evicted so the map does not grow without bound.
type KeyedRateLimiter struct {
	entries map[string]*limiterEntry
	mu      sync.Mutex
	rate    rate.Limit
	burst   int
	ttl     time.Duration
}

func NewKeyedRateLimiter(r rate.Limit, b int, ttl time.Duration) *KeyedRateLimiter {
	rl := &KeyedRateLimiter{
		entries: make(map[string]*limiterEntry),
		rate:    r,
		burst:   b,
		ttl:     ttl,
	}

	go func() {
		ticker := time.NewTicker(ttl)
		defer ticker.Stop()
		for range ticker.C {
			rl.mu.Lock()
			now := time.Now()
			for key, e := range rl.entries {
				if now.Sub(e.lastSeen) > rl.ttl {
					delete(rl.entries, key)
				}
			}
			rl.mu.Unlock()
		}
	}()

	return rl
}

// Allow reports whether the given key may proceed now.
func (rl *KeyedRateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	entry, exists := rl.entries[key]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.entries[key] = entry
	}
	entry.lastSeen = time.Now()
	rl.mu.Unlock()
	return entry.limiter.Allow()
}

// ManualCheckLimit rate-limits the manual "check now" endpoint per payment,
// mirroring the minimum spacing the well-behaved client loop applies on its
// own side.
func ManualCheckLimit(rl *KeyedRateLimiter, param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.Param(param)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many status checks, slow down"})
			return
		}
		c.Next()
	}
}
