package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/civica/membership-backend/internal/response"
)

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	limiters sync.Map // map[string]*visitor
	limit    rate.Limit
	burst    int
	perWin   int
	window   time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	mu       sync.Mutex
	lastSeen time.Time
}

// NewRateLimiter creates a RateLimiter allowing requests per interval, with the
// whole budget available as a burst.
func NewRateLimiter(requests int, interval time.Duration) *RateLimiter {
	if requests <= 0 {
		requests = 1
	}
	return &RateLimiter{
		limit:  rate.Limit(float64(requests) / interval.Seconds()),
		burst:  requests,
		perWin: requests,
		window: interval,
	}
}

func (rl *RateLimiter) visitor(key string) *visitor {
	if v, ok := rl.limiters.Load(key); ok {
		return v.(*visitor)
	}
	v, _ := rl.limiters.LoadOrStore(key, &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)})
	return v.(*visitor)
}

// Middleware returns a Gin middleware that rate-limits requests by IP.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		v := rl.visitor(c.ClientIP())
		v.mu.Lock()
		v.lastSeen = time.Now()
		v.mu.Unlock()

		if !v.limiter.Allow() {
			r := v.limiter.Reserve()
			delay := r.Delay()
			r.Cancel()

			c.Header("Retry-After", strconv.Itoa(max(int(delay.Seconds()), 1)))
			c.Header("X-RateLimit-Limit", strconv.Itoa(rl.perWin))
			c.Header("X-RateLimit-Window", rl.window.String())
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}

// Cleanup forgets clients idle for longer than idle.
func (rl *RateLimiter) Cleanup(idle time.Duration) {
	cutoff := time.Now().Add(-idle)
	rl.limiters.Range(func(key, value any) bool {
		v := value.(*visitor)
		v.mu.Lock()
		stale := v.lastSeen.Before(cutoff)
		v.mu.Unlock()
		if stale {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// StartCleanup runs Cleanup every minute until done is closed.
func (rl *RateLimiter) StartCleanup(done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				rl.Cleanup(3 * time.Minute)
			}
		}
	}()
}
