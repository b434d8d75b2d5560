package mw

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// defaultLimiterIdle is how long a client's bucket survives without requests.
// It is far longer than any bucket takes to refill, so eviction never hands
// a client more tokens than waiting would have.
const defaultLimiterIdle = 10 * time.Minute

// IPRateLimiter stores a token bucket per client IP. Buckets of clients that
// stay idle for the idle period are evicted.
type IPRateLimiter struct {
	limiters *cache.Cache
	idle     time.Duration
	mu       sync.Mutex
	r        rate.Limit
	b        int
}

// NewIPRateLimiter creates a new IPRateLimiter.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return newIPRateLimiter(r, b, defaultLimiterIdle)
}

func newIPRateLimiter(r rate.Limit, b int, idle time.Duration) *IPRateLimiter {
	return &IPRateLimiter{
		limiters: cache.New(idle, idle),
		idle:     idle,
		r:        r,
		b:        b,
	}
}

// GetLimiter returns the bucket for ip, creating it on first use. Every call
// pushes the bucket's eviction back by the idle period.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	limiter, ok := i.limiters.Get(ip)
	if !ok {
		limiter = rate.NewLimiter(i.r, i.b)
	}
	i.limiters.Set(ip, limiter, i.idle)
	return limiter.(*rate.Limiter)
}

// Len reports how many client buckets are held, expired ones included until
// the next cleanup.
func (i *IPRateLimiter) Len() int {
	return i.limiters.ItemCount()
}

// RateLimiter is a middleware for IP-based rate limiting.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	limiter := NewIPRateLimiter(r, b)
	return func(c *gin.Context) {
		if !limiter.GetLimiter(c.ClientIP()).Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
