package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/planilla-hr/planilla/internal/config"
)

// RateLimitConfig configures a token bucket per client.
type RateLimitConfig struct {
	RequestsPerMinute int
	BurstSize         int
	CleanupInterval   time.Duration
	// IdleTTL is how long an untouched bucket is kept.
	IdleTTL time.Duration
}

// LoginRateLimitConfig maps the configured login limits onto a bucket
// configuration.
func LoginRateLimitConfig(cfg config.RateLimitingConfig) RateLimitConfig {
	rl := RateLimitConfig{
		RequestsPerMinute: cfg.RequestsPerMinute,
		BurstSize:         cfg.Burst,
		CleanupInterval:   5 * time.Minute,
		IdleTTL:           10 * time.Minute,
	}
	if rl.RequestsPerMinute <= 0 {
		rl.RequestsPerMinute = 30
	}
	if rl.BurstSize <= 0 {
		rl.BurstSize = 5
	}
	return rl
}

type bucket struct {
	tokens     float64
	lastUpdate time.Time
}

// RateLimiter is a token bucket limiter keyed by client.
type RateLimiter struct {
	config   RateLimitConfig
	buckets  map[string]*bucket
	mu       sync.Mutex
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a limiter and starts its cleanup loop. Call Stop to
// end the loop.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	rl := &RateLimiter{
		config:  cfg,
		buckets: make(map[string]*bucket),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictIdle()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) evictIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for key, b := range rl.buckets {
		if now.Sub(b.lastUpdate) > rl.config.IdleTTL {
			delete(rl.buckets, key)
		}
	}
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Allow takes a token for key and reports whether one was available. It
// also returns the tokens left afterwards.
func (rl *RateLimiter) Allow(key string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(rl.config.BurstSize), lastUpdate: now}
		rl.buckets[key] = b
	}

	perSecond := float64(rl.config.RequestsPerMinute) / 60.0
	b.tokens = min(float64(rl.config.BurstSize), b.tokens+now.Sub(b.lastUpdate).Seconds()*perSecond)
	b.lastUpdate = now

	if b.tokens < 1 {
		return false, 0
	}
	b.tokens--
	return true, int(b.tokens)
}

// RateLimitMiddleware rejects clients that exhausted their bucket with 429.
// Clients are keyed by IP address.
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	limit := strconv.Itoa(limiter.config.RequestsPerMinute)
	return func(c *gin.Context) {
		ok, remaining := limiter.Allow("ip:" + c.ClientIP())
		c.Header("X-RateLimit-Limit", limit)
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message":     "Rate limit exceeded",
				"retry_after": 60,
			})
			return
		}
		c.Next()
	}
}
