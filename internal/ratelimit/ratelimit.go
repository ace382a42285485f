// Package ratelimit provides the per-dimension rate-limit evaluator used by
// the decision engine, and sliding-window rate limiting middleware for the
// decision API itself.
package ratelimit

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/fraudgate/internal/window"
)

// Config configures API rate limiting
type Config struct {
	// RequestsPerMinute is the max requests per client in any 60s window
	RequestsPerMinute int
	// CleanupInterval is how often to drop idle clients
	CleanupInterval time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 600, // 10 req/sec average
		CleanupInterval:   time.Minute,
	}
}

const limiterWindow = 60.0 // seconds

// Limiter tracks API request rates by client key
type Limiter struct {
	cfg     Config
	clients *window.Counter
	now     func() time.Time
	stop    chan struct{}
}

// New creates a new rate limiter and starts its cleanup goroutine
func New(cfg Config) *Limiter {
	l := &Limiter{
		cfg:  cfg,
		now:  time.Now,
		stop: make(chan struct{}),
	}
	l.clients = window.NewCounter(window.WithClock(func() time.Time { return l.now() }))
	go l.cleanup()
	return l
}

// cleanup removes idle clients periodically
func (l *Limiter) cleanup() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.clients.Sweep(2 * time.Minute)
		case <-l.stop:
			return
		}
	}
}

// Stop stops the cleanup goroutine
func (l *Limiter) Stop() {
	close(l.stop)
}

// Allow records a request for key and reports whether it is within the limit
func (l *Limiter) Allow(key string) bool {
	ts := float64(l.now().UnixNano()) / 1e9
	return l.clients.Record(key, ts, limiterWindow) <= l.cfg.RequestsPerMinute
}

// Clients returns the number of tracked client keys
func (l *Limiter) Clients() int {
	return l.clients.Keys()
}

// Middleware returns a Gin middleware that rate limits by client IP
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()

		// Allow authenticated requests their own bucket
		if apiKey := c.GetHeader("Authorization"); apiKey != "" {
			key = "auth:" + apiKey[:min(20, len(apiKey))]
		}

		if !l.Allow(key) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limit_exceeded",
				"message":     "Too many requests. Please slow down.",
				"retry_after": 1,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
