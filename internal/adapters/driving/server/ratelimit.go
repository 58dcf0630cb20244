package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds per-identity rate limiting configuration.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
}

// DefaultRateLimit allows a handful of exchanges per identity in a burst and
// one every few seconds after that.
var DefaultRateLimit = RateLimitConfig{RequestsPerSecond: 0.2, BurstSize: 5}

// idleLimiterTTL is how long an unused limiter is kept.
const idleLimiterTTL = 10 * time.Minute

type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per key.
type RateLimiter struct {
	mu        sync.Mutex
	cfg       RateLimitConfig
	limiters  map[string]*keyedLimiter
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter creates a keyed rate limiter. A non-positive rate disables
// limiting.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 1
	}
	return &RateLimiter{
		cfg:      cfg,
		limiters: make(map[string]*keyedLimiter),
		now:      time.Now,
	}
}

// Allow reports whether a request for key can proceed now.
func (r *RateLimiter) Allow(key string) bool {
	if r == nil || r.cfg.RequestsPerSecond <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.sweep(now)

	entry, ok := r.limiters[key]
	if !ok {
		entry = &keyedLimiter{
			limiter: rate.NewLimiter(rate.Limit(r.cfg.RequestsPerSecond), r.cfg.BurstSize),
		}
		r.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// sweep drops idle limiters (caller must hold lock).
func (r *RateLimiter) sweep(now time.Time) {
	if now.Sub(r.lastSweep) < idleLimiterTTL {
		return
	}
	r.lastSweep = now
	for key, entry := range r.limiters {
		if now.Sub(entry.lastSeen) > idleLimiterTTL {
			delete(r.limiters, key)
		}
	}
}

// size returns the number of tracked keys.
func (r *RateLimiter) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}
