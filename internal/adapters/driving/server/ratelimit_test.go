package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_PerKey(t *testing.T) {
	r := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 2})

	assert.True(t, r.Allow("alice"))
	assert.True(t, r.Allow("alice"))
	assert.False(t, r.Allow("alice"))
	assert.True(t, r.Allow("bob"))
}

func TestRateLimiter_Disabled(t *testing.T) {
	r := NewRateLimiter(RateLimitConfig{})
	for i := 0; i < 100; i++ {
		assert.True(t, r.Allow("alice"))
	}

	var nilLimiter *RateLimiter
	assert.True(t, nilLimiter.Allow("alice"))
}

func TestRateLimiter_Refills(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	r := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})
	r.now = func() time.Time { return now }

	assert.True(t, r.Allow("alice"))
	assert.False(t, r.Allow("alice"))

	now = now.Add(1100 * time.Millisecond)
	assert.True(t, r.Allow("alice"))
}

func TestRateLimiter_SweepsIdleKeys(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	r := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})
	r.now = func() time.Time { return now }

	r.Allow("alice")
	r.Allow("bob")
	assert.Equal(t, 2, r.size())

	now = now.Add(idleLimiterTTL + time.Minute)
	r.Allow("carol")
	assert.Equal(t, 1, r.size())
}
