package relay

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsUpToMax(t *testing.T) {
	l := NewRateLimiter(time.Minute, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("10.0.0.1"), "attempt %d", i+1)
	}
	assert.False(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
}

func TestRateLimiterWindowResets(t *testing.T) {
	now := time.Unix(0, 0)
	l := NewRateLimiter(time.Minute, 2)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))

	// Just past the window the counter starts over.
	now = now.Add(time.Minute + time.Second)
	assert.True(t, l.Allow("10.0.0.1"))
}

func TestRateLimiterAddressesIndependent(t *testing.T) {
	l := NewRateLimiter(time.Minute, 1)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))

	assert.True(t, l.Allow("10.0.0.2"), "a saturated address must not affect others")
}

func TestRateLimiterSweepsExpiredRecords(t *testing.T) {
	now := time.Unix(0, 0)
	l := NewRateLimiter(time.Minute, 5)
	l.now = func() time.Time { return now }

	for i := 0; i < sweepThreshold+1; i++ {
		l.Allow(fmt.Sprintf("10.0.%d.%d", i/256, i%256))
	}

	now = now.Add(2 * time.Minute)
	l.Allow("fresh-addr") // crossing the threshold triggers the sweep

	l.mu.Lock()
	size := len(l.visits)
	l.mu.Unlock()
	assert.LessOrEqual(t, size, 2, "expired records should have been pruned")
}
