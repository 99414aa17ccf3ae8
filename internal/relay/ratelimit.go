package relay

import (
	"sync"
	"time"
)

// sweepThreshold bounds the visits map; above it expired records are pruned.
const sweepThreshold = 4096

type visitRecord struct {
	count       int
	windowStart time.Time
}

// RateLimiter caps connection attempts per source address within a rolling
// window. Each address gets its own window; addresses never interact.
type RateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	visits map[string]*visitRecord

	now func() time.Time // stubbed in tests
}

// NewRateLimiter allows up to max connection attempts per window per address.
func NewRateLimiter(window time.Duration, max int) *RateLimiter {
	return &RateLimiter{
		window: window,
		max:    max,
		visits: make(map[string]*visitRecord),
		now:    time.Now,
	}
}

// Allow records a connection attempt from addr and reports whether it is
// within the limit.
func (l *RateLimiter) Allow(addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	rec, ok := l.visits[addr]
	if !ok || now.Sub(rec.windowStart) > l.window {
		rec = &visitRecord{count: 0, windowStart: now}
		l.visits[addr] = rec
	}
	rec.count++

	if len(l.visits) > sweepThreshold {
		l.sweep(now)
	}

	return rec.count <= l.max
}

func (l *RateLimiter) sweep(now time.Time) {
	for addr, rec := range l.visits {
		if now.Sub(rec.windowStart) > l.window {
			delete(l.visits, addr)
		}
	}
}
