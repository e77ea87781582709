package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryLimiter counts requests per key in process memory. A key's window
// opens on its first request and every attempt counts, denied ones
// included, so a single replica gets the same answers RedisLimiter gives.
type MemoryLimiter struct {
	limit  int
	window time.Duration

	mu        sync.Mutex
	counters  map[string]counter
	nextSweep time.Time
}

type counter struct {
	hits      int
	expiresAt time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:    limit,
		window:   window,
		counters: make(map[string]counter),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, now time.Time) (bool, time.Duration, error) {
	if l.window <= 0 {
		return false, 0, fmt.Errorf("invalid rate limit window %s", l.window)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	c := l.counters[key]
	if !now.Before(c.expiresAt) {
		c = counter{expiresAt: now.Add(l.window)}
	}
	c.hits++
	l.counters[key] = c

	if c.hits > l.limit {
		return false, c.expiresAt.Sub(now), nil
	}
	return true, 0, nil
}

// sweep drops expired counters at most once per window. Caller holds mu.
func (l *MemoryLimiter) sweep(now time.Time) {
	if now.Before(l.nextSweep) {
		return
	}
	for k, c := range l.counters {
		if !now.Before(c.expiresAt) {
			delete(l.counters, k)
		}
	}
	l.nextSweep = now.Add(l.window)
}
