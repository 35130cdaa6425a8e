package ratelimit

import (
	"context"
	"sync"
	"time"
)

const defaultMaxIdentities = 10000

// window is one per-identity counter record. Records are reset in place when
// their window elapses rather than being reallocated.
type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a fixed-window limiter backed by an in-process map.
// Suitable for single-instance deployments; use RedisLimiter when multiple
// gateway instances must share quota.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window

	limit         int
	windowSize    time.Duration
	maxIdentities int
	now           func() time.Time
}

// NewMemoryLimiter creates a limiter admitting limit units per windowSize per
// identity. maxIdentities bounds memory under many distinct keys; expired
// records are evicted lazily when the bound is hit.
func NewMemoryLimiter(limit int, windowSize time.Duration, maxIdentities int) *MemoryLimiter {
	if maxIdentities <= 0 {
		maxIdentities = defaultMaxIdentities
	}
	return &MemoryLimiter{
		windows:       make(map[string]*window),
		limit:         limit,
		windowSize:    windowSize,
		maxIdentities: maxIdentities,
		now:           time.Now,
	}
}

// Admit consumes cost units for identity, or none if that would exceed the
// limit. The check-and-increment happens under one lock so concurrent
// requests from the same identity cannot both slip past the limit.
func (l *MemoryLimiter) Admit(_ context.Context, identity string, cost int) (Decision, error) {
	if cost <= 0 {
		cost = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	w, ok := l.windows[identity]
	if !ok {
		if len(l.windows) >= l.maxIdentities {
			l.evictExpired(now)
		}
		w = &window{resetAt: now.Add(l.windowSize)}
		l.windows[identity] = w
	} else if !now.Before(w.resetAt) {
		w.count = 0
		w.resetAt = now.Add(l.windowSize)
	}

	if w.count+cost > l.limit {
		return Decision{
			Allowed:    false,
			Remaining:  l.limit - w.count,
			RetryAfter: ceilDuration(w.resetAt.Sub(now)),
		}, nil
	}

	w.count += cost
	return Decision{
		Allowed:    true,
		Remaining:  l.limit - w.count,
		RetryAfter: 0,
	}, nil
}

// evictExpired drops all elapsed windows. Called with the lock held, only
// when the identity bound is reached.
func (l *MemoryLimiter) evictExpired(now time.Time) {
	for id, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, id)
		}
	}
}

// ceilDuration rounds up to a whole second so a rejected caller never
// retries a moment too early.
func ceilDuration(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Second
	}
	rounded := d.Truncate(time.Second)
	if rounded < d {
		rounded += time.Second
	}
	return rounded
}
