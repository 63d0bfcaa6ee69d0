package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// MemoryLimiter keeps one rate.Limiter per key in process memory.
// Buckets idle for longer than the TTL are dropped by a background
// loop that runs until Stop is called.
type MemoryLimiter struct {
	bucket Bucket
	every  rate.Limit

	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewMemoryLimiter starts a limiter and its cleanup loop.
func NewMemoryLimiter(b Bucket) *MemoryLimiter {
	b = b.normalized()
	l := &MemoryLimiter{
		bucket:  b,
		every:   rate.Limit(float64(b.RefillTokens) / b.RefillInterval.Seconds()),
		entries: make(map[string]*entry),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Stop ends the cleanup loop.
func (l *MemoryLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Allow takes a token from key's bucket.  It never returns an error.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.every, l.bucket.Capacity)}
		l.entries[key] = e
	}
	e.lastAccess = now
	lim := e.limiter
	l.mu.Unlock()

	d := Decision{Limit: l.bucket.Capacity}
	if lim.AllowN(now, 1) {
		d.Allowed = true
	} else {
		r := lim.ReserveN(now, 1)
		d.RetryAfter = r.DelayFrom(now)
		r.CancelAt(now)
	}
	d.Remaining = int64(math.Max(0, math.Floor(lim.TokensAt(now))))
	return d, nil
}

// Len reports how many buckets are currently tracked.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *MemoryLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.bucket.TTL)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup(l.now())
		case <-l.stopCh:
			return
		}
	}
}

func (l *MemoryLimiter) cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, e := range l.entries {
		if now.Sub(e.lastAccess) > l.bucket.TTL {
			delete(l.entries, k)
		}
	}
}
