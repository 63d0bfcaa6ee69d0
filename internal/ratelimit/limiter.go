// Package ratelimit implements the token bucket applied to API callers.
// The bucket state lives either in Redis, shared by every server
// instance, or in process memory when Redis is unavailable.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int64
	Limit      int
	RetryAfter time.Duration // zero when Allowed
}

// Limiter takes one token from the bucket named key.  An error means
// the decision could not be made; callers let the request through.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Bucket describes the token bucket shared by every key of a limiter.
type Bucket struct {
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	// TTL is how long an untouched bucket is kept.
	TTL time.Duration
}

func (b Bucket) normalized() Bucket {
	if b.Capacity < 1 {
		b.Capacity = 1
	}
	if b.RefillTokens < 1 {
		b.RefillTokens = 1
	}
	if b.RefillInterval <= 0 {
		b.RefillInterval = time.Second
	}
	if b.TTL < 5*b.RefillInterval {
		b.TTL = 5 * b.RefillInterval
	}
	return b
}
