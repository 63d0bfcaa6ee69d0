package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucket refills and takes a token atomically.  It returns
// {allowed, tokens_left, retry_after_ms}.
var tokenBucket = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_tokens = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl_seconds = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if tokens == nil or last_refill == nil then
    tokens = capacity
    last_refill = now_ms
end

if interval_ms > 0 and refill_tokens > 0 then
    local elapsed = math.max(0, now_ms - last_refill)
    local intervals = math.floor(elapsed / interval_ms)
    if intervals > 0 then
        tokens = math.min(capacity, tokens + (intervals * refill_tokens))
        last_refill = last_refill + (intervals * interval_ms)
    end
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
    allowed = 1
    tokens = tokens - 1
else
    local until_next = interval_ms - (now_ms - last_refill)
    if until_next < 0 then until_next = 0 end
    retry_after_ms = until_next
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill, 'capacity', capacity)
redis.call('EXPIRE', key, ttl_seconds)

return { allowed, tokens, retry_after_ms }
`)

// RedisLimiter keeps buckets in Redis hashes so all instances share them.
type RedisLimiter struct {
	rdb    redis.Scripter
	bucket Bucket
	now    func() time.Time
}

// NewRedisLimiter returns a limiter backed by rdb.
func NewRedisLimiter(rdb redis.Scripter, b Bucket) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, bucket: b.normalized(), now: time.Now}
}

// Allow runs the bucket script for key.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	b := l.bucket
	vals, err := tokenBucket.Run(ctx, l.rdb, []string{key},
		l.now().UnixMilli(),
		b.Capacity,
		b.RefillTokens,
		b.RefillInterval.Milliseconds(),
		int64(b.TTL/time.Second),
	).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit script: %w", err)
	}
	return parseResult(vals, b.Capacity)
}

func parseResult(vals any, limit int) (Decision, error) {
	arr, ok := vals.([]any)
	if !ok || len(arr) != 3 {
		return Decision{}, fmt.Errorf("ratelimit: unexpected script result %#v", vals)
	}
	d := Decision{
		Allowed:   asInt64(arr[0]) == 1,
		Remaining: asInt64(arr[1]),
		Limit:     limit,
	}
	if !d.Allowed {
		d.RetryAfter = time.Duration(asInt64(arr[2])) * time.Millisecond
	}
	return d, nil
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
