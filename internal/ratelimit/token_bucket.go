package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// The bucket lives in one hash {tokens, ts}. Refill uses the Redis clock so
// replicas with skewed clocks share one budget. Returns {allowed, remaining, wait_ms}.
var takeToken = redis.NewScript(`
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])

local t = redis.call("TIME")
local now = t[1] * 1000 + math.floor(t[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or burst
local last = tonumber(state[2]) or now
tokens = math.min(burst, tokens + math.max(0, now - last) / 1000 * rate)

local allowed, wait = 0, 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  wait = math.ceil((1 - tokens) / rate * 1000)
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", now)
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return {allowed, math.floor(tokens), wait}
`)

var (
	errLimiterNotConfigured = errors.New("rate limiter not configured")
	errInvalidBucket        = errors.New("rate limiter needs a key and a positive rate and burst")
)

// TokenBucket is a Redis-backed limiter shared by every replica.
type TokenBucket struct {
	client *redis.Client
}

type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{client: client}
}

// Allow takes one token from key's bucket, refilled at rate per second up to burst.
func (t *TokenBucket) Allow(ctx context.Context, key string, rate float64, burst int) (Result, error) {
	if t == nil || t.client == nil {
		return Result{}, errLimiterNotConfigured
	}
	if key == "" || rate <= 0 || burst <= 0 {
		return Result{}, errInvalidBucket
	}

	out, err := takeToken.Run(ctx, t.client, []string{key}, rate, burst, bucketTTL(rate, burst).Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, err
	}
	if len(out) != 3 {
		return Result{}, errors.New("unexpected rate limit script reply")
	}
	return Result{
		Allowed:    out[0] == 1,
		Remaining:  int(out[1]),
		RetryAfter: time.Duration(out[2]) * time.Millisecond,
	}, nil
}

// bucketTTL keeps an idle bucket for two full refills, at least one second.
func bucketTTL(rate float64, burst int) time.Duration {
	if rate <= 0 || burst <= 0 {
		return time.Second
	}
	return time.Duration(math.Max(1, math.Ceil(2*float64(burst)/rate))) * time.Second
}
