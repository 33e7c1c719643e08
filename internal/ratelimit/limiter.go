package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter implements a per-identity sliding window rate limiter using Redis.
// Uses a sorted set where each member is a unique request ID with a
// timestamp score. A Lua script atomically cleans expired entries, checks
// the count, and adds new entries.
type Limiter struct {
	redisClient *redis.Client
	logger      *slog.Logger
	script      *redis.Script
	limit       int
	window      time.Duration
}

// Lua script for atomic sliding window rate limiting.
// 1. Remove entries older than the window
// 2. Count remaining entries
// 3. If under the limit, add a new entry and return 1 (allowed)
// 4. If at/over the limit, return 0 (denied)
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

-- Remove entries outside the sliding window
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

-- Count current entries in the window
local count = redis.call('ZCARD', key)

if count < limit then
    -- Under the limit: add this request and allow
    redis.call('ZADD', key, now, member)
    -- Set TTL so the key auto-expires after the window
    redis.call('EXPIRE', key, window / 1000 + 1)
    return 1
else
    -- At the limit: deny
    return 0
end
`)

// NewLimiter creates a limiter allowing limitPerMinute requests per
// identity within a one-minute sliding window. redisClient may be nil,
// which disables limiting entirely.
func NewLimiter(redisClient *redis.Client, limitPerMinute int, logger *slog.Logger) *Limiter {
	return &Limiter{
		redisClient: redisClient,
		logger:      logger,
		script:      slidingWindowScript,
		limit:       limitPerMinute,
		window:      time.Minute,
	}
}

func rlKey(identity string) string {
	return fmt.Sprintf("rl:%s", identity)
}

// Allow reports whether a request from this identity is within the rate
// limit. Fails open: an unconfigured or unreachable Redis never blocks a
// request.
func (rl *Limiter) Allow(ctx context.Context, identity string) bool {
	if rl.redisClient == nil || rl.limit <= 0 {
		return true
	}

	now := time.Now().UnixMilli()
	result, err := rl.script.Run(ctx, rl.redisClient, []string{rlKey(identity)},
		now, rl.window.Milliseconds(), rl.limit, uuid.NewString(),
	).Int64()
	if err != nil {
		rl.logger.Error("rate limiter script failed", "error", err)
		return true
	}

	if result == 0 {
		rl.logger.Debug("rate limited", "limit", rl.limit)
		return false
	}

	return true
}
