package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "auth:rl:"

// fixedWindowScript increments the window counter, arms its expiry on first
// hit and returns {allowed, ttl_ms}.
var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end

local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[2])
end

if current > tonumber(ARGV[1]) then
  return {0, ttl}
end
return {1, ttl}
`)

// RedisLimiter is a fixed-window counter shared by every replica.
type RedisLimiter struct {
	client redis.Scripter
	cfg    Config
	prefix string
}

// NewRedis creates a Redis-backed limiter. An empty prefix uses "auth:rl:".
func NewRedis(client redis.Scripter, cfg Config, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisLimiter{client: client, cfg: cfg, prefix: prefix}
}

// Allow counts one hit for key in the current window.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	windowMS := l.cfg.Window.Milliseconds()
	if windowMS <= 0 {
		return Decision{}, fmt.Errorf("ratelimit: invalid window %s", l.cfg.Window)
	}

	res, err := fixedWindowScript.Run(ctx, l.client, []string{l.prefix + key}, l.cfg.Requests, windowMS).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: run script: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("ratelimit: unexpected script reply %v", res)
	}

	d := Decision{Allowed: res[0] == 1}
	if !d.Allowed {
		d.RetryAfter = time.Duration(max(res[1], 0)) * time.Millisecond
	}
	return d, nil
}
