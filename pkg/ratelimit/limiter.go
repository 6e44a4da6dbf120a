// Package ratelimit throttles requests per key (typically a client IP) with
// either a process-local token bucket or a fixed window shared through Redis.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Config holds the shared limiter parameters: Requests per Window per key.
type Config struct {
	Requests int
	Window   time.Duration
}
