package database

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"
)

const (
	defaultRetryAttempts = 3
	defaultRetryBaseWait = 1 * time.Second
	retryJitterFraction  = 0.25
)

// retryBackoff returns 1s, 2s, 4s... for attempt 0, 1, 2... with ±25% jitter.
func retryBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := defaultRetryBaseWait << attempt
	jitter := time.Duration(float64(base) * retryJitterFraction * (2*rand.Float64() - 1)) // #nosec G404 -- jitter only
	return base + jitter
}

// connPatterns are substrings of transient network failures reported by the
// postgres, mongo and redis drivers.
var connPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"i/o timeout",
	"dial tcp",
	"EOF",
	"connection timed out",
	"server closed the connection unexpectedly",
	"could not connect",
	"server selection error",
	"no reachable servers",
}

// isConnectionError reports whether err looks like a transient connection
// problem rather than a query, constraint or auth error.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, p := range connPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// retryOptions tune withRetry. Zero values mean defaults.
type retryOptions struct {
	attempts  int
	retryable func(error) bool
	backoff   func(int) time.Duration
}

// withRetry runs fn until it succeeds, returns a non-retryable error, or
// the attempts are exhausted. Waits honour ctx cancellation.
func withRetry(ctx context.Context, l *slog.Logger, what string, opts retryOptions, fn func(context.Context) error) error {
	if opts.attempts <= 0 {
		opts.attempts = defaultRetryAttempts
	}
	if opts.retryable == nil {
		opts.retryable = func(error) bool { return true }
	}
	if opts.backoff == nil {
		opts.backoff = retryBackoff
	}

	var err error
	for attempt := 0; attempt < opts.attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !opts.retryable(err) || attempt == opts.attempts-1 {
			break
		}

		wait := opts.backoff(attempt)
		if l != nil {
			l.WarnContext(ctx, what+" failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", opts.attempts),
				slog.Duration("backoff", wait),
				slog.String("error", err.Error()),
			)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: context cancelled during retry: %w", what, ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}
