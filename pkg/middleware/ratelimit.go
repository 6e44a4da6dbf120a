package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"

	apperrors "github.com/sodmaq/auth-service/pkg/errors"
	"github.com/sodmaq/auth-service/pkg/httputil"
	"github.com/sodmaq/auth-service/pkg/ratelimit"
)

// RateLimit throttles requests per client IP. Limiter failures let the
// request through and log a warning.
func RateLimit(limiter ratelimit.Limiter, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			d, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				l.WarnContext(r.Context(), "rate limiter unavailable, allowing request",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if !d.Allowed {
				l.WarnContext(r.Context(), "rate limit exceeded",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				if d.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
				}
				httputil.WriteError(w, r, apperrors.RateLimited("too many requests, please try again later"), l)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP strips the port from RemoteAddr. Proxy headers are resolved
// earlier by chi's RealIP middleware.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
