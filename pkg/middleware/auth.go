package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sodmaq/auth-service/pkg/httputil"
	"github.com/sodmaq/auth-service/pkg/logger"
)

type principalKey struct{}

// Authorizer resolves the raw Authorization header value to a principal.
// It returns a typed error from pkg/errors on failure.
type Authorizer[T any] func(ctx context.Context, header string) (T, error)

// Auth rejects requests whose Authorization header the authorizer refuses
// and stores the resolved principal in the request context. idOf names the
// principal in request logs.
func Auth[T any](authorize Authorizer[T], idOf func(T) string, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := authorize(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				httputil.WriteError(w, r, err, l)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey{}, principal)
			if id := idOf(principal); id != "" {
				ctx = logger.WithUserID(ctx, id)
				ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("user_id", id)))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext returns the principal stored by Auth.
func PrincipalFromContext[T any](ctx context.Context) (T, bool) {
	p, ok := ctx.Value(principalKey{}).(T)
	return p, ok
}
