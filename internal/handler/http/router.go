package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sodmaq/auth-service/internal/domain"
	"github.com/sodmaq/auth-service/pkg/health"
	"github.com/sodmaq/auth-service/pkg/middleware"
	"github.com/sodmaq/auth-service/pkg/ratelimit"
)

// RouterConfig carries everything NewRouter mounts.
type RouterConfig struct {
	ServiceName string
	Auth        *AuthHandler
	Users       *UserHandler
	// Authorize resolves the bearer token on protected routes.
	Authorize middleware.Authorizer[*domain.User]
	Health    *health.Handler
	Metrics   *middleware.HTTPMetrics
	Gatherer  prometheus.Gatherer
	// Limiter throttles the unauthenticated auth endpoints. Nil disables it.
	Limiter    ratelimit.Limiter
	CORS       middleware.CORSConfig
	PprofCIDRs []string
	Logger     *slog.Logger
}

func userID(u *domain.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}

// NewRouter creates a chi router with all auth service routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RealIP)
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}

	// Health and metrics endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	middleware.RegisterPprof(r, cfg.PprofCIDRs, cfg.Logger)

	requireAuth := middleware.Auth(cfg.Authorize, userID, cfg.Logger)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(middleware.RequireJSON)

		// Public endpoints
		r.Group(func(r chi.Router) {
			if cfg.Limiter != nil {
				r.Use(middleware.RateLimit(cfg.Limiter, cfg.Logger))
			}
			r.Post("/signup", cfg.Auth.Signup)
			r.Post("/login", cfg.Auth.Login)
			r.Post("/resend", cfg.Auth.Resend)
			r.Post("/forgot-password", cfg.Auth.ForgotPassword)
			r.Patch("/reset-password/{token}", cfg.Auth.ResetPassword)
		})

		r.Get("/logout", cfg.Auth.Logout)
		r.Post("/logout", cfg.Auth.Logout)
		r.Post("/refresh", cfg.Auth.Refresh)
		r.Get("/confirm/{email}/{token}", cfg.Auth.Confirm)

		// Authenticated endpoints
		r.With(requireAuth).Patch("/update-password", cfg.Auth.UpdatePassword)
	})

	r.Route("/api/v1/users", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/me", cfg.Users.Me)
	})

	return r
}
