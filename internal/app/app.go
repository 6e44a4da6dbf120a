package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sodmaq/auth-service/internal/auth"
	"github.com/sodmaq/auth-service/internal/config"
	handler "github.com/sodmaq/auth-service/internal/handler/http"
	"github.com/sodmaq/auth-service/internal/service"
	"github.com/sodmaq/auth-service/pkg/database"
	"github.com/sodmaq/auth-service/pkg/health"
	"github.com/sodmaq/auth-service/pkg/middleware"
	"github.com/sodmaq/auth-service/pkg/ratelimit"
	"github.com/sodmaq/auth-service/pkg/tracing"
)

// App wires together all dependencies and runs the auth service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	httpServer     *http.Server
	limiter        ratelimit.Limiter
	tracerShutdown tracing.ShutdownFunc
	// closers run in order during shutdown: events, cache, then storage.
	closers []closer
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.closeResources()
		}
	}()

	// Initialize OpenTelemetry tracing.
	a.tracerShutdown, err = tracing.InitTracer(ctx, tracing.Config{
		Enabled:        cfg.OTelEnabled,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTelEndpoint,
		Insecure:       cfg.OTelInsecure,
		SampleRate:     cfg.OTelSampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	checks := health.NewHandler()

	if cfg.SlowQueryThreshold > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)
	}

	store, err := newStorage(ctx, cfg, reg, checks, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.close)

	limiter, limiterCloser, err := newLimiter(ctx, cfg, checks)
	if err != nil {
		return nil, err
	}
	a.limiter = limiter
	if limiterCloser != nil {
		a.closers = append([]closer{*limiterCloser}, a.closers...)
	}

	sender, err := newSender(cfg, reg, logger)
	if err != nil {
		return nil, fmt.Errorf("init mail sender: %w", err)
	}
	logger.Info("mail sender initialized", slog.String("driver", cfg.MailDriver))

	publisher, publisherCloser := newPublisher(cfg, reg, checks, logger)
	if publisherCloser != nil {
		a.closers = append([]closer{*publisherCloser}, a.closers...)
	}

	// Build the dependency graph.
	metrics := service.NewMetrics(reg)
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry)

	creds := service.NewCredentialStore(store.users, hasher, publisher, metrics, logger)
	tokens := service.NewTokenIssuer(jwtManager, store.users)
	verification := service.NewVerificationManager(store.tokens, store.users, sender, publisher, metrics,
		service.LinkConfig{BaseURL: cfg.AppBaseURL, TTL: cfg.VerificationTokenTTL}, logger)
	reset := service.NewResetManager(store.users, hasher, sender, publisher, metrics,
		service.LinkConfig{BaseURL: cfg.AppBaseURL, TTL: cfg.PasswordResetTTL}, logger)
	gate := service.NewGate(tokens, store.users)
	authService := service.NewAuthService(creds, tokens, verification, reset, metrics, logger)

	// HTTP router.
	authHandler := handler.NewAuthHandler(authService, handler.CookieConfig{
		Secure: !cfg.IsDevelopment(),
		MaxAge: cfg.JWTRefreshExpiry,
	}, logger)
	router := handler.NewRouter(handler.RouterConfig{
		ServiceName: cfg.ServiceName,
		Auth:        authHandler,
		Users:       handler.NewUserHandler(logger),
		Authorize:   gate.Authorize,
		Health:      checks,
		Metrics:     middleware.NewHTTPMetrics(reg, cfg.ServiceName),
		Gatherer:    reg,
		Limiter:     limiter,
		CORS:        middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins, AllowCredentials: true, Environment: cfg.Environment},
		PprofCIDRs:  cfg.PprofAllowedCIDRs,
		Logger:      logger,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	if mem, ok := a.limiter.(*ratelimit.MemoryLimiter); ok {
		go mem.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return errors.Join(err, a.closeResources())
	}

	return a.Shutdown()
}

// Shutdown drains in-flight requests, flushes pending spans so the drained
// requests are captured, then releases Kafka, Redis and storage.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	errs = append(errs, a.closeResources())

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeResources flushes the tracer and runs the closers in order.
func (a *App) closeResources() error {
	var errs []error

	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.tracerShutdown = nil
	}

	for _, c := range a.closers {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := c.fn(ctx); err != nil {
			a.logger.Error(c.name+" close error", slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
		cancel()
	}
	a.closers = nil

	return errors.Join(errs...)
}
