package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sodmaq/auth-service/internal/domain"
	"github.com/sodmaq/auth-service/internal/service"
	apperrors "github.com/sodmaq/auth-service/pkg/errors"
	"github.com/sodmaq/auth-service/pkg/health"
	"github.com/sodmaq/auth-service/pkg/httputil"
	"github.com/sodmaq/auth-service/pkg/middleware"
	"github.com/sodmaq/auth-service/pkg/ratelimit"
)

// ============================================================================
// Mock Auth Service
// ============================================================================

type mockAuthService struct {
	mock.Mock
}

func (m *mockAuthService) Signup(ctx context.Context, input service.RegisterInput) (*domain.User, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*domain.User, *domain.TokenPair, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.User), args.Get(1).(*domain.TokenPair), args.Error(2)
}

func (m *mockAuthService) Logout(ctx context.Context, refreshToken string) error {
	return m.Called(ctx, refreshToken).Error(0)
}

func (m *mockAuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	args := m.Called(ctx, refreshToken)
	return args.String(0), args.Error(1)
}

func (m *mockAuthService) Confirm(ctx context.Context, email, token string) (service.RedeemResult, error) {
	args := m.Called(ctx, email, token)
	return args.Get(0).(service.RedeemResult), args.Error(1)
}

func (m *mockAuthService) ResendVerification(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockAuthService) ForgotPassword(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockAuthService) ResetPassword(ctx context.Context, secret, newPassword string) (*domain.User, error) {
	args := m.Called(ctx, secret, newPassword)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockAuthService) UpdatePassword(ctx context.Context, userID, current, next string) error {
	return m.Called(ctx, userID, current, next).Error(0)
}

// ============================================================================
// Helpers
// ============================================================================

const validToken = "valid-access-token"

var testUser = &domain.User{
	ID:           "user-1",
	Name:         "Ada",
	Email:        "ada@example.com",
	PasswordHash: "$2a$04$hash",
	RefreshToken: "stored-refresh",
	IsVerified:   true,
	CreatedAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	UpdatedAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
}

func stubAuthorizer(_ context.Context, header string) (*domain.User, error) {
	switch header {
	case "":
		return nil, apperrors.Unauthorized("you are not logged in, please log in to get access")
	case "Bearer " + validToken:
		return testUser, nil
	default:
		return nil, apperrors.TokenInvalid("invalid token")
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testServer struct {
	svc     *mockAuthService
	handler http.Handler
	reg     *prometheus.Registry
}

func newTestServer(t *testing.T, limiter ratelimit.Limiter) *testServer {
	t.Helper()
	svc := new(mockAuthService)
	reg := prometheus.NewRegistry()
	logger := discardLogger()

	handler := NewRouter(RouterConfig{
		ServiceName: "auth-service",
		Auth:        NewAuthHandler(svc, CookieConfig{Secure: true, MaxAge: 72 * time.Hour}, logger),
		Users:       NewUserHandler(logger),
		Authorize:   stubAuthorizer,
		Health:      health.NewHandler(),
		Metrics:     middleware.NewHTTPMetrics(reg, "auth-service"),
		Gatherer:    reg,
		Limiter:     limiter,
		CORS:        middleware.CORSConfig{Environment: "development"},
		Logger:      logger,
	})
	t.Cleanup(func() { svc.AssertExpectations(t) })
	return &testServer{svc: svc, handler: handler, reg: reg}
}

type requestOption func(*http.Request)

func withBearer(token string) requestOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookie(value string) requestOption {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: value}) }
}

func withContentType(ct string) requestOption {
	return func(r *http.Request) { r.Header.Set("Content-Type", ct) }
}

func (s *testServer) do(t *testing.T, method, path string, body any, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data  json.RawMessage         `json:"data"`
	Error *httputil.ErrorResponse `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &v))
	return v
}

func refreshCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == RefreshCookieName {
			return c
		}
	}
	return nil
}
