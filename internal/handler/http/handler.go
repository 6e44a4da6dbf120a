package http

import (
	"context"
	"net/http"
	"time"

	"github.com/sodmaq/auth-service/internal/domain"
	"github.com/sodmaq/auth-service/internal/service"
)

// AuthService is the subset of *service.AuthService the handlers call.
type AuthService interface {
	Signup(ctx context.Context, input service.RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*domain.User, *domain.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Confirm(ctx context.Context, email, token string) (service.RedeemResult, error)
	ResendVerification(ctx context.Context, email string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, secret, newPassword string) (*domain.User, error)
	UpdatePassword(ctx context.Context, userID, current, next string) error
}

var _ AuthService = (*service.AuthService)(nil)

// RefreshCookieName is the cookie carrying the refresh token.
const RefreshCookieName = "refreshToken"

// CookieConfig controls the refresh token cookie.
type CookieConfig struct {
	// Secure is set outside development so the cookie only travels over HTTPS.
	Secure bool
	MaxAge time.Duration
}

func (c CookieConfig) refreshCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     "/api/v1/auth",
		MaxAge:   int(c.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (c CookieConfig) clearedCookie() *http.Cookie {
	ck := c.refreshCookie("")
	ck.MaxAge = -1
	return ck
}
