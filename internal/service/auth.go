package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sodmaq/auth-service/internal/domain"
	apperrors "github.com/sodmaq/auth-service/pkg/errors"
)

// AuthService composes the auth components into the operations the HTTP
// layer exposes.
type AuthService struct {
	creds        *CredentialStore
	tokens       *TokenIssuer
	verification *VerificationManager
	reset        *ResetManager
	metrics      *Metrics
	logger       *slog.Logger
}

// NewAuthService creates an auth service.
func NewAuthService(
	creds *CredentialStore,
	tokens *TokenIssuer,
	verification *VerificationManager,
	reset *ResetManager,
	metrics *Metrics,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		creds:        creds,
		tokens:       tokens,
		verification: verification,
		reset:        reset,
		metrics:      metrics,
		logger:       logger,
	}
}

// Signup registers a user and sends the verification email. When only the
// email fails, the created user is returned together with the
// DeliveryFailed error.
func (s *AuthService) Signup(ctx context.Context, input RegisterInput) (*domain.User, error) {
	user, err := s.creds.Register(ctx, input)
	if err != nil {
		return nil, err
	}
	if _, err := s.verification.Issue(ctx, user); err != nil {
		return user, err
	}
	return user, nil
}

// Login checks credentials and issues a token pair. The refresh token is
// stored on the user, replacing any earlier session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, *domain.TokenPair, error) {
	user, err := s.creds.VerifyCredentials(ctx, email, password)
	if err != nil {
		s.metrics.login(loginResult(err))
		return nil, nil, err
	}

	access, err := s.tokens.IssueAccessToken(user.ID)
	if err != nil {
		s.metrics.login(loginError)
		return nil, nil, err
	}
	refresh, err := s.tokens.IssueRefreshToken(ctx, user.ID)
	if err != nil {
		s.metrics.login(loginError)
		return nil, nil, err
	}

	s.metrics.login(loginSuccess)
	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))
	return user, &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Logout revokes a refresh token. Outstanding access tokens stay valid
// until they expire.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.Revoke(ctx, refreshToken)
}

// Refresh exchanges a stored refresh token for a new access token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	return s.tokens.Refresh(ctx, refreshToken)
}

// Confirm redeems an email verification link.
func (s *AuthService) Confirm(ctx context.Context, email, token string) (RedeemResult, error) {
	return s.verification.Redeem(ctx, email, token)
}

// ResendVerification sends a new verification link.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	return s.verification.Resend(ctx, email)
}

// ForgotPassword starts a password reset.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	return s.reset.RequestReset(ctx, email)
}

// ResetPassword completes a password reset with the emailed secret.
func (s *AuthService) ResetPassword(ctx context.Context, secret, newPassword string) (*domain.User, error) {
	return s.reset.PerformReset(ctx, secret, newPassword)
}

// UpdatePassword changes the password of an authenticated user.
func (s *AuthService) UpdatePassword(ctx context.Context, userID, current, next string) error {
	return s.creds.ChangePassword(ctx, userID, current, next)
}

func loginResult(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return loginNotFound
	case errors.Is(err, apperrors.ErrUnverified):
		return loginUnverified
	case errors.Is(err, apperrors.ErrUnauthorized):
		return loginBadCredentials
	default:
		return loginError
	}
}
