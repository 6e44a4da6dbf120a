package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sodmaq/auth-service/internal/auth"
	"github.com/sodmaq/auth-service/internal/repository"
	apperrors "github.com/sodmaq/auth-service/pkg/errors"
)

// TokenIssuer issues and checks access and refresh tokens. Access tokens
// are verified by signature and expiry alone; a logged-out user's access
// token stays valid until it expires.
type TokenIssuer struct {
	jwt   *auth.JWTManager
	users repository.UserRepository
}

// NewTokenIssuer creates a token issuer.
func NewTokenIssuer(jwt *auth.JWTManager, users repository.UserRepository) *TokenIssuer {
	return &TokenIssuer{jwt: jwt, users: users}
}

// IssueAccessToken signs an access token for userID.
func (t *TokenIssuer) IssueAccessToken(userID string) (string, error) {
	token, err := t.jwt.GenerateAccessToken(userID)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}
	return token, nil
}

// IssueRefreshToken signs a refresh token and stores it on the user,
// replacing any earlier one.
func (t *TokenIssuer) IssueRefreshToken(ctx context.Context, userID string) (string, error) {
	token, err := t.jwt.GenerateRefreshToken(userID)
	if err != nil {
		return "", fmt.Errorf("issue refresh token: %w", err)
	}
	if err := t.users.SetRefreshToken(ctx, userID, token); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return token, nil
}

// VerifyAccessToken returns the user id carried by a valid access token.
func (t *TokenIssuer) VerifyAccessToken(token string) (string, error) {
	claims, err := t.jwt.ValidateAccessToken(token)
	if err != nil {
		return "", tokenError(err)
	}
	return claims.UserID, nil
}

// VerifyRefreshToken returns the user id carried by a valid refresh token.
func (t *TokenIssuer) VerifyRefreshToken(token string) (string, error) {
	claims, err := t.jwt.ValidateRefreshToken(token)
	if err != nil {
		return "", tokenError(err)
	}
	return claims.UserID, nil
}

// Refresh issues a new access token for a refresh token that is both
// valid and still the one stored on its user.
func (t *TokenIssuer) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", apperrors.Unauthorized("refresh token is required")
	}
	userID, err := t.VerifyRefreshToken(refreshToken)
	if err != nil {
		return "", err
	}

	user, err := t.users.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", apperrors.TokenInvalid("refresh token has been revoked")
		}
		return "", fmt.Errorf("get user by refresh token: %w", err)
	}
	if user.ID != userID {
		return "", apperrors.TokenInvalid("invalid token")
	}
	return t.IssueAccessToken(user.ID)
}

// Revoke clears a stored refresh token. Unknown and expired tokens are
// accepted so that logout is idempotent.
func (t *TokenIssuer) Revoke(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if _, err := t.users.ClearRefreshToken(ctx, refreshToken); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func tokenError(err error) error {
	if errors.Is(err, auth.ErrTokenExpired) {
		return apperrors.TokenInvalid("token expired")
	}
	return apperrors.TokenInvalid("invalid token")
}
