package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sodmaq/auth-service/internal/domain"
	"github.com/sodmaq/auth-service/internal/repository"
	apperrors "github.com/sodmaq/auth-service/pkg/errors"
)

// Gate resolves the user behind an Authorization header.
type Gate struct {
	tokens *TokenIssuer
	users  repository.UserRepository
}

// NewGate creates an auth gate.
func NewGate(tokens *TokenIssuer, users repository.UserRepository) *Gate {
	return &Gate{tokens: tokens, users: users}
}

// Authorize checks a "Bearer <token>" header and loads the live user. It
// satisfies middleware.Authorizer[*domain.User].
func (g *Gate) Authorize(ctx context.Context, header string) (*domain.User, error) {
	token, ok := bearerToken(header)
	if !ok {
		return nil, apperrors.Unauthorized("you are not logged in, please log in to get access")
	}

	userID, err := g.tokens.VerifyAccessToken(token)
	if err != nil {
		return nil, err
	}

	user, err := g.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", "")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
