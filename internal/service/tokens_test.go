package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sodmaq/auth-service/internal/auth"
	"github.com/sodmaq/auth-service/internal/domain"
	apperrors "github.com/sodmaq/auth-service/pkg/errors"
)

func TestAccessToken_DecodesToUserAndExpires(t *testing.T) {
	env := newTestEnv(t)

	token, err := env.issuer.IssueAccessToken("user-1")
	require.NoError(t, err)

	id, err := env.issuer.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)

	env.clock.Advance(24*time.Hour - time.Second)
	_, err = env.issuer.VerifyAccessToken(token)
	require.NoError(t, err)

	env.clock.Advance(2 * time.Second)
	_, err = env.issuer.VerifyAccessToken(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTokenInvalid))

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "token expired", appErr.Message)
}

func TestRefreshToken_ExpiresAfter72Hours(t *testing.T) {
	env := newTestEnv(t)
	user := env.signupVerified(t, "Ada", "ada@example.com", "analytical1")

	token, err := env.issuer.IssueRefreshToken(context.Background(), user.ID)
	require.NoError(t, err)

	env.clock.Advance(72*time.Hour - time.Second)
	id, err := env.issuer.VerifyRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	env.clock.Advance(2 * time.Second)
	_, err = env.issuer.VerifyRefreshToken(token)
	assert.True(t, errors.Is(err, apperrors.ErrTokenInvalid))
}

func TestVerifyAccessToken_Invalid(t *testing.T) {
	env := newTestEnv(t)
	refresh, err := auth.NewJWTManager(testSecret, time.Hour, time.Hour).GenerateRefreshToken("user-1")
	require.NoError(t, err)
	foreign, err := auth.NewJWTManager("another-secret-that-is-32-chars-long", time.Hour, time.Hour).GenerateAccessToken("user-1")
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":        "not.a.jwt",
		"empty":          "",
		"refresh token":  refresh,
		"foreign secret": foreign,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := env.issuer.VerifyAccessToken(token)
			require.Error(t, err)

			var appErr *apperrors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, "TOKEN_INVALID", appErr.Code)
			assert.Equal(t, "invalid token", appErr.Message)
		})
	}
}

func TestIssueRefreshToken_PersistsOnUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signupVerified(t, "Ada", "ada@example.com", "analytical1")

	token, err := env.issuer.IssueRefreshToken(ctx, user.ID)
	require.NoError(t, err)

	stored, err := env.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, token, stored.RefreshToken)
}

func TestIssueRefreshToken_StoreFailure(t *testing.T) {
	users := new(mockUserRepository)
	users.On("SetRefreshToken", mock.Anything, "user-1", mock.AnythingOfType("string")).Return(errors.New("write failed"))
	issuer := NewTokenIssuer(auth.NewJWTManager(testSecret, time.Hour, time.Hour), users)

	_, err := issuer.IssueRefreshToken(context.Background(), "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store refresh token")
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signupVerified(t, "Ada", "ada@example.com", "analytical1")

	refresh, err := env.issuer.IssueRefreshToken(ctx, user.ID)
	require.NoError(t, err)

	access, err := env.issuer.Refresh(ctx, refresh)
	require.NoError(t, err)
	id, err := env.issuer.VerifyAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	t.Run("missing token", func(t *testing.T) {
		_, err := env.issuer.Refresh(ctx, "")
		assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		_, err := env.issuer.Refresh(ctx, access)
		assert.True(t, errors.Is(err, apperrors.ErrTokenInvalid))
	})

	t.Run("revoked token", func(t *testing.T) {
		require.NoError(t, env.issuer.Revoke(ctx, refresh))
		_, err := env.issuer.Refresh(ctx, refresh)
		assert.True(t, errors.Is(err, apperrors.ErrTokenInvalid))
	})
}

func TestRefresh_TokenHeldByAnotherUser(t *testing.T) {
	jwt := auth.NewJWTManager(testSecret, time.Hour, time.Hour)
	token, err := jwt.GenerateRefreshToken("user-1")
	require.NoError(t, err)

	users := new(mockUserRepository)
	users.On("GetByRefreshToken", mock.Anything, token).Return(&domain.User{ID: "user-2"}, nil)
	issuer := NewTokenIssuer(jwt, users)

	_, err = issuer.Refresh(context.Background(), token)
	assert.True(t, errors.Is(err, apperrors.ErrTokenInvalid))
}

func TestRevoke_IsIdempotent(t *testing.T) {
	users := new(mockUserRepository)
	users.On("ClearRefreshToken", mock.Anything, "unknown").Return(false, nil)
	issuer := NewTokenIssuer(auth.NewJWTManager(testSecret, time.Hour, time.Hour), users)

	assert.NoError(t, issuer.Revoke(context.Background(), "unknown"))
	assert.NoError(t, issuer.Revoke(context.Background(), ""))
	users.AssertNumberOfCalls(t, "ClearRefreshToken", 1)
}
