package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/sodmaq/auth-service/pkg/errors"
)

func TestGate_Authorize(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signupVerified(t, "Ada", "ada@example.com", "analytical1")

	access, err := env.issuer.IssueAccessToken(user.ID)
	require.NoError(t, err)
	ghost, err := env.issuer.IssueAccessToken("deleted-user")
	require.NoError(t, err)
	refresh, err := env.issuer.IssueRefreshToken(ctx, user.ID)
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		sentinel error
	}{
		{"missing header", "", apperrors.ErrUnauthorized},
		{"wrong scheme", "Basic " + access, apperrors.ErrUnauthorized},
		{"scheme without token", "Bearer ", apperrors.ErrUnauthorized},
		{"malformed token", "Bearer abc.def.ghi", apperrors.ErrTokenInvalid},
		{"refresh token", "Bearer " + refresh, apperrors.ErrTokenInvalid},
		{"user no longer exists", "Bearer " + ghost, apperrors.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.gate.Authorize(ctx, tt.header)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
		})
	}

	for _, header := range []string{"Bearer " + access, "bearer " + access, "BEARER  " + access} {
		got, err := env.gate.Authorize(ctx, header)
		require.NoError(t, err, header)
		assert.Equal(t, user.ID, got.ID)
	}
}

func TestBearerToken(t *testing.T) {
	token, ok := bearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	_, ok = bearerToken("abc")
	assert.False(t, ok)
}
