package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_SecretsExcludedFromJSON(t *testing.T) {
	expires := time.Now().Add(time.Hour)
	u := User{
		ID:                   "u-1",
		Name:                 "Ada",
		Email:                "ada@example.com",
		PasswordHash:         "$2a$10$hash",
		RefreshToken:         "refresh-jwt",
		PasswordResetToken:   "deadbeef",
		PasswordResetExpires: &expires,
	}

	data, err := json.Marshal(u)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "ada@example.com", fields["email"])
	assert.Equal(t, false, fields["is_verified"])
	for _, secret := range []string{"$2a$10$hash", "refresh-jwt", "deadbeef"} {
		assert.NotContains(t, string(data), secret)
	}
	assert.NotContains(t, fields, "password_changed_at")
}

func TestUser_HasPendingReset(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(10 * time.Minute)
	past := now.Add(-time.Second)

	tests := []struct {
		name string
		user User
		want bool
	}{
		{"no token", User{}, false},
		{"token without expiry", User{PasswordResetToken: "h"}, false},
		{"pending", User{PasswordResetToken: "h", PasswordResetExpires: &future}, true},
		{"expired", User{PasswordResetToken: "h", PasswordResetExpires: &past}, false},
		{"expires exactly now", User{PasswordResetToken: "h", PasswordResetExpires: &now}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.HasPendingReset(now))
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ada@example.com", NormalizeEmail("  Ada@Example.COM "))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestVerificationToken_ExpiredAt(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tok := VerificationToken{CreatedAt: created}

	assert.False(t, tok.ExpiredAt(created.Add(24*time.Hour-time.Second), 24*time.Hour))
	assert.True(t, tok.ExpiredAt(created.Add(24*time.Hour), 24*time.Hour))
}
