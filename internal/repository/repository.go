package repository

import (
	"context"
	"time"

	"github.com/sodmaq/auth-service/internal/domain"
)

// UserRepository defines the interface for user persistence operations.
// Emails are passed already normalised. Lookups that find nothing return an
// error wrapping apperrors.ErrNotFound.
type UserRepository interface {
	// Create inserts a new user. A duplicate email returns an
	// apperrors.AlreadyExists error, detected by the store's unique index.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by their email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetByRefreshToken retrieves the user whose stored refresh token equals token.
	GetByRefreshToken(ctx context.Context, token string) (*domain.User, error)

	// MarkVerified flips isVerified from false to true. It reports false
	// when the user was already verified.
	MarkVerified(ctx context.Context, id string) (bool, error)

	// SetRefreshToken overwrites the stored refresh token.
	SetRefreshToken(ctx context.Context, id, token string) error

	// ClearRefreshToken removes token from whichever user holds it and
	// reports whether a user matched.
	ClearRefreshToken(ctx context.Context, token string) (bool, error)

	// UpdatePassword stores a new hash and the time it changed.
	UpdatePassword(ctx context.Context, id, hash string, changedAt time.Time) error

	// SetPasswordReset stores a reset token hash and its expiry.
	SetPasswordReset(ctx context.Context, id, tokenHash string, expires time.Time) error

	// ConsumePasswordReset atomically matches a user by reset token hash
	// with an expiry after now, sets newHash, stamps PasswordChangedAt=now
	// and clears both reset fields. It returns the updated user, or an
	// apperrors.ErrNotFound error when nothing matched.
	ConsumePasswordReset(ctx context.Context, tokenHash string, now time.Time, newHash string) (*domain.User, error)
}

// VerificationTokenRepository defines the interface for email verification
// token persistence.
type VerificationTokenRepository interface {
	// Create stores a new token.
	Create(ctx context.Context, token *domain.VerificationToken) error

	// Consume atomically deletes and returns the token created after
	// notBefore. Missing or older tokens return an apperrors.ErrNotFound error.
	Consume(ctx context.Context, token string, notBefore time.Time) (*domain.VerificationToken, error)
}
