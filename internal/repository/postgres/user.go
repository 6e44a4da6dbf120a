package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sodmaq/auth-service/internal/domain"
	"github.com/sodmaq/auth-service/pkg/database"
	apperrors "github.com/sodmaq/auth-service/pkg/errors"
)

const userColumns = `id, name, email, password_hash, refresh_token, is_verified, password_changed_at,
		password_reset_token, password_reset_expires, created_at, updated_at`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db  database.DBTX
	now func() time.Time
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Create inserts a new user into the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	query := `
		INSERT INTO users (id, name, email, password_hash, is_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "users.insert", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		u.ID,
		u.Name,
		u.Email,
		u.PasswordHash,
		u.IsVerified,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.scanUser(ctx, "users.get_by_id", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail retrieves a user by their email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanUser(ctx, "users.get_by_email", `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// GetByRefreshToken retrieves the user holding token.
func (r *UserRepository) GetByRefreshToken(ctx context.Context, token string) (*domain.User, error) {
	return r.scanUser(ctx, "users.get_by_refresh_token", `SELECT `+userColumns+` FROM users WHERE refresh_token = $1`, token)
}

// MarkVerified sets is_verified only if it is still false.
func (r *UserRepository) MarkVerified(ctx context.Context, id string) (bool, error) {
	ct, err := r.exec(ctx, "users.mark_verified",
		`UPDATE users SET is_verified = TRUE, updated_at = $2 WHERE id = $1 AND is_verified = FALSE`,
		id, r.now())
	if err != nil {
		return false, fmt.Errorf("mark user verified: %w", err)
	}
	return ct == 1, nil
}

// SetRefreshToken overwrites the stored refresh token.
func (r *UserRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	n, err := r.exec(ctx, "users.set_refresh_token",
		`UPDATE users SET refresh_token = $2, updated_at = $3 WHERE id = $1`,
		id, token, r.now())
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}

// ClearRefreshToken removes token from whichever user holds it.
func (r *UserRepository) ClearRefreshToken(ctx context.Context, token string) (bool, error) {
	n, err := r.exec(ctx, "users.clear_refresh_token",
		`UPDATE users SET refresh_token = NULL, updated_at = $2 WHERE refresh_token = $1`,
		token, r.now())
	if err != nil {
		return false, fmt.Errorf("clear refresh token: %w", err)
	}
	return n > 0, nil
}

// UpdatePassword stores a new hash and the time it changed.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string, changedAt time.Time) error {
	n, err := r.exec(ctx, "users.update_password",
		`UPDATE users SET password_hash = $2, password_changed_at = $3, updated_at = $3 WHERE id = $1`,
		id, hash, changedAt)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}

// SetPasswordReset stores a reset token hash and its expiry.
func (r *UserRepository) SetPasswordReset(ctx context.Context, id, tokenHash string, expires time.Time) error {
	n, err := r.exec(ctx, "users.set_password_reset",
		`UPDATE users SET password_reset_token = $2, password_reset_expires = $3, updated_at = $4 WHERE id = $1`,
		id, tokenHash, expires, r.now())
	if err != nil {
		return fmt.Errorf("set password reset: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}

// ConsumePasswordReset redeems a reset token hash in a single UPDATE so
// two concurrent resets cannot both succeed.
func (r *UserRepository) ConsumePasswordReset(ctx context.Context, tokenHash string, now time.Time, newHash string) (*domain.User, error) {
	query := `
		UPDATE users
		SET password_hash = $2, password_changed_at = $3, password_reset_token = NULL,
		    password_reset_expires = NULL, updated_at = $3
		WHERE password_reset_token = $1 AND password_reset_expires > $3
		RETURNING ` + userColumns

	return r.scanUser(ctx, "users.consume_password_reset", query, tokenHash, newHash, now)
}

func (r *UserRepository) exec(ctx context.Context, op, query string, args ...any) (rows int64, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, op, query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// scanUser executes a query expected to return a single user row.
func (r *UserRepository) scanUser(ctx context.Context, op, query string, args ...any) (_ *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, op, query)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	var (
		u                        domain.User
		refreshToken, resetToken *string
	)
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&refreshToken,
		&u.IsVerified,
		&u.PasswordChangedAt,
		&resetToken,
		&u.PasswordResetExpires,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	if refreshToken != nil {
		u.RefreshToken = *refreshToken
	}
	if resetToken != nil {
		u.PasswordResetToken = *resetToken
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
