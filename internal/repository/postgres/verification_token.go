package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sodmaq/auth-service/internal/domain"
	"github.com/sodmaq/auth-service/pkg/database"
	apperrors "github.com/sodmaq/auth-service/pkg/errors"
)

// VerificationTokenRepository implements repository.VerificationTokenRepository
// using PostgreSQL.
type VerificationTokenRepository struct {
	db database.DBTX
}

// NewVerificationTokenRepository creates a new PostgreSQL-backed token repository.
func NewVerificationTokenRepository(db database.DBTX) *VerificationTokenRepository {
	return &VerificationTokenRepository{db: db}
}

// Create stores a new token.
func (r *VerificationTokenRepository) Create(ctx context.Context, t *domain.VerificationToken) (err error) {
	query := `INSERT INTO verification_tokens (id, user_id, token, created_at) VALUES ($1, $2, $3, $4)`

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "verification_tokens.insert", query)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, query, t.ID, t.UserID, t.Token, t.CreatedAt); err != nil {
		return fmt.Errorf("insert verification token: %w", err)
	}
	return nil
}

// Consume deletes and returns the token if it was created after notBefore.
func (r *VerificationTokenRepository) Consume(ctx context.Context, token string, notBefore time.Time) (_ *domain.VerificationToken, err error) {
	query := `
		DELETE FROM verification_tokens
		WHERE token = $1 AND created_at > $2
		RETURNING id, user_id, token, created_at`

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "verification_tokens.consume", query)
	defer func() { end(err) }()

	var t domain.VerificationToken
	err = r.db.QueryRow(ctx, query, token, notBefore).Scan(&t.ID, &t.UserID, &t.Token, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("verification token", "")
	}
	if err != nil {
		return nil, fmt.Errorf("consume verification token: %w", err)
	}
	return &t, nil
}
