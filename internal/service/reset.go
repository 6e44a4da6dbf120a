package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sodmaq/auth-service/internal/auth"
	"github.com/sodmaq/auth-service/internal/domain"
	"github.com/sodmaq/auth-service/internal/event"
	"github.com/sodmaq/auth-service/internal/mail"
	"github.com/sodmaq/auth-service/internal/repository"
	apperrors "github.com/sodmaq/auth-service/pkg/errors"
)

// ResetManager runs the forgot-password flow. Only the SHA-256 of a reset
// secret is stored; the secret itself travels in the email link.
type ResetManager struct {
	users   repository.UserRepository
	hasher  *auth.PasswordHasher
	sender  mail.Sender
	events  event.Publisher
	metrics *Metrics
	cfg     LinkConfig
	logger  *slog.Logger
	now     func() time.Time
}

// NewResetManager creates a password reset manager.
func NewResetManager(
	users repository.UserRepository,
	hasher *auth.PasswordHasher,
	sender mail.Sender,
	events event.Publisher,
	metrics *Metrics,
	cfg LinkConfig,
	logger *slog.Logger,
) *ResetManager {
	return &ResetManager{
		users:   users,
		hasher:  hasher,
		sender:  sender,
		events:  events,
		metrics: metrics,
		cfg:     cfg,
		logger:  logger,
		now:     utcNow,
	}
}

// RequestReset stores a new reset hash for email and sends the link. A
// later request replaces the earlier hash. When delivery fails the hash
// stays stored and DeliveryFailed is returned.
func (m *ResetManager) RequestReset(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return apperrors.InvalidInput("email is required")
	}

	user, err := m.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("user", "")
		}
		return fmt.Errorf("get user by email: %w", err)
	}

	secret, hash, err := auth.NewResetSecret()
	if err != nil {
		return err
	}
	if err := m.users.SetPasswordReset(ctx, user.ID, hash, m.now().Add(m.cfg.TTL)); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	link := mail.ResetLink(m.cfg.BaseURL, secret)
	err = m.sender.Send(ctx, user.Email, mail.ResetSubject(m.cfg.TTL), mail.ResetBody(link, m.cfg.TTL))
	m.metrics.email(emailPasswordReset, err)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to send password reset email",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return apperrors.DeliveryFailed(err)
	}

	m.logger.InfoContext(ctx, "password reset requested", slog.String("user_id", user.ID))
	return nil
}

// PerformReset sets newPassword on the user holding secret. Matching the
// hash, checking the expiry and clearing the reset fields happen in one
// conditional update, so a secret works at most once.
func (m *ResetManager) PerformReset(ctx context.Context, secret, newPassword string) (*domain.User, error) {
	if secret == "" {
		return nil, apperrors.TokenInvalid("token is invalid or has expired")
	}
	if err := validatePassword(newPassword); err != nil {
		return nil, err
	}

	hash, err := m.hasher.Hash(newPassword)
	if err != nil {
		return nil, err
	}

	now := m.now()
	user, err := m.users.ConsumePasswordReset(ctx, auth.HashSecret(secret), now, hash)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.TokenInvalid("token is invalid or has expired")
		}
		return nil, fmt.Errorf("consume reset token: %w", err)
	}

	m.logger.InfoContext(ctx, "password reset", slog.String("user_id", user.ID))
	if err := m.events.PasswordReset(ctx, user.ID, now); err != nil {
		logPublishError(ctx, m.logger, "user.password_reset", user.ID, err)
	}
	return user, nil
}
