package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sodmaq/auth-service/internal/auth"
	"github.com/sodmaq/auth-service/internal/domain"
	"github.com/sodmaq/auth-service/internal/event"
	"github.com/sodmaq/auth-service/internal/mail"
	"github.com/sodmaq/auth-service/internal/repository"
	apperrors "github.com/sodmaq/auth-service/pkg/errors"
)

// RedeemResult is the outcome of a successful verification redemption.
type RedeemResult int

const (
	// RedeemVerified means the account moved from unverified to verified.
	RedeemVerified RedeemResult = iota + 1
	// RedeemAlreadyVerified means the account had been verified before.
	RedeemAlreadyVerified
)

func (r RedeemResult) String() string {
	switch r {
	case RedeemVerified:
		return "verified"
	case RedeemAlreadyVerified:
		return "already_verified"
	default:
		return "unknown"
	}
}

// LinkConfig holds what the mail links and expiry checks need.
type LinkConfig struct {
	BaseURL string
	TTL     time.Duration
}

// VerificationManager issues and redeems email verification tokens.
type VerificationManager struct {
	tokens  repository.VerificationTokenRepository
	users   repository.UserRepository
	sender  mail.Sender
	events  event.Publisher
	metrics *Metrics
	cfg     LinkConfig
	logger  *slog.Logger
	now     func() time.Time
}

// NewVerificationManager creates a verification manager.
func NewVerificationManager(
	tokens repository.VerificationTokenRepository,
	users repository.UserRepository,
	sender mail.Sender,
	events event.Publisher,
	metrics *Metrics,
	cfg LinkConfig,
	logger *slog.Logger,
) *VerificationManager {
	return &VerificationManager{
		tokens:  tokens,
		users:   users,
		sender:  sender,
		events:  events,
		metrics: metrics,
		cfg:     cfg,
		logger:  logger,
		now:     utcNow,
	}
}

// Issue stores a fresh token for user and emails the confirmation link.
// The token is persisted before sending, so a delivery failure leaves a
// valid token behind and surfaces as DeliveryFailed.
func (m *VerificationManager) Issue(ctx context.Context, user *domain.User) (string, error) {
	token, err := auth.NewVerificationToken()
	if err != nil {
		return "", err
	}

	vt := &domain.VerificationToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     token,
		CreatedAt: m.now(),
	}
	if err := m.tokens.Create(ctx, vt); err != nil {
		return "", fmt.Errorf("store verification token: %w", err)
	}

	link := mail.VerificationLink(m.cfg.BaseURL, user.Email, token)
	err = m.sender.Send(ctx, user.Email, mail.SubjectVerification, mail.VerificationBody(user.Name, link, m.cfg.TTL))
	m.metrics.email(emailVerification, err)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to send verification email",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return "", apperrors.DeliveryFailed(err)
	}
	return token, nil
}

// Redeem consumes token and verifies the account it belongs to. The token
// is deleted even when the email does not match.
func (m *VerificationManager) Redeem(ctx context.Context, email, token string) (RedeemResult, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || token == "" {
		return 0, apperrors.TokenInvalid("verification link is invalid or has expired")
	}

	vt, err := m.tokens.Consume(ctx, token, m.now().Add(-m.cfg.TTL))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return 0, apperrors.TokenInvalid("verification link is invalid or has expired")
		}
		return 0, fmt.Errorf("consume verification token: %w", err)
	}

	user, err := m.users.GetByID(ctx, vt.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return 0, apperrors.NotFound("user", "")
		}
		return 0, fmt.Errorf("get user: %w", err)
	}
	if user.Email != email {
		return 0, apperrors.TokenInvalid("verification link does not belong to this email")
	}
	if user.IsVerified {
		return RedeemAlreadyVerified, nil
	}

	flipped, err := m.users.MarkVerified(ctx, user.ID)
	if err != nil {
		return 0, fmt.Errorf("mark verified: %w", err)
	}
	if !flipped {
		return RedeemAlreadyVerified, nil
	}

	user.IsVerified = true
	m.logger.InfoContext(ctx, "email verified", slog.String("user_id", user.ID))
	if err := m.events.UserVerified(ctx, user); err != nil {
		logPublishError(ctx, m.logger, "user.verified", user.ID, err)
	}
	return RedeemVerified, nil
}

// Resend issues another token for an unverified account. Earlier tokens
// remain redeemable until they expire.
func (m *VerificationManager) Resend(ctx context.Context, email string) error {
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
	if user.IsVerified {
		return apperrors.InvalidInput("this account has already been verified, please log in")
	}

	_, err = m.Issue(ctx, user)
	return err
}
