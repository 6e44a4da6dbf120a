package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sodmaq/auth-service/internal/auth"
	"github.com/sodmaq/auth-service/internal/domain"
	"github.com/sodmaq/auth-service/internal/event"
	"github.com/sodmaq/auth-service/internal/repository"
	apperrors "github.com/sodmaq/auth-service/pkg/errors"
)

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// CredentialStore owns user records and their password hashes.
type CredentialStore struct {
	users   repository.UserRepository
	hasher  *auth.PasswordHasher
	events  event.Publisher
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewCredentialStore creates a credential store.
func NewCredentialStore(
	users repository.UserRepository,
	hasher *auth.PasswordHasher,
	events event.Publisher,
	metrics *Metrics,
	logger *slog.Logger,
) *CredentialStore {
	return &CredentialStore{
		users:   users,
		hasher:  hasher,
		events:  events,
		metrics: metrics,
		logger:  logger,
		now:     utcNow,
	}
}

// Register creates an unverified user. Duplicate emails are rejected by
// the store's unique index, so concurrent signups cannot both succeed.
func (s *CredentialStore) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	name := strings.TrimSpace(input.Name)
	email := domain.NormalizeEmail(input.Email)
	if name == "" || email == "" || input.Password == "" {
		return nil, apperrors.InvalidInput("please provide name, email and password")
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.metrics.signup()
	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))
	if err := s.events.UserRegistered(ctx, user); err != nil {
		logPublishError(ctx, s.logger, "user.registered", user.ID, err)
	}
	return user, nil
}

// VerifyCredentials checks an email and password pair. An unverified
// account is reported before the password is compared.
func (s *CredentialStore) VerifyCredentials(ctx context.Context, email, password string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.InvalidInput("please provide email and password")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", "")
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	if !user.IsVerified {
		return nil, apperrors.Unverified("your email has not been verified, please request a new verification link")
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperrors.Unauthorized("invalid email or password")
		}
		return nil, err
	}
	return user, nil
}

// ChangePassword replaces the password after re-checking the current one.
func (s *CredentialStore) ChangePassword(ctx context.Context, userID, current, next string) error {
	if current == "" {
		return apperrors.InvalidInput("current password is required")
	}
	if err := validatePassword(next); err != nil {
		return err
	}
	if current == next {
		return apperrors.InvalidInput("new password must differ from the current password")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("user", "")
		}
		return fmt.Errorf("get user: %w", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, current); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return apperrors.Unauthorized("your current password is wrong")
		}
		return err
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	now := s.now()
	if err := s.users.UpdatePassword(ctx, user.ID, hash, now); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.logger.InfoContext(ctx, "password changed", slog.String("user_id", user.ID))
	if err := s.events.PasswordChanged(ctx, user.ID, now); err != nil {
		logPublishError(ctx, s.logger, "user.password_changed", user.ID, err)
	}
	return nil
}

func utcNow() time.Time { return time.Now().UTC() }

// logPublishError records a failed event publish. Events are best effort:
// the state change they describe has already been committed.
func logPublishError(ctx context.Context, l *slog.Logger, event, userID string, err error) {
	l.ErrorContext(ctx, "failed to publish "+event+" event",
		slog.String("user_id", userID),
		slog.String("error", err.Error()),
	)
}
