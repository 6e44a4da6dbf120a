package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sodmaq/auth-service/internal/domain"
	pkgkafka "github.com/sodmaq/auth-service/pkg/kafka"
	"github.com/sodmaq/auth-service/pkg/logger"
)

// Kafka topics for user lifecycle events.
var (
	TopicUserRegistered      = pkgkafka.Topic("user", "registered")
	TopicUserVerified        = pkgkafka.Topic("user", "verified")
	TopicUserPasswordChanged = pkgkafka.Topic("user", "password_changed")
	TopicUserPasswordReset   = pkgkafka.Topic("user", "password_reset")
)

// SourceAuthService identifies events originating from this service.
const SourceAuthService = "auth-service"

// UserRegisteredData is the payload for auth.user.registered.
type UserRegisteredData struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// UserVerifiedData is the payload for auth.user.verified.
type UserVerifiedData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// PasswordEventData is the payload for auth.user.password_changed and
// auth.user.password_reset.
type PasswordEventData struct {
	UserID    string    `json:"user_id"`
	ChangedAt time.Time `json:"changed_at"`
}

// Publisher emits user lifecycle events. Callers treat errors as
// non-fatal: the state change has already been committed.
type Publisher interface {
	UserRegistered(ctx context.Context, user *domain.User) error
	UserVerified(ctx context.Context, user *domain.User) error
	PasswordChanged(ctx context.Context, userID string, at time.Time) error
	PasswordReset(ctx context.Context, userID string, at time.Time) error
}

// eventWriter is satisfied by *pkgkafka.Producer.
type eventWriter interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes user events to Kafka.
type Producer struct {
	kafka  eventWriter
	logger *slog.Logger
}

var _ Publisher = (*Producer)(nil)

// NewProducer creates a new event producer for the auth service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

// UserRegistered publishes auth.user.registered.
func (p *Producer) UserRegistered(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicUserRegistered, user.ID, UserRegisteredData{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
	})
}

// UserVerified publishes auth.user.verified.
func (p *Producer) UserVerified(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicUserVerified, user.ID, UserVerifiedData{UserID: user.ID, Email: user.Email})
}

// PasswordChanged publishes auth.user.password_changed.
func (p *Producer) PasswordChanged(ctx context.Context, userID string, at time.Time) error {
	return p.publish(ctx, TopicUserPasswordChanged, userID, PasswordEventData{UserID: userID, ChangedAt: at})
}

// PasswordReset publishes auth.user.password_reset.
func (p *Producer) PasswordReset(ctx context.Context, userID string, at time.Time) error {
	return p.publish(ctx, TopicUserPasswordReset, userID, PasswordEventData{UserID: userID, ChangedAt: at})
}

func (p *Producer) publish(ctx context.Context, topic, userID string, data any) error {
	event, err := pkgkafka.NewEvent(topic, userID, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published user event",
		slog.String("topic", topic),
		slog.String("user_id", userID),
	)
	return nil
}

// NoopPublisher discards events. It is used when Kafka is disabled.
type NoopPublisher struct{}

var _ Publisher = NoopPublisher{}

func (NoopPublisher) UserRegistered(context.Context, *domain.User) error { return nil }
func (NoopPublisher) UserVerified(context.Context, *domain.User) error { return nil }
func (NoopPublisher) PasswordChanged(context.Context, string, time.Time) error { return nil }
func (NoopPublisher) PasswordReset(context.Context, string, time.Time) error { return nil }
