package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sodmaq/auth-service/internal/auth"
	"github.com/sodmaq/auth-service/internal/domain"
	"github.com/sodmaq/auth-service/internal/event"
	apperrors "github.com/sodmaq/auth-service/pkg/errors"
)

const (
	testSecret  = "test-secret-key-that-is-long-enough-32"
	testBaseURL = "http://localhost:8080"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Mocks ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByRefreshToken(ctx context.Context, token string) (*domain.User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) MarkVerified(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	args := m.Called(ctx, id, token)
	return args.Error(0)
}

func (m *mockUserRepository) ClearRefreshToken(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, id, hash string, changedAt time.Time) error {
	args := m.Called(ctx, id, hash, changedAt)
	return args.Error(0)
}

func (m *mockUserRepository) SetPasswordReset(ctx context.Context, id, tokenHash string, expires time.Time) error {
	args := m.Called(ctx, id, tokenHash, expires)
	return args.Error(0)
}

func (m *mockUserRepository) ConsumePasswordReset(ctx context.Context, tokenHash string, now time.Time, newHash string) (*domain.User, error) {
	args := m.Called(ctx, tokenHash, now, newHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type mockTokenRepository struct {
	mock.Mock
}

func (m *mockTokenRepository) Create(ctx context.Context, token *domain.VerificationToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *mockTokenRepository) Consume(ctx context.Context, token string, notBefore time.Time) (*domain.VerificationToken, error) {
	args := m.Called(ctx, token, notBefore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VerificationToken), args.Error(1)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) UserRegistered(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockPublisher) UserVerified(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockPublisher) PasswordChanged(ctx context.Context, userID string, at time.Time) error {
	return m.Called(ctx, userID, at).Error(0)
}

func (m *mockPublisher) PasswordReset(ctx context.Context, userID string, at time.Time) error {
	return m.Called(ctx, userID, at).Error(0)
}

// --- In-memory stores ---

type memUserRepository struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemUserRepository() *memUserRepository {
	return &memUserRepository{users: make(map[string]*domain.User)}
}

func (r *memUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return apperrors.AlreadyExists("user", "email", user.Email)
		}
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *memUserRepository) find(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("mem user: %w", apperrors.ErrNotFound)
}

func (r *memUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ID == id })
}

func (r *memUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email })
}

func (r *memUserRepository) GetByRefreshToken(_ context.Context, token string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return token != "" && u.RefreshToken == token })
}

func (r *memUserRepository) update(id string, fn func(*domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return fmt.Errorf("mem user %s: %w", id, apperrors.ErrNotFound)
	}
	fn(u)
	return nil
}

func (r *memUserRepository) MarkVerified(_ context.Context, id string) (bool, error) {
	var flipped bool
	err := r.update(id, func(u *domain.User) {
		flipped = !u.IsVerified
		u.IsVerified = true
	})
	return flipped, err
}

func (r *memUserRepository) SetRefreshToken(_ context.Context, id, token string) error {
	return r.update(id, func(u *domain.User) { u.RefreshToken = token })
}

func (r *memUserRepository) ClearRefreshToken(_ context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.RefreshToken == token {
			u.RefreshToken = ""
			return true, nil
		}
	}
	return false, nil
}

func (r *memUserRepository) UpdatePassword(_ context.Context, id, hash string, changedAt time.Time) error {
	return r.update(id, func(u *domain.User) {
		u.PasswordHash = hash
		u.PasswordChangedAt = &changedAt
	})
}

func (r *memUserRepository) SetPasswordReset(_ context.Context, id, tokenHash string, expires time.Time) error {
	return r.update(id, func(u *domain.User) {
		u.PasswordResetToken = tokenHash
		u.PasswordResetExpires = &expires
	})
}

func (r *memUserRepository) ConsumePasswordReset(_ context.Context, tokenHash string, now time.Time, newHash string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.PasswordResetToken == tokenHash && u.HasPendingReset(now) {
			u.PasswordHash = newHash
			u.PasswordChangedAt = &now
			u.PasswordResetToken = ""
			u.PasswordResetExpires = nil
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("mem reset: %w", apperrors.ErrNotFound)
}

type memTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]domain.VerificationToken
}

func newMemTokenRepository() *memTokenRepository {
	return &memTokenRepository{tokens: make(map[string]domain.VerificationToken)}
}

func (r *memTokenRepository) Create(_ context.Context, token *domain.VerificationToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token.Token] = *token
	return nil
}

func (r *memTokenRepository) Consume(_ context.Context, token string, notBefore time.Time) (*domain.VerificationToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vt, ok := r.tokens[token]
	if !ok || !vt.CreatedAt.After(notBefore) {
		return nil, fmt.Errorf("mem token: %w", apperrors.ErrNotFound)
	}
	delete(r.tokens, token)
	return &vt, nil
}

type sentMail struct {
	To, Subject, Body string
}

// outbox records sent mail and fails every send while err is set.
type outbox struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (o *outbox) Send(_ context.Context, to, subject, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (o *outbox) last(t *testing.T) sentMail {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.sent, "no mail sent")
	return o.sent[len(o.sent)-1]
}

var (
	confirmLinkRe = regexp.MustCompile(`/api/v1/auth/confirm/([^/\s]+)/([0-9a-f]+)`)
	resetLinkRe   = regexp.MustCompile(`/api/v1/auth/reset-password/([0-9a-f]+)`)
)

func verificationTokenFrom(t *testing.T, m sentMail) string {
	t.Helper()
	match := confirmLinkRe.FindStringSubmatch(m.Body)
	require.Len(t, match, 3, "no confirm link in %q", m.Body)
	return match[2]
}

func resetSecretFrom(t *testing.T, m sentMail) string {
	t.Helper()
	match := resetLinkRe.FindStringSubmatch(m.Body)
	require.Len(t, match, 2, "no reset link in %q", m.Body)
	return match[1]
}

// --- Environment ---

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// testEnv wires every component over in-memory stores and a shared clock.
type testEnv struct {
	clock   *testClock
	users   *memUserRepository
	tokens  *memTokenRepository
	mail    *outbox
	reg     *prometheus.Registry
	metrics *Metrics
	creds   *CredentialStore
	issuer  *TokenIssuer
	verify  *VerificationManager
	reset   *ResetManager
	gate    *Gate
	service *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		clock:  &testClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		users:  newMemUserRepository(),
		tokens: newMemTokenRepository(),
		mail:   &outbox{},
		reg:    prometheus.NewRegistry(),
	}

	logger := discardLogger()
	metrics := NewMetrics(env.reg)
	env.metrics = metrics
	hasher := auth.NewPasswordHasher(4)
	jwt := auth.NewJWTManager(testSecret, 24*time.Hour, 72*time.Hour, auth.WithClock(env.clock.Now))
	events := event.NoopPublisher{}

	env.creds = NewCredentialStore(env.users, hasher, events, metrics, logger)
	env.creds.now = env.clock.Now
	env.issuer = NewTokenIssuer(jwt, env.users)
	env.verify = NewVerificationManager(env.tokens, env.users, env.mail, events, metrics,
		LinkConfig{BaseURL: testBaseURL, TTL: 24 * time.Hour}, logger)
	env.verify.now = env.clock.Now
	env.reset = NewResetManager(env.users, hasher, env.mail, events, metrics,
		LinkConfig{BaseURL: testBaseURL, TTL: 10 * time.Minute}, logger)
	env.reset.now = env.clock.Now
	env.gate = NewGate(env.issuer, env.users)
	env.service = NewAuthService(env.creds, env.issuer, env.verify, env.reset, metrics, logger)
	return env
}

// signupVerified registers and confirms a user, returning it.
func (e *testEnv) signupVerified(t *testing.T, name, email, password string) *domain.User {
	t.Helper()
	ctx := context.Background()
	user, err := e.service.Signup(ctx, RegisterInput{Name: name, Email: email, Password: password})
	require.NoError(t, err)
	token := verificationTokenFrom(t, e.mail.last(t))
	result, err := e.service.Confirm(ctx, email, token)
	require.NoError(t, err)
	require.Equal(t, RedeemVerified, result)
	user.IsVerified = true
	return user
}
