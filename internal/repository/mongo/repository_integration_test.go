package mongo_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/sodmaq/auth-service/internal/domain"
	mongorepo "github.com/sodmaq/auth-service/internal/repository/mongo"
	"github.com/sodmaq/auth-service/pkg/database"
	apperrors "github.com/sodmaq/auth-service/pkg/errors"
)

// newTestDatabase connects to MONGODB_URI and returns a throwaway database
// with indexes applied. It skips the test if MONGODB_URI is not set.
func newTestDatabase(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set, skipping MongoDB integration tests")
	}

	ctx := context.Background()
	client, db, err := database.NewMongoClient(ctx, database.MongoConfig{
		URI:            uri,
		Database:       fmt.Sprintf("auth_test_%d", time.Now().UnixNano()),
		ConnectTimeout: 5 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	require.NoError(t, mongorepo.EnsureIndexes(ctx, db, 24*time.Hour))
	return db
}

func newTestUser(email string) *domain.User {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.User{
		ID:           uuid.NewString(),
		Name:         "Ada Lovelace",
		Email:        email,
		PasswordHash: "$2a$04$hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestUserRepository_CreateAndDuplicate(t *testing.T) {
	db := newTestDatabase(t)
	repo := mongorepo.NewUserRepository(db)
	ctx := context.Background()

	u := newTestUser("ada@example.com")
	require.NoError(t, repo.Create(ctx, u))

	err := repo.Create(ctx, newTestUser("ada@example.com"))
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	got, err := repo.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.False(t, got.IsVerified)

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUserRepository_MarkVerifiedOnce(t *testing.T) {
	db := newTestDatabase(t)
	repo := mongorepo.NewUserRepository(db)
	ctx := context.Background()

	u := newTestUser("grace@example.com")
	require.NoError(t, repo.Create(ctx, u))

	flipped, err := repo.MarkVerified(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, flipped)

	flipped, err = repo.MarkVerified(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, flipped)
}

func TestUserRepository_RefreshTokenLifecycle(t *testing.T) {
	db := newTestDatabase(t)
	repo := mongorepo.NewUserRepository(db)
	ctx := context.Background()

	u := newTestUser("linus@example.com")
	require.NoError(t, repo.Create(ctx, u))
	require.NoError(t, repo.SetRefreshToken(ctx, u.ID, "refresh-1"))

	got, err := repo.GetByRefreshToken(ctx, "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	cleared, err := repo.ClearRefreshToken(ctx, "refresh-1")
	require.NoError(t, err)
	assert.True(t, cleared)

	cleared, err = repo.ClearRefreshToken(ctx, "refresh-1")
	require.NoError(t, err)
	assert.False(t, cleared)

	_, err = repo.GetByRefreshToken(ctx, "refresh-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUserRepository_ConsumePasswordReset(t *testing.T) {
	db := newTestDatabase(t)
	repo := mongorepo.NewUserRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	u := newTestUser("barbara@example.com")
	require.NoError(t, repo.Create(ctx, u))
	require.NoError(t, repo.SetPasswordReset(ctx, u.ID, "reset-hash", now.Add(10*time.Minute)))

	_, err := repo.ConsumePasswordReset(ctx, "reset-hash", now.Add(11*time.Minute), "late-hash")
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "expired reset must not match")

	got, err := repo.ConsumePasswordReset(ctx, "reset-hash", now, "new-hash")
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)
	assert.Empty(t, got.PasswordResetToken)
	assert.Nil(t, got.PasswordResetExpires)
	require.NotNil(t, got.PasswordChangedAt)

	_, err = repo.ConsumePasswordReset(ctx, "reset-hash", now, "again")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestVerificationTokenRepository_ConsumeIsSingleUse(t *testing.T) {
	db := newTestDatabase(t)
	users := mongorepo.NewUserRepository(db)
	tokens := mongorepo.NewVerificationTokenRepository(db)
	ctx := context.Background()

	u := newTestUser("margaret@example.com")
	require.NoError(t, users.Create(ctx, u))

	created := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, tokens.Create(ctx, &domain.VerificationToken{
		ID: uuid.NewString(), UserID: u.ID, Token: "tok-1", CreatedAt: created,
	}))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := tokens.Consume(ctx, "tok-1", created.Add(-24*time.Hour)); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
}

func TestVerificationTokenRepository_ConsumeRejectsExpired(t *testing.T) {
	db := newTestDatabase(t)
	tokens := mongorepo.NewVerificationTokenRepository(db)
	ctx := context.Background()

	created := time.Now().UTC().Add(-25 * time.Hour).Truncate(time.Millisecond)
	require.NoError(t, tokens.Create(ctx, &domain.VerificationToken{
		ID: uuid.NewString(), UserID: uuid.NewString(), Token: "old", CreatedAt: created,
	}))

	_, err := tokens.Consume(ctx, "old", time.Now().UTC().Add(-24*time.Hour))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestEnsureIndexes_FollowsChangedTTL(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	ttlSeconds := func() int32 {
		t.Helper()
		specs, err := db.Collection("tokens").Indexes().ListSpecifications(ctx)
		require.NoError(t, err)
		for _, s := range specs {
			if s.Name == "created_at_ttl" {
				require.NotNil(t, s.ExpireAfterSeconds)
				return *s.ExpireAfterSeconds
			}
		}
		t.Fatal("created_at_ttl index missing")
		return 0
	}
	assert.Equal(t, int32(24*3600), ttlSeconds())

	require.NoError(t, mongorepo.EnsureIndexes(ctx, db, 48*time.Hour))
	assert.Equal(t, int32(48*3600), ttlSeconds())

	require.NoError(t, mongorepo.EnsureIndexes(ctx, db, 48*time.Hour))
	assert.Equal(t, int32(48*3600), ttlSeconds())
}
