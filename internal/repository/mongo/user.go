package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/sodmaq/auth-service/internal/domain"
	"github.com/sodmaq/auth-service/pkg/database"
	apperrors "github.com/sodmaq/auth-service/pkg/errors"
)

// UserRepository implements repository.UserRepository using MongoDB.
type UserRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewUserRepository creates a new MongoDB-backed user repository.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		coll: db.Collection(usersCollection),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts a new user. The unique email index rejects duplicates.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "users.insertOne", "")
	defer func() { end(err) }()

	if _, err = r.coll.InsertOne(ctx, userToDocument(u)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, "users.findById", bson.D{{Key: "_id", Value: id}})
}

// GetByEmail retrieves a user by their email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "users.findByEmail", bson.D{{Key: "email", Value: email}})
}

// GetByRefreshToken retrieves the user holding token.
func (r *UserRepository) GetByRefreshToken(ctx context.Context, token string) (*domain.User, error) {
	return r.findOne(ctx, "users.findByRefreshToken", bson.D{{Key: "refreshToken", Value: token}})
}

// MarkVerified sets isVerified only while it is still false.
func (r *UserRepository) MarkVerified(ctx context.Context, id string) (bool, error) {
	res, err := r.updateOne(ctx, "users.markVerified",
		bson.D{{Key: "_id", Value: id}, {Key: "isVerified", Value: false}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "isVerified", Value: true},
			{Key: "updatedAt", Value: r.now()},
		}}},
	)
	if err != nil {
		return false, fmt.Errorf("mark user verified: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

// SetRefreshToken overwrites the stored refresh token.
func (r *UserRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	res, err := r.updateOne(ctx, "users.setRefreshToken",
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "refreshToken", Value: token},
			{Key: "updatedAt", Value: r.now()},
		}}},
	)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}

// ClearRefreshToken unsets token on whichever user holds it.
func (r *UserRepository) ClearRefreshToken(ctx context.Context, token string) (bool, error) {
	res, err := r.updateOne(ctx, "users.clearRefreshToken",
		bson.D{{Key: "refreshToken", Value: token}},
		bson.D{
			{Key: "$unset", Value: bson.D{{Key: "refreshToken", Value: ""}}},
			{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: r.now()}}},
		},
	)
	if err != nil {
		return false, fmt.Errorf("clear refresh token: %w", err)
	}
	return res.MatchedCount > 0, nil
}

// UpdatePassword stores a new hash and the time it changed.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string, changedAt time.Time) error {
	res, err := r.updateOne(ctx, "users.updatePassword",
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "password", Value: hash},
			{Key: "passwordChangedAt", Value: changedAt},
			{Key: "updatedAt", Value: changedAt},
		}}},
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}

// SetPasswordReset stores a reset token hash and its expiry.
func (r *UserRepository) SetPasswordReset(ctx context.Context, id, tokenHash string, expires time.Time) error {
	res, err := r.updateOne(ctx, "users.setPasswordReset",
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "passwordResetToken", Value: tokenHash},
			{Key: "passwordResetExpires", Value: expires},
			{Key: "updatedAt", Value: r.now()},
		}}},
	)
	if err != nil {
		return fmt.Errorf("set password reset: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}

// ConsumePasswordReset redeems a reset token hash with one FindOneAndUpdate
// so two concurrent resets cannot both succeed.
func (r *UserRepository) ConsumePasswordReset(ctx context.Context, tokenHash string, now time.Time, newHash string) (_ *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "users.consumePasswordReset", "passwordResetToken,passwordResetExpires")
	defer func() { end(ignoreNotFound(err)) }()

	filter := bson.D{
		{Key: "passwordResetToken", Value: tokenHash},
		{Key: "passwordResetExpires", Value: bson.D{{Key: "$gt", Value: now}}},
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "password", Value: newHash},
			{Key: "passwordChangedAt", Value: now},
			{Key: "updatedAt", Value: now},
		}},
		{Key: "$unset", Value: bson.D{
			{Key: "passwordResetToken", Value: ""},
			{Key: "passwordResetExpires", Value: ""},
		}},
	}

	var doc userDocument
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err = r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("consume password reset: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) findOne(ctx context.Context, op string, filter bson.D) (_ *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, op, filter[0].Key)
	defer func() { end(ignoreNotFound(err)) }()

	var doc userDocument
	if err = r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) updateOne(ctx context.Context, op string, filter, update bson.D) (_ *mongo.UpdateResult, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, op, filter[0].Key)
	defer func() { end(err) }()

	return r.coll.UpdateOne(ctx, filter, update)
}

func ignoreNotFound(err error) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	return err
}
