package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const ttlIndexName = "created_at_ttl"

// EnsureIndexes creates the unique email index, sparse lookup indexes on
// the token fields and the TTL index that lets Mongo reap expired
// verification tokens. It is idempotent and follows a changed TTL.
func EnsureIndexes(ctx context.Context, db *mongo.Database, verificationTTL time.Duration) error {
	_, err := db.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "refreshToken", Value: 1}},
			Options: options.Index().SetName("refresh_token").SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "passwordResetToken", Value: 1}},
			Options: options.Index().SetName("password_reset_token").SetSparse(true),
		},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}

	tokens := db.Collection(tokensCollection)
	_, err = tokens.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "token", Value: 1}},
		Options: options.Index().SetName("token_unique").SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create token indexes: %w", err)
	}

	if err := ensureTTLIndex(ctx, tokens, verificationTTL); err != nil {
		return fmt.Errorf("create token ttl index: %w", err)
	}
	return nil
}

// indexOptionsConflict is returned when an index exists under the same
// name with different options.
const indexOptionsConflict = 85

// ensureTTLIndex creates created_at_ttl, or updates expireAfterSeconds in
// place when the index already exists with another TTL.
func ensureTTLIndex(ctx context.Context, coll *mongo.Collection, ttl time.Duration) error {
	seconds := int32(ttl / time.Second)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "createdAt", Value: 1}},
		Options: options.Index().SetName(ttlIndexName).SetExpireAfterSeconds(seconds),
	})
	if !isIndexOptionsConflict(err) {
		return err
	}

	return coll.Database().RunCommand(ctx, bson.D{
		{Key: "collMod", Value: coll.Name()},
		{Key: "index", Value: bson.D{
			{Key: "name", Value: ttlIndexName},
			{Key: "expireAfterSeconds", Value: seconds},
		}},
	}).Err()
}

func isIndexOptionsConflict(err error) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorCode(indexOptionsConflict)
}
