package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/sodmaq/auth-service/internal/domain"
	"github.com/sodmaq/auth-service/pkg/database"
	apperrors "github.com/sodmaq/auth-service/pkg/errors"
)

// VerificationTokenRepository implements repository.VerificationTokenRepository
// using MongoDB.
type VerificationTokenRepository struct {
	coll *mongo.Collection
}

// NewVerificationTokenRepository creates a new MongoDB-backed token repository.
func NewVerificationTokenRepository(db *mongo.Database) *VerificationTokenRepository {
	return &VerificationTokenRepository{coll: db.Collection(tokensCollection)}
}

// Create stores a new token.
func (r *VerificationTokenRepository) Create(ctx context.Context, t *domain.VerificationToken) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "tokens.insertOne", "")
	defer func() { end(err) }()

	if _, err = r.coll.InsertOne(ctx, tokenToDocument(t)); err != nil {
		return fmt.Errorf("insert verification token: %w", err)
	}
	return nil
}

// Consume deletes and returns the token if it was created after notBefore.
// The TTL monitor runs about once a minute, so the age filter is what
// actually enforces expiry.
func (r *VerificationTokenRepository) Consume(ctx context.Context, token string, notBefore time.Time) (_ *domain.VerificationToken, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "tokens.findOneAndDelete", "token,createdAt")
	defer func() { end(ignoreNotFound(err)) }()

	filter := bson.D{
		{Key: "token", Value: token},
		{Key: "createdAt", Value: bson.D{{Key: "$gt", Value: notBefore}}},
	}

	var doc tokenDocument
	if err = r.coll.FindOneAndDelete(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("verification token", "")
		}
		return nil, fmt.Errorf("consume verification token: %w", err)
	}
	return doc.toDomain(), nil
}
