package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-auth-nosql/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// VerifiedUserRepo stores confirmed accounts. Email is unique-indexed.
type VerifiedUserRepo struct {
	col *mongo.Collection
}

func NewVerifiedUserRepo(db *mongo.Database) *VerifiedUserRepo {
	return &VerifiedUserRepo{col: db.Collection(VerifiedUsers)}
}

func (r *VerifiedUserRepo) Create(ctx context.Context, u *domain.VerifiedUser) error {
	_, err := r.col.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("verified user %s: %w", u.Email, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert verified user: %w", err)
	}
	return nil
}

func (r *VerifiedUserRepo) FindByEmail(ctx context.Context, email string) (*domain.VerifiedUser, error) {
	return r.findOne(ctx, bson.M{fieldEmail: email})
}

func (r *VerifiedUserRepo) FindByID(ctx context.Context, userID string) (*domain.VerifiedUser, error) {
	return r.findOne(ctx, bson.M{fieldID: userID})
}

func (r *VerifiedUserRepo) findOne(ctx context.Context, filter bson.M) (*domain.VerifiedUser, error) {
	var u domain.VerifiedUser
	err := r.col.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("verified user: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find verified user: %w", err)
	}
	return &u, nil
}

func (r *VerifiedUserRepo) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := r.col.UpdateByID(ctx, userID, bson.M{"$set": bson.M{fieldPasswordHash: passwordHash}})
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("verified user: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *VerifiedUserRepo) DeleteByID(ctx context.Context, userID string) error {
	if _, err := r.col.DeleteOne(ctx, bson.M{fieldID: userID}); err != nil {
		return fmt.Errorf("delete verified user: %w", err)
	}
	return nil
}
