package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-auth-nosql/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// RecoveryCodeRepo stores one recovery code per user, keyed by _id = user id.
type RecoveryCodeRepo struct {
	col *mongo.Collection
	ttl time.Duration
	now func() time.Time
}

func NewRecoveryCodeRepo(db *mongo.Database, ttl time.Duration) *RecoveryCodeRepo {
	return &RecoveryCodeRepo{col: db.Collection(PasswordRecoveryCodes), ttl: ttl, now: time.Now}
}

func (r *RecoveryCodeRepo) liveSince() time.Time {
	return r.now().Add(-r.ttl)
}

// Create fails with ErrConflict while a live code exists for the user.
func (r *RecoveryCodeRepo) Create(ctx context.Context, c *domain.PasswordRecoveryCode) error {
	_, err := r.col.InsertOne(ctx, c)
	if mongo.IsDuplicateKeyError(err) {
		res, delErr := r.col.DeleteOne(ctx, bson.M{
			fieldID:        c.UserID,
			fieldCreatedAt: bson.M{"$lte": r.liveSince()},
		})
		if delErr != nil {
			return fmt.Errorf("purge expired recovery code: %w", delErr)
		}
		if res.DeletedCount == 0 {
			return fmt.Errorf("recovery code for %s: %w", c.UserID, domain.ErrConflict)
		}
		_, err = r.col.InsertOne(ctx, c)
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("recovery code for %s: %w", c.UserID, domain.ErrConflict)
		}
	}
	if err != nil {
		return fmt.Errorf("insert recovery code: %w", err)
	}
	return nil
}

func (r *RecoveryCodeRepo) FindByUserID(ctx context.Context, userID string) (*domain.PasswordRecoveryCode, error) {
	var c domain.PasswordRecoveryCode
	err := r.col.FindOne(ctx, bson.M{
		fieldID:        userID,
		fieldCreatedAt: bson.M{"$gt": r.liveSince()},
	}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("recovery code: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find recovery code: %w", err)
	}
	return &c, nil
}

func (r *RecoveryCodeRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if _, err := r.col.DeleteOne(ctx, bson.M{fieldID: userID}); err != nil {
		return fmt.Errorf("delete recovery code: %w", err)
	}
	return nil
}
