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

// NotVerifiedUserRepo stores pending registrations. The TTL monitor runs about
// once a minute, so queries also exclude rows older than the retention window.
type NotVerifiedUserRepo struct {
	col       *mongo.Collection
	retention time.Duration
	now       func() time.Time
}

func NewNotVerifiedUserRepo(db *mongo.Database, retention time.Duration) *NotVerifiedUserRepo {
	return &NotVerifiedUserRepo{col: db.Collection(NotVerifiedUsers), retention: retention, now: time.Now}
}

func (r *NotVerifiedUserRepo) liveSince() time.Time {
	return r.now().Add(-r.retention)
}

// Create inserts the row. A unique-index collision with an expired row that the
// TTL monitor has not reaped yet removes that row and retries once.
func (r *NotVerifiedUserRepo) Create(ctx context.Context, u *domain.NotVerifiedUser) error {
	_, err := r.col.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		res, delErr := r.col.DeleteMany(ctx, bson.M{
			"$or": bson.A{
				bson.M{fieldEmail: u.Email},
				bson.M{fieldID: u.ID},
			},
			fieldCreatedAt: bson.M{"$lte": r.liveSince()},
		})
		if delErr != nil {
			return fmt.Errorf("purge expired not-verified user: %w", delErr)
		}
		if res.DeletedCount == 0 {
			return fmt.Errorf("not-verified user %s: %w", u.Email, domain.ErrConflict)
		}
		_, err = r.col.InsertOne(ctx, u)
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("not-verified user %s: %w", u.Email, domain.ErrConflict)
		}
	}
	if err != nil {
		return fmt.Errorf("insert not-verified user: %w", err)
	}
	return nil
}

func (r *NotVerifiedUserRepo) FindByEmail(ctx context.Context, email string) (*domain.NotVerifiedUser, error) {
	var u domain.NotVerifiedUser
	err := r.col.FindOne(ctx, bson.M{
		fieldEmail:     email,
		fieldCreatedAt: bson.M{"$gt": r.liveSince()},
	}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("not-verified user: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find not-verified user: %w", err)
	}
	return &u, nil
}

func (r *NotVerifiedUserRepo) DeleteByID(ctx context.Context, userID string) error {
	if _, err := r.col.DeleteOne(ctx, bson.M{fieldID: userID}); err != nil {
		return fmt.Errorf("delete not-verified user: %w", err)
	}
	return nil
}

// UpdateVerificationCode replaces the code only if code_updated_at still equals prevUpdatedAt.
func (r *NotVerifiedUserRepo) UpdateVerificationCode(ctx context.Context, userID string, prevUpdatedAt time.Time, code string, updatedAt time.Time) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{
			fieldID:            userID,
			fieldCodeUpdatedAt: prevUpdatedAt,
			fieldCreatedAt:     bson.M{"$gt": r.liveSince()},
		},
		bson.M{"$set": bson.M{
			fieldCode:          code,
			fieldCodeUpdatedAt: updatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("update verification code: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	n, err := r.col.CountDocuments(ctx, bson.M{
		fieldID:        userID,
		fieldCreatedAt: bson.M{"$gt": r.liveSince()},
	})
	if err != nil {
		return fmt.Errorf("count not-verified user: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("not-verified user: %w", domain.ErrNotFound)
	}
	return fmt.Errorf("verification code changed concurrently: %w", domain.ErrConflict)
}
