package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Collection names.
const (
	NotVerifiedUsers      = "not_verified_users"
	VerifiedUsers         = "verified_users"
	PasswordRecoveryCodes = "password_recovery_codes"
)

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, uri, dbName string, log *zap.Logger) (*mongo.Database, *mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	log.Info("mongodb connected", zap.String("database", dbName))
	return client.Database(dbName), client, nil
}

// EnsureIndexes creates the unique email indexes and the TTL indexes that reap
// pending registrations and recovery codes.
func EnsureIndexes(ctx context.Context, db *mongo.Database, retention, codeTTL time.Duration) error {
	_, err := db.Collection(NotVerifiedUsers).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: fieldEmail, Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: fieldCreatedAt, Value: 1}}, Options: options.Index().SetExpireAfterSeconds(int32(retention.Seconds()))},
	})
	if err != nil {
		return fmt.Errorf("indexes %s: %w", NotVerifiedUsers, err)
	}

	_, err = db.Collection(VerifiedUsers).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: fieldEmail, Value: 1}}, Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("indexes %s: %w", VerifiedUsers, err)
	}

	_, err = db.Collection(PasswordRecoveryCodes).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: fieldCreatedAt, Value: 1}}, Options: options.Index().SetExpireAfterSeconds(int32(codeTTL.Seconds())),
	})
	if err != nil {
		return fmt.Errorf("indexes %s: %w", PasswordRecoveryCodes, err)
	}
	return nil
}

const (
	fieldID            = "_id"
	fieldEmail         = "email"
	fieldCode          = "code"
	fieldCodeUpdatedAt = "code_updated_at"
	fieldCreatedAt     = "created_at"
	fieldPasswordHash  = "password_hash"
)
