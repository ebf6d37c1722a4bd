package mongodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-auth-nosql/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

var duplicateKey = mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"}

func TestVerifiedCreate_DuplicateEmailIsConflict(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("duplicate", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(duplicateKey))

		err := NewVerifiedUserRepo(mt.DB).Create(context.Background(), &domain.VerifiedUser{ID: "u1", Email: "a@x.com"})
		assert.True(t, errors.Is(err, domain.ErrConflict))
	})
}

func TestNotVerifiedCreate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	u := &domain.NotVerifiedUser{ID: "u1", Email: "a@x.com", CreatedAt: time.Now().UTC()}

	mt.Run("live duplicate is conflict", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateWriteErrorsResponse(duplicateKey),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
		)
		err := NewNotVerifiedUserRepo(mt.DB, time.Hour).Create(context.Background(), u)
		assert.True(t, errors.Is(err, domain.ErrConflict))
	})

	mt.Run("expired duplicate is replaced", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateWriteErrorsResponse(duplicateKey),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(),
		)
		err := NewNotVerifiedUserRepo(mt.DB, time.Hour).Create(context.Background(), u)
		assert.NoError(t, err)
	})
}

func TestNotVerifiedFindByEmail_Missing(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("empty", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "auth."+NotVerifiedUsers, mtest.FirstBatch))

		_, err := NewNotVerifiedUserRepo(mt.DB, time.Hour).FindByEmail(context.Background(), "a@x.com")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestNotVerifiedFindByEmail_Decodes(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "auth."+NotVerifiedUsers, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "u1"},
			{Key: "email", Value: "a@x.com"},
			{Key: "code", Value: "123456"},
		}))

		u, err := NewNotVerifiedUserRepo(mt.DB, time.Hour).FindByEmail(context.Background(), "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, "u1", u.ID)
		assert.Equal(t, "123456", u.Code)
	})
}

func TestUpdateVerificationCode_StaleTimestampIsConflict(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	now := time.Now().UTC()

	mt.Run("stale", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, "auth."+NotVerifiedUsers, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(1)}}),
		)
		err := NewNotVerifiedUserRepo(mt.DB, time.Hour).UpdateVerificationCode(context.Background(), "u1", now, "654321", now.Add(time.Minute))
		assert.True(t, errors.Is(err, domain.ErrConflict))
	})

	mt.Run("row gone", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, "auth."+NotVerifiedUsers, mtest.FirstBatch),
		)
		err := NewNotVerifiedUserRepo(mt.DB, time.Hour).UpdateVerificationCode(context.Background(), "u1", now, "654321", now.Add(time.Minute))
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestVerifiedUpdatePassword_MissingUser(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		err := NewVerifiedUserRepo(mt.DB).UpdatePassword(context.Background(), "u1", "hash")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestRecoveryCodeCreate_LiveCodeIsConflict(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("live", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateWriteErrorsResponse(duplicateKey),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
		)
		err := NewRecoveryCodeRepo(mt.DB, 5*time.Minute).Create(context.Background(),
			&domain.PasswordRecoveryCode{UserID: "u1", Code: "123456", CreatedAt: time.Now().UTC()})
		assert.True(t, errors.Is(err, domain.ErrConflict))
	})
}
