package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-auth-nosql/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(now *time.Time) *Store {
	s := NewStore(30*24*time.Hour, 5*time.Minute)
	s.SetClock(func() time.Time { return *now })
	return s
}

func TestNotVerified_CreateRejectsDuplicateEmail(t *testing.T) {
	now := time.Now()
	repo := newTestStore(&now).NotVerifiedUsers()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.NotVerifiedUser{ID: "u1", Email: "a@x.com", CreatedAt: now}))
	err := repo.Create(ctx, &domain.NotVerifiedUser{ID: "u2", Email: "a@x.com", CreatedAt: now})
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestNotVerified_ExpiredRowIsInvisibleAndReplaceable(t *testing.T) {
	now := time.Now()
	store := newTestStore(&now)
	repo := store.NotVerifiedUsers()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.NotVerifiedUser{ID: "u1", Email: "a@x.com", CreatedAt: now}))
	now = now.Add(31 * 24 * time.Hour)

	_, err := repo.FindByEmail(ctx, "a@x.com")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	require.NoError(t, repo.Create(ctx, &domain.NotVerifiedUser{ID: "u2", Email: "a@x.com", CreatedAt: now}))

	nv, _, _ := store.Counts()
	assert.Equal(t, 1, nv)
}

func TestNotVerified_UpdateVerificationCodeIsConditional(t *testing.T) {
	now := time.Now()
	repo := newTestStore(&now).NotVerifiedUsers()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &domain.NotVerifiedUser{ID: "u1", Email: "a@x.com", CreatedAt: now, Code: "111111", CodeUpdatedAt: now}))

	later := now.Add(time.Minute)
	require.NoError(t, repo.UpdateVerificationCode(ctx, "u1", now, "222222", later))

	err := repo.UpdateVerificationCode(ctx, "u1", now, "333333", later.Add(time.Minute))
	assert.True(t, errors.Is(err, domain.ErrConflict))

	u, err := repo.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "222222", u.Code)
	assert.True(t, u.CodeUpdatedAt.Equal(later))
}

func TestRecoveryCodes_SingleLiveCodePerUser(t *testing.T) {
	now := time.Now()
	repo := newTestStore(&now).RecoveryCodes()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.PasswordRecoveryCode{UserID: "u1", Code: "111111", CreatedAt: now}))
	err := repo.Create(ctx, &domain.PasswordRecoveryCode{UserID: "u1", Code: "222222", CreatedAt: now})
	assert.True(t, errors.Is(err, domain.ErrConflict))

	now = now.Add(6 * time.Minute)
	_, err = repo.FindByUserID(ctx, "u1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.NoError(t, repo.Create(ctx, &domain.PasswordRecoveryCode{UserID: "u1", Code: "333333", CreatedAt: now}))
}

func TestVerified_UpdatePasswordMissingUser(t *testing.T) {
	now := time.Now()
	repo := newTestStore(&now).VerifiedUsers()
	err := repo.UpdatePassword(context.Background(), "missing", "hash")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
