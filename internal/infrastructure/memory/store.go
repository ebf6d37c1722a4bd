package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-auth-nosql/internal/domain"
)

// Store keeps all three collections in process. It enforces the same uniqueness
// and expiry rules as the persistent backends and is meant for local runs and tests.
type Store struct {
	mu          sync.Mutex
	notVerified map[string]domain.NotVerifiedUser
	verified    map[string]domain.VerifiedUser
	codes       map[string]domain.PasswordRecoveryCode
	retention   time.Duration
	codeTTL     time.Duration
	now         func() time.Time
}

func NewStore(retention, codeTTL time.Duration) *Store {
	return &Store{
		notVerified: make(map[string]domain.NotVerifiedUser),
		verified:    make(map[string]domain.VerifiedUser),
		codes:       make(map[string]domain.PasswordRecoveryCode),
		retention:   retention,
		codeTTL:     codeTTL,
		now:         time.Now,
	}
}

// SetClock replaces the clock used for expiry checks.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Counts returns the number of live rows per collection.
func (s *Store) Counts() (notVerified, verified, codes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.notVerified {
		if !s.expired(u.CreatedAt, s.retention) {
			notVerified++
		}
	}
	for _, c := range s.codes {
		if !s.expired(c.CreatedAt, s.codeTTL) {
			codes++
		}
	}
	return notVerified, len(s.verified), codes
}

func (s *Store) NotVerifiedUsers() *NotVerifiedUserRepo { return &NotVerifiedUserRepo{s: s} }
func (s *Store) VerifiedUsers() *VerifiedUserRepo       { return &VerifiedUserRepo{s: s} }
func (s *Store) RecoveryCodes() *RecoveryCodeRepo       { return &RecoveryCodeRepo{s: s} }

func (s *Store) expired(createdAt time.Time, ttl time.Duration) bool {
	return ttl > 0 && !s.now().Before(createdAt.Add(ttl))
}

// NotVerifiedUserRepo is the pending-registration collection.
type NotVerifiedUserRepo struct{ s *Store }

func (r *NotVerifiedUserRepo) Create(_ context.Context, u *domain.NotVerifiedUser) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, existing := range r.s.notVerified {
		if r.s.expired(existing.CreatedAt, r.s.retention) {
			delete(r.s.notVerified, id)
			continue
		}
		if existing.ID == u.ID || existing.Email == u.Email {
			return fmt.Errorf("not-verified user %s: %w", u.Email, domain.ErrConflict)
		}
	}
	r.s.notVerified[u.ID] = *u
	return nil
}

func (r *NotVerifiedUserRepo) FindByEmail(_ context.Context, email string) (*domain.NotVerifiedUser, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.notVerified {
		if u.Email == email && !r.s.expired(u.CreatedAt, r.s.retention) {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("not-verified user: %w", domain.ErrNotFound)
}

func (r *NotVerifiedUserRepo) DeleteByID(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.notVerified, userID)
	return nil
}

func (r *NotVerifiedUserRepo) UpdateVerificationCode(_ context.Context, userID string, prevUpdatedAt time.Time, code string, updatedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.notVerified[userID]
	if !ok || r.s.expired(u.CreatedAt, r.s.retention) {
		return fmt.Errorf("not-verified user: %w", domain.ErrNotFound)
	}
	if !u.CodeUpdatedAt.Equal(prevUpdatedAt) {
		return fmt.Errorf("verification code changed concurrently: %w", domain.ErrConflict)
	}
	u.Code = code
	u.CodeUpdatedAt = updatedAt
	r.s.notVerified[userID] = u
	return nil
}

// VerifiedUserRepo is the confirmed-account collection.
type VerifiedUserRepo struct{ s *Store }

func (r *VerifiedUserRepo) Create(_ context.Context, u *domain.VerifiedUser) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.verified {
		if existing.ID == u.ID || existing.Email == u.Email {
			return fmt.Errorf("verified user %s: %w", u.Email, domain.ErrConflict)
		}
	}
	r.s.verified[u.ID] = *u
	return nil
}

func (r *VerifiedUserRepo) FindByEmail(_ context.Context, email string) (*domain.VerifiedUser, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.verified {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("verified user: %w", domain.ErrNotFound)
}

func (r *VerifiedUserRepo) FindByID(_ context.Context, userID string) (*domain.VerifiedUser, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.verified[userID]
	if !ok {
		return nil, fmt.Errorf("verified user: %w", domain.ErrNotFound)
	}
	return &u, nil
}

func (r *VerifiedUserRepo) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.verified[userID]
	if !ok {
		return fmt.Errorf("verified user: %w", domain.ErrNotFound)
	}
	u.PasswordHash = passwordHash
	r.s.verified[userID] = u
	return nil
}

func (r *VerifiedUserRepo) DeleteByID(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.verified, userID)
	return nil
}

// RecoveryCodeRepo is the password-recovery-code collection, keyed by user.
type RecoveryCodeRepo struct{ s *Store }

func (r *RecoveryCodeRepo) Create(_ context.Context, c *domain.PasswordRecoveryCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.s.codes[c.UserID]; ok && !r.s.expired(existing.CreatedAt, r.s.codeTTL) {
		return fmt.Errorf("recovery code for %s: %w", c.UserID, domain.ErrConflict)
	}
	r.s.codes[c.UserID] = *c
	return nil
}

func (r *RecoveryCodeRepo) FindByUserID(_ context.Context, userID string) (*domain.PasswordRecoveryCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.codes[userID]
	if !ok || r.s.expired(c.CreatedAt, r.s.codeTTL) {
		return nil, fmt.Errorf("recovery code: %w", domain.ErrNotFound)
	}
	return &c, nil
}

func (r *RecoveryCodeRepo) DeleteByUserID(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.codes, userID)
	return nil
}
