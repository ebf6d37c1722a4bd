package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-auth-nosql/internal/domain"
	"github.com/go-auth-nosql/internal/pkg/id"
	"github.com/go-auth-nosql/internal/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const compensationTimeout = 10 * time.Second

type RegisterRequest struct {
	Username string `json:"username" validate:"omitempty,max=64"`
	Email    string `json:"email" validate:"required,account_email"`
	Password string `json:"password" validate:"required,password"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type VerificationRequest struct {
	Email string `json:"email" validate:"required"`
	Code  string `json:"code" validate:"required"`
}

// EmailRequest is the body of resend-verification and password-recovery requests.
type EmailRequest struct {
	Email string `json:"email" validate:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,password"`
}

// AuthResult is returned by operations that end with a signed-in user.
type AuthResult struct {
	User  *domain.VerifiedUser
	Token string
}

type NotVerifiedUserStore interface {
	Create(ctx context.Context, u *domain.NotVerifiedUser) error
	FindByEmail(ctx context.Context, email string) (*domain.NotVerifiedUser, error)
	DeleteByID(ctx context.Context, userID string) error
	// UpdateVerificationCode replaces the code only while the stored CodeUpdatedAt
	// still equals prevUpdatedAt; otherwise it returns domain.ErrConflict.
	UpdateVerificationCode(ctx context.Context, userID string, prevUpdatedAt time.Time, code string, updatedAt time.Time) error
}

type VerifiedUserStore interface {
	Create(ctx context.Context, u *domain.VerifiedUser) error
	FindByEmail(ctx context.Context, email string) (*domain.VerifiedUser, error)
	FindByID(ctx context.Context, userID string) (*domain.VerifiedUser, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	DeleteByID(ctx context.Context, userID string) error
}

type RecoveryCodeStore interface {
	Create(ctx context.Context, c *domain.PasswordRecoveryCode) error
	FindByUserID(ctx context.Context, userID string) (*domain.PasswordRecoveryCode, error)
	DeleteByUserID(ctx context.Context, userID string) error
}

// EmailSender is the email dispatch gateway. Failures are *domain.GatewayError.
type EmailSender interface {
	SendVerificationEmail(ctx context.Context, e domain.VerificationEmail) error
	SendPasswordRecoveryEmail(ctx context.Context, e domain.PasswordRecoveryEmail) error
	SendGeneratedPassword(ctx context.Context, e domain.GeneratedPasswordEmail) error
}

// ProfileDirectory is the remote username registry. Failures are *domain.GatewayError.
type ProfileDirectory interface {
	CreateProfile(ctx context.Context, userID, username string) error
	GetUsername(ctx context.Context, userID string) (string, error)
}

type TokenIssuer interface {
	Issue(userID, email string) (string, error)
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) error
	Verify(ctx context.Context, v domain.Verification) (*AuthResult, error)
	ResendVerificationEmail(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	RequestPasswordRecovery(ctx context.Context, email string) error
	RedeemPasswordRecovery(ctx context.Context, email, code string) error
	GetEmailAddress(ctx context.Context, userID string) (string, error)
}

// ServiceDeps groups everything NewService needs.
type ServiceDeps struct {
	NotVerifiedRepo  NotVerifiedUserStore
	VerifiedRepo     VerifiedUserStore
	RecoveryCodeRepo RecoveryCodeStore
	Mailer           EmailSender
	Profiles         ProfileDirectory
	Tokens           TokenIssuer
	Logger           *zap.Logger
	ResendCooldown   time.Duration
	PublicBaseURL    string
	BcryptCost       int              // zero means bcrypt.DefaultCost
	Now              func() time.Time // zero means time.Now
}

type service struct {
	notVerified    NotVerifiedUserStore
	verified       VerifiedUserStore
	recoveryCodes  RecoveryCodeStore
	mailer         EmailSender
	profiles       ProfileDirectory
	tokens         TokenIssuer
	log            *zap.Logger
	resendCooldown time.Duration
	publicBaseURL  string
	bcryptCost     int
	clock          func() time.Time
	newCode        func() (string, error)
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		notVerified:    deps.NotVerifiedRepo,
		verified:       deps.VerifiedRepo,
		recoveryCodes:  deps.RecoveryCodeRepo,
		mailer:         deps.Mailer,
		profiles:       deps.Profiles,
		tokens:         deps.Tokens,
		log:            deps.Logger,
		resendCooldown: deps.ResendCooldown,
		publicBaseURL:  strings.TrimRight(deps.PublicBaseURL, "/"),
		bcryptCost:     deps.BcryptCost,
		clock:          deps.Now,
		newCode:        GenerateCode,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.bcryptCost == 0 {
		s.bcryptCost = bcrypt.DefaultCost
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	return s
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (err error) {
	defer func() { record("register", err) }()

	email := normalizeEmail(req.Email)
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return err
	}
	code, err := s.newCode()
	if err != nil {
		return err
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		username, _, _ = strings.Cut(email, "@")
	}
	now := s.now()
	u := &domain.NotVerifiedUser{
		ID:            id.New(),
		Username:      username,
		Email:         email,
		PasswordHash:  string(hash),
		CreatedAt:     now,
		Code:          code,
		CodeUpdatedAt: now,
	}
	if err := s.notVerified.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return fmt.Errorf("%s: %w", email, domain.ErrDuplicateEmail)
		}
		return err
	}

	if err := s.mailer.SendVerificationEmail(ctx, domain.VerificationEmail{
		Username: u.Username,
		Email:    u.Email,
		Code:     u.Code,
	}); err != nil {
		return errors.Join(err, s.compensate(ctx, "register", func(ctx context.Context) error {
			return s.notVerified.DeleteByID(ctx, u.ID)
		}))
	}
	s.log.Info("user registered", zap.String("user_id", u.ID))
	return nil
}

// ensureEmailFree checks the pending collection before the verified one.
// Verify inserts the verified row before deleting the pending one, so with this
// order a concurrent verification is always observed in at least one of the lookups.
func (s *service) ensureEmailFree(ctx context.Context, email string) error {
	if _, err := s.notVerified.FindByEmail(ctx, email); err == nil {
		return fmt.Errorf("%s: %w", email, domain.ErrDuplicateEmail)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if _, err := s.verified.FindByEmail(ctx, email); err == nil {
		return fmt.Errorf("%s: %w", email, domain.ErrDuplicateEmail)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}

func (s *service) Verify(ctx context.Context, v domain.Verification) (_ *AuthResult, err error) {
	defer func() { record("verify", err) }()

	email := normalizeEmail(v.Email)
	nv, err := s.notVerified.FindByEmail(ctx, email)
	if err != nil {
		return nil, notFoundAs(err, domain.ErrUserNotFound)
	}
	if nv.Code != v.Code {
		return nil, fmt.Errorf("verification failed for %s: %w", email, domain.ErrVerificationFailed)
	}

	vu := nv.ToVerified()
	token, err := s.tokens.Issue(vu.ID, vu.Email)
	if err != nil {
		return nil, err
	}

	if err := s.verified.Create(ctx, vu); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("%s: %w", email, domain.ErrDuplicateEmail)
		}
		return nil, err
	}
	if err := s.notVerified.DeleteByID(ctx, nv.ID); err != nil {
		return nil, errors.Join(err, s.compensate(ctx, "verify", func(ctx context.Context) error {
			return s.verified.DeleteByID(ctx, vu.ID)
		}))
	}
	if err := s.profiles.CreateProfile(ctx, nv.ID, nv.Username); err != nil {
		return nil, errors.Join(err, s.compensate(ctx, "verify", func(ctx context.Context) error {
			if err := s.notVerified.Create(ctx, nv); err != nil {
				return fmt.Errorf("restore not-verified user: %w", err)
			}
			return s.verified.DeleteByID(ctx, vu.ID)
		}))
	}
	s.log.Info("user verified", zap.String("user_id", vu.ID))
	return &AuthResult{User: vu, Token: token}, nil
}

func (s *service) ResendVerificationEmail(ctx context.Context, email string) (err error) {
	defer func() { record("resend_verification_email", err) }()

	email = normalizeEmail(email)
	nv, err := s.notVerified.FindByEmail(ctx, email)
	if err != nil {
		return notFoundAs(err, domain.ErrUserNotFound)
	}
	now := s.now()
	if now.Sub(nv.CodeUpdatedAt) < s.resendCooldown {
		return fmt.Errorf("verification email for %s: %w", email, domain.ErrEmailRecentlySent)
	}

	code, err := s.codeOtherThan(nv.Code)
	if err != nil {
		return err
	}
	if err := s.notVerified.UpdateVerificationCode(ctx, nv.ID, nv.CodeUpdatedAt, code, now); err != nil {
		switch {
		case errors.Is(err, domain.ErrConflict):
			return fmt.Errorf("verification email for %s: %w", email, domain.ErrEmailRecentlySent)
		case errors.Is(err, domain.ErrNotFound):
			return fmt.Errorf("%s: %w", email, domain.ErrUserNotFound)
		}
		return err
	}

	if err := s.mailer.SendVerificationEmail(ctx, domain.VerificationEmail{
		Username: nv.Username,
		Email:    nv.Email,
		Code:     code,
	}); err != nil {
		return errors.Join(err, s.compensate(ctx, "resend_verification_email", func(ctx context.Context) error {
			return s.notVerified.UpdateVerificationCode(ctx, nv.ID, now, nv.Code, nv.CodeUpdatedAt)
		}))
	}
	return nil
}

func (s *service) Login(ctx context.Context, email, password string) (_ *AuthResult, err error) {
	defer func() { record("login", err) }()

	email = normalizeEmail(email)
	vu, err := s.verified.FindByEmail(ctx, email)
	if err == nil {
		if bcrypt.CompareHashAndPassword([]byte(vu.PasswordHash), []byte(password)) != nil {
			return nil, domain.ErrBadCredentials
		}
		token, err := s.tokens.Issue(vu.ID, vu.Email)
		if err != nil {
			return nil, err
		}
		return &AuthResult{User: vu, Token: token}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	nv, err := s.notVerified.FindByEmail(ctx, email)
	if err != nil {
		return nil, notFoundAs(err, domain.ErrBadCredentials)
	}
	if bcrypt.CompareHashAndPassword([]byte(nv.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrBadCredentials
	}
	return nil, domain.ErrUserNotVerified
}

func (s *service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) (err error) {
	defer func() { record("change_password", err) }()

	vu, err := s.verified.FindByID(ctx, userID)
	if err != nil {
		return notFoundAs(err, domain.ErrUserNotFound)
	}
	if bcrypt.CompareHashAndPassword([]byte(vu.PasswordHash), []byte(oldPassword)) != nil {
		return domain.ErrWrongPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return err
	}
	return s.verified.UpdatePassword(ctx, vu.ID, string(hash))
}

func (s *service) RequestPasswordRecovery(ctx context.Context, email string) (err error) {
	defer func() { record("request_password_recovery", err) }()

	email = normalizeEmail(email)
	vu, err := s.verified.FindByEmail(ctx, email)
	if err != nil {
		return notFoundAs(err, domain.ErrUserNotFound)
	}
	if _, err := s.recoveryCodes.FindByUserID(ctx, vu.ID); err == nil {
		return fmt.Errorf("recovery email for %s: %w", email, domain.ErrEmailRecentlySent)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	code, err := s.newCode()
	if err != nil {
		return err
	}
	rc := &domain.PasswordRecoveryCode{UserID: vu.ID, Code: code, CreatedAt: s.now()}
	if err := s.recoveryCodes.Create(ctx, rc); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return fmt.Errorf("recovery email for %s: %w", email, domain.ErrEmailRecentlySent)
		}
		return err
	}

	if err := s.mailer.SendPasswordRecoveryEmail(ctx, domain.PasswordRecoveryEmail{
		UserID: vu.ID,
		Email:  vu.Email,
		Link:   s.recoveryLink(vu.Email, code),
	}); err != nil {
		return errors.Join(err, s.compensate(ctx, "request_password_recovery", func(ctx context.Context) error {
			return s.recoveryCodes.DeleteByUserID(ctx, vu.ID)
		}))
	}
	return nil
}

// RedeemPasswordRecovery reports every lookup or code mismatch as
// ErrPasswordRecoveryFailed so the caller cannot tell which check failed.
func (s *service) RedeemPasswordRecovery(ctx context.Context, email, code string) (err error) {
	defer func() { record("redeem_password_recovery", err) }()

	email = normalizeEmail(email)
	vu, err := s.verified.FindByEmail(ctx, email)
	if err != nil {
		return notFoundAs(err, domain.ErrPasswordRecoveryFailed)
	}
	rc, err := s.recoveryCodes.FindByUserID(ctx, vu.ID)
	if err != nil {
		return notFoundAs(err, domain.ErrPasswordRecoveryFailed)
	}
	if rc.Code != code {
		return domain.ErrPasswordRecoveryFailed
	}

	username, err := s.profiles.GetUsername(ctx, vu.ID)
	if err != nil {
		return err
	}
	password, err := GeneratePassword()
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return err
	}

	if err := s.verified.UpdatePassword(ctx, vu.ID, string(hash)); err != nil {
		return err
	}
	restorePassword := func(ctx context.Context) error {
		return s.verified.UpdatePassword(ctx, vu.ID, vu.PasswordHash)
	}
	if err := s.recoveryCodes.DeleteByUserID(ctx, vu.ID); err != nil {
		return errors.Join(err, s.compensate(ctx, "redeem_password_recovery", restorePassword))
	}

	if err := s.mailer.SendGeneratedPassword(ctx, domain.GeneratedPasswordEmail{
		Username: username,
		Email:    vu.Email,
		Password: password,
	}); err != nil {
		return errors.Join(err, s.compensate(ctx, "redeem_password_recovery", func(ctx context.Context) error {
			var restoreCode error
			if err := s.recoveryCodes.Create(ctx, rc); err != nil {
				restoreCode = fmt.Errorf("restore recovery code: %w", err)
			}
			return errors.Join(restorePassword(ctx), restoreCode)
		}))
	}
	s.log.Info("password recovered", zap.String("user_id", vu.ID))
	return nil
}

func (s *service) GetEmailAddress(ctx context.Context, userID string) (string, error) {
	vu, err := s.verified.FindByID(ctx, userID)
	if err != nil {
		return "", notFoundAs(err, domain.ErrUserNotFound)
	}
	return vu.Email, nil
}

// compensate undoes a local mutation after a later step failed. It runs detached
// from the request context so a cancelled request still gets its rollback.
func (s *service) compensate(ctx context.Context, op string, undo func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	err := undo(ctx)
	metrics.RecordCompensation(op, err)
	if err != nil {
		s.log.Error("compensating rollback failed", zap.String("operation", op), zap.Error(err))
		return fmt.Errorf("rollback %s: %w", op, err)
	}
	s.log.Warn("rolled back after failed remote call", zap.String("operation", op))
	return nil
}

// codeOtherThan draws codes until one differs from prev.
func (s *service) codeOtherThan(prev string) (string, error) {
	for {
		code, err := s.newCode()
		if err != nil || code != prev {
			return code, err
		}
	}
}

func (s *service) recoveryLink(email, code string) string {
	q := url.Values{}
	q.Set("email", email)
	q.Set("code", code)
	return s.publicBaseURL + "/open/reset-password?" + q.Encode()
}

// now is truncated to milliseconds so timestamps survive a round trip through
// every store backend unchanged; UpdateVerificationCode compares them for equality.
func (s *service) now() time.Time {
	return s.clock().UTC().Truncate(time.Millisecond)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// notFoundAs maps a store ErrNotFound onto the given auth sentinel and leaves other errors alone.
func notFoundAs(err, target error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: %w", target, err)
	}
	return err
}

var outcomes = []struct {
	err   error
	label string
}{
	{domain.ErrDuplicateEmail, "duplicate_email"},
	{domain.ErrUserNotFound, "user_not_found"},
	{domain.ErrVerificationFailed, "verification_failed"},
	{domain.ErrEmailRecentlySent, "email_recently_sent"},
	{domain.ErrBadCredentials, "bad_credentials"},
	{domain.ErrUserNotVerified, "user_not_verified"},
	{domain.ErrWrongPassword, "wrong_password"},
	{domain.ErrPasswordRecoveryFailed, "password_recovery_failed"},
}

func record(op string, err error) {
	if err == nil {
		metrics.RecordOperation(op, "ok")
		return
	}
	for _, o := range outcomes {
		if errors.Is(err, o.err) {
			metrics.RecordOperation(op, o.label)
			return
		}
	}
	var ge *domain.GatewayError
	if errors.As(err, &ge) {
		metrics.RecordOperation(op, "gateway_"+ge.Kind.String())
		return
	}
	metrics.RecordOperation(op, "error")
}
