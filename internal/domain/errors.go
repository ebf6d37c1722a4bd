package domain

import "errors"

// Storage-level sentinels. Repositories wrap these so services can tell
// "absent" from "uniqueness violated" without knowing the backend.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Auth sentinels. Services wrap these so handlers can map to HTTP status codes
// without leaking infrastructure details.
var (
	ErrDuplicateEmail         = errors.New("email address is already taken")
	ErrUserNotFound           = errors.New("user not found")
	ErrVerificationFailed     = errors.New("verification failed")
	ErrEmailRecentlySent      = errors.New("email was recently sent")
	ErrBadCredentials         = errors.New("bad credentials")
	ErrUserNotVerified        = errors.New("user is not verified")
	ErrWrongPassword          = errors.New("wrong password")
	ErrPasswordRecoveryFailed = errors.New("invalid password recovery link")
)
