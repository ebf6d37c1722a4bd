package domain

import (
	"errors"
	"fmt"
)

// GatewayKind tells callers whether a failed remote call may be retried.
type GatewayKind int

const (
	// Terminal failures are client-side problems (malformed request, rejected payload).
	// Retrying will not help; they usually point at a bug.
	Terminal GatewayKind = iota
	// Retryable failures are remote server errors or transport problems.
	Retryable
)

func (k GatewayKind) String() string {
	if k == Retryable {
		return "retryable"
	}
	return "terminal"
}

// GatewayError is returned by every remote collaborator (email dispatch, profile directory).
type GatewayError struct {
	Gateway string
	Op      string
	Kind    GatewayKind
	Err     error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s %s: %s failure: %v", e.Gateway, e.Op, e.Kind, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IsRetryable reports whether err carries a retryable gateway failure.
func IsRetryable(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Kind == Retryable
}
