package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Domain error kinds. Handlers map these to HTTP status codes; callers can
// retry ErrUnavailable but must not retry the others.
var (
	ErrNotFound          = errors.New("record not found")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("conflicting record exists")
	ErrUnavailable       = errors.New("record store unavailable")
)

// TransitionError reports a rejected status change with enough detail for
// the caller to act on.
type TransitionError struct {
	Record    string
	ID        string
	Current   string
	Attempted string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %s: cannot move from %s to %s", e.Record, e.ID, e.Current, e.Attempted)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// storeErr wraps a gorm/driver failure as ErrUnavailable so transport
// layers can tell transient store trouble (including context expiry) apart
// from domain errors.
func storeErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: timeout: %v", ErrUnavailable, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// isDuplicateKey detects unique-constraint failures across the postgres and
// sqlite drivers.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}
