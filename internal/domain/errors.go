package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// Authentication-guard outcomes. Callers must handle every one of these
	// explicitly; none of them means "retry with the same credentials".
	ErrAccountBanned             = errors.New("account banned")
	ErrSoftDeleted               = errors.New("account soft-deleted")
	ErrRequiresProfileCompletion = errors.New("profile completion required")
	ErrRequiresAdminApproval     = errors.New("admin approval pending")

	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
)

// AccountLockedError carries the instant the brute-force lockout lifts.
type AccountLockedError struct {
	LockoutEnd time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.LockoutEnd.UTC().Format(time.RFC3339))
}

func (e *AccountLockedError) Unwrap() error { return ErrUnauthorized }

// RequiresVerificationError reports which verification step blocks
// authentication. Phone is set when the pending step is a mobile confirmation,
// so the caller can route the challenge without another lookup.
type RequiresVerificationError struct {
	Status Status
	Phone  *string
}

func (e *RequiresVerificationError) Error() string {
	return fmt.Sprintf("account requires verification: %s", e.Status)
}

func (e *RequiresVerificationError) Unwrap() error { return ErrUnauthorized }
