// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service/http layers.
var (
	// ErrNotFound indicates the requested note or user does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict indicates optimistic concurrency failure (base version mismatch).
	ErrVersionConflict = errors.New("version conflict")

	// ErrUnauthorized indicates failed sign-in (unknown email or wrong password).
	ErrUnauthorized = errors.New("invalid credentials")

	// ErrUnauthenticated indicates a call that requires a session was made without a valid one.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrForbidden indicates a session tried to act on behalf of another user.
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited indicates temporary sign-in lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation indicates a missing or malformed required field.
	ErrValidation = errors.New("validation")
)
