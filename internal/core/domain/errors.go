package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates a collaborator is not configured.
	ErrNotImplemented = errors.New("not implemented")

	// ErrRateLimited indicates the caller exceeded its request budget.
	ErrRateLimited = errors.New("rate limited")

	// Authentication Errors.

	// ErrAuthRequired indicates no session credential was presented.
	ErrAuthRequired = errors.New("authentication required")

	// ErrAuthExpired indicates the session credential has expired.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrAuthInvalid indicates the session credential could not be verified.
	ErrAuthInvalid = errors.New("authentication invalid")

	// ErrIdentityMismatch indicates a client-supplied identity differs from
	// the identity of the authenticated session.
	ErrIdentityMismatch = errors.New("identity does not match session")

	// Connection Errors.

	// ErrCodeAlreadyExchanged indicates an authorization code was presented
	// a second time.
	ErrCodeAlreadyExchanged = errors.New("authorization code already exchanged")

	// ErrNoIdentity indicates neither the session credential nor the identity
	// endpoint produced a usable identity.
	ErrNoIdentity = errors.New("no identity")
)
