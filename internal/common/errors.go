// Package common defines shared constants and sentinel errors used across
// authkeeper components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrDuplicateSecret = errors.New("duplicate refresh secret")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrValidation     = errors.New("validation error")
	ErrEmailTaken     = errors.New("email already registered")

	// Refresh token lifecycle errors.
	ErrTokenNotFound     = errors.New("refresh token not found")
	ErrTokenRevoked      = errors.New("refresh token revoked")
	ErrTokenExpired      = errors.New("refresh token expired")
	ErrPrincipalNotFound = errors.New("principal not found")

	// Access token errors. Verification failures are deliberately collapsed
	// into a single opaque value so callers cannot distinguish a bad
	// signature from an expired or malformed token.
	ErrInvalidAccessToken = errors.New("invalid access token")

	// ErrSigningKeyInvalid is startup-fatal: the server must not come up
	// with weak key material.
	ErrSigningKeyInvalid = errors.New("signing key invalid: must be at least 32 bytes")
)
