package models

import "time"

// RefreshToken is a persisted, single-use-per-rotation credential.
//
// Rows are never deleted: a token leaves service either by rotation
// (Revoked=true, ReplacedBy set to the successor's id), by explicit
// revocation (Revoked=true, ReplacedBy nil), or by natural expiry. The
// retained rows form an auditable rotation chain per principal.
type RefreshToken struct {
	ID         string
	UserID     string
	Secret     string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Revoked    bool
	ReplacedBy *string
}

// Expired reports whether the token is past its expiry at the given instant.
// Expiry is a derived condition, not a stored state transition.
func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
