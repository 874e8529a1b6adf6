// Package models contains the persisted entities of the identity backend.
package models

import "time"

// User is a principal record. Deleted accounts are soft-deleted: the row is
// kept, IsDeleted flips to true and the account stops resolving.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Roles        []string
	IsDeleted    bool
	CreatedAt    time.Time
}
