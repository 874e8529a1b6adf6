// Package users declares the principal directory contract: lookup and
// lifecycle of user records.
package users

import (
	"context"

	"github.com/obelousov/authkeeper/internal/server/models"
)

// Repository defines operations over principal records. Lookups never return
// soft-deleted accounts; a deleted principal is indistinguishable from an
// absent one.
type Repository interface {
	// Create inserts a new user. A duplicate email returns
	// common.ErrEmailTaken.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByEmail returns the active user with the given email, or
	// common.ErrorNotFound.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByID returns the active user with the given id, or
	// common.ErrorNotFound.
	GetByID(ctx context.Context, id string) (*models.User, error)

	// SoftDelete marks the user deleted. The row is retained; subsequent
	// lookups report common.ErrorNotFound. Deleting an already-deleted or
	// absent user returns common.ErrorNotFound.
	SoftDelete(ctx context.Context, id string) error
}
