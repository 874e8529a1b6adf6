// Package refreshtokens declares the server-side repository contract for
// refresh token records in persistent storage.
//
// Records are append-mostly and never deleted; the only mutations are the
// monotonic revoked flag and the write-once replaced_by link. Single-use
// rotation is enforced here, not in the service layer: MarkRotated is a
// conditional update that succeeds for at most one caller per token.
package refreshtokens

import (
	"context"

	"github.com/obelousov/authkeeper/internal/server/models"
)

// Repository defines operations for creating, retrieving, and revoking
// refresh tokens.
type Repository interface {
	// Create inserts a new refresh token record. A colliding secret returns
	// common.ErrDuplicateSecret; given 256 bits of entropy per secret this
	// indicates a generation bug rather than an operational condition.
	Create(ctx context.Context, token *models.RefreshToken) error

	// FindBySecret looks up a refresh token by its opaque secret.
	// Returns common.ErrorNotFound when the secret is unknown.
	FindBySecret(ctx context.Context, secret string) (*models.RefreshToken, error)

	// MarkRotated atomically transitions a token from Active to Rotated,
	// setting revoked and the replaced_by link, but only if the token is
	// still unrevoked at the time of the update. If another writer got there
	// first it returns common.ErrVersionConflict.
	MarkRotated(ctx context.Context, id string, replacedBy string) error

	// RevokeAllActive marks every currently-unrevoked token of the principal
	// as revoked and reports how many rows were affected. Revoking an
	// already-fully-revoked set is a no-op returning zero.
	RevokeAllActive(ctx context.Context, userID string) (int64, error)
}
