package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/obelousov/authkeeper/internal/common"
	"github.com/obelousov/authkeeper/internal/dbx"
	"github.com/obelousov/authkeeper/internal/server/models"
)

const pgUniqueViolation = "23505"

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new refresh token record.
func (r *PostgresRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, secret, issued_at, expires_at, revoked, replaced_by)
		VALUES ($1, $2, $3, $4, $5, FALSE, NULL)
	`
	if _, err := r.db.ExecContext(ctx, query,
		token.ID, token.UserID, token.Secret, token.IssuedAt, token.ExpiresAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return common.ErrDuplicateSecret
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// FindBySecret returns the refresh token row for the given secret.
// If not found, it returns common.ErrorNotFound.
func (r *PostgresRepository) FindBySecret(ctx context.Context, secret string) (*models.RefreshToken, error) {
	query := `
		SELECT id, user_id, secret, issued_at, expires_at, revoked, replaced_by
		FROM refresh_tokens
		WHERE secret = $1
	`
	token := &models.RefreshToken{}
	var replacedBy sql.NullString
	err := r.db.QueryRowContext(ctx, query, secret).Scan(
		&token.ID, &token.UserID, &token.Secret,
		&token.IssuedAt, &token.ExpiresAt, &token.Revoked, &replacedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if replacedBy.Valid {
		token.ReplacedBy = &replacedBy.String
	}
	return token, nil
}

// MarkRotated flips the token to Rotated only while it is still unrevoked.
// The guarded UPDATE is the single-use enforcement primitive: of two
// concurrent rotations only one matches the `revoked = FALSE` predicate.
func (r *PostgresRepository) MarkRotated(ctx context.Context, id string, replacedBy string) error {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE, replaced_by = $2
		WHERE id = $1 AND revoked = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, id, replacedBy)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return common.ErrVersionConflict
	}
	return nil
}

// RevokeAllActive marks every unrevoked token of the principal as revoked.
func (r *PostgresRepository) RevokeAllActive(ctx context.Context, userID string) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE
		WHERE user_id = $1 AND revoked = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return affected, nil
}
