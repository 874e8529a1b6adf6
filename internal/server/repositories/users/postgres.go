package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

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

// Roles live in a TEXT[] column; database/sql has no native []string scan, so
// queries go through string_to_array / array_to_string.
func joinRoles(roles []string) string {
	return strings.Join(roles, ",")
}

func splitRoles(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// Create inserts a new user and returns it with the generated id.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (email, display_name, password_hash, roles)
		VALUES ($1, $2, $3, string_to_array($4, ','))
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.DisplayName, user.PasswordHash, joinRoles(user.Roles)).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, common.ErrEmailTaken
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// GetByEmail returns the active user with the given email.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, display_name, password_hash, array_to_string(roles, ','), created_at
		FROM users
		WHERE email = $1 AND is_deleted = FALSE
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

// GetByID returns the active user with the given id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, email, display_name, password_hash, array_to_string(roles, ','), created_at
		FROM users
		WHERE id = $1 AND is_deleted = FALSE
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var roles string
	err := row.Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &roles, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	user.Roles = splitRoles(roles)
	return user, nil
}

// SoftDelete marks a user deleted while keeping the row.
func (r *PostgresRepository) SoftDelete(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET is_deleted = TRUE
		WHERE id = $1 AND is_deleted = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}
	return nil
}
