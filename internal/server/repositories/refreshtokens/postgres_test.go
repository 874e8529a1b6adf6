package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/obelousov/authkeeper/internal/common"
	"github.com/obelousov/authkeeper/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func sampleToken() *models.RefreshToken {
	now := time.Now()
	return &models.RefreshToken{
		ID:        "11111111-1111-1111-1111-111111111111",
		UserID:    "22222222-2222-2222-2222-222222222222",
		Secret:    "s3cret",
		IssuedAt:  now,
		ExpiresAt: now.Add(7 * 24 * time.Hour),
	}
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*INSERT\s+INTO\s+refresh_tokens\b.*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*FALSE,\s*NULL\)\s*$`

	tok := sampleToken()
	mock.ExpectExec(q).
		WithArgs(tok.ID, tok.UserID, tok.Secret, tok.IssuedAt, tok.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), tok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_DuplicateSecret(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	tok := sampleToken()
	mock.ExpectExec(`INSERT\s+INTO\s+refresh_tokens`).
		WithArgs(tok.ID, tok.UserID, tok.Secret, tok.IssuedAt, tok.ExpiresAt).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), tok)
	if !errors.Is(err, common.ErrDuplicateSecret) {
		t.Fatalf("want ErrDuplicateSecret, got %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	tok := sampleToken()
	mock.ExpectExec(`INSERT\s+INTO\s+refresh_tokens`).
		WithArgs(tok.ID, tok.UserID, tok.Secret, tok.IssuedAt, tok.ExpiresAt).
		WillReturnError(errors.New("db down"))

	if err := repo.Create(context.Background(), tok); err == nil {
		t.Fatalf("expected wrapped db error")
	}
}

func TestFindBySecret_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	issued := time.Now()
	expires := issued.Add(time.Hour)
	rows := sqlmock.NewRows([]string{"id", "user_id", "secret", "issued_at", "expires_at", "revoked", "replaced_by"}).
		AddRow("t1", "u1", "s3cret", issued, expires, true, "t2")

	mock.ExpectQuery(`SELECT\s+id,\s*user_id,\s*secret,.*FROM\s+refresh_tokens\s+WHERE\s+secret\s*=\s*\$1`).
		WithArgs("s3cret").
		WillReturnRows(rows)

	tok, err := repo.FindBySecret(context.Background(), "s3cret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.ID != "t1" || tok.UserID != "u1" || !tok.Revoked {
		t.Fatalf("row mismatch: %+v", tok)
	}
	if tok.ReplacedBy == nil || *tok.ReplacedBy != "t2" {
		t.Fatalf("replaced_by mismatch: %v", tok.ReplacedBy)
	}
}

func TestFindBySecret_NullReplacedBy(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	issued := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "secret", "issued_at", "expires_at", "revoked", "replaced_by"}).
		AddRow("t1", "u1", "s", issued, issued.Add(time.Hour), false, nil)

	mock.ExpectQuery(`FROM\s+refresh_tokens`).
		WithArgs("s").
		WillReturnRows(rows)

	tok, err := repo.FindBySecret(context.Background(), "s")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.ReplacedBy != nil {
		t.Fatalf("expected nil ReplacedBy, got %v", *tok.ReplacedBy)
	}
}

func TestFindBySecret_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+refresh_tokens`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindBySecret(context.Background(), "nope")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestMarkRotated_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)UPDATE\s+refresh_tokens\s+SET\s+revoked\s*=\s*TRUE,\s*replaced_by\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1\s+AND\s+revoked\s*=\s*FALSE`
	mock.ExpectExec(q).
		WithArgs("t1", "t2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkRotated(context.Background(), "t1", "t2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMarkRotated_VersionConflict(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	// another writer already flipped revoked; zero rows match the predicate
	mock.ExpectExec(`UPDATE\s+refresh_tokens`).
		WithArgs("t1", "t2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkRotated(context.Background(), "t1", "t2")
	if !errors.Is(err, common.ErrVersionConflict) {
		t.Fatalf("want ErrVersionConflict, got %v", err)
	}
}

func TestRevokeAllActive_CountsRows(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)UPDATE\s+refresh_tokens\s+SET\s+revoked\s*=\s*TRUE\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+revoked\s*=\s*FALSE`
	mock.ExpectExec(q).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.RevokeAllActive(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Fatalf("affected = %d, want 3", n)
	}
}

func TestRevokeAllActive_Idempotent(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+refresh_tokens`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.RevokeAllActive(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("affected = %d, want 0", n)
	}
}
