package repomanager

import (
	"context"
	"database/sql"

	"github.com/obelousov/authkeeper/internal/dbx"
	"github.com/obelousov/authkeeper/internal/server/repositories/refreshtokens"
	"github.com/obelousov/authkeeper/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to an arbitrary DBTX, so
// services can run the same repository code against the pooled connection or
// inside an explicit transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
