// Package repomanager owns the lifecycle of the persistent store: it opens
// the database handle at process start, applies migrations, hands out
// repositories, and closes the handle at shutdown. Services receive
// repositories from here instead of reaching for a global connection.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/loginapp/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Conn() *sql.DB
	Users() users.Repository
	Close() error
}
