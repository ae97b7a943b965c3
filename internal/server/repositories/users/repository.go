// Package users is the credential store adapter: it owns race-safe
// persistence of user records. CreateIfAbsent is the only write and the only
// synchronization point; uniqueness is enforced by the store itself, never by
// a check-then-insert sequence in Go code.
package users

import (
	"context"

	"github.com/dmitrijs2005/loginapp/internal/server/models"
)

type Repository interface {
	// Exists reports whether a record with the exact username is present.
	Exists(ctx context.Context, username string) (bool, error)

	// GetByUsername returns the matching record or common.ErrNotFound.
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// CreateIfAbsent atomically checks uniqueness and inserts. Concurrent
	// calls for the same username yield exactly one success; the rest get
	// common.ErrAlreadyExists with the store unchanged.
	CreateIfAbsent(ctx context.Context, username string, passwordHash string) (*models.User, error)
}
