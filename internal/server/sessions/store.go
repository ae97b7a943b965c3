// Package sessions is the session-store collaborator: a key-value store
// binding an opaque token to an authenticated username. It is deliberately
// decoupled from credential logic so the backend can be swapped without
// touching the authentication service.
package sessions

import (
	"context"
	"time"
)

// Session is the ephemeral proof of an authenticated identity. It holds a
// non-owning back-reference to the user record by username.
type Session struct {
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type Store interface {
	// Create stores a new session for username and returns its opaque token.
	Create(ctx context.Context, username string) (string, error)

	// Get returns the session for token, or common.ErrSessionNotFound when
	// the token is unknown or expired.
	Get(ctx context.Context, token string) (*Session, error)

	// Destroy removes the session. Destroying an unknown token is not an error.
	Destroy(ctx context.Context, token string) error
}
