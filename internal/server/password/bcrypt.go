// Package password owns the hashing policy for stored credentials.
// The bcrypt cost factor is fixed process-wide and comes from configuration;
// nothing outside this package invokes bcrypt directly.
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the process-wide default bcrypt cost factor. It matches the
// cost used by the production deployment and can be overridden via config.
const DefaultCost = 10

type Hasher struct {
	cost int
}

func NewHasher(cost int) (*Hasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cost)
	}
	return &Hasher{cost: cost}, nil
}

// Hash returns a salted bcrypt hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether password matches the stored encodedHash.
// The comparison is constant-time inside bcrypt.
func (h *Hasher) Verify(password string, encodedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password)) == nil
}
