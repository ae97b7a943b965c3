package models

import "time"

// User is a registered account. Username is unique and immutable after
// creation; PasswordHash is the bcrypt verifier, never the plaintext.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
