// Package common defines shared constants and sentinel errors used across
// client and server layers of the login app. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrStoreUnavailable = errors.New("store unavailable")

	// Registration policy errors.
	ErrInvalidInput  = errors.New("invalid input")
	ErrWeakPassword  = errors.New("weak password")
	ErrUsernameTaken = errors.New("username taken")

	// Login errors. Unknown user and wrong password collapse into this single
	// value so the outward signal never reveals whether an account exists.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Session errors.
	ErrSessionNotFound = errors.New("session not found")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)
