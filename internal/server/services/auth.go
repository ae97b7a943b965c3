// Package services contains server-side business logic. This file implements
// AuthService, which turns raw credentials into stored records and verified
// identities: registration with hashing policy, login with constant-time
// verification, and session establishment.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/loginapp/internal/common"
	"github.com/dmitrijs2005/loginapp/internal/server/auth"
	"github.com/dmitrijs2005/loginapp/internal/server/config"
	"github.com/dmitrijs2005/loginapp/internal/server/models"
	"github.com/dmitrijs2005/loginapp/internal/server/password"
	"github.com/dmitrijs2005/loginapp/internal/server/repositories/users"
	"github.com/dmitrijs2005/loginapp/internal/server/sessions"
)

const (
	// MinUsernameLength is the data-model minimum; the store enforces it too,
	// checking here fails fast before hashing.
	MinUsernameLength = 3
	// MinPasswordLength is the registration password policy.
	MinPasswordLength = 6
)

// LoginResult bundles the verified user with the session token written to the
// session store and a short-lived JWT access token for API clients.
type LoginResult struct {
	User         *models.User
	SessionToken string
	AccessToken  string
}

// AuthService implements registration and login on top of the credential
// store adapter. It owns all hashing and verification policy; it holds no
// per-request state and is safe for concurrent use.
type AuthService struct {
	users                       users.Repository
	sessions                    sessions.Store
	hasher                      *password.Hasher
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
}

// NewAuthService constructs an AuthService using the injected store handles
// and server config.
func NewAuthService(repo users.Repository, store sessions.Store, hasher *password.Hasher, cfg *config.Config) *AuthService {
	return &AuthService{
		users:                       repo,
		sessions:                    store,
		hasher:                      hasher,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
	}
}

// Register validates the credentials, hashes the password, and inserts the
// record. Validation order: non-empty fields, username length, password
// length. Nothing is written on any failure path; the plaintext password is
// never persisted.
func (s *AuthService) Register(ctx context.Context, username string, pwd string) (*models.User, error) {
	if username == "" || pwd == "" {
		return nil, common.ErrInvalidInput
	}
	// Length is counted in runes to match the store's CHECK constraint.
	if utf8.RuneCountInString(username) < MinUsernameLength {
		return nil, common.ErrInvalidInput
	}
	if len(pwd) < MinPasswordLength {
		return nil, common.ErrWeakPassword
	}

	hash, err := s.hasher.Hash(pwd)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user, err := s.users.CreateIfAbsent(ctx, username, hash)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, common.ErrUsernameTaken
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	return user, nil
}

// Login verifies the password against the stored hash and, on success,
// creates a session and mints an access token. Unknown usernames and wrong
// passwords both come back as ErrInvalidCredentials; only store faults
// surface differently.
func (s *AuthService) Login(ctx context.Context, username string, pwd string) (*LoginResult, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error fetching user: %w", err)
	}

	if !s.hasher.Verify(pwd, user.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}

	// The session is created last so no failed login leaves one behind.
	accessToken, err := auth.GenerateToken(user.Username, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("error generating access token: %w", err)
	}

	token, err := s.sessions.Create(ctx, user.Username)
	if err != nil {
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	return &LoginResult{User: user, SessionToken: token, AccessToken: accessToken}, nil
}

// Logout destroys the session for token. Unknown tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Destroy(ctx, token)
}

// UserFromAccessToken verifies a bearer access token and resolves the user it
// names. Bad signatures, expired tokens, and vanished accounts all come back
// as ErrInvalidToken.
func (s *AuthService) UserFromAccessToken(ctx context.Context, token string) (*models.User, error) {
	username, err := auth.GetUsernameFromToken(token, s.jwtSecret)
	if err != nil {
		return nil, common.ErrInvalidToken
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("error fetching user: %w", err)
	}

	return user, nil
}

// CurrentUser resolves a session token back to the user record it references.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByUsername(ctx, session.Username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// The account vanished out from under the session.
			return nil, common.ErrSessionNotFound
		}
		return nil, fmt.Errorf("error fetching user: %w", err)
	}

	return user, nil
}
