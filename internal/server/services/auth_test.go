package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/loginapp/internal/common"
	"github.com/dmitrijs2005/loginapp/internal/server/config"
	"github.com/dmitrijs2005/loginapp/internal/server/models"
	"github.com/dmitrijs2005/loginapp/internal/server/password"
	"github.com/dmitrijs2005/loginapp/internal/server/sessions"
)

// --- helpers ---

// fakeUsersRepo is an in-memory credential store with the same atomicity
// contract as the Postgres adapter: a single mutex guards check-and-insert.
type fakeUsersRepo struct {
	mu    sync.Mutex
	users map[string]*models.User

	createErr error
	getErr    error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{users: make(map[string]*models.User)}
}

func (f *fakeUsersRepo) Exists(ctx context.Context, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.users[username]
	return ok, nil
}

func (f *fakeUsersRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[username]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUsersRepo) CreateIfAbsent(ctx context.Context, username string, passwordHash string) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[username]; ok {
		return nil, common.ErrAlreadyExists
	}
	u := &models.User{
		ID:           fmt.Sprintf("u-%d", len(f.users)+1),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	f.users[username] = u
	copied := *u
	return &copied, nil
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*sessions.Session
	next     int

	createErr error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*sessions.Session)}
}

func (f *fakeSessionStore) Create(ctx context.Context, username string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	token := fmt.Sprintf("tok-%d", f.next)
	f.sessions[token] = &sessions.Session{Username: username, CreatedAt: time.Now().UTC()}
	return token, nil
}

func (f *fakeSessionStore) Get(ctx context.Context, token string) (*sessions.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[token]
	if !ok {
		return nil, common.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessionStore) Destroy(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, token)
	return nil
}

func newAuthService(t *testing.T, repo *fakeUsersRepo, store *fakeSessionStore) *AuthService {
	t.Helper()
	hasher, err := password.NewHasher(bcrypt.MinCost) // MinCost keeps tests fast
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}
	cfg := &config.Config{
		SecretKey:                   "k",
		AccessTokenValidityDuration: time.Hour,
	}
	return NewAuthService(repo, store, hasher, cfg)
}

// --- tests ---

func TestRegisterThenLogin_RoundTrip(t *testing.T) {
	repo := newFakeUsersRepo()
	store := newFakeSessionStore()
	s := newAuthService(t, repo, store)
	ctx := context.Background()

	user, err := s.Register(ctx, "alice", "longenough1")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if user.Username != "alice" || user.CreatedAt.IsZero() {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.PasswordHash == "longenough1" {
		t.Fatal("stored hash must never equal the plaintext password")
	}

	result, err := s.Login(ctx, "alice", "longenough1")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if result.User.Username != "alice" {
		t.Fatalf("unexpected login user: %+v", result.User)
	}
	if result.SessionToken == "" || result.AccessToken == "" {
		t.Fatalf("empty tokens: %+v", result)
	}

	session, err := store.Get(ctx, result.SessionToken)
	if err != nil {
		t.Fatalf("session not written to store: %v", err)
	}
	if session.Username != "alice" {
		t.Fatalf("session references wrong user: %q", session.Username)
	}
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{name: "empty username", username: "", password: "longenough1", wantErr: common.ErrInvalidInput},
		{name: "empty password", username: "alice", password: "", wantErr: common.ErrInvalidInput},
		{name: "username too short", username: "ab", password: "longenough1", wantErr: common.ErrInvalidInput},
		{name: "multibyte username too short", username: "ñé", password: "longenough1", wantErr: common.ErrInvalidInput},
		{name: "password too short", username: "alice", password: "123", wantErr: common.ErrWeakPassword},
		{name: "both empty", username: "", password: "", wantErr: common.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeUsersRepo()
			s := newAuthService(t, repo, newFakeSessionStore())

			_, err := s.Register(context.Background(), tt.username, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("want %v, got %v", tt.wantErr, err)
			}
			if len(repo.users) != 0 {
				t.Fatal("store must not be written on a validation failure")
			}
		})
	}
}

func TestRegister_UsernameTaken(t *testing.T) {
	repo := newFakeUsersRepo()
	store := newFakeSessionStore()
	s := newAuthService(t, repo, store)
	ctx := context.Background()

	if _, err := s.Register(ctx, "alice", "firstpass1"); err != nil {
		t.Fatalf("first Register error: %v", err)
	}

	_, err := s.Register(ctx, "alice", "secondpass2")
	if !errors.Is(err, common.ErrUsernameTaken) {
		t.Fatalf("want common.ErrUsernameTaken, got %v", err)
	}

	// The stored record still matches the first password only.
	if _, err := s.Login(ctx, "alice", "firstpass1"); err != nil {
		t.Fatalf("first password must still log in: %v", err)
	}
	if _, err := s.Login(ctx, "alice", "secondpass2"); !errors.Is(err, common.ErrInvalidCredentials) {
		t.Fatalf("second password must not log in, got %v", err)
	}
}

func TestRegister_StoreFault(t *testing.T) {
	repo := newFakeUsersRepo()
	repo.createErr = fmt.Errorf("%w: connection refused", common.ErrStoreUnavailable)
	s := newAuthService(t, repo, newFakeSessionStore())

	_, err := s.Register(context.Background(), "alice", "longenough1")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, common.ErrUsernameTaken) {
		t.Fatalf("store fault must not look like a uniqueness conflict: %v", err)
	}
	if !errors.Is(err, common.ErrStoreUnavailable) {
		t.Fatalf("want wrapped common.ErrStoreUnavailable, got %v", err)
	}
}

func TestRegister_Concurrent_SameUsername(t *testing.T) {
	repo := newFakeUsersRepo()
	s := newAuthService(t, repo, newFakeSessionStore())
	ctx := context.Background()

	const n = 16
	errs := make(chan error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Register(ctx, "alice", "longenough1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var registered, taken int
	for err := range errs {
		switch {
		case err == nil:
			registered++
		case errors.Is(err, common.ErrUsernameTaken):
			taken++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if registered != 1 || taken != n-1 {
		t.Fatalf("want exactly 1 success and %d conflicts, got %d/%d", n-1, registered, taken)
	}
	if len(repo.users) != 1 {
		t.Fatalf("store must contain exactly one record, got %d", len(repo.users))
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	repo := newFakeUsersRepo()
	s := newAuthService(t, repo, newFakeSessionStore())
	ctx := context.Background()

	if _, err := s.Register(ctx, "alice", "longenough1"); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	_, err := s.Login(ctx, "alice", "wrongpassword")
	if !errors.Is(err, common.ErrInvalidCredentials) {
		t.Fatalf("want common.ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_UnknownUser_SameSignalAsWrongPassword(t *testing.T) {
	repo := newFakeUsersRepo()
	s := newAuthService(t, repo, newFakeSessionStore())
	ctx := context.Background()

	if _, err := s.Register(ctx, "alice", "longenough1"); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	errUnknown := func() error {
		_, err := s.Login(ctx, "ghost", "longenough1")
		return err
	}()
	errWrongPwd := func() error {
		_, err := s.Login(ctx, "alice", "wrongpassword")
		return err
	}()

	if !errors.Is(errUnknown, common.ErrInvalidCredentials) {
		t.Fatalf("unknown user: want common.ErrInvalidCredentials, got %v", errUnknown)
	}
	// Both failures must be indistinguishable to avoid username enumeration.
	if errUnknown.Error() != errWrongPwd.Error() {
		t.Fatalf("login failures must be indistinguishable: %q vs %q", errUnknown, errWrongPwd)
	}
}

func TestLogin_SessionStoreFault(t *testing.T) {
	repo := newFakeUsersRepo()
	store := newFakeSessionStore()
	store.createErr = fmt.Errorf("%w: redis down", common.ErrStoreUnavailable)
	s := newAuthService(t, repo, store)
	ctx := context.Background()

	if _, err := s.Register(ctx, "alice", "longenough1"); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	_, err := s.Login(ctx, "alice", "longenough1")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, common.ErrInvalidCredentials) {
		t.Fatalf("store fault must not look like a credential failure: %v", err)
	}
	if len(store.sessions) != 0 {
		t.Fatalf("a failed login must leave no session behind, got %d", len(store.sessions))
	}
}

func TestUserFromAccessToken(t *testing.T) {
	repo := newFakeUsersRepo()
	s := newAuthService(t, repo, newFakeSessionStore())
	ctx := context.Background()

	if _, err := s.Register(ctx, "alice", "longenough1"); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	result, err := s.Login(ctx, "alice", "longenough1")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	user, err := s.UserFromAccessToken(ctx, result.AccessToken)
	if err != nil {
		t.Fatalf("UserFromAccessToken error: %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, err := s.UserFromAccessToken(ctx, "not.a.token"); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("want common.ErrInvalidToken for garbage, got %v", err)
	}
}

func TestUserFromAccessToken_VanishedUser(t *testing.T) {
	repo := newFakeUsersRepo()
	s := newAuthService(t, repo, newFakeSessionStore())
	ctx := context.Background()

	if _, err := s.Register(ctx, "alice", "longenough1"); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	result, err := s.Login(ctx, "alice", "longenough1")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	delete(repo.users, "alice")

	if _, err := s.UserFromAccessToken(ctx, result.AccessToken); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("want common.ErrInvalidToken for vanished user, got %v", err)
	}
}

func TestLogoutAndCurrentUser(t *testing.T) {
	repo := newFakeUsersRepo()
	store := newFakeSessionStore()
	s := newAuthService(t, repo, store)
	ctx := context.Background()

	if _, err := s.Register(ctx, "alice", "longenough1"); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	result, err := s.Login(ctx, "alice", "longenough1")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	user, err := s.CurrentUser(ctx, result.SessionToken)
	if err != nil {
		t.Fatalf("CurrentUser error: %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if err := s.Logout(ctx, result.SessionToken); err != nil {
		t.Fatalf("Logout error: %v", err)
	}

	if _, err := s.CurrentUser(ctx, result.SessionToken); !errors.Is(err, common.ErrSessionNotFound) {
		t.Fatalf("want common.ErrSessionNotFound after logout, got %v", err)
	}

	// Logout of an already-destroyed session is not an error.
	if err := s.Logout(ctx, result.SessionToken); err != nil {
		t.Fatalf("second Logout error: %v", err)
	}
}
