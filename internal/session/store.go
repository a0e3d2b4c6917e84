package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"aquadash/internal/model"
	"aquadash/internal/token"
)

// Persisted keyring keys. Absence of either means logged out.
const (
	keyAuthToken = "authToken"
	keyUser      = "user"
)

// ErrInvalidCredentials is returned by Authenticators when the supplied
// username/password pair is rejected.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator exchanges credentials for a token and user record. Exactly
// one implementation is active per deployment: the local allow-list or the
// remote auth collaborator.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (string, model.User, error)
}

// Result is the store-boundary outcome of a UI-facing operation. Failures
// carry a user-displayable message instead of an error value.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Store owns the current session: the raw token, the decoded user, and
// their persisted copies. All other components receive it by injection.
type Store struct {
	mu      sync.RWMutex
	keyring *Keyring
	auth    Authenticator

	tokenString string
	user        *model.User
	loading     bool
	lastError   string
}

func NewStore(keyring *Keyring, auth Authenticator) *Store {
	return &Store{keyring: keyring, auth: auth}
}

// Restore rebuilds the session from the keyring. A missing token leaves
// the store logged out; a malformed or expired one ends the session.
// Idempotent.
func (s *Store) Restore() {
	raw, ok := s.keyring.Get(keyAuthToken)
	if !ok || raw == "" {
		return
	}

	claims := token.Decode(raw)
	if claims == nil {
		log.Printf("session: persisted token is malformed, ending session")
		s.Logout()
		return
	}
	if token.IsExpired(claims, time.Now()) {
		log.Printf("session: persisted token is expired, ending session")
		s.Logout()
		return
	}

	user := claims.User()
	if stored, ok := s.keyring.Get(keyUser); ok {
		var u model.User
		if err := json.Unmarshal([]byte(stored), &u); err == nil && u.Username != "" {
			user = u
		}
	}

	s.mu.Lock()
	s.tokenString = raw
	s.user = &user
	s.mu.Unlock()
}

// Login authenticates and, on success, adopts and persists the returned
// token and user. Failures become a displayable message, never a panic.
func (s *Store) Login(ctx context.Context, username, password string) Result {
	s.mu.Lock()
	s.loading = true
	s.lastError = ""
	s.mu.Unlock()

	tok, user, err := s.auth.Authenticate(ctx, username, password)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false

	if err != nil {
		msg := "login failed: " + err.Error()
		if errors.Is(err, ErrInvalidCredentials) {
			msg = "invalid username or password"
		}
		s.lastError = msg
		return Result{Error: msg}
	}

	s.tokenString = tok
	u := user
	s.user = &u

	s.keyring.Set(keyAuthToken, tok)
	if raw, err := json.Marshal(user); err == nil {
		s.keyring.Set(keyUser, string(raw))
	}
	return Result{Success: true}
}

// Logout clears the in-memory session and wipes the keyring. It has no
// failure path.
func (s *Store) Logout() {
	s.mu.Lock()
	s.tokenString = ""
	s.user = nil
	s.lastError = ""
	s.mu.Unlock()

	s.keyring.Clear()
}

// Valid re-derives expiry from the raw token on every call.
func (s *Store) Valid(now time.Time) bool {
	raw := s.Token()
	if raw == "" {
		return false
	}
	claims := token.Decode(raw)
	if claims == nil {
		return false
	}
	return !token.IsExpired(claims, now)
}

// Authenticated is re-computed on read: a non-empty token and a decoded
// user must both be present.
func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokenString != "" && s.user != nil
}

func (s *Store) Admin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.user.IsAdmin()
}

func (s *Store) HasSession() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokenString != ""
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokenString
}

func (s *Store) User() (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return model.User{}, false
	}
	return *s.user, true
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}
