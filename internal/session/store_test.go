package session

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"aquadash/internal/model"
	"aquadash/internal/token"
	"github.com/golang-jwt/jwt/v5"
)

func testTokenConfig() token.Config {
	return token.Config{Secret: "secret", Expiry: time.Hour, Issuer: "test"}
}

func newTestStore(t *testing.T) (*Store, *Keyring) {
	t.Helper()
	k := OpenKeyring(filepath.Join(t.TempDir(), "session.json"))
	auth, err := NewLocalAuthenticator(testTokenConfig())
	if err != nil {
		t.Fatalf("NewLocalAuthenticator: %v", err)
	}
	return NewStore(k, auth), k
}

func expiredToken(t *testing.T) string {
	t.Helper()
	claims := token.Claims{
		UserID:   1,
		Username: "admin",
		Role:     model.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func TestLogin_ValidAdminCredentials(t *testing.T) {
	s, k := newTestStore(t)

	res := s.Login(context.Background(), "admin", "admin")
	if !res.Success {
		t.Fatalf("expected success, got %q", res.Error)
	}
	if !s.Authenticated() {
		t.Fatalf("expected authenticated session")
	}
	if !s.Admin() {
		t.Fatalf("expected admin role")
	}
	if !s.Valid(time.Now()) {
		t.Fatalf("expected valid token")
	}

	if _, ok := k.Get(keyAuthToken); !ok {
		t.Fatalf("expected token persisted")
	}
	if _, ok := k.Get(keyUser); !ok {
		t.Fatalf("expected user persisted")
	}
}

func TestLogin_NonAdminCredentials(t *testing.T) {
	s, _ := newTestStore(t)

	res := s.Login(context.Background(), "user", "user")
	if !res.Success {
		t.Fatalf("expected success, got %q", res.Error)
	}
	if s.Admin() {
		t.Fatalf("expected non-admin session")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	s, _ := newTestStore(t)

	res := s.Login(context.Background(), "admin", "wrong")
	if res.Success {
		t.Fatalf("expected failure")
	}
	if res.Error == "" {
		t.Fatalf("expected displayable message")
	}
	if s.Authenticated() {
		t.Fatalf("expected unauthenticated session")
	}
	if s.LastError() != res.Error {
		t.Fatalf("expected last error recorded")
	}
}

func TestRestore_ValidPersistedSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	k := OpenKeyring(path)

	user := model.User{ID: 1, Username: "admin", Role: model.RoleAdmin, Email: "admin@smartgarden.com"}
	tok, err := token.Encode(user, testTokenConfig())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	k.Set(keyAuthToken, tok)
	raw, _ := json.Marshal(user)
	k.Set(keyUser, string(raw))

	s := NewStore(OpenKeyring(path), nil)
	s.Restore()

	if !s.Authenticated() {
		t.Fatalf("expected authenticated session after restore")
	}
	if !s.Admin() {
		t.Fatalf("expected admin role preserved")
	}
}

func TestRestore_MalformedToken(t *testing.T) {
	s, k := newTestStore(t)
	k.Set(keyAuthToken, "garbage")

	s.Restore()
	if s.Authenticated() {
		t.Fatalf("expected unauthenticated session")
	}
	if _, ok := k.Get(keyAuthToken); ok {
		t.Fatalf("expected persisted session cleared")
	}
}

func TestRestore_ExpiredToken(t *testing.T) {
	s, k := newTestStore(t)
	k.Set(keyAuthToken, expiredToken(t))

	s.Restore()
	if s.Authenticated() {
		t.Fatalf("expected unauthenticated session")
	}
}

func TestRestore_Idempotent(t *testing.T) {
	s, _ := newTestStore(t)
	if res := s.Login(context.Background(), "admin", "admin"); !res.Success {
		t.Fatalf("login failed: %q", res.Error)
	}

	s.Restore()
	s.Restore()
	if !s.Authenticated() {
		t.Fatalf("expected session to survive repeated restores")
	}
}

func TestLogout(t *testing.T) {
	s, k := newTestStore(t)
	if res := s.Login(context.Background(), "admin", "admin"); !res.Success {
		t.Fatalf("login failed: %q", res.Error)
	}

	s.Logout()
	if s.Authenticated() || s.HasSession() {
		t.Fatalf("expected terminal logged-out state")
	}
	if _, ok := k.Get(keyAuthToken); ok {
		t.Fatalf("expected keyring wiped")
	}

	// Safe to repeat.
	s.Logout()
}

func TestValid_NoToken(t *testing.T) {
	s, _ := newTestStore(t)
	if s.Valid(time.Now()) {
		t.Fatalf("expected invalid without token")
	}
}
