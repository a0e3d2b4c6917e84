package token

import (
	"errors"
	"time"

	"aquadash/internal/model"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload carried by a session token: the user's identity
// plus the registered issued-at/expiry fields.
type Claims struct {
	UserID   int    `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

func (c *Claims) User() model.User {
	return model.User{
		ID:       c.UserID,
		Username: c.Username,
		Role:     c.Role,
		Email:    c.Email,
	}
}

type Config struct {
	Secret string
	Expiry time.Duration
	Issuer string
}

func DefaultConfig(secret string) Config {
	return Config{
		Secret: secret,
		Expiry: 7 * 24 * time.Hour,
		Issuer: "aquadash",
	}
}

// Encode produces a signed session token for the given user, stamping
// issue time and expiry per cfg.
func Encode(user model.User, cfg Config) (string, error) {
	if cfg.Secret == "" {
		return "", errors.New("missing secret")
	}
	if user.Username == "" {
		return "", errors.New("missing username")
	}
	if cfg.Expiry <= 0 {
		return "", errors.New("invalid expiry")
	}

	now := time.Now()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		Email:    user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.Expiry)),
			Subject:   user.Username,
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(cfg.Secret))
}

// Decode extracts the claims payload from a token without verifying the
// signature. The dashboard only needs the identity and expiry; the server
// is the one that must trust the token. Returns nil for anything that is
// not a three-segment token with a parseable payload carrying an identity.
func Decode(tokenString string) *Claims {
	if tokenString == "" {
		return nil
	}

	parser := jwt.NewParser(jwt.WithPaddingAllowed())
	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil
	}
	if claims.Username == "" {
		return nil
	}
	return claims
}

// IsExpired reports whether the claims carry an expiry strictly in the
// past. Claims without an expiry never expire.
func IsExpired(claims *Claims, now time.Time) bool {
	if claims == nil || claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.Before(now)
}

// Verify parses and verifies a signed token. Used by the simulator, which
// plays the server role.
func Verify(tokenString string, cfg Config) (*Claims, error) {
	if cfg.Secret == "" {
		return nil, errors.New("missing secret")
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(cfg.Secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	return claims, nil
}
