// Package auth provides password hashing, JWT issuing and the HTTP
// middleware that turns a token back into a caller identity.
//
// AUTHENTICATION FLOW OVERVIEW:
// 1. POST /auth/login with name + password → bcrypt verify against the stored hash
// 2. Server issues a JWT carrying the user id and admin flag, stores it in an
//    HttpOnly cookie and also returns it in the body
// 3. On API calls, RequireAuth reads the cookie (or an Authorization: Bearer
//    header), validates the JWT and puts the Identity in the request context
// 4. POST /auth/logout revokes the token's jti until it would have expired
//
// The admin flag travels in the token so admin routes need no DB lookup. A
// user demoted while holding a token keeps admin rights until it expires.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const issuer = "pantry"

// DefaultTokenTTL is used when NewTokenService is given a zero TTL.
const DefaultTokenTTL = 24 * time.Hour

var (
	ErrTokenExpired = errors.New("auth: token expired")
	ErrTokenRevoked = errors.New("auth: token revoked")
)

// Identity is who a validated token says the caller is.
type Identity struct {
	UserID    int64
	Admin     bool
	TokenID   string // jti
	ExpiresAt time.Time
}

// TokenService handles JWT creation, validation and revocation.
type TokenService struct {
	secret []byte
	ttl    time.Duration

	mu      sync.Mutex
	revoked map[string]time.Time // jti → token expiry
	now     func() time.Time
}

// NewTokenService creates a TokenService. The secret should be at least 32
// bytes of random data in production:
//
//	JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{
		secret:  []byte(secret),
		ttl:     ttl,
		revoked: map[string]time.Time{},
		now:     time.Now,
	}, nil
}

// claims is the JWT payload. "sub" holds the user id as a decimal string.
type claims struct {
	jwt.RegisteredClaims
	Admin bool `json:"adm,omitempty"`
}

// Generate signs a token for the user with the service's TTL.
func (s *TokenService) Generate(userID int64, admin bool) (string, error) {
	return s.GenerateWithDuration(userID, admin, s.ttl)
}

// GenerateWithDuration signs a token with a custom lifetime. Tests use a
// negative duration to get an already expired token.
func (s *TokenService) GenerateWithDuration(userID int64, admin bool, d time.Duration) (string, error) {
	if userID <= 0 {
		return "", fmt.Errorf("auth: cannot issue a token for user id %d", userID)
	}
	now := s.now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        xid.New().String(),
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
		Admin: admin,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a JWT string: signature, HS256 only, issuer,
// expiry, and that it has not been revoked.
func (s *TokenService) Validate(tokenStr string) (Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return Identity{}, errors.New("auth: invalid token claims")
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Identity{}, fmt.Errorf("auth: token subject %q is not a user id", c.Subject)
	}
	if s.isRevoked(c.ID) {
		return Identity{}, ErrTokenRevoked
	}

	return Identity{
		UserID:    userID,
		Admin:     c.Admin,
		TokenID:   c.ID,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

// Revoke invalidates a token until its natural expiry. Revocations are held
// in memory and do not survive a restart.
func (s *TokenService) Revoke(id Identity) {
	if id.TokenID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for jti, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, jti)
		}
	}
	s.revoked[id.TokenID] = id.ExpiresAt
}

func (s *TokenService) isRevoked(jti string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[jti]
	return ok
}

// TTL is how long issued tokens live. The login handler uses it for the
// cookie's Max-Age.
func (s *TokenService) TTL() time.Duration { return s.ttl }
