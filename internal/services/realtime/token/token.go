// Package token verifies the signed credentials presented by whiteboard
// clients when they open a realtime connection.
//
// Credentials are HS256 JWTs carrying the user id and username; the signing
// side lives in the account service and is out of scope here beyond the dev
// minting helper used by cmd/token and tests.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken indicates no credential was presented.
	ErrMissingToken = errors.New("token is required")
	// ErrInvalidToken indicates the credential failed signature, algorithm,
	// or expiry checks.
	ErrInvalidToken = errors.New("token is invalid")
)

// Identity is the verified identity bound to one connection.
//
// Usernames are the uniqueness key for presence; the numeric id exists for
// storage ownership and is never compared for session identity.
type Identity struct {
	ID       int64
	Username string
}

// Verifier validates connection credentials against a shared secret.
// It holds no mutable state and is safe for concurrent use.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

type identityClaims struct {
	jwt.RegisteredClaims
	UserID   int64  `json:"id"`
	Username string `json:"username"`
}

// NewVerifier builds a verifier for the given shared secret.
func NewVerifier(secret string, now func() time.Time) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token secret is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Verifier{secret: []byte(secret), now: now}, nil
}

// Verify checks the raw credential and returns the identity it asserts.
func (v *Verifier) Verify(raw string) (Identity, error) {
	if v == nil || len(v.secret) == 0 {
		return Identity{}, errors.New("verifier is not configured")
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, ErrMissingToken
	}

	var parsed identityClaims
	_, err := jwt.ParseWithClaims(raw, &parsed, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return Identity{}, mapJWTError(err)
	}

	username := strings.TrimSpace(parsed.Username)
	if username == "" {
		return Identity{}, fmt.Errorf("%w: username claim is required", ErrInvalidToken)
	}
	return Identity{ID: parsed.UserID, Username: username}, nil
}

// Sign mints a credential for the given identity. Used by cmd/token and tests.
func Sign(secret string, identity Identity, ttl time.Duration, now func() time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("token secret is required")
	}
	if strings.TrimSpace(identity.Username) == "" {
		return "", errors.New("username is required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}
	if now == nil {
		now = time.Now
	}
	issued := now().UTC()
	claims := identityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
		},
		UserID:   identity.ID,
		Username: strings.TrimSpace(identity.Username),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// mapJWTError translates jwt library errors to credential errors.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: expired", ErrInvalidToken)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: bad signature", ErrInvalidToken)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: bad algorithm", ErrInvalidToken)
	default:
		return ErrInvalidToken
	}
}
