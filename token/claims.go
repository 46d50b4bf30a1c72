package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed is returned when an access token cannot be decoded or is
// missing a required claim. A malformed token is fatal to the session.
var ErrMalformed = errors.New("malformed access token")

// Claims is the identity payload of an access token. The user shown by the
// client is always a projection of these claims, never fetched separately.
type Claims struct {
	Subject   string
	Email     string
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type payload struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Decode extracts the identity claims from raw without verifying the
// signature. It fails when the token is not a structurally valid JWT or
// when the sub or exp claims are absent.
func Decode(raw string) (*Claims, error) {
	var p payload
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if p.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrMalformed)
	}
	if p.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp claim", ErrMalformed)
	}

	claims := &Claims{
		Subject:   p.Subject,
		Email:     p.Email,
		Username:  p.Username,
		ExpiresAt: p.ExpiresAt.Time,
	}
	if p.IssuedAt != nil {
		claims.IssuedAt = p.IssuedAt.Time
	}
	return claims, nil
}

// Expired reports whether the token expiry has passed at the given instant.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}
