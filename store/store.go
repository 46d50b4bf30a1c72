package store

import (
	"context"
	"time"
)

// Storage keys shared by all backends.
const (
	keyAccessToken  = "accessToken"
	keyRefreshToken = "refreshToken"
	keyExpiresAt    = "tokenExpiresAt"
	keyRoles        = "cachedRoles"
	keyPermissions  = "cachedPermissions"
)

// Tokens is the persisted token material. ExpiresAt is the absolute expiry
// of the access token as reported by the backend.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Authorities is the cached role/permission fallback. FetchedAt is kept
// in memory only; a copy loaded from storage carries a zero FetchedAt so
// callers can tell a fallback from a fresh fetch.
type Authorities struct {
	Roles       []string
	Permissions []string
	FetchedAt   time.Time
}

// Store is the persistence contract for one client session.
//
// Save must be complete before the corresponding in-memory state change
// becomes visible, so a crash between the two never leaves storage ahead
// of or behind the session. Load reports ok=false when no token pair is
// present. Clear is idempotent.
type Store interface {
	SaveTokens(ctx context.Context, t Tokens) error
	LoadTokens(ctx context.Context) (Tokens, bool, error)
	ClearTokens(ctx context.Context) error

	SaveAuthorities(ctx context.Context, a Authorities) error
	LoadAuthorities(ctx context.Context) (Authorities, bool, error)
	ClearAuthorities(ctx context.Context) error
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseExpiry(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
