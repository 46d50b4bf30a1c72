package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Memory is a process-scoped Store. It is the default backend: tokens live
// exactly as long as the process, mirroring a per-tab session.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

// SaveTokens stores the token triple.
func (m *Memory) SaveTokens(_ context.Context, t Tokens) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[keyAccessToken] = t.AccessToken
	m.values[keyRefreshToken] = t.RefreshToken
	m.values[keyExpiresAt] = formatExpiry(t.ExpiresAt)
	return nil
}

// LoadTokens returns the stored token triple, reporting ok=false when no
// pair is present.
func (m *Memory) LoadTokens(_ context.Context) (Tokens, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	access := m.values[keyAccessToken]
	refresh := m.values[keyRefreshToken]
	if access == "" || refresh == "" {
		return Tokens{}, false, nil
	}
	return Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    parseExpiry(m.values[keyExpiresAt]),
	}, true, nil
}

// ClearTokens removes the token triple. Calling it on an empty store is a
// no-op.
func (m *Memory) ClearTokens(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, keyAccessToken)
	delete(m.values, keyRefreshToken)
	delete(m.values, keyExpiresAt)
	return nil
}

// SaveAuthorities stores the fallback role/permission sets.
func (m *Memory) SaveAuthorities(_ context.Context, a Authorities) error {
	roles, perms, err := encodeAuthorities(a)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[keyRoles] = roles
	m.values[keyPermissions] = perms
	return nil
}

// LoadAuthorities returns the cached fallback sets.
func (m *Memory) LoadAuthorities(_ context.Context) (Authorities, bool, error) {
	m.mu.RLock()
	roles := m.values[keyRoles]
	perms := m.values[keyPermissions]
	m.mu.RUnlock()
	return decodeCachedAuthorities(roles, perms)
}

// ClearAuthorities removes the cached fallback sets.
func (m *Memory) ClearAuthorities(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, keyRoles)
	delete(m.values, keyPermissions)
	return nil
}

func encodeAuthorities(a Authorities) (roles, perms string, err error) {
	rb, err := json.Marshal(a.Roles)
	if err != nil {
		return "", "", fmt.Errorf("encode roles: %w", err)
	}
	pb, err := json.Marshal(a.Permissions)
	if err != nil {
		return "", "", fmt.Errorf("encode permissions: %w", err)
	}
	return string(rb), string(pb), nil
}

func decodeCachedAuthorities(roles, perms string) (Authorities, bool, error) {
	if roles == "" && perms == "" {
		return Authorities{}, false, nil
	}
	var a Authorities
	if roles != "" {
		if err := json.Unmarshal([]byte(roles), &a.Roles); err != nil {
			return Authorities{}, false, fmt.Errorf("decode roles: %w", err)
		}
	}
	if perms != "" {
		if err := json.Unmarshal([]byte(perms), &a.Permissions); err != nil {
			return Authorities{}, false, fmt.Errorf("decode permissions: %w", err)
		}
	}
	return a, true, nil
}
