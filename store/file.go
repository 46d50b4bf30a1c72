package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// File is a durable Store backed by a single JSON file. Tokens survive
// process restarts, at the cost of a wider exposure window than Memory.
// The file is created with 0600 permissions.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile creates a file-backed store at path. The file is created lazily
// on first save; its parent directory must exist.
func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read token file: %w", err)
	}
	values := map[string]string{}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	return values, nil
}

// write replaces the file atomically via a temp file and rename, so a crash
// mid-write never leaves a torn token file.
func (f *File) write(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode token file: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}

// SaveTokens stores the token triple.
func (f *File) SaveTokens(_ context.Context, t Tokens) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.read()
	if err != nil {
		return err
	}
	values[keyAccessToken] = t.AccessToken
	values[keyRefreshToken] = t.RefreshToken
	values[keyExpiresAt] = formatExpiry(t.ExpiresAt)
	return f.write(values)
}

// LoadTokens returns the stored token triple.
func (f *File) LoadTokens(_ context.Context) (Tokens, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.read()
	if err != nil {
		return Tokens{}, false, err
	}
	access := values[keyAccessToken]
	refresh := values[keyRefreshToken]
	if access == "" || refresh == "" {
		return Tokens{}, false, nil
	}
	return Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    parseExpiry(values[keyExpiresAt]),
	}, true, nil
}

// ClearTokens removes the token triple, keeping any cached authorities.
func (f *File) ClearTokens(_ context.Context) error {
	return f.clearKeys(keyAccessToken, keyRefreshToken, keyExpiresAt)
}

// SaveAuthorities stores the fallback role/permission sets.
func (f *File) SaveAuthorities(_ context.Context, a Authorities) error {
	roles, perms, err := encodeAuthorities(a)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.read()
	if err != nil {
		return err
	}
	values[keyRoles] = roles
	values[keyPermissions] = perms
	return f.write(values)
}

// LoadAuthorities returns the cached fallback sets.
func (f *File) LoadAuthorities(_ context.Context) (Authorities, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.read()
	if err != nil {
		return Authorities{}, false, err
	}
	return decodeCachedAuthorities(values[keyRoles], values[keyPermissions])
}

// ClearAuthorities removes the cached fallback sets.
func (f *File) ClearAuthorities(_ context.Context) error {
	return f.clearKeys(keyRoles, keyPermissions)
}

func (f *File) clearKeys(keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.read()
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(values, k)
	}
	if len(values) == 0 {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove token file: %w", err)
		}
		return nil
	}
	return f.write(values)
}

// Dir is a convenience for callers that want the default per-user location.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "authclient"), nil
}
