package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a Redis hash, for fleets of headless workers
// sharing one backend session. All fields live under a single key so clear
// and save stay atomic from the workers' point of view.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// RedisConfig configures a Redis-backed store.
type RedisConfig struct {
	// Prefix namespaces the session hash, default "authclient".
	Prefix string
	// TTL, when positive, expires the whole session hash. It should be at
	// least the refresh token lifetime or workers will lose a live session.
	TTL time.Duration
}

// NewRedis creates a Redis-backed store on an existing client.
func NewRedis(client *redis.Client, cfg RedisConfig) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "authclient"
	}
	return &Redis{
		client: client,
		key:    prefix + ":session",
		ttl:    cfg.TTL,
	}, nil
}

// SaveTokens stores the token triple.
func (r *Redis) SaveTokens(ctx context.Context, t Tokens) error {
	fields := map[string]any{
		keyAccessToken:  t.AccessToken,
		keyRefreshToken: t.RefreshToken,
		keyExpiresAt:    formatExpiry(t.ExpiresAt),
	}
	return r.save(ctx, fields)
}

// LoadTokens returns the stored token triple.
func (r *Redis) LoadTokens(ctx context.Context) (Tokens, bool, error) {
	values, err := r.client.HMGet(ctx, r.key, keyAccessToken, keyRefreshToken, keyExpiresAt).Result()
	if err != nil {
		return Tokens{}, false, fmt.Errorf("redis load tokens: %w", err)
	}
	access, _ := values[0].(string)
	refresh, _ := values[1].(string)
	expiry, _ := values[2].(string)
	if access == "" || refresh == "" {
		return Tokens{}, false, nil
	}
	return Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    parseExpiry(expiry),
	}, true, nil
}

// ClearTokens removes the token triple.
func (r *Redis) ClearTokens(ctx context.Context) error {
	if err := r.client.HDel(ctx, r.key, keyAccessToken, keyRefreshToken, keyExpiresAt).Err(); err != nil {
		return fmt.Errorf("redis clear tokens: %w", err)
	}
	return nil
}

// SaveAuthorities stores the fallback role/permission sets.
func (r *Redis) SaveAuthorities(ctx context.Context, a Authorities) error {
	roles, perms, err := encodeAuthorities(a)
	if err != nil {
		return err
	}
	return r.save(ctx, map[string]any{
		keyRoles:       roles,
		keyPermissions: perms,
	})
}

// LoadAuthorities returns the cached fallback sets.
func (r *Redis) LoadAuthorities(ctx context.Context) (Authorities, bool, error) {
	values, err := r.client.HMGet(ctx, r.key, keyRoles, keyPermissions).Result()
	if err != nil {
		return Authorities{}, false, fmt.Errorf("redis load authorities: %w", err)
	}
	roles, _ := values[0].(string)
	perms, _ := values[1].(string)
	return decodeCachedAuthorities(roles, perms)
}

// ClearAuthorities removes the cached fallback sets.
func (r *Redis) ClearAuthorities(ctx context.Context) error {
	if err := r.client.HDel(ctx, r.key, keyRoles, keyPermissions).Err(); err != nil {
		return fmt.Errorf("redis clear authorities: %w", err)
	}
	return nil
}

func (r *Redis) save(ctx context.Context, fields map[string]any) error {
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.key, fields)
	if r.ttl > 0 {
		pipe.Expire(ctx, r.key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save: %w", err)
	}
	return nil
}
