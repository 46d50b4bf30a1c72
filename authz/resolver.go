package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/atlaspanel/authclient/rest"
	"github.com/atlaspanel/authclient/store"
)

// Fetcher issues the authenticated authorities request. *rest.Client
// satisfies it.
type Fetcher interface {
	UserAuthorities(ctx context.Context) (json.RawMessage, error)
}

// Cache persists the last-known-good authority sets. store.Store satisfies
// it.
type Cache interface {
	SaveAuthorities(ctx context.Context, a store.Authorities) error
	LoadAuthorities(ctx context.Context) (store.Authorities, bool, error)
	ClearAuthorities(ctx context.Context) error
}

// Config configures a Resolver.
type Config struct {
	// RolePrefix is the stored role convention, default "ROLE_". HasRole
	// queries are normalized to it.
	RolePrefix string
	// RefreshInterval is the background re-fetch period while the session
	// is authenticated, default 30 minutes.
	RefreshInterval time.Duration
	// JitterFraction spreads the poll ticks to avoid synchronized fetches
	// across many clients, default 0.1 (±10%).
	JitterFraction float64
	// FetchTimeout bounds one background fetch, default 30 seconds.
	FetchTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.RolePrefix == "" {
		c.RolePrefix = "ROLE_"
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = 30 * time.Minute
	}
	if c.JitterFraction < 0 || c.JitterFraction >= 1 {
		c.JitterFraction = 0.1
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
}

// Snapshot is a point-in-time copy of the resolved authorities.
type Snapshot struct {
	Roles       []string
	Permissions []string
	FetchedAt   time.Time
}

// Resolver fetches, caches, and queries the session's authorities. All
// methods are safe for concurrent use.
type Resolver struct {
	cfg     Config
	fetcher Fetcher
	cache   Cache
	active  func() bool
	logger  *slog.Logger

	mu        sync.RWMutex
	roles     map[string]struct{}
	perms     map[string]struct{}
	fetchedAt time.Time
	loaded    bool

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Resolver. active reports whether a session is currently
// authenticated; the background poller skips ticks while it returns false.
// cache may be nil to disable the durable fallback.
func New(cfg Config, fetcher Fetcher, cache Cache, active func() bool, logger *slog.Logger) *Resolver {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		cfg:     cfg,
		fetcher: fetcher,
		cache:   cache,
		active:  active,
		logger:  logger,
		roles:   map[string]struct{}{},
		perms:   map[string]struct{}{},
		stop:    make(chan struct{}),
	}
}

// Refresh fetches the authorities now and replaces the resolved sets.
//
// A 403 resolves to empty sets and a nil error: the backend has decided
// this user holds nothing, which is an answer, not a failure. Any other
// error leaves the last-known-good state in place (loading the durable
// fallback if nothing is resolved yet) and is returned for logging.
func (r *Resolver) Refresh(ctx context.Context) error {
	raw, err := r.fetcher.UserAuthorities(ctx)
	if err != nil {
		if rest.IsStatus(err, http.StatusForbidden) {
			r.logger.Warn("authorities fetch denied, continuing with empty authorities")
			r.replace(ctx, nil, nil)
			return nil
		}
		r.fallback(ctx)
		return fmt.Errorf("fetch authorities: %w", err)
	}

	roles, perms, ok := decodeAuthorities(raw)
	if !ok {
		r.fallback(ctx)
		return fmt.Errorf("fetch authorities: unrecognized response shape")
	}
	r.replace(ctx, roles, perms)
	return nil
}

// HasRole reports whether the session holds the role. The query is
// normalized to the stored convention, so "ADMIN" and "ROLE_ADMIN" are
// equivalent.
func (r *Resolver) HasRole(name string) bool {
	if !strings.HasPrefix(name, r.cfg.RolePrefix) {
		name = r.cfg.RolePrefix + name
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.roles[name]
	return ok
}

// HasPermission reports exact-name membership, no normalization.
func (r *Resolver) HasPermission(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.perms[name]
	return ok
}

// Ready reports whether an authorities answer (fetched, denied, or
// fallback) has been resolved since construction or the last Clear.
func (r *Resolver) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// Snapshot returns a sorted copy of the resolved sets.
func (r *Resolver) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := Snapshot{
		Roles:       make([]string, 0, len(r.roles)),
		Permissions: make([]string, 0, len(r.perms)),
		FetchedAt:   r.fetchedAt,
	}
	for role := range r.roles {
		snap.Roles = append(snap.Roles, role)
	}
	for perm := range r.perms {
		snap.Permissions = append(snap.Permissions, perm)
	}
	sort.Strings(snap.Roles)
	sort.Strings(snap.Permissions)
	return snap
}

// Clear drops the resolved sets and the durable fallback. Called on logout.
func (r *Resolver) Clear(ctx context.Context) {
	r.mu.Lock()
	r.roles = map[string]struct{}{}
	r.perms = map[string]struct{}{}
	r.fetchedAt = time.Time{}
	r.loaded = false
	r.mu.Unlock()
	if r.cache != nil {
		if err := r.cache.ClearAuthorities(ctx); err != nil {
			r.logger.Warn("clearing cached authorities failed", "error", err)
		}
	}
}

// Start launches the background poller. Stop it with Stop.
func (r *Resolver) Start() {
	r.wg.Add(1)
	go r.run()
}

// Stop terminates the background poller and waits for it to exit. Safe to
// call more than once.
func (r *Resolver) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	r.wg.Wait()
}

func (r *Resolver) run() {
	defer r.wg.Done()
	for {
		timer := time.NewTimer(r.nextInterval())
		select {
		case <-r.stop:
			timer.Stop()
			return
		case <-timer.C:
		}
		if r.active != nil && !r.active() {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.FetchTimeout)
		if err := r.Refresh(ctx); err != nil {
			r.logger.Warn("background authorities refresh failed", "error", err)
		}
		cancel()
	}
}

func (r *Resolver) nextInterval() time.Duration {
	base := r.cfg.RefreshInterval
	if r.cfg.JitterFraction == 0 {
		return base
	}
	spread := (rand.Float64()*2 - 1) * r.cfg.JitterFraction
	return base + time.Duration(spread*float64(base))
}

func (r *Resolver) replace(ctx context.Context, roles, perms []string) {
	now := time.Now()
	r.mu.Lock()
	r.roles = toSet(roles)
	r.perms = toSet(perms)
	r.fetchedAt = now
	r.loaded = true
	r.mu.Unlock()

	if r.cache != nil {
		a := store.Authorities{Roles: roles, Permissions: perms, FetchedAt: now}
		if err := r.cache.SaveAuthorities(ctx, a); err != nil {
			r.logger.Warn("caching authorities failed", "error", err)
		}
	}
}

// fallback adopts the durable last-known-good copy, but only when nothing
// fresher is already resolved.
func (r *Resolver) fallback(ctx context.Context) {
	if r.cache == nil {
		return
	}
	r.mu.RLock()
	loaded := r.loaded
	r.mu.RUnlock()
	if loaded {
		return
	}
	cached, ok, err := r.cache.LoadAuthorities(ctx)
	if err != nil || !ok {
		return
	}
	r.logger.Warn("authorities fetch failed, using cached fallback")
	r.mu.Lock()
	r.roles = toSet(cached.Roles)
	r.perms = toSet(cached.Permissions)
	r.fetchedAt = cached.FetchedAt
	r.loaded = true
	r.mu.Unlock()
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	return set
}
