package authclient

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/atlaspanel/authclient/authz"
	"github.com/atlaspanel/authclient/rest"
	"github.com/atlaspanel/authclient/store"
)

// Session is the process-wide authentication state machine. Construct one
// through [Builder.Build] and pass it by reference to every consumer; it
// replaces ad hoc global auth state.
type Session struct {
	config   Config
	store    store.Store
	logger   *slog.Logger
	authAPI  *rest.Client // bare client: the auth endpoints themselves
	resolver *authz.Resolver
	events   *eventDispatcher
	metrics  *Metrics
	httpc    *http.Client // intercepted client for everything else

	mu        sync.Mutex
	status    Status
	access    string
	refresh   string
	expiresAt time.Time
	user      *User
	lastError string
}

// Status returns the current authentication state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// CurrentUser returns a copy of the user projected from the access token,
// or nil when no session is active.
func (s *Session) CurrentUser() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// AccessToken returns the current access token, empty when logged out.
func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access
}

// Snapshot returns a point-in-time copy of the full session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Status:       s.status,
		AccessToken:  s.access,
		RefreshToken: s.refresh,
		ExpiresAt:    s.expiresAt,
		LastError:    s.lastError,
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

// HTTPClient returns the intercepted client. Every request through it
// carries the bearer credential and participates in the refresh protocol.
func (s *Session) HTTPClient() *http.Client {
	return s.httpc
}

// Authorities returns the authorization resolver bound to this session.
func (s *Session) Authorities() *authz.Resolver {
	return s.resolver
}

// MetricsSnapshot returns a deep copy of the session counters.
func (s *Session) MetricsSnapshot() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// EventsDropped reports how many events the dispatcher had to drop.
func (s *Session) EventsDropped() uint64 {
	return s.events.Dropped()
}

// Close stops the background authorities poller and flushes the event
// dispatcher. The session remains usable for synchronous calls afterwards.
func (s *Session) Close() {
	if s == nil {
		return
	}
	if s.resolver != nil {
		s.resolver.Stop()
	}
	s.events.Close()
}

func (s *Session) metricInc(id MetricID) {
	s.metrics.Inc(id)
}

func (s *Session) emit(eventType, userID string, success bool, errMsg string) {
	s.events.emit(Event{
		EventType: eventType,
		UserID:    userID,
		Success:   success,
		Error:     errMsg,
	})
}

// setUnauthenticated resets the in-memory state. Storage must already have
// been cleared by the caller: persisted state leads, memory follows.
func (s *Session) setUnauthenticated(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusUnauthenticated
	s.access = ""
	s.refresh = ""
	s.expiresAt = time.Time{}
	s.user = nil
	s.lastError = message
}

func (s *Session) persistTokens(ctx context.Context, access, refresh string, expiresAt time.Time) error {
	return s.store.SaveTokens(ctx, store.Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	})
}

func (s *Session) clearStore(ctx context.Context) {
	if err := s.store.ClearTokens(ctx); err != nil {
		s.logger.Warn("clearing token store failed", "error", err)
	}
}
