package authclient

import (
	"context"
	"time"

	"github.com/atlaspanel/authclient/token"
)

// Bootstrap resolves the persisted state into the session's first settled
// status. It is the only way out of StatusInitializing and runs exactly one
// of three paths: no stored tokens means unauthenticated, a stored unexpired
// pair is adopted directly, and a stored expired pair triggers one
// synchronous refresh exchange before settling.
//
// Bootstrap never returns an error for an absent or broken session; those
// resolve to StatusUnauthenticated with the reason in the snapshot.
func (s *Session) Bootstrap(ctx context.Context) {
	stored, ok, err := s.store.LoadTokens(ctx)
	if err != nil {
		s.logger.Warn("loading stored session failed", "error", err)
		s.setUnauthenticated("")
		s.metricInc(MetricBootstrapUnauthenticated)
		s.emit(EventBootstrap, "", false, err.Error())
		return
	}
	if !ok {
		s.setUnauthenticated("")
		s.metricInc(MetricBootstrapUnauthenticated)
		s.emit(EventBootstrap, "", false, "")
		return
	}

	claims, err := token.Decode(stored.AccessToken)
	if err != nil {
		// A token we cannot read is a token we cannot trust. Clearing it
		// here keeps the next start from hitting the same wall.
		s.logger.Warn("stored access token undecodable, clearing session", "error", err)
		s.clearStore(ctx)
		s.setUnauthenticated(msgInvalidSession)
		s.metricInc(MetricBootstrapUnauthenticated)
		s.emit(EventBootstrap, "", false, err.Error())
		return
	}

	expiresAt := stored.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = claims.ExpiresAt
	}
	now := time.Now().Add(s.config.Token.ExpirySkew)
	if !expiresAt.After(now) {
		s.logger.Info("stored access token expired, attempting refresh")
		if err := s.refreshWith(ctx, stored.RefreshToken); err != nil {
			// refreshWith already tore the session down.
			s.metricInc(MetricBootstrapUnauthenticated)
			s.emit(EventBootstrap, claims.Subject, false, err.Error())
			return
		}
		s.metricInc(MetricBootstrapAuthenticated)
		s.emit(EventBootstrap, claims.Subject, true, "")
		if err := s.resolver.Refresh(ctx); err != nil {
			s.logger.Warn("initial authorities fetch failed", "error", err)
		}
		return
	}

	s.adopt(stored.AccessToken, stored.RefreshToken, expiresAt, claims)
	s.metricInc(MetricBootstrapAuthenticated)
	s.emit(EventBootstrap, claims.Subject, true, "")
	s.logger.Info("session restored", "user", claims.Subject)

	if err := s.resolver.Refresh(ctx); err != nil {
		s.logger.Warn("initial authorities fetch failed", "error", err)
	}
}

// adopt installs a decoded token pair as the authenticated state. The
// returned copy of the user is the caller's view of this transition;
// re-reading the session instead would race a concurrent logout.
func (s *Session) adopt(access, refresh string, expiresAt time.Time, claims *token.Claims) *User {
	user := User{
		ID:       claims.Subject,
		Email:    claims.Email,
		Username: claims.Username,
	}
	s.mu.Lock()
	s.status = StatusAuthenticated
	s.access = access
	s.refresh = refresh
	s.expiresAt = expiresAt
	s.user = &user
	s.lastError = ""
	s.mu.Unlock()
	copied := user
	return &copied
}
