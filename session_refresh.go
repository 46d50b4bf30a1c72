package authclient

import (
	"context"
	"fmt"
)

// Refresh performs one refresh exchange with the stored refresh token and
// installs the rotated pair. A failed exchange is terminal: the session is
// torn down before the error is returned, so callers never retry a refresh.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	refresh := s.refresh
	s.mu.Unlock()
	return s.refreshWith(ctx, refresh)
}

func (s *Session) refreshWith(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		s.forceExpire(ctx, msgSessionExpired)
		s.metricInc(MetricRefreshFailure)
		s.emit(EventRefresh, "", false, ErrNoRefreshToken.Error())
		return ErrNoRefreshToken
	}

	pair, err := s.authAPI.Refresh(ctx, refreshToken)
	if err != nil {
		s.forceExpire(ctx, msgSessionExpired)
		s.metricInc(MetricRefreshFailure)
		s.emit(EventRefresh, "", false, err.Error())
		return fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}

	user, err := s.establish(ctx, pair)
	if err != nil {
		s.metricInc(MetricRefreshFailure)
		s.emit(EventRefresh, "", false, err.Error())
		return err
	}

	s.metricInc(MetricRefreshSuccess)
	s.emit(EventRefresh, user.ID, true, "")
	s.logger.Debug("token pair rotated", "user", user.ID)
	return nil
}

// forceExpire tears the session down after an unrecoverable refresh
// failure. Storage is cleared first so a crash mid-teardown cannot leave a
// dead pair behind for the next bootstrap.
func (s *Session) forceExpire(ctx context.Context, message string) {
	s.clearStore(ctx)
	s.resolver.Clear(ctx)
	s.setUnauthenticated(message)
}

// tokenSource adapts the session to the transport's refresh protocol.
type tokenSource struct {
	session *Session
}

func (ts *tokenSource) AccessToken() string {
	return ts.session.AccessToken()
}

func (ts *tokenSource) RefreshAccessToken(ctx context.Context) (string, error) {
	if err := ts.session.Refresh(ctx); err != nil {
		return "", err
	}
	return ts.session.AccessToken(), nil
}

func (ts *tokenSource) InvalidateSession(ctx context.Context, cause error) {
	ts.session.logger.Warn("rotated token rejected, expiring session", "error", cause)
	ts.session.forceExpire(ctx, msgSessionExpired)
}
