package authclient

import "context"

// Logout ends the session. The backend invalidation is best effort: the
// local teardown proceeds whether or not the backend can be reached, so
// Logout always leaves the session unauthenticated and always returns nil.
// It is idempotent.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	refresh := s.refresh
	var userID string
	if s.user != nil {
		userID = s.user.ID
	}
	s.mu.Unlock()

	if refresh != "" {
		if err := s.authAPI.Logout(ctx, refresh); err != nil {
			s.logger.Warn("backend logout failed, continuing local teardown", "error", err)
		}
	}

	s.clearStore(ctx)
	s.resolver.Clear(ctx)
	s.setUnauthenticated("")

	s.metricInc(MetricLogout)
	s.emit(EventLogout, userID, true, "")
	s.logger.Info("logged out")
	return nil
}
