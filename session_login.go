package authclient

import (
	"context"
	"fmt"

	"github.com/atlaspanel/authclient/rest"
	"github.com/atlaspanel/authclient/token"
)

// Login exchanges credentials for a session. On success the token pair is
// persisted, the status becomes StatusAuthenticated, and the authorities
// are fetched. On a backend rejection the current state is left untouched
// and the backend's message is returned.
func (s *Session) Login(ctx context.Context, creds Credentials) error {
	pair, err := s.authAPI.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		s.metricInc(MetricLoginFailure)
		s.emit(EventLogin, "", false, err.Error())
		return fmt.Errorf("login: %w", err)
	}
	user, err := s.establish(ctx, pair)
	if err != nil {
		s.metricInc(MetricLoginFailure)
		s.emit(EventLogin, "", false, err.Error())
		return err
	}

	s.metricInc(MetricLoginSuccess)
	s.emit(EventLogin, user.ID, true, "")
	s.logger.Info("login succeeded", "user", user.ID)

	if err := s.resolver.Refresh(ctx); err != nil {
		s.logger.Warn("post-login authorities fetch failed", "error", err)
	}
	return nil
}

// Register creates an account and, like the backend, signs the new user
// straight in with the returned token pair.
func (s *Session) Register(ctx context.Context, req RegisterRequest) error {
	pair, err := s.authAPI.Register(ctx, rest.RegisterRequest{
		Email:       req.Email,
		Username:    req.Username,
		Password:    req.Password,
		CompanyName: req.CompanyName,
	})
	if err != nil {
		s.metricInc(MetricRegisterFailure)
		s.emit(EventRegister, "", false, err.Error())
		return fmt.Errorf("register: %w", err)
	}
	user, err := s.establish(ctx, pair)
	if err != nil {
		s.metricInc(MetricRegisterFailure)
		s.emit(EventRegister, "", false, err.Error())
		return err
	}

	s.metricInc(MetricRegisterSuccess)
	s.emit(EventRegister, user.ID, true, "")
	s.logger.Info("registration succeeded", "user", user.ID)

	if err := s.resolver.Refresh(ctx); err != nil {
		s.logger.Warn("post-register authorities fetch failed", "error", err)
	}
	return nil
}

// establish decodes and installs a token pair handed back by the backend,
// returning the user it signed in.
//
// An undecodable token is fatal: the session moves to StatusError and the
// stored pair is cleared, because nothing downstream can use a credential
// whose identity cannot be read. Persisting happens before the in-memory
// transition so another instance sharing the store never observes a session
// this one has not durably committed to.
func (s *Session) establish(ctx context.Context, pair *rest.TokenPair) (*User, error) {
	claims, err := token.Decode(pair.AccessToken)
	if err != nil {
		s.clearStore(ctx)
		s.mu.Lock()
		s.status = StatusError
		s.access = ""
		s.refresh = ""
		s.user = nil
		s.lastError = msgTokenUndecodable
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrTokenDecode, err)
	}

	expiresAt := pair.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = claims.ExpiresAt
	}

	if err := s.persistTokens(ctx, pair.AccessToken, pair.RefreshToken, expiresAt); err != nil {
		// A dead store degrades the session to in-memory-only; the tokens
		// themselves are still good.
		s.logger.Warn("persisting session failed", "error", err)
	}
	return s.adopt(pair.AccessToken, pair.RefreshToken, expiresAt, claims), nil
}
