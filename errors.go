package authclient

import (
	"errors"

	"github.com/atlaspanel/authclient/transport"
)

var (
	// ErrNotAuthenticated is returned by operations that need a live session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNoRefreshToken is returned when a refresh is attempted without a
	// stored refresh token.
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrTokenDecode is returned when the access token in a backend response
	// cannot be decoded. It is fatal to the session.
	ErrTokenDecode = errors.New("access token decode failed")
	// ErrSessionExpired is surfaced when the session cannot be recovered by
	// a refresh exchange.
	ErrSessionExpired = transport.ErrSessionExpired
)

// User-facing messages carried in the session snapshot's LastError.
const (
	msgSessionExpired   = "Your session has expired. Please sign in again."
	msgInvalidSession   = "Stored session is invalid. Please sign in again."
	msgTokenUndecodable = "Sign-in response could not be processed."
)
