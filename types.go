package authclient

import "time"

// Status is the session's authentication state.
type Status uint8

const (
	// StatusInitializing is the only initial state; it holds until
	// Bootstrap resolves the stored tokens.
	StatusInitializing Status = iota
	// StatusAuthenticated means a decodable, unexpired token pair is held
	// and persisted.
	StatusAuthenticated
	// StatusUnauthenticated means no usable session exists.
	StatusUnauthenticated
	// StatusError means the last login handed back a token that could not
	// be decoded.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusInitializing:
		return "initializing"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// User is the identity projected from the access token's claims. It is
// never stored or fetched separately and is recomputed on every token
// change.
type User struct {
	ID       string
	Email    string
	Username string
}

// Credentials is the login payload.
type Credentials struct {
	Email    string
	Password string
}

// RegisterRequest is the account-creation payload.
type RegisterRequest struct {
	Email       string
	Username    string
	Password    string
	CompanyName string
}

// Snapshot is a point-in-time copy of the session state for UI consumption.
//
// Snapshot instances are value copies; mutating one has no effect on the
// session.
type Snapshot struct {
	Status       Status
	User         *User
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	LastError    string
}
