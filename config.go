package authclient

import (
	"errors"
	"net/url"
	"time"
)

// Config defines the tunables of a client session.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable.
type Config struct {
	// BaseURL is the backend root, e.g. "https://api.example.com".
	BaseURL string

	HTTP        HTTPConfig
	Token       TokenConfig
	Authorities AuthoritiesConfig
	Events      EventConfig
	Metrics     MetricsConfig
}

/*
====================================
HTTP CONFIG
====================================
*/

// HTTPConfig tunes the underlying HTTP clients.
type HTTPConfig struct {
	// Timeout bounds every request, default 15s.
	Timeout time.Duration
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig tunes token-lifecycle decisions.
type TokenConfig struct {
	// ExpirySkew treats a token expiring within the window as already
	// expired at bootstrap, absorbing clock drift against the backend.
	// Default 0 (trust the timestamps as-is).
	ExpirySkew time.Duration
}

/*
====================================
AUTHORITIES CONFIG
====================================
*/

// AuthoritiesConfig tunes the authorization resolver.
type AuthoritiesConfig struct {
	// RolePrefix is the stored role convention, default "ROLE_".
	RolePrefix string
	// RefreshInterval is the background re-fetch period, default 30m.
	RefreshInterval time.Duration
	// JitterFraction spreads poll ticks, default 0.1.
	JitterFraction float64
	// FetchTimeout bounds one background fetch, default 30s.
	FetchTimeout time.Duration
}

/*
====================================
EVENTS / METRICS CONFIG
====================================
*/

// EventConfig enables the async session-event dispatcher.
type EventConfig struct {
	Enabled    bool
	BufferSize int
}

// MetricsConfig enables the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Timeout: 15 * time.Second,
		},
		Authorities: AuthoritiesConfig{
			RolePrefix:      "ROLE_",
			RefreshInterval: 30 * time.Minute,
			JitterFraction:  0.1,
			FetchTimeout:    30 * time.Second,
		},
		Events: EventConfig{
			BufferSize: 64,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	// Config holds no reference types; a value copy is a deep copy.
	return cfg
}

// Validate checks the configuration for internally consistent values.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("BaseURL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("BaseURL must be an absolute URL")
	}
	if c.HTTP.Timeout < 0 {
		return errors.New("HTTP.Timeout must not be negative")
	}
	if c.Token.ExpirySkew < 0 {
		return errors.New("Token.ExpirySkew must not be negative")
	}
	if c.Authorities.RefreshInterval < 0 {
		return errors.New("Authorities.RefreshInterval must not be negative")
	}
	if c.Authorities.JitterFraction < 0 || c.Authorities.JitterFraction >= 1 {
		return errors.New("Authorities.JitterFraction must be in [0, 1)")
	}
	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return errors.New("Events.BufferSize must be positive when events are enabled")
	}
	return nil
}
