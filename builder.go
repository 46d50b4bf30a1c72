package authclient

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/atlaspanel/authclient/authz"
	"github.com/atlaspanel/authclient/rest"
	"github.com/atlaspanel/authclient/store"
	"github.com/atlaspanel/authclient/transport"
)

// Builder assembles a Session. The zero value is not usable; start from
// [NewBuilder] and finish with [Builder.Build]. A builder is single-use.
type Builder struct {
	config        Config
	store         store.Store
	baseTransport http.RoundTripper
	logger        *slog.Logger
	sink          Sink
	built         bool
}

// NewBuilder creates a Builder carrying the default configuration.
func NewBuilder() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the whole configuration. Zero-valued duration and
// size fields are filled back in with their defaults.
func (b *Builder) WithConfig(cfg Config) *Builder {
	defaults := defaultConfig()
	if cfg.HTTP.Timeout == 0 {
		cfg.HTTP.Timeout = defaults.HTTP.Timeout
	}
	if cfg.Authorities.RolePrefix == "" {
		cfg.Authorities.RolePrefix = defaults.Authorities.RolePrefix
	}
	if cfg.Authorities.RefreshInterval == 0 {
		cfg.Authorities.RefreshInterval = defaults.Authorities.RefreshInterval
	}
	if cfg.Authorities.JitterFraction == 0 {
		cfg.Authorities.JitterFraction = defaults.Authorities.JitterFraction
	}
	if cfg.Authorities.FetchTimeout == 0 {
		cfg.Authorities.FetchTimeout = defaults.Authorities.FetchTimeout
	}
	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = defaults.Events.BufferSize
	}
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL sets the backend root URL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.BaseURL = baseURL
	return b
}

// WithStore sets the persistence backend. Defaults to an in-memory store,
// which does not survive the process.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithTransport sets the transport underneath the auth interceptor, for
// proxies and tests. Defaults to http.DefaultTransport.
func (b *Builder) WithTransport(rt http.RoundTripper) *Builder {
	b.baseTransport = rt
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithEventSink enables session events and routes them to sink.
func (b *Builder) WithEventSink(sink Sink) *Builder {
	b.sink = sink
	b.config.Events.Enabled = true
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and assembles the Session. The session
// starts in StatusInitializing; call [Session.Bootstrap] next.
func (b *Builder) Build() (*Session, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	b.built = true

	if err := b.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	st := b.store
	if st == nil {
		st = store.NewMemory()
	}

	s := &Session{
		config:  b.config,
		store:   st,
		logger:  logger,
		status:  StatusInitializing,
		metrics: NewMetrics(b.config.Metrics),
		events:  newEventDispatcher(b.config.Events, b.sink),
	}

	// The auth endpoints themselves go out bare: a 401 from /auth/refresh
	// must not recurse into another refresh.
	bareClient := &http.Client{
		Timeout:   b.config.HTTP.Timeout,
		Transport: b.baseTransport,
	}
	s.authAPI = rest.New(b.config.BaseURL, bareClient)

	rt, err := transport.New(transport.Config{
		Base:   b.baseTransport,
		Source: &tokenSource{session: s},
		Logger: logger,
		OnAuthFailure: func(cause error) {
			logger.Warn("session unrecoverable, sign-in required", "error", cause)
		},
		Hooks: transport.Hooks{
			RefreshDeduped: func() { s.metricInc(MetricRefreshDeduped) },
			RetryIssued:    func() { s.metricInc(MetricRetryAfterRefresh) },
		},
	})
	if err != nil {
		return nil, err
	}
	s.httpc = &http.Client{
		Timeout:   b.config.HTTP.Timeout,
		Transport: rt,
	}

	api := rest.New(b.config.BaseURL, s.httpc)
	s.resolver = authz.New(authz.Config{
		RolePrefix:      b.config.Authorities.RolePrefix,
		RefreshInterval: b.config.Authorities.RefreshInterval,
		JitterFraction:  b.config.Authorities.JitterFraction,
		FetchTimeout:    b.config.Authorities.FetchTimeout,
	}, api, st, func() bool {
		return s.Status() == StatusAuthenticated
	}, logger)
	s.resolver.Start()

	return s, nil
}
