package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// ErrSessionExpired is returned when the session cannot be recovered by a
// refresh exchange: the refresh itself failed, or the backend rejected a
// token that was just rotated.
var ErrSessionExpired = errors.New("session expired")

// TokenSource supplies the transport with token material and receives
// lifecycle signals back from it.
//
// RefreshAccessToken performs one refresh exchange and returns the new
// access token; on failure the source must already have torn its session
// down before returning. InvalidateSession is called for the unrecoverable
// retry path, where a freshly rotated token was rejected.
type TokenSource interface {
	AccessToken() string
	RefreshAccessToken(ctx context.Context) (string, error)
	InvalidateSession(ctx context.Context, cause error)
}

// Hooks are optional observation points, wired to the session's metrics.
type Hooks struct {
	// RefreshTriggered fires when this transport starts a refresh exchange.
	RefreshTriggered func()
	// RefreshDeduped fires when a 401 was resolved by a refresh another
	// request already performed.
	RefreshDeduped func()
	// RetryIssued fires when a request is re-sent with a rotated token.
	RetryIssued func()
}

// Config configures a RoundTripper.
type Config struct {
	// Base is the underlying transport, http.DefaultTransport when nil.
	Base http.RoundTripper
	// Source is required.
	Source TokenSource
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// OnAuthFailure is the redirect-to-login seam: it fires once per
	// unrecoverable authentication failure, after the session has been
	// invalidated.
	OnAuthFailure func(cause error)
	Hooks         Hooks
}

// RoundTripper implements the interceptor pipeline. It never mutates the
// caller's request: every attempt works on a clone carrying its own
// attempt state.
type RoundTripper struct {
	base          http.RoundTripper
	source        TokenSource
	logger        *slog.Logger
	onAuthFailure func(error)
	hooks         Hooks

	group singleflight.Group

	mu  sync.Mutex
	gen uint64 // token generation, bumped once per successful refresh
}

// New creates the interceptor RoundTripper.
func New(cfg Config) (*RoundTripper, error) {
	if cfg.Source == nil {
		return nil, errors.New("token source required")
	}
	base := cfg.Base
	if base == nil {
		base = http.DefaultTransport
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RoundTripper{
		base:          base,
		source:        cfg.Source,
		logger:        logger,
		onAuthFailure: cfg.OnAuthFailure,
		hooks:         cfg.Hooks,
	}, nil
}

// RoundTrip attaches the bearer credential and runs the response-stage
// protocol described in the package doc.
func (t *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// The generation must be captured before the token. If a concurrent
	// refresh lands between the two reads, this attempt carries a stale
	// generation with a fresh token and a 401 dedupes; the reverse pairing
	// would pass the generation check and trigger a second exchange for the
	// same expiry event.
	t.mu.Lock()
	seen := t.gen
	t.mu.Unlock()
	tok := t.source.AccessToken()

	attempt, err := t.authorized(req, tok, false)
	if err != nil {
		return nil, err
	}

	t.logger.Debug("api request",
		"method", req.Method,
		"url", req.URL.String(),
		"authenticated", tok != "")

	resp, err := t.base.RoundTrip(attempt)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		// Success and every non-401 failure pass through, 403 included:
		// an authorization denial must never rotate tokens.
		return resp, nil
	}
	if tok == "" {
		// The request went out unauthenticated; there is nothing to refresh.
		return resp, nil
	}
	if req.Body != nil && req.GetBody == nil {
		// The body cannot be replayed, so the retry would send a truncated
		// request. Hand the 401 to the caller instead.
		return resp, nil
	}

	discard(resp)

	newTok, err := t.refresh(req, seen)
	if err != nil {
		if t.onAuthFailure != nil {
			t.onAuthFailure(err)
		}
		return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}

	retry, err := t.authorized(req, newTok, true)
	if err != nil {
		return nil, err
	}
	if t.hooks.RetryIssued != nil {
		t.hooks.RetryIssued()
	}

	resp, err = t.base.RoundTrip(retry)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// Second 401 with a token that was fresh moments ago. Another
		// refresh cannot fix this; refusing to try again is what breaks
		// the refresh loop.
		t.source.InvalidateSession(req.Context(), ErrSessionExpired)
		if t.onAuthFailure != nil {
			t.onAuthFailure(ErrSessionExpired)
		}
	}
	return resp, nil
}

// refresh resolves a 401 observed at generation seen into a usable access
// token, performing at most one backend exchange per generation.
func (t *RoundTripper) refresh(req *http.Request, seen uint64) (string, error) {
	t.mu.Lock()
	if t.gen != seen {
		// Someone else already rotated the tokens for this expiry event.
		t.mu.Unlock()
		if t.hooks.RefreshDeduped != nil {
			t.hooks.RefreshDeduped()
		}
		return t.source.AccessToken(), nil
	}
	t.mu.Unlock()

	v, err, shared := t.group.Do("refresh", func() (any, error) {
		t.mu.Lock()
		if t.gen != seen {
			tok := t.source.AccessToken()
			t.mu.Unlock()
			return tok, nil
		}
		t.mu.Unlock()

		if t.hooks.RefreshTriggered != nil {
			t.hooks.RefreshTriggered()
		}
		tok, err := t.source.RefreshAccessToken(req.Context())
		if err != nil {
			return nil, err
		}

		t.mu.Lock()
		t.gen++
		t.mu.Unlock()
		return tok, nil
	})
	if err != nil {
		return "", err
	}
	if shared && t.hooks.RefreshDeduped != nil {
		t.hooks.RefreshDeduped()
	}
	return v.(string), nil
}

// authorized clones req with the auth headers set. The first attempt
// consumes the caller's body; a retry rebuilds it from GetBody.
func (t *RoundTripper) authorized(req *http.Request, tok string, rebuild bool) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if rebuild && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("replay request body: %w", err)
		}
		clone.Body = body
	}
	if tok != "" {
		clone.Header.Set("Authorization", "Bearer "+tok)
	}
	if clone.Header.Get("X-Request-ID") == "" {
		clone.Header.Set("X-Request-ID", uuid.NewString())
	}
	return clone, nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
