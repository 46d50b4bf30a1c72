package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// APIError carries a backend rejection: the HTTP status and the
// user-displayable message extracted from the response body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode == code
	}
	return false
}

// TokenPair is the token response shared by login, register, and refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
}

// RegisterRequest is the payload for POST /auth/register.
type RegisterRequest struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	CompanyName string `json:"companyName"`
}

// Client issues requests against one backend base URL using the supplied
// HTTP client.
type Client struct {
	base string
	http *http.Client
}

// New creates a client for baseURL. A nil hc falls back to
// http.DefaultClient.
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: hc,
	}
}

// Login exchanges credentials for a token pair via POST /auth/login.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	body := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{email, password}
	return c.tokenRequest(ctx, "/auth/login", body)
}

// Register creates an account and returns its first token pair via
// POST /auth/register.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*TokenPair, error) {
	return c.tokenRequest(ctx, "/auth/register", req)
}

// Refresh exchanges a refresh token for a new pair via POST /auth/refresh.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	body := struct {
		RefreshToken string `json:"refreshToken"`
	}{refreshToken}
	return c.tokenRequest(ctx, "/auth/refresh", body)
}

// Logout asks the backend to invalidate the refresh token via
// POST /auth/logout. Callers treat a failure here as non-fatal.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	body := struct {
		RefreshToken string `json:"refreshToken"`
	}{refreshToken}
	resp, err := c.post(ctx, "/auth/logout", body)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	return nil
}

// UserAuthorities fetches the current user's roles and permissions via
// GET /auth/user-authorities. The raw body is returned undecoded; the
// authz package owns the shape-tolerant extraction.
func (c *Client) UserAuthorities(ctx context.Context) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/auth/user-authorities", nil)
	if err != nil {
		return nil, fmt.Errorf("build authorities request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("authorities request: %w", err)
	}
	defer drain(resp)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeAPIError(resp)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read authorities response: %w", err)
	}
	return json.RawMessage(raw), nil
}

func (c *Client) tokenRequest(ctx context.Context, path string, body any) (*TokenPair, error) {
	resp, err := c.post(ctx, path, body)
	if err != nil {
		return nil, err
	}
	defer drain(resp)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeAPIError(resp)
	}

	var wire struct {
		AccessToken  string          `json:"accessToken"`
		RefreshToken string          `json:"refreshToken"`
		TokenType    string          `json:"tokenType"`
		ExpiresAt    json.RawMessage `json:"expiresAt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if wire.AccessToken == "" || wire.RefreshToken == "" {
		return nil, fmt.Errorf("token response missing token pair")
	}

	pair := &TokenPair{
		AccessToken:  wire.AccessToken,
		RefreshToken: wire.RefreshToken,
		TokenType:    wire.TokenType,
	}
	if len(wire.ExpiresAt) > 0 {
		expires, err := parseExpiresAt(wire.ExpiresAt)
		if err != nil {
			return nil, err
		}
		pair.ExpiresAt = expires
	}
	return pair, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", path, err)
	}
	return resp, nil
}

// parseExpiresAt accepts the two formats backends have shipped for expiry:
// an RFC 3339 string or a Unix-seconds number.
func parseExpiresAt(raw json.RawMessage) (time.Time, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(time.RFC3339, asString)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse expiresAt %q: %w", asString, err)
		}
		return t, nil
	}
	var asNumber json.Number
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		secs, err := strconv.ParseInt(asNumber.String(), 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse expiresAt %s: %w", asNumber, err)
		}
		return time.Unix(secs, 0), nil
	}
	return time.Time{}, fmt.Errorf("unsupported expiresAt format: %s", raw)
}

func decodeAPIError(resp *http.Response) error {
	msg := ""
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && len(data) > 0 {
		if json.Unmarshal(data, &body) == nil {
			if body.Message != "" {
				msg = body.Message
			} else if body.Error != "" {
				msg = body.Error
			}
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
