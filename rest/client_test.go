package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLoginDecodesTokenPair(t *testing.T) {
	expires := time.Now().Add(15 * time.Minute).UTC().Truncate(time.Second)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/login" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		if body.Email != "alice@example.com" || body.Password != "secret" {
			t.Errorf("unexpected credentials: %+v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"accessToken":  "acc",
			"refreshToken": "ref",
			"tokenType":    "Bearer",
			"expiresAt":    expires.Format(time.RFC3339),
		})
	}))
	defer srv.Close()

	pair, err := New(srv.URL, srv.Client()).Login(context.Background(), "alice@example.com", "secret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if pair.AccessToken != "acc" || pair.RefreshToken != "ref" || pair.TokenType != "Bearer" {
		t.Fatalf("unexpected pair: %+v", pair)
	}
	if !pair.ExpiresAt.Equal(expires) {
		t.Fatalf("expected expiry %v, got %v", expires, pair.ExpiresAt)
	}
}

func TestExpiresAtEpochSeconds(t *testing.T) {
	epoch := time.Now().Add(time.Hour).Unix()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"accessToken":"a","refreshToken":"r","expiresAt":%d}`, epoch)
	}))
	defer srv.Close()

	pair, err := New(srv.URL, srv.Client()).Refresh(context.Background(), "old")
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if pair.ExpiresAt.Unix() != epoch {
		t.Fatalf("expected epoch %d, got %d", epoch, pair.ExpiresAt.Unix())
	}
}

func TestLoginSurfacesBackendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message":"invalid credentials"}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL, srv.Client()).Login(context.Background(), "x", "y")
	var ae *APIError
	if !errors.As(err, &ae) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if ae.StatusCode != http.StatusBadRequest || ae.Message != "invalid credentials" {
		t.Fatalf("unexpected APIError: %+v", ae)
	}
	if !IsStatus(err, http.StatusBadRequest) {
		t.Fatal("IsStatus should match 400")
	}
	if IsStatus(err, http.StatusForbidden) {
		t.Fatal("IsStatus must not match 403")
	}
}

func TestRefreshSendsRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/refresh" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.RefreshToken != "the-refresh-token" {
			t.Errorf("unexpected refresh token %q", body.RefreshToken)
		}
		fmt.Fprint(w, `{"accessToken":"a2","refreshToken":"r2"}`)
	}))
	defer srv.Close()

	pair, err := New(srv.URL, srv.Client()).Refresh(context.Background(), "the-refresh-token")
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if pair.AccessToken != "a2" || pair.RefreshToken != "r2" {
		t.Fatalf("unexpected pair: %+v", pair)
	}
}

func TestLogout(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/logout" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotBody = body.RefreshToken
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := New(srv.URL, srv.Client()).Logout(context.Background(), "ref"); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if gotBody != "ref" {
		t.Fatalf("expected refresh token in body, got %q", gotBody)
	}
}

func TestUserAuthoritiesReturnsRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/auth/user-authorities" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		fmt.Fprint(w, `{"roles":["ROLE_ADMIN"],"permissions":["MANAGE_ROLES"]}`)
	}))
	defer srv.Close()

	raw, err := New(srv.URL, srv.Client()).UserAuthorities(context.Background())
	if err != nil {
		t.Fatalf("UserAuthorities failed: %v", err)
	}
	var shape struct {
		Roles []string `json:"roles"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		t.Fatalf("raw body not JSON: %v", err)
	}
	if len(shape.Roles) != 1 || shape.Roles[0] != "ROLE_ADMIN" {
		t.Fatalf("unexpected roles: %v", shape.Roles)
	}
}

func TestMissingTokenPairRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"tokenType":"Bearer"}`)
	}))
	defer srv.Close()

	if _, err := New(srv.URL, srv.Client()).Login(context.Background(), "a", "b"); err == nil {
		t.Fatal("expected error for response without tokens")
	}
}
