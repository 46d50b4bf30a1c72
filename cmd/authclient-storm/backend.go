package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// stormBackend is the in-process token issuer. Access tokens stay valid
// until expireAccess drops them, which is what drives the refresh storms.
type stormBackend struct {
	key []byte

	mu            sync.Mutex
	refreshTokens map[string]string
	validAccess   map[string]bool
	seq           int

	refreshCalls atomic.Int64
}

func newStormBackend() *stormBackend {
	return &stormBackend{
		key:           []byte("authclient-storm-key"),
		refreshTokens: map[string]string{},
		validAccess:   map[string]bool{},
	}
}

func (b *stormBackend) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", b.handleLogin)
	mux.HandleFunc("POST /auth/refresh", b.handleRefresh)
	mux.HandleFunc("POST /auth/logout", b.handleLogout)
	mux.HandleFunc("GET /auth/user-authorities", b.handleAuthorities)
	mux.HandleFunc("GET /api/data", b.handleData)
	return mux
}

func (b *stormBackend) expireAccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k := range b.validAccess {
		delete(b.validAccess, k)
	}
}

func (b *stormBackend) issuePair(sub string) map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	expiresAt := time.Now().Add(time.Hour)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      sub,
		"email":    sub + "@example.com",
		"username": sub,
		"iat":      time.Now().Unix(),
		"exp":      expiresAt.Unix(),
	})
	access, err := tok.SignedString(b.key)
	if err != nil {
		panic(err)
	}
	refresh := fmt.Sprintf("refresh-%d", b.seq)
	b.refreshTokens[refresh] = sub
	b.validAccess[access] = true
	return map[string]any{
		"accessToken":  access,
		"refreshToken": refresh,
		"tokenType":    "Bearer",
		"expiresAt":    expiresAt.UTC().Format(time.RFC3339),
	}
}

func (b *stormBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Password != "correct-horse" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, b.issuePair(strings.TrimSuffix(body.Email, "@example.com")))
}

func (b *stormBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.refreshCalls.Add(1)
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	sub, ok := b.refreshTokens[body.RefreshToken]
	if ok {
		delete(b.refreshTokens, body.RefreshToken)
	}
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Refresh token invalid"})
		return
	}
	writeJSON(w, http.StatusOK, b.issuePair(sub))
}

func (b *stormBackend) handleLogout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.mu.Lock()
	delete(b.refreshTokens, body.RefreshToken)
	b.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (b *stormBackend) handleAuthorities(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"roles":       []string{"ROLE_ADMIN"},
		"permissions": []string{"MANAGE_ROLES"},
	})
}

func (b *stormBackend) handleData(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"data": "ok"})
}

func (b *stormBackend) authorized(r *http.Request) bool {
	tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.validAccess[tok]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
