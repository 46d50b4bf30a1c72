package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func mint(t *testing.T, sub, email, username string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      sub,
		"email":    email,
		"username": username,
		"iat":      time.Now().Unix(),
		"exp":      exp.Unix(),
	})
	signed, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	return signed
}

func TestDecodeValidToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := mint(t, "u-42", "alice@example.com", "alice", exp)

	claims, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if claims.Subject != "u-42" {
		t.Fatalf("expected subject u-42, got %q", claims.Subject)
	}
	if claims.Email != "alice@example.com" {
		t.Fatalf("unexpected email %q", claims.Email)
	}
	if claims.Username != "alice" {
		t.Fatalf("unexpected username %q", claims.Username)
	}
	if !claims.ExpiresAt.Equal(exp) {
		t.Fatalf("expected expiry %v, got %v", exp, claims.ExpiresAt)
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := []string{
		"",
		"not-a-token",
		"a.b",
		"!!!.###.$$$",
	}
	for _, raw := range cases {
		if _, err := Decode(raw); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Decode(%q): expected ErrMalformed, got %v", raw, err)
		}
	}
}

func TestDecodeMissingClaims(t *testing.T) {
	noSub := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	raw, err := noSub.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := Decode(raw); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for missing sub, got %v", err)
	}

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u-1",
	})
	raw, err = noExp.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := Decode(raw); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for missing exp, got %v", err)
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()
	c := &Claims{ExpiresAt: now.Add(time.Minute)}
	if c.Expired(now) {
		t.Fatal("token expiring in one minute reported expired")
	}
	if !c.Expired(now.Add(2 * time.Minute)) {
		t.Fatal("token past expiry reported live")
	}
	if !c.Expired(c.ExpiresAt) {
		t.Fatal("token at exact expiry instant must count as expired")
	}
}
