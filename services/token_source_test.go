package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
)

func signedTestToken(t *testing.T, ttl time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "merchant",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
	assert.NoError(t, err)
	return token
}

// newAuthServer answers /api/v1/auth/token with a fresh token per call and
// counts how many times credentials were exchanged.
func newAuthServer(t *testing.T, ttl time.Duration, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/auth/token", r.URL.Path)

		var creds map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds["api_key"] != "pk_test" || creds["secret_key"] != "sk_test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		atomic.AddInt32(calls, 1)
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": signedTestToken(t, ttl),
			"token_type":   "bearer",
		})
	}))
}

func TestToken_CachedUntilExpiry(t *testing.T) {
	var calls int32
	srv := newAuthServer(t, time.Hour, &calls)
	defer srv.Close()

	ts := NewTokenSource(srv.URL, "pk_test", "sk_test")

	first, err := ts.Token(context.Background())
	assert.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := ts.Token(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "a live token is reused, not re-issued")
}

func TestToken_RefreshesWithinLeewayWindow(t *testing.T) {
	var calls int32
	// Expires inside the refresh leeway, so every Token call re-authenticates.
	srv := newAuthServer(t, 5*time.Second, &calls)
	defer srv.Close()

	ts := NewTokenSource(srv.URL, "pk_test", "sk_test")

	_, err := ts.Token(context.Background())
	assert.NoError(t, err)
	_, err = ts.Token(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestToken_InvalidateForcesReauth(t *testing.T) {
	var calls int32
	srv := newAuthServer(t, time.Hour, &calls)
	defer srv.Close()

	ts := NewTokenSource(srv.URL, "pk_test", "sk_test")

	first, err := ts.Token(context.Background())
	assert.NoError(t, err)

	ts.Invalidate(first)
	_, err = ts.Token(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestToken_InvalidateIgnoresStaleToken(t *testing.T) {
	var calls int32
	srv := newAuthServer(t, time.Hour, &calls)
	defer srv.Close()

	ts := NewTokenSource(srv.URL, "pk_test", "sk_test")

	first, err := ts.Token(context.Background())
	assert.NoError(t, err)

	// A concurrent caller invalidating an old token must not drop the
	// current one.
	ts.Invalidate("some-older-token")

	second, err := ts.Token(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestToken_BadCredentials(t *testing.T) {
	var calls int32
	srv := newAuthServer(t, time.Hour, &calls)
	defer srv.Close()

	ts := NewTokenSource(srv.URL, "pk_test", "sk_wrong")

	_, err := ts.Token(context.Background())
	assert.Error(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestTokenExpiry_FallbackWithoutExpClaim(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "merchant",
	}).SignedString([]byte("test-signing-key"))
	assert.NoError(t, err)

	expiry := tokenExpiry(token)
	assert.WithinDuration(t, time.Now().Add(fallbackTokenTTL), expiry, time.Minute)

	expiry = tokenExpiry("not-a-jwt")
	assert.WithinDuration(t, time.Now().Add(fallbackTokenTTL), expiry, time.Minute)
}
