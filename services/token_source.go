package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// tokenLeeway refreshes tokens slightly before their recorded expiry so a
// request never goes out with a token about to lapse mid-flight.
const tokenLeeway = 30 * time.Second

// fallbackTokenTTL is used when the issued token carries no exp claim.
const fallbackTokenTTL = 15 * time.Minute

// TokenSource holds the processor API credentials and the current bearer
// token as an explicit object passed to the client, rather than ambient
// global state. It re-authenticates when the token expires and when the
// client reports a rejected token.
type TokenSource struct {
	baseURL    string
	apiKey     string
	secretKey  string
	httpClient *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewTokenSource(baseURL, apiKey, secretKey string) *TokenSource {
	return &TokenSource{
		baseURL:    baseURL,
		apiKey:     apiKey,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Token returns a valid bearer token, authenticating against the processor
// if the cached one is missing or about to expire.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && time.Now().Before(ts.expiresAt.Add(-tokenLeeway)) {
		return ts.token, nil
	}
	return ts.authenticateLocked(ctx)
}

// Invalidate drops the cached token if it is still the one the caller used,
// forcing re-authentication on the next Token call. Called by the client
// after a 401 from the processor.
func (ts *TokenSource) Invalidate(token string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.token == token {
		ts.token = ""
	}
}

func (ts *TokenSource) authenticateLocked(ctx context.Context) (string, error) {
	creds, err := json.Marshal(map[string]string{
		"api_key":    ts.apiKey,
		"secret_key": ts.secretKey,
	})
	if err != nil {
		return "", fmt.Errorf("marshal credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.baseURL+"/api/v1/auth/token", bytes.NewReader(creds))
	if err != nil {
		return "", fmt.Errorf("create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("processor auth request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read auth response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("processor auth failed: status %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("unmarshal auth response: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("processor auth response missing access_token")
	}

	ts.token = out.AccessToken
	ts.expiresAt = tokenExpiry(out.AccessToken)
	return ts.token, nil
}

// tokenExpiry reads the exp claim without verifying the token; verification
// is the processor's job, we only need the refresh deadline.
func tokenExpiry(token string) time.Time {
	claims := jwt.RegisteredClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, &claims)
	if err != nil || claims.ExpiresAt == nil {
		return time.Now().Add(fallbackTokenTTL)
	}
	return claims.ExpiresAt.Time
}
