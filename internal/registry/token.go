package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// AuthError indicates the OAuth2 client-credentials exchange failed.
// It is fatal for the whole batch: no record can succeed without a valid
// credential, so callers abort the run instead of retrying.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("registry: token exchange failed: status %d: %s", e.StatusCode, e.Body)
}

// TokenManager acquires and caches a bearer credential for the lookup API.
// It is safe for concurrent use by all extraction workers; the
// check-then-refresh sequence is double-checked under a single mutex so at
// most one exchange request is in flight at a time.
type TokenManager struct {
	opts   Options
	client *http.Client

	mu        sync.RWMutex
	token     string
	expiresAt time.Time

	now func() time.Time
}

// NewTokenManager creates a TokenManager for the given API options.
func NewTokenManager(opts Options) *TokenManager {
	return &TokenManager{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		now:    time.Now,
	}
}

// Acquire returns a bearer token valid for at least the configured margin.
// Cached credentials are returned without network I/O; a stale cache
// triggers exactly one exchange request shared across contending callers.
func (m *TokenManager) Acquire(ctx context.Context) (string, error) {
	m.mu.RLock()
	if m.token != "" && m.now().Before(m.expiresAt) {
		token := m.token
		m.mu.RUnlock()
		return token, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Re-check: another caller may have refreshed while we waited.
	if m.token != "" && m.now().Before(m.expiresAt) {
		return m.token, nil
	}

	return m.refresh(ctx)
}

// tokenResponse is the relevant subset of the OAuth2 token endpoint reply.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// refresh performs the client-credentials exchange. Caller holds m.mu.
func (m *TokenManager) refresh(ctx context.Context) (string, error) {
	zap.L().Info("requesting access token", zap.String("component", "registry.token"))

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {m.opts.ClientID},
		"client_secret": {m.opts.ClientSecret},
		"scope":         {m.opts.Scope},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.opts.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", eris.Wrap(err, "registry: create token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "registry: token request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "registry: read token response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &AuthError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", eris.Wrap(err, "registry: decode token response")
	}
	if tr.AccessToken == "" {
		return "", eris.New("registry: token response missing access_token")
	}

	lifetime := time.Duration(tr.ExpiresIn) * time.Second
	if lifetime == 0 {
		lifetime = time.Hour
	}

	m.token = tr.AccessToken
	m.expiresAt = m.now().Add(lifetime - m.opts.TokenMargin)

	zap.L().Info("access token obtained",
		zap.String("component", "registry.token"),
		zap.Time("expires_at", m.expiresAt),
	)
	return m.token, nil
}
