package catalyst

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// expirySkew is subtracted from the token lifetime so a token is never
// used right at its expiry boundary.
const expirySkew = 60 * time.Second

// tokenCache holds the current access token and its expiry. It is owned
// by the API client and refreshed on demand, so callers never trigger a
// token exchange per request within the token lifetime.
type tokenCache struct {
	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// valid reports whether the cached token can still be used.
func (c *tokenCache) valid(now time.Time) bool {
	return c.accessToken != "" && now.Before(c.expiresAt)
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// token returns a valid access token, performing the refresh-token
// exchange when the cached one is missing or near expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.tokens.mu.Lock()
	defer c.tokens.mu.Unlock()

	now := c.now()
	if c.tokens.valid(now) {
		return c.tokens.accessToken, nil
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {c.cfg.RefreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", basicAuthHeader(c.cfg.ClientID, c.cfg.ClientSecret))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("token exchange returned HTTP %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token exchange returned no access_token")
	}

	lifetime := time.Duration(tr.ExpiresIn) * time.Second
	if lifetime <= expirySkew {
		// Provider did not report a usable lifetime; keep the token for
		// a single minute window rather than caching indefinitely.
		lifetime = 2 * expirySkew
	}

	c.tokens.accessToken = tr.AccessToken
	c.tokens.expiresAt = now.Add(lifetime - expirySkew)

	if tr.RefreshToken != "" && tr.RefreshToken != c.cfg.RefreshToken {
		// Rotated refresh tokens must be persisted out of band.
		c.logger.Warn(ctx, "provider rotated the refresh token; persist the new one", nil)
	}

	return c.tokens.accessToken, nil
}

func basicAuthHeader(clientID, clientSecret string) string {
	creds := base64.StdEncoding.EncodeToString([]byte(clientID + ":" + clientSecret))
	return "Basic " + creds
}
