package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

const (
	appJWTValidity    = 9 * time.Minute
	appJWTClockSkew   = 60 * time.Second
	appJWTRefreshSlop = 30 * time.Second
	instTokenSlop     = 60 * time.Second
)

// App holds GitHub App credentials and the shared app-JWT cache. One App is
// created at process start; per-org Clients are derived from it and share the
// JWT so installations don't each re-sign assertions.
type App struct {
	settings Settings
	httpc    *http.Client

	mu        sync.Mutex
	jwt       string
	jwtExpiry time.Time
}

// NewApp builds the process-wide App from validated settings.
func NewApp(settings Settings) *App {
	return &App{
		settings: settings,
		httpc:    &http.Client{Timeout: settings.RequestTimeout},
	}
}

// Settings exposes the validated settings (install-flow URL construction).
func (a *App) Settings() Settings {
	return a.settings
}

// ForInstallation derives a Client bound to one installation. The client
// carries its own installation-token cache; brokers are per
// organization-installation pair.
func (a *App) ForInstallation(installationID int64, accountLogin string) *Client {
	return &Client{
		app:            a,
		installationID: installationID,
		account:        accountLogin,
	}
}

// appJWT returns the cached RS256 app assertion, re-signing when it is within
// 30s of expiry. Issue time is backdated 60s to tolerate clock skew.
func (a *App) appJWT() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	if a.jwt != "" && now.Before(a.jwtExpiry.Add(-appJWTRefreshSlop)) {
		return a.jwt, nil
	}

	expiry := now.Add(appJWTValidity)
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-appJWTClockSkew)),
		ExpiresAt: jwt.NewNumericDate(expiry),
		Issuer:    a.settings.AppID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(a.settings.PrivateKey)
	if err != nil {
		return "", &AuthError{Err: err}
	}
	a.jwt = signed
	a.jwtExpiry = expiry
	return signed, nil
}

// FetchInstallation loads installation metadata using the app credential.
func (a *App) FetchInstallation(ctx context.Context, installationID int64) (Installation, error) {
	var out Installation
	err := a.doApp(ctx, http.MethodGet, fmt.Sprintf("/app/installations/%d", installationID), nil, &out)
	return out, err
}

// doApp performs a request authenticated with the app JWT (Bearer scheme).
func (a *App) doApp(ctx context.Context, method, path string, body, out interface{}) error {
	assertion, err := a.appJWT()
	if err != nil {
		return err
	}
	return a.roundTrip(ctx, method, path, "Bearer "+assertion, body, out, nil)
}

// roundTrip is the single HTTP path for both app- and installation-token
// requests. expected nil means any 2xx.
func (a *App) roundTrip(ctx context.Context, method, path, authorization string, body, out interface{}, expected []int) error {
	var payload io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.settings.APIBaseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "gauntlet-backend/seed-manager")
	req.Header.Set("Authorization", authorization)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if expected != nil {
		ok = false
		for _, code := range expected {
			if resp.StatusCode == code {
				ok = true
				break
			}
		}
	}
	if !ok {
		return &APIError{
			Method:     method,
			StatusCode: resp.StatusCode,
			Path:       path,
			Body:       string(raw),
			RetryAfter: parseRetryAfter(resp.Header),
		}
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("github: decoding %s %s: %w", method, path, err)
		}
	}
	return nil
}

// Client is the installation-scoped credential broker plus the typed API
// surface built on it. Token cache is instance-scoped; the singleflight group
// collapses concurrent refreshes so only one exchange is in flight.
type Client struct {
	app            *App
	installationID int64
	account        string

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	group       singleflight.Group
}

// InstallationID returns the bound installation id.
func (c *Client) InstallationID() int64 {
	return c.installationID
}

// Account returns the login of the org the app is installed on.
func (c *Client) Account() string {
	return c.account
}

// installationToken returns the cached installation token, exchanging a new
// one when within 60s of expiry. Concurrent callers share one refresh.
func (c *Client) installationToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-instTokenSlop)) {
		tok := c.token
		c.mu.Unlock()
		return tok, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do("installation-token", func() (interface{}, error) {
		c.mu.Lock()
		if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-instTokenSlop)) {
			tok := c.token
			c.mu.Unlock()
			return tok, nil
		}
		c.mu.Unlock()

		tok, expiry, err := c.exchangeToken(ctx, nil, nil)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.token = tok
		c.tokenExpiry = expiry
		c.mu.Unlock()
		return tok, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// exchangeToken calls the installation access-token endpoint using the app
// JWT. A non-2xx here is an auth failure the caller must surface, never a
// silent retry.
func (c *Client) exchangeToken(ctx context.Context, repositoryIDs []int64, permissions map[string]string) (string, time.Time, error) {
	payload := map[string]interface{}{}
	if len(repositoryIDs) > 0 {
		payload["repository_ids"] = repositoryIDs
	}
	if len(permissions) > 0 {
		payload["permissions"] = permissions
	}
	var body interface{}
	if len(payload) > 0 {
		body = payload
	}

	var out accessTokenResponse
	err := c.app.doApp(ctx, http.MethodPost, fmt.Sprintf("/app/installations/%d/access_tokens", c.installationID), body, &out)
	if err != nil {
		return "", time.Time{}, &AuthError{Err: err}
	}
	if out.Token == "" {
		return "", time.Time{}, &AuthError{Err: fmt.Errorf("github did not return an installation token")}
	}
	expiry, err := time.Parse(time.RFC3339, out.ExpiresAt)
	if err != nil {
		return "", time.Time{}, &AuthError{Err: fmt.Errorf("github did not return a token expiration: %w", err)}
	}
	return out.Token, expiry, nil
}

// CreateRepositoryAccessToken mints a short-lived token scoped to exactly one
// repository with contents:write + metadata:read. Not cached; each call is a
// fresh credential whose hash the caller stores.
func (c *Client) CreateRepositoryAccessToken(ctx context.Context, repoID int64) (string, time.Time, error) {
	return c.exchangeToken(ctx, []int64{repoID}, map[string]string{
		"contents": "write",
		"metadata": "read",
	})
}

// do performs an installation-token request. expected nil means any 2xx.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, expected ...int) error {
	tok, err := c.installationToken(ctx)
	if err != nil {
		return err
	}
	var exp []int
	if len(expected) > 0 {
		exp = expected
	}
	return c.app.roundTrip(ctx, method, path, "token "+tok, body, out, exp)
}
