package capability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	voyago "github.com/voyago/voyago"
)

// tokenSkew refreshes tokens slightly before their reported expiry so an
// in-flight request never rides a token that lapses mid-call.
const tokenSkew = 30 * time.Second

// AmadeusAuth fetches and caches OAuth client-credentials tokens for the
// Amadeus APIs. The token is refreshed lazily on first use after expiry;
// concurrent refreshes collapse into a single in-flight fetch.
type AmadeusAuth struct {
	baseURL   string
	apiKey    string
	apiSecret string
	client    *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time

	group singleflight.Group
}

// NewAmadeusAuth creates a token source for the given Amadeus environment.
func NewAmadeusAuth(baseURL, apiKey, apiSecret string, client *http.Client) *AmadeusAuth {
	if client == nil {
		client = http.DefaultClient
	}
	return &AmadeusAuth{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		client:    client,
	}
}

// Token returns a valid access token, refreshing it if the cached one has
// expired. Only the first caller of a refresh hits the token endpoint;
// concurrent callers wait on that fetch and reuse its result.
func (a *AmadeusAuth) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	if a.token != "" && time.Until(a.expiresAt) > tokenSkew {
		token := a.token
		a.mu.Unlock()
		return token, nil
	}
	a.mu.Unlock()

	v, err, _ := a.group.Do("token", func() (any, error) {
		// Re-check under the flight: a concurrent caller may have stored a
		// fresh token between the fast path and joining the group.
		a.mu.Lock()
		if a.token != "" && time.Until(a.expiresAt) > tokenSkew {
			token := a.token
			a.mu.Unlock()
			return token, nil
		}
		a.mu.Unlock()
		return a.fetch(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token so the next call fetches a new one.
// Called by clients when the provider rejects a token mid-lifetime.
func (a *AmadeusAuth) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = ""
	a.expiresAt = time.Time{}
}

func (a *AmadeusAuth) fetch(ctx context.Context) (string, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {a.apiKey},
		"client_secret": {a.apiSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/v1/security/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("amadeus: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := doJSON(a.client, req, &body); err != nil {
		if errors.Is(err, voyago.ErrAuthExpired) {
			// Bad credentials at the token endpoint, not an expired token.
			return "", fmt.Errorf("%w: amadeus token request rejected", voyago.ErrAuthExpired)
		}
		return "", fmt.Errorf("amadeus: fetch token: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("%w: amadeus token response missing access_token", voyago.ErrCallFailed)
	}

	a.mu.Lock()
	a.token = body.AccessToken
	a.expiresAt = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	a.mu.Unlock()

	return body.AccessToken, nil
}

// withToken issues an authenticated GET, retrying exactly once with a fresh
// token when the provider reports the cached one invalid.
func withToken(ctx context.Context, auth *AmadeusAuth, client *http.Client, rawURL string, out any) error {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := auth.Token(ctx)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("amadeus: build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		err = doJSON(client, req, out)
		if err == nil {
			return nil
		}
		if errors.Is(err, voyago.ErrAuthExpired) && attempt == 0 {
			auth.Invalidate()
			continue
		}
		return err
	}
	return fmt.Errorf("%w: amadeus token invalid after refresh", voyago.ErrAuthExpired)
}
