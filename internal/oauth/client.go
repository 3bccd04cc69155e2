// Package oauth performs the authorization-code handshake with external
// providers and normalises their user-info payloads into identities.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bengobox/social-auth/internal/config"
	"github.com/bengobox/social-auth/internal/identity"
	"github.com/bengobox/social-auth/internal/providers"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

const maxProfileBytes = 1 << 20

var (
	// ErrClientNotConfigured indicates a registry provider without credentials or spec.
	ErrClientNotConfigured = errors.New("oauth client not configured")
	// ErrEmptyProfile indicates the provider returned no usable user data.
	ErrEmptyProfile = errors.New("provider returned empty profile")
	// ErrMissingCode indicates a callback without an authorization code.
	ErrMissingCode = errors.New("authorization code missing")
)

// Option customises the client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for token exchange and profile calls.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithSpec registers or replaces the spec for a provider slug.
func WithSpec(slug string, spec Spec) Option {
	return func(cl *Client) {
		cl.specs[slug] = spec
	}
}

// Client implements the OAuth side of the linkage flow with x/oauth2.
type Client struct {
	credentials map[string]config.OAuthClientConfig
	specs       map[string]Spec
	httpClient  *http.Client
}

// New builds a client for the configured credentials.
func New(credentials map[string]config.OAuthClientConfig, opts ...Option) *Client {
	c := &Client{
		credentials: credentials,
		specs:       builtinSpecs(),
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// DefaultScopes returns the scopes each supported provider asks for when
// the registry does not override them.
func (c *Client) DefaultScopes() map[string][]string {
	out := make(map[string][]string, len(c.specs))
	for slug, spec := range c.specs {
		out[slug] = append([]string(nil), spec.DefaultScopes...)
	}
	return out
}

func (c *Client) oauthConfig(slug string, scopes []string) (*oauth2.Config, Spec, error) {
	creds, ok := c.credentials[slug]
	spec, known := c.specs[slug]
	if !ok || !known {
		return nil, Spec{}, fmt.Errorf("%w: %s", ErrClientNotConfigured, slug)
	}
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  creds.RedirectURL,
		Endpoint:     spec.Endpoint,
		Scopes:       scopes,
	}, spec, nil
}

// AuthCodeURL constructs the provider authorization URL.
func (c *Client) AuthCodeURL(p providers.Provider, req providers.AuthorizationRequest, state string) (string, error) {
	cfg, _, err := c.oauthConfig(p.Slug, req.Scopes)
	if err != nil {
		return "", err
	}
	opts := make([]oauth2.AuthCodeOption, 0, len(req.Parameters))
	for key, value := range req.Parameters {
		opts = append(opts, oauth2.SetAuthURLParam(key, value))
	}
	return cfg.AuthCodeURL(state, opts...), nil
}

// FetchIdentity swaps the code for a token and reads the user profile.
func (c *Client) FetchIdentity(ctx context.Context, p providers.Provider, code string) (identity.ExternalIdentity, error) {
	if code == "" {
		return identity.ExternalIdentity{}, ErrMissingCode
	}
	cfg, spec, err := c.oauthConfig(p.Slug, nil)
	if err != nil {
		return identity.ExternalIdentity{}, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return identity.ExternalIdentity{}, fmt.Errorf("exchange %s oauth code: %w", p.Slug, err)
	}
	httpClient := cfg.Client(ctx, token)

	profile, err := getJSON(ctx, httpClient, spec.ProfileURL)
	if err != nil {
		return identity.ExternalIdentity{}, fmt.Errorf("fetch %s profile: %w", p.Slug, err)
	}
	if !profile.IsObject() || profile.Get(spec.IDPath).String() == "" {
		return identity.ExternalIdentity{}, ErrEmptyProfile
	}

	ext := identity.ExternalIdentity{
		ProviderSlug:   p.Slug,
		ExternalUserID: profile.Get(spec.IDPath).String(),
		Email:          lookup(profile, spec.EmailPath),
		Name:           lookup(profile, spec.NamePath),
		Nickname:       lookup(profile, spec.NicknamePath),
		AvatarURL:      lookup(profile, spec.AvatarPath),
	}
	if raw, ok := profile.Value().(map[string]any); ok {
		ext.Attributes = raw
	}

	if ext.Email == "" && spec.EmailsURL != "" {
		emails, err := getJSON(ctx, httpClient, spec.EmailsURL)
		if err == nil {
			ext.Email = lookup(emails, spec.EmailsPath)
		}
	}
	return ext.Normalize(), nil
}

func lookup(doc gjson.Result, path string) string {
	if path == "" {
		return ""
	}
	return doc.Get(path).String()
}

func getJSON(ctx context.Context, client *http.Client, url string) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return gjson.Result{}, fmt.Errorf("request failed: status=%d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBytes))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read body: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("invalid json payload")
	}
	return gjson.ParseBytes(body), nil
}
