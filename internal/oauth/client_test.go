package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/bengobox/social-auth/internal/config"
	"github.com/bengobox/social-auth/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeProvider struct {
	server  *httptest.Server
	profile map[string]any
	emails  []map[string]any
}

func newFakeProvider(t *testing.T, profile map[string]any, emails []map[string]any) *fakeProvider {
	t.Helper()
	fp := &fakeProvider{profile: profile, emails: emails}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "token_type": "bearer"})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(fp.profile)
	})
	mux.HandleFunc("/emails", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(fp.emails)
	})
	fp.server = httptest.NewServer(mux)
	t.Cleanup(fp.server.Close)
	return fp
}

func (fp *fakeProvider) client() *Client {
	spec := Spec{
		Endpoint: oauth2.Endpoint{
			AuthURL:   fp.server.URL + "/authorize",
			TokenURL:  fp.server.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		DefaultScopes: []string{"user:email"},
		ProfileURL:    fp.server.URL + "/user",
		IDPath:        "id",
		EmailPath:     "email",
		NamePath:      "name",
		NicknamePath:  "login",
		AvatarPath:    "avatar_url",
		EmailsURL:     fp.server.URL + "/emails",
		EmailsPath:    `#(primary==true).email`,
	}
	creds := map[string]config.OAuthClientConfig{
		"github": {ClientID: "id", ClientSecret: "secret", RedirectURL: "http://localhost/auth/github/callback"},
	}
	return New(creds, WithSpec("github", spec), WithHTTPClient(fp.server.Client()))
}

func TestAuthCodeURLCarriesScopesStateAndParameters(t *testing.T) {
	fp := newFakeProvider(t, nil, nil)
	client := fp.client()

	raw, err := client.AuthCodeURL(providers.Provider{Slug: "github"}, providers.AuthorizationRequest{
		Scopes:     []string{"user:email", "read:org"},
		Parameters: map[string]string{"allow_signup": "false"},
	}, "state-token")
	require.NoError(t, err)

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	q := parsed.Query()
	assert.Equal(t, "/authorize", parsed.Path)
	assert.Equal(t, "state-token", q.Get("state"))
	assert.Equal(t, "user:email read:org", q.Get("scope"))
	assert.Equal(t, "false", q.Get("allow_signup"))
	assert.Equal(t, "id", q.Get("client_id"))
}

func TestAuthCodeURLUnknownProvider(t *testing.T) {
	client := New(map[string]config.OAuthClientConfig{})
	_, err := client.AuthCodeURL(providers.Provider{Slug: "github"}, providers.AuthorizationRequest{}, "s")
	assert.ErrorIs(t, err, ErrClientNotConfigured)
}

func TestFetchIdentityMapsProfile(t *testing.T) {
	fp := newFakeProvider(t, map[string]any{
		"id":         42,
		"email":      "Alice@Example.com",
		"name":       "Alice",
		"login":      "alice",
		"avatar_url": "https://img/alice.png",
	}, nil)

	ext, err := fp.client().FetchIdentity(context.Background(), providers.Provider{Slug: "github"}, "good-code")
	require.NoError(t, err)
	assert.Equal(t, "github", ext.ProviderSlug)
	assert.Equal(t, "42", ext.ExternalUserID)
	assert.Equal(t, "alice@example.com", ext.Email)
	assert.Equal(t, "Alice", ext.Name)
	assert.Equal(t, "alice", ext.Nickname)
	assert.Equal(t, "https://img/alice.png", ext.AvatarURL)
	assert.Equal(t, "alice", ext.Attributes["login"])
}

func TestFetchIdentityFallsBackToPrimaryEmail(t *testing.T) {
	fp := newFakeProvider(t, map[string]any{"id": 7, "login": "bob"}, []map[string]any{
		{"email": "old@example.com", "primary": false},
		{"email": "bob@example.com", "primary": true},
	})

	ext, err := fp.client().FetchIdentity(context.Background(), providers.Provider{Slug: "github"}, "good-code")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", ext.Email)
}

func TestFetchIdentityEmptyProfile(t *testing.T) {
	fp := newFakeProvider(t, map[string]any{"login": "ghost"}, nil)

	_, err := fp.client().FetchIdentity(context.Background(), providers.Provider{Slug: "github"}, "good-code")
	assert.ErrorIs(t, err, ErrEmptyProfile)
}

func TestFetchIdentityExchangeFailure(t *testing.T) {
	fp := newFakeProvider(t, map[string]any{"id": 1}, nil)

	_, err := fp.client().FetchIdentity(context.Background(), providers.Provider{Slug: "github"}, "bad-code")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyProfile)
}

func TestFetchIdentityRequiresCode(t *testing.T) {
	fp := newFakeProvider(t, nil, nil)
	_, err := fp.client().FetchIdentity(context.Background(), providers.Provider{Slug: "github"}, "")
	assert.ErrorIs(t, err, ErrMissingCode)
}

func TestDefaultScopesCoverBuiltins(t *testing.T) {
	scopes := New(nil).DefaultScopes()
	assert.Equal(t, []string{"user:email"}, scopes["github"])
	assert.Contains(t, scopes["google"], "email")
	assert.Contains(t, scopes, "gitlab")
	assert.Contains(t, scopes, "facebook")
}
