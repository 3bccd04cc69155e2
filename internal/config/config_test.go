package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("AUTH_DB_URL", "postgres://localhost/social")
	t.Setenv("AUTH_SECURITY_OAUTH_STATE_SECRET", "state-secret")
	t.Setenv("AUTH_OAUTH_GITHUB_CLIENT_ID", "gh-id")
	t.Setenv("AUTH_OAUTH_GITHUB_CLIENT_SECRET", "gh-secret")
	t.Setenv("AUTH_OAUTH_GITHUB_REDIRECT_URL", "https://app.local/auth/github/callback")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, "/", cfg.App.RedirectPath)
	assert.Equal(t, 4102, cfg.HTTP.Port)
	assert.Equal(t, "social-auth", cfg.Redis.Namespace)

	clients := cfg.OAuth.Clients()
	require.Len(t, clients, 1)
	assert.Equal(t, "gh-id", clients["github"].ClientID)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	setRequired(t)
	t.Setenv("AUTH_DB_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_DB_URL")
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	setRequired(t)
	t.Setenv("AUTH_DB_DRIVER", "mysql")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRequiresAnOAuthClient(t *testing.T) {
	setRequired(t)
	t.Setenv("AUTH_OAUTH_GITHUB_CLIENT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_OAUTH_")
}

func TestLoadRejectsRelativeRedirect(t *testing.T) {
	setRequired(t)
	t.Setenv("AUTH_REDIRECT_PATH", "home")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadStorageSkipsOAuthValidation(t *testing.T) {
	t.Setenv("AUTH_DB_DRIVER", "sqlite3")
	t.Setenv("AUTH_DB_URL", "file:social.db")

	cfg, err := LoadStorage()
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Empty(t, cfg.OAuth.Clients())

	_, err = Load()
	assert.Error(t, err)
}
