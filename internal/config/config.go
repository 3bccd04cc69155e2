package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config aggregates all runtime settings.
type Config struct {
	App      AppConfig      `envPrefix:"AUTH_"`
	HTTP     HTTPConfig     `envPrefix:"AUTH_HTTP_"`
	Database DatabaseConfig `envPrefix:"AUTH_DB_"`
	Redis    RedisConfig    `envPrefix:"AUTH_REDIS_"`
	Session  SessionConfig  `envPrefix:"AUTH_SESSION_"`
	Security SecurityConfig `envPrefix:"AUTH_SECURITY_"`
	OAuth    OAuthConfig    `envPrefix:"AUTH_OAUTH_"`
}

type AppConfig struct {
	Environment  string `env:"ENV" envDefault:"development"`
	ServiceName  string `env:"SERVICE_NAME" envDefault:"social-auth"`
	RedirectPath string `env:"REDIRECT_PATH" envDefault:"/"`
}

type HTTPConfig struct {
	Host              string        `env:"HOST" envDefault:"0.0.0.0"`
	Port              int           `env:"PORT" envDefault:"4102"`
	ReadTimeout       time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT" envDefault:"120s"`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"25s"`
	AllowedOrigins    []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

type DatabaseConfig struct {
	Driver          string        `env:"DRIVER" envDefault:"pgx"`
	URL             string        `env:"URL"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
	RunMigrations   bool          `env:"RUN_MIGRATIONS" envDefault:"true"`
}

type RedisConfig struct {
	Addr      string `env:"ADDR" envDefault:"127.0.0.1:6379"`
	Password  string `env:"PASSWORD"`
	DB        int    `env:"DB" envDefault:"0"`
	EnableTLS bool   `env:"ENABLE_TLS" envDefault:"false"`
	Namespace string `env:"NAMESPACE" envDefault:"social-auth"`
}

type SessionConfig struct {
	TTL          time.Duration `env:"TTL" envDefault:"720h"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"true"`
	CookieDomain string        `env:"COOKIE_DOMAIN"`
}

type SecurityConfig struct {
	OAuthStateSecret string        `env:"OAUTH_STATE_SECRET"`
	OAuthStateTTL    time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`
}

// OAuthConfig carries client credentials for every supported provider.
// A provider is usable only when its credentials are present here and a
// matching record exists in the provider registry.
type OAuthConfig struct {
	GitHub   OAuthClientConfig `envPrefix:"GITHUB_"`
	Google   OAuthClientConfig `envPrefix:"GOOGLE_"`
	Facebook OAuthClientConfig `envPrefix:"FACEBOOK_"`
	GitLab   OAuthClientConfig `envPrefix:"GITLAB_"`
}

type OAuthClientConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"`
}

// Configured reports whether all credentials are present.
func (c OAuthClientConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURL != ""
}

// Clients returns the configured OAuth clients keyed by provider slug.
func (c OAuthConfig) Clients() map[string]OAuthClientConfig {
	all := map[string]OAuthClientConfig{
		"github":   c.GitHub,
		"google":   c.Google,
		"facebook": c.Facebook,
		"gitlab":   c.GitLab,
	}
	out := make(map[string]OAuthClientConfig, len(all))
	for slug, client := range all {
		if client.Configured() {
			out[slug] = client
		}
	}
	return out
}

// Load parses environment variables into Config and performs validation.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadStorage parses the environment for tools that only touch the
// database and Redis, so OAuth settings are not required.
func LoadStorage() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validateStorage(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validateStorage() error {
	if c.Database.URL == "" {
		return fmt.Errorf("AUTH_DB_URL is required")
	}
	switch c.Database.Driver {
	case "pgx", "sqlite3":
	default:
		return fmt.Errorf("AUTH_DB_DRIVER %q is not supported", c.Database.Driver)
	}
	return nil
}

func (c *Config) validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if c.Security.OAuthStateSecret == "" {
		return fmt.Errorf("AUTH_SECURITY_OAUTH_STATE_SECRET is required")
	}
	if len(c.OAuth.Clients()) == 0 {
		return fmt.Errorf("at least one AUTH_OAUTH_<PROVIDER>_* client must be configured")
	}
	if !strings.HasPrefix(c.App.RedirectPath, "/") {
		return fmt.Errorf("AUTH_REDIRECT_PATH must be an absolute path")
	}
	return nil
}
