package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// DefaultDirName is the configuration directory under the user's home.
const DefaultDirName = ".sercha-connect"

// Config is the full sercha-connect configuration.
type Config struct {
	Server   ServerConfig   `toml:"server" envPrefix:"SERVER_"`
	Provider ProviderConfig `toml:"provider" envPrefix:"PROVIDER_"`
	Client   ClientConfig   `toml:"client" envPrefix:"CLIENT_"`
}

// ServerConfig configures the connection server.
type ServerConfig struct {
	Addr string `toml:"addr" env:"ADDR"`
	// SessionSecret signs and verifies session credentials (HS256).
	SessionSecret string `toml:"session_secret" env:"SESSION_SECRET"`
	SessionIssuer string `toml:"session_issuer" env:"SESSION_ISSUER"`
	// SessionExpiry is a Go duration string, e.g. "24h".
	SessionExpiry string `toml:"session_expiry" env:"SESSION_EXPIRY"`
	// DataDir holds connections.db. Empty means ~/.sercha-connect/data.
	DataDir string `toml:"data_dir" env:"DATA_DIR"`
	// RateLimit is exchanges per second per identity. Zero disables it.
	RateLimit float64 `toml:"rate_limit" env:"RATE_LIMIT"`
	RateBurst int     `toml:"rate_burst" env:"RATE_BURST"`
}

// ProviderConfig configures the Notion OAuth integration.
type ProviderConfig struct {
	ClientID     string `toml:"client_id" env:"CLIENT_ID"`
	ClientSecret string `toml:"client_secret" env:"CLIENT_SECRET"`
	AuthURL      string `toml:"auth_url" env:"AUTH_URL"`
	TokenURL     string `toml:"token_url" env:"TOKEN_URL"`
	RedirectURI  string `toml:"redirect_uri" env:"REDIRECT_URI"`
	// LookupWorkspace looks the workspace name up when the token response
	// lacks one.
	LookupWorkspace bool   `toml:"lookup_workspace" env:"LOOKUP_WORKSPACE"`
	NotionAPIURL    string `toml:"notion_api_url" env:"NOTION_API_URL"`
}

// ClientConfig configures the CLI and terminal views.
type ClientConfig struct {
	ServerURL string `toml:"server_url" env:"SERVER_URL"`
	// LoginURL is where the user is sent when no session exists.
	LoginURL string `toml:"login_url" env:"LOGIN_URL"`
	// SessionDir holds session.toml. Empty means ~/.sercha-connect.
	SessionDir string `toml:"session_dir" env:"SESSION_DIR"`
	// RedirectURI is the local callback registered with the provider.
	RedirectURI string `toml:"redirect_uri" env:"REDIRECT_URI"`
	RetryMax    int    `toml:"retry_max" env:"RETRY_MAX"`
	// Timeout is a Go duration string applied to each request attempt.
	Timeout string `toml:"timeout" env:"TIMEOUT"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:          "127.0.0.1:8080",
			SessionExpiry: "24h",
			RateLimit:     0.2,
			RateBurst:     5,
		},
		Provider: ProviderConfig{
			AuthURL:         "https://api.notion.com/v1/oauth/authorize",
			TokenURL:        "https://api.notion.com/v1/oauth/token",
			RedirectURI:     "http://127.0.0.1:8765/callback",
			LookupWorkspace: true,
			NotionAPIURL:    "https://api.notion.com",
		},
		Client: ClientConfig{
			ServerURL:   "http://127.0.0.1:8080",
			RedirectURI:  "http://127.0.0.1:8765/callback",
			RetryMax:    3,
			Timeout:     "30s",
		},
	}
}

// DefaultPath returns ~/.sercha-connect/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home directory: %w", err)
	}
	return filepath.Join(home, DefaultDirName, "config.toml"), nil
}

// Load reads the TOML file at path over the defaults and then applies
// environment overrides. A missing file is not an error. An empty path
// means DefaultPath.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// OAuth returns the provider settings in domain form.
func (p ProviderConfig) OAuth() domain.OAuthProviderConfig {
	return domain.OAuthProviderConfig{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		AuthURL:      p.AuthURL,
		TokenURL:     p.TokenURL,
		RedirectURI:  p.RedirectURI,
	}
}

// Expiry parses SessionExpiry. Empty means no expiry.
func (s ServerConfig) Expiry() (time.Duration, error) {
	return parseDuration("server.session_expiry", s.SessionExpiry)
}

// RequestTimeout parses Timeout. Empty means no timeout.
func (c ClientConfig) RequestTimeout() (time.Duration, error) {
	return parseDuration("client.timeout", c.Timeout)
}

// ValidateServer checks what the serve command needs.
func (c Config) ValidateServer() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return invalid("server.addr", "must be set")
	}
	if c.Server.SessionSecret == "" {
		return invalid("server.session_secret", "must be set")
	}
	if _, err := c.Server.Expiry(); err != nil {
		return err
	}
	if c.Server.RateLimit < 0 {
		return invalid("server.rate_limit", "must not be negative")
	}
	if c.Provider.ClientID == "" {
		return invalid("provider.client_id", "must be set")
	}
	if c.Provider.ClientSecret == "" {
		return invalid("provider.client_secret", "must be set")
	}
	for field, raw := range map[string]string{
		"provider.auth_url":     c.Provider.AuthURL,
		"provider.token_url":    c.Provider.TokenURL,
		"provider.redirect_uri": c.Provider.RedirectURI,
	} {
		if err := validateAbsURL(field, raw); err != nil {
			return err
		}
	}
	return nil
}

// ValidateClient checks what the client commands need.
func (c Config) ValidateClient() error {
	if err := validateAbsURL("client.server_url", c.Client.ServerURL); err != nil {
		return err
	}
	if c.Client.LoginURL != "" {
		if err := validateAbsURL("client.login_url", c.Client.LoginURL); err != nil {
			return err
		}
	}
	if c.Client.RetryMax < 0 {
		return invalid("client.retry_max", "must not be negative")
	}
	if _, err := c.Client.RequestTimeout(); err != nil {
		return err
	}
	return nil
}

func validateAbsURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return invalid(field, "must be an absolute URL")
	}
	return nil
}

func parseDuration(field, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, invalid(field, "must be a positive duration")
	}
	return d, nil
}

func invalid(field, reason string) error {
	return fmt.Errorf("%s %s: %w", field, reason, domain.ErrInvalidInput)
}
