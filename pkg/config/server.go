package config

import "fmt"

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Listen      string          `yaml:"listen" mapstructure:"listen"`
	CORSOrigins []string        `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	RateLimit   RateLimitConfig `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
}

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	Auth          RateLimitTier `yaml:"auth,omitempty" mapstructure:"auth"`
	Authenticated RateLimitTier `yaml:"authenticated,omitempty" mapstructure:"authenticated"`
}

// RateLimitTier defines request limits for a specific tier.
type RateLimitTier struct {
	RequestsPerMinute int `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

func (r RateLimitConfig) validate() error {
	if !r.Enabled {
		return nil
	}

	if r.Auth.RequestsPerMinute <= 0 ||
		r.Authenticated.RequestsPerMinute <= 0 {
		return fmt.Errorf(
			"rate limit tiers require a positive requests_per_minute",
		)
	}

	return nil
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	SessionTTL string           `yaml:"session_ttl" mapstructure:"session_ttl"`
	Basic      BasicAuthConfig  `yaml:"basic,omitempty" mapstructure:"basic"`
	GitHub     GitHubAuthConfig `yaml:"github,omitempty" mapstructure:"github"`
}

// BasicAuthConfig configures username/password authentication for
// config-seeded users.
type BasicAuthConfig struct {
	Enabled bool            `yaml:"enabled" mapstructure:"enabled"`
	Users   []BasicAuthUser `yaml:"users,omitempty" mapstructure:"users"`
}

// BasicAuthUser defines a basic auth user from config.
type BasicAuthUser struct {
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
}

// GitHubAuthConfig configures GitHub OAuth login.
type GitHubAuthConfig struct {
	Enabled      bool   `yaml:"enabled" mapstructure:"enabled"`
	ClientID     string `yaml:"client_id,omitempty" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret,omitempty" mapstructure:"client_secret"`
	RedirectURL  string `yaml:"redirect_url,omitempty" mapstructure:"redirect_url"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// SQLiteConfig contains SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}
