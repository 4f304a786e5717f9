// Package config loads and validates the OmniLens configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultListen is the default HTTP listen address.
	DefaultListen = ":8080"

	// DefaultSessionTTL is how long a login session stays valid.
	DefaultSessionTTL = "720h"

	// DefaultUsageCacheTTL is how long a computed usage report is
	// served from cache before being recomputed.
	DefaultUsageCacheTTL = "10m"

	// DefaultRefreshInterval is how often the background refresher
	// re-fetches workflow metadata for tracked repositories.
	DefaultRefreshInterval = "15m"

	// DefaultRefreshConcurrency bounds parallel GitHub API calls
	// during a refresh pass.
	DefaultRefreshConcurrency = 4

	// DefaultDatabasePath is the default SQLite database location.
	DefaultDatabasePath = "./omnilens.db"

	// envPrefix namespaces environment variable overrides, e.g.
	// OMNILENS_GLOBAL_LOG_LEVEL.
	envPrefix = "OMNILENS"
)

// Config is the root configuration for omnilens.
type Config struct {
	Global    GlobalConfig    `yaml:"global" mapstructure:"global"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	Database  DatabaseConfig  `yaml:"database" mapstructure:"database"`
	GitHub    GitHubConfig    `yaml:"github,omitempty" mapstructure:"github"`
	Dashboard DashboardConfig `yaml:"dashboard,omitempty" mapstructure:"dashboard"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// GitHubConfig contains settings for outbound GitHub API access.
// Token is the fallback token used for config-seeded users and the
// background refresher; OAuth users use their own access token.
type GitHubConfig struct {
	Token string `yaml:"token,omitempty" mapstructure:"token"`
}

// DashboardConfig tunes dashboard-side caching and refresh behavior.
type DashboardConfig struct {
	UsageCacheTTL string        `yaml:"usage_cache_ttl,omitempty" mapstructure:"usage_cache_ttl"`
	Refresh       RefreshConfig `yaml:"refresh,omitempty" mapstructure:"refresh"`
}

// RefreshConfig configures the background workflow-cache refresher.
type RefreshConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Interval    string `yaml:"interval,omitempty" mapstructure:"interval"`
	Concurrency int    `yaml:"concurrency,omitempty" mapstructure:"concurrency"`
}

// Load reads one or more configuration files (later files override
// earlier ones) and applies OMNILENS_* environment variable overrides.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for i, path := range paths {
		v.SetConfigFile(path)

		var err error
		if i == 0 {
			err = v.ReadInConfig()
		} else {
			err = v.MergeInConfig()
		}

		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers defaults for every tunable so environment
// overrides resolve even without a corresponding file entry.
func setDefaults(v *viper.Viper) {
	v.SetDefault("global.log_level", DefaultLogLevel)
	v.SetDefault("server.listen", DefaultListen)
	v.SetDefault("auth.session_ttl", DefaultSessionTTL)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite.path", DefaultDatabasePath)
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.ssl_mode", "disable")
	v.SetDefault("dashboard.usage_cache_ttl", DefaultUsageCacheTTL)
	v.SetDefault("dashboard.refresh.interval", DefaultRefreshInterval)
	v.SetDefault("dashboard.refresh.concurrency", DefaultRefreshConcurrency)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required")
		}
	case "postgres":
		if c.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}

		if c.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
	default:
		return fmt.Errorf(
			"unsupported database driver: %s", c.Database.Driver,
		)
	}

	if _, err := time.ParseDuration(c.Auth.SessionTTL); err != nil {
		return fmt.Errorf("invalid auth.session_ttl: %w", err)
	}

	if c.Auth.GitHub.Enabled {
		if c.Auth.GitHub.ClientID == "" ||
			c.Auth.GitHub.ClientSecret == "" {
			return fmt.Errorf(
				"auth.github requires client_id and client_secret",
			)
		}

		if c.Auth.GitHub.RedirectURL == "" {
			return fmt.Errorf("auth.github.redirect_url is required")
		}
	}

	if c.Auth.Basic.Enabled {
		for i, u := range c.Auth.Basic.Users {
			if u.Username == "" || u.Password == "" {
				return fmt.Errorf(
					"auth.basic.users[%d]: username and password are required",
					i,
				)
			}
		}
	}

	if c.Dashboard.UsageCacheTTL != "" {
		if _, err := time.ParseDuration(c.Dashboard.UsageCacheTTL); err != nil {
			return fmt.Errorf("invalid dashboard.usage_cache_ttl: %w", err)
		}
	}

	if c.Dashboard.Refresh.Enabled {
		if _, err := time.ParseDuration(c.Dashboard.Refresh.Interval); err != nil {
			return fmt.Errorf("invalid dashboard.refresh.interval: %w", err)
		}

		if c.Dashboard.Refresh.Concurrency < 0 {
			return fmt.Errorf(
				"dashboard.refresh.concurrency must not be negative",
			)
		}
	}

	return c.Server.RateLimit.validate()
}

// UsageCacheTTL returns the parsed usage cache TTL.
func (c *Config) UsageCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Dashboard.UsageCacheTTL)
	if err != nil {
		d, _ = time.ParseDuration(DefaultUsageCacheTTL)
	}

	return d
}

// SessionTTL returns the parsed session lifetime.
func (c *Config) SessionTTL() time.Duration {
	d, err := time.ParseDuration(c.Auth.SessionTTL)
	if err != nil {
		d, _ = time.ParseDuration(DefaultSessionTTL)
	}

	return d
}

// RefreshInterval returns the parsed background refresh interval.
func (c *Config) RefreshInterval() time.Duration {
	d, err := time.ParseDuration(c.Dashboard.Refresh.Interval)
	if err != nil {
		d, _ = time.ParseDuration(DefaultRefreshInterval)
	}

	return d
}
