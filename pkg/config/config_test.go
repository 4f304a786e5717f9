package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseConfig = `
global:
  log_level: info
server:
  listen: ":9090"
auth:
  session_ttl: "24h"
  github:
    enabled: true
    client_id: abc
    client_secret: def
    redirect_url: http://localhost:9090/api/v1/auth/github/callback
database:
  driver: sqlite
  sqlite:
    path: ":memory:"
dashboard:
  usage_cache_ttl: "5m"
  refresh:
    enabled: true
    interval: "10m"
    concurrency: 2
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, baseConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, "abc", cfg.Auth.GitHub.ClientID)
	assert.Equal(t, 5*time.Minute, cfg.UsageCacheTTL())
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL())
	assert.Equal(t, 10*time.Minute, cfg.RefreshInterval())
	assert.Equal(t, 2, cfg.Dashboard.Refresh.Concurrency)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "global:\n  log_level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, DefaultListen, cfg.Server.Listen)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, DefaultDatabasePath, cfg.Database.SQLite.Path)
	assert.Equal(t, 10*time.Minute, cfg.UsageCacheTTL())
	assert.Equal(t, DefaultRefreshConcurrency,
		cfg.Dashboard.Refresh.Concurrency)
}

func TestLoad_MergesMultipleFiles(t *testing.T) {
	override := `
server:
  listen: ":7070"
`

	cfg, err := Load(
		writeConfig(t, baseConfig), writeConfig(t, override),
	)
	require.NoError(t, err)

	// The later file overrides, everything else survives.
	assert.Equal(t, ":7070", cfg.Server.Listen)
	assert.Equal(t, "abc", cfg.Auth.GitHub.ClientID)
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name: "string override - log_level",
			envVars: map[string]string{
				"OMNILENS_GLOBAL_LOG_LEVEL": "debug",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Global.LogLevel)
			},
		},
		{
			name: "string override - github token",
			envVars: map[string]string{
				"OMNILENS_GITHUB_TOKEN": "ghp_test",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "ghp_test", cfg.GitHub.Token)
			},
		},
		{
			name: "nested override - database path",
			envVars: map[string]string{
				"OMNILENS_DATABASE_SQLITE_PATH": "/tmp/custom.db",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/tmp/custom.db", cfg.Database.SQLite.Path)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := Load(writeConfig(t, baseConfig))
			require.NoError(t, err)

			tt.validate(t, cfg)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(writeConfig(t, baseConfig))
		require.NoError(t, err)

		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name: "missing listen",
			mutate: func(cfg *Config) {
				cfg.Server.Listen = ""
			},
			wantErr: "server.listen",
		},
		{
			name: "unknown driver",
			mutate: func(cfg *Config) {
				cfg.Database.Driver = "oracle"
			},
			wantErr: "unsupported database driver",
		},
		{
			name: "postgres without host",
			mutate: func(cfg *Config) {
				cfg.Database.Driver = "postgres"
			},
			wantErr: "database.postgres.host",
		},
		{
			name: "github oauth without secret",
			mutate: func(cfg *Config) {
				cfg.Auth.GitHub.ClientSecret = ""
			},
			wantErr: "client_id and client_secret",
		},
		{
			name: "bad session ttl",
			mutate: func(cfg *Config) {
				cfg.Auth.SessionTTL = "soon"
			},
			wantErr: "session_ttl",
		},
		{
			name: "bad usage cache ttl",
			mutate: func(cfg *Config) {
				cfg.Dashboard.UsageCacheTTL = "frequently"
			},
			wantErr: "usage_cache_ttl",
		},
		{
			name: "rate limit tier without limit",
			mutate: func(cfg *Config) {
				cfg.Server.RateLimit.Enabled = true
			},
			wantErr: "requests_per_minute",
		},
		{
			name: "basic user without password",
			mutate: func(cfg *Config) {
				cfg.Auth.Basic.Enabled = true
				cfg.Auth.Basic.Users = []BasicAuthUser{{Username: "ops"}}
			},
			wantErr: "username and password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
