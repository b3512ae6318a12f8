package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	result := cfg.Validate()
	assert.False(t, result.HasErrors(), result.Error())
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  addr: ":9090"
  rate_limit: 5
  rate_burst: 10
storage:
  type: postgres
cache:
  shared_ttl: 5m
jobs:
  warm_cron: "0 * * * *"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("POSTGRES_DSN", "postgres://devpulse@localhost:5432/devpulse")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5.0, cfg.Server.RateLimit)
	assert.Equal(t, "postgres", cfg.Storage.Type)
	assert.Equal(t, "postgres://devpulse@localhost:5432/devpulse", cfg.Database.PostgresDSN)
	assert.Equal(t, cfg.Database.PostgresDSN, cfg.Storage.PostgresDSN)
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, 5*time.Minute, cfg.Cache.SharedTTL)
	assert.Equal(t, "0 * * * *", cfg.Jobs.WarmCron)
	assert.True(t, cfg.UsesPostgres())
	assert.False(t, cfg.Validate().HasErrors())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown storage type",
			mutate:  func(c *Config) { c.Storage.Type = "mongo" },
			wantErr: "storage.type",
		},
		{
			name: "postgres without dsn",
			mutate: func(c *Config) {
				c.Storage.Type = "postgres"
			},
			wantErr: "storage.postgres_dsn",
		},
		{
			name:    "bad cron",
			mutate:  func(c *Config) { c.Jobs.WarmCron = "every tuesday" },
			wantErr: "jobs.warm_cron",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: "logging.level",
		},
		{
			name: "rate limit without burst",
			mutate: func(c *Config) {
				c.Server.RateLimit = 10
				c.Server.RateBurst = 0
			},
			wantErr: "rate_burst",
		},
		{
			name:    "unknown server mode",
			mutate:  func(c *Config) { c.Server.Mode = "production" },
			wantErr: "server.mode",
		},
		{
			name:    "unknown timezone",
			mutate:  func(c *Config) { c.Jobs.TZ = "Mars/Olympus" },
			wantErr: "jobs.tz",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			result := cfg.Validate()
			require.True(t, result.HasErrors())
			assert.Contains(t, result.Error(), tt.wantErr)
			assert.Error(t, cfg.MustValidate())
		})
	}
}
