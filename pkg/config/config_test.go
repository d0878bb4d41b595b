package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Generation.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Generation.PrimaryTimeout)
	assert.Equal(t, 30*time.Second, cfg.Generation.DegradedTimeout)
	assert.Greater(t, cfg.Generation.DegradedTimeout, cfg.Generation.PrimaryTimeout,
		"degraded trades speed for compatibility")
	assert.Equal(t, time.Hour, cfg.Generation.RecoveryRetention)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("GENERATION_MAX_ATTEMPTS", "5")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("MONITOR_DURATION_CEILING", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Generation.MaxAttempts)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Monitor.DurationCeiling)
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("GENERATION_PRIMARY_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Generation.PrimaryTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"zero attempts", func(c *Config) { c.Generation.MaxAttempts = 0 }, "max attempts"},
		{"health range", func(c *Config) { c.Generation.HealthThreshold = 1.5 }, "health threshold"},
		{"cache capacity", func(c *Config) { c.Cache.FontEntries = 0 }, "partition capacities"},
		{"window size", func(c *Config) { c.Monitor.WindowSize = -1 }, "window size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRedisAddr(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr())
}
