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

	assert.Equal(t, 3, cfg.Scheduler.MaxConcurrency)
	assert.Equal(t, 2, cfg.Scheduler.DefaultMaxRetries)
	assert.Equal(t, time.Second, cfg.Scheduler.BaseRetryDelay)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.MaxRetryDelay)

	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, time.Minute, cfg.Breaker.Cooldown)

	assert.Equal(t, int64(64*1024*1024), cfg.Cache.MaxBytes)
	assert.Equal(t, 10000, cfg.Cache.MaxEntries)
	assert.False(t, cfg.Cache.UseRedis)

	assert.Equal(t, 30*time.Second, cfg.Providers.CallTimeout)
	assert.Equal(t, "https://generativelanguage.googleapis.com", cfg.Providers.Gemini.BaseURL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SCHEDULER_MAX_CONCURRENCY", "8")
	t.Setenv("BREAKER_COOLDOWN", "90s")
	t.Setenv("CACHE_USE_REDIS", "true")
	t.Setenv("REDIS_HOST", "cache.internal")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Scheduler.MaxConcurrency)
	assert.Equal(t, 90*time.Second, cfg.Breaker.Cooldown)
	assert.True(t, cfg.Cache.UseRedis)
	assert.Equal(t, "cache.internal:6379", cfg.Redis.Addr())
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Setenv("SCHEDULER_MAX_CONCURRENCY", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max concurrency")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero concurrency", func(c *Config) { c.Scheduler.MaxConcurrency = 0 }},
		{"negative retries", func(c *Config) { c.Scheduler.DefaultMaxRetries = -1 }},
		{"zero base delay", func(c *Config) { c.Scheduler.BaseRetryDelay = 0 }},
		{"zero breaker threshold", func(c *Config) { c.Breaker.FailureThreshold = 0 }},
		{"zero cooldown", func(c *Config) { c.Breaker.Cooldown = 0 }},
		{"zero cache bytes", func(c *Config) { c.Cache.MaxBytes = 0 }},
		{"zero cache entries", func(c *Config) { c.Cache.MaxEntries = 0 }},
		{"zero call timeout", func(c *Config) { c.Providers.CallTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
