package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azargarov/batchcall"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batchcall.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	s, err := cfg.ParseStrategy()
	require.NoError(t, err)
	assert.Equal(t, batchcall.Bounded(batchcall.DefaultMaxConcurrency), s)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, time.Second, time.Duration(cfg.BackoffMin))
	assert.Equal(t, time.Minute, time.Duration(cfg.BackoffMax))
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
strategy: pooled
pool_size: 4
max_attempts: 5
backoff_min: 250ms
backoff_max: 2
attempt_timeout: 10s
malformed_response: fatal
abort_on_fatal: true
endpoint: http://localhost:9000/infer
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	s, err := cfg.ParseStrategy()
	require.NoError(t, err)
	assert.Equal(t, batchcall.Pooled(4), s)

	opts := cfg.Options()
	assert.Equal(t, 5, opts.Retry.Attempts)
	assert.Equal(t, 250*time.Millisecond, opts.Retry.Initial)
	assert.Equal(t, 2*time.Second, opts.Retry.Max)
	assert.Equal(t, 10*time.Second, opts.AttemptTimeout)
	assert.Equal(t, batchcall.KindFatal, opts.MalformedResponse)
	assert.True(t, opts.AbortOnFatal)
	assert.Equal(t, "http://localhost:9000/infer", cfg.Endpoint)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadBadDuration(t *testing.T) {
	path := writeFile(t, "backoff_min: soon\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"BATCHCALL_STRATEGY":        "sequential",
		"BATCHCALL_MAX_ATTEMPTS":    "7",
		"BATCHCALL_BACKOFF_MAX":     "30s",
		"BATCHCALL_ATTEMPT_TIMEOUT": "1500ms",
	}
	cfg := Default()
	require.NoError(t, cfg.applyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, "sequential", cfg.Strategy)
	assert.Equal(t, 7, cfg.MaxAttempts)
	assert.Equal(t, 30*time.Second, time.Duration(cfg.BackoffMax))
	assert.Equal(t, 1500*time.Millisecond, time.Duration(cfg.AttemptTimeout))
}

func TestApplyEnvBadNumber(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(func(k string) string {
		if k == "BATCHCALL_POOL_SIZE" {
			return "many"
		}
		return ""
	})
	assert.ErrorContains(t, err, "BATCHCALL_POOL_SIZE")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown strategy", func(c *Config) { c.Strategy = "magic" }},
		{"negative concurrency", func(c *Config) { c.MaxConcurrency = -1 }},
		{"negative pool", func(c *Config) { c.PoolSize = -2 }},
		{"inverted backoff", func(c *Config) {
			c.BackoffMin = Duration(time.Minute)
			c.BackoffMax = Duration(time.Second)
		}},
		{"malformed policy", func(c *Config) { c.MalformedResponse = "ignore" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
