package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)

	assert.Equal(t, 3, cfg.Fetch.MaxAttempts)
	assert.Equal(t, "500ms", cfg.Fetch.InitialBackoff)
	assert.Equal(t, 2.0, cfg.Fetch.BackoffFactor)
	assert.False(t, cfg.Fetch.AllowDegraded)

	assert.Equal(t, 5.0, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 5, cfg.RateLimit.Burst)

	assert.Equal(t, 100, cfg.Pipeline.Retention)
	assert.Len(t, cfg.Pipeline.Timeframes, 6)

	assert.Equal(t, 4, cfg.Output.PrecisionPrice)
	assert.Equal(t, 0.0001, cfg.Output.Tolerance)

	assert.Equal(t, 4, cfg.Batch.Workers)
	assert.NotEmpty(t, cfg.Batch.Symbols)
}

func TestLoadEnvironmentNormalized(t *testing.T) {
	t.Setenv("ENVIRONMENT", "PRODUCTION")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Environment)
}

func TestLoadRejectsBadBackoff(t *testing.T) {
	t.Setenv("FETCH_INITIAL_BACKOFF", "soon")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsZeroAttempts(t *testing.T) {
	t.Setenv("FETCH_MAX_ATTEMPTS", "0")
	_, err := Load()
	assert.Error(t, err)
}
