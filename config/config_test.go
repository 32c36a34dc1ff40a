package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simulacra-ai/conversa/config"
)

func TestParseAppliesDefaultsOnEmptyDocument(t *testing.T) {
	cfg, err := config.Parse([]byte(``))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.RetryOptions().MaxAttempts)
	assert.Equal(t, time.Second, cfg.RetryOptions().InitialBackoff)
	assert.Equal(t, "noop", cfg.Telemetry.Backend)
	assert.False(t, cfg.HasRateLimit())
	assert.False(t, cfg.HasTokenLimit())
}

func TestParseReadsOverrides(t *testing.T) {
	doc := []byte(`
retry:
  max_attempts: 5
  initial_backoff: 200ms
  backoff_factor: 1.5
rate_limit:
  limit: 10
  period: 1m
token_limit:
  total_tokens_per_period: 100000
  period: 1h
telemetry:
  backend: prometheus
summarize:
  instruction: "Summarize tersely."
`)
	cfg, err := config.Parse(doc)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.RetryOptions().MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.RetryOptions().InitialBackoff)
	assert.InDelta(t, 1.5, cfg.RetryOptions().BackoffFactor, 0.0001)

	require.True(t, cfg.HasRateLimit())
	assert.Equal(t, 10, cfg.RateLimitOptions().Limit)
	assert.Equal(t, time.Minute, cfg.RateLimitOptions().Period)

	require.True(t, cfg.HasTokenLimit())
	assert.Equal(t, 100000, cfg.TokenLimitOptions().TotalTokensPerPeriod)

	assert.Equal(t, "prometheus", cfg.Telemetry.Backend)
	assert.Equal(t, "Summarize tersely.", cfg.Summarize.Instruction)
}

func TestLoadReturnsWrappedErrorForMissingFile(t *testing.T) {
	_, err := config.Load("/nonexistent/conversa.yaml")
	require.Error(t, err)
}
