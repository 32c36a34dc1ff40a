// Package config loads the engine-wide tunables that have no natural
// per-conversation owner: default policy parameters, the default
// checkpoint summarization instruction, and which telemetry backend to
// wire up. It reads YAML, matching the teacher's own choice of
// gopkg.in/yaml.v3 for structured configuration, and fills in defaults for
// any field a document omits.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/simulacra-ai/conversa/policy"
)

// RetryConfig mirrors policy.RetryOptions for YAML decoding. Durations are
// decoded from Go duration strings ("1s", "500ms").
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	BackoffFactor  float64       `yaml:"backoff_factor"`
}

// RateLimitConfig mirrors policy.RateLimitOptions. A zero Limit means the
// rate limit policy is not constructed.
type RateLimitConfig struct {
	Limit  int           `yaml:"limit"`
	Period time.Duration `yaml:"period"`
}

// TokenLimitConfig mirrors policy.TokenLimitOptions. A zero-valued config
// (no field set) means the token limit policy is not constructed.
type TokenLimitConfig struct {
	InputTokensPerPeriod  int           `yaml:"input_tokens_per_period"`
	OutputTokensPerPeriod int           `yaml:"output_tokens_per_period"`
	TotalTokensPerPeriod  int           `yaml:"total_tokens_per_period"`
	Period                time.Duration `yaml:"period"`
}

// TelemetryConfig selects which telemetry package constructors a caller
// should use. Backend is one of "noop", "clue", "otel", "prometheus";
// empty means "noop".
type TelemetryConfig struct {
	Backend             string `yaml:"backend"`
	OtelInstrumentation string `yaml:"otel_instrumentation_name"`
}

// SummarizeConfig overrides the default checkpoint summarization
// instruction text. Empty means summarize.Default's built-in instruction.
type SummarizeConfig struct {
	Instruction string `yaml:"instruction"`
}

// Config is the top-level document shape.
type Config struct {
	Retry      RetryConfig      `yaml:"retry"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	TokenLimit TokenLimitConfig `yaml:"token_limit"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Summarize  SummarizeConfig  `yaml:"summarize"`
}

// Default returns the configuration a Conversation falls back to when no
// YAML document is loaded: the teacher's own retry defaults, no rate or
// token limiting, and a noop telemetry backend.
func Default() Config {
	retry := policy.DefaultRetryOptions()
	return Config{
		Retry: RetryConfig{
			MaxAttempts:    retry.MaxAttempts,
			InitialBackoff: retry.InitialBackoff,
			BackoffFactor:  retry.BackoffFactor,
		},
		Telemetry: TelemetryConfig{Backend: "noop"},
	}
}

// Load reads the YAML document at path and decodes it with Parse, so any
// field the document omits keeps its Default value.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: load %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML document into a Config. Zero-valued retry fields
// are left as-is; policy.NewRetry itself backfills them from
// policy.DefaultRetryOptions, so Parse only needs to fill in the fields
// that have no such fallback elsewhere (Telemetry.Backend).
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	if cfg.Telemetry.Backend == "" {
		cfg.Telemetry.Backend = "noop"
	}
	return cfg, nil
}

// RetryOptions converts back to the type policy.NewRetry expects.
func (c Config) RetryOptions() policy.RetryOptions {
	return policy.RetryOptions{
		MaxAttempts:    c.Retry.MaxAttempts,
		InitialBackoff: c.Retry.InitialBackoff,
		BackoffFactor:  c.Retry.BackoffFactor,
	}
}

// RateLimitOptions converts back to the type policy.NewRateLimit expects.
// HasRateLimit reports whether the document actually configured one.
func (c Config) RateLimitOptions() policy.RateLimitOptions {
	return policy.RateLimitOptions{Limit: c.RateLimit.Limit, Period: c.RateLimit.Period}
}

func (c Config) HasRateLimit() bool { return c.RateLimit.Limit > 0 }

// TokenLimitOptions converts back to the type policy.NewTokenLimit
// expects. HasTokenLimit reports whether the document configured one.
func (c Config) TokenLimitOptions() policy.TokenLimitOptions {
	return policy.TokenLimitOptions{
		InputTokensPerPeriod:  c.TokenLimit.InputTokensPerPeriod,
		OutputTokensPerPeriod: c.TokenLimit.OutputTokensPerPeriod,
		TotalTokensPerPeriod:  c.TokenLimit.TotalTokensPerPeriod,
		Period:                c.TokenLimit.Period,
	}
}

func (c Config) HasTokenLimit() bool {
	return c.TokenLimit.TotalTokensPerPeriod > 0 || c.TokenLimit.InputTokensPerPeriod > 0 || c.TokenLimit.OutputTokensPerPeriod > 0
}
