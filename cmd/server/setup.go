package main

import (
	"context"
	"fmt"
	"os"

	"github.com/simulacra-ai/conversa/config"
	"github.com/simulacra-ai/conversa/conversation"
	"github.com/simulacra-ai/conversa/policy"
	"github.com/simulacra-ai/conversa/providers/anthropic"
	"github.com/simulacra-ai/conversa/providers/openai"
)

// buildProvider mirrors cmd/demo's provider selection (anthropic by
// default, openai when MODEL_PROVIDER says so) but reads entirely from
// the environment, since this binary has no flag parsing of its own.
func buildProvider(ctx context.Context) (conversation.Provider, error) {
	model := envOr("MODEL", "")
	switch envOr("MODEL_PROVIDER", "anthropic") {
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("server: OPENAI_API_KEY is required")
		}
		if model == "" {
			model = "gpt-4o"
		}
		return openai.NewFromAPIKey(key, model)
	default:
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("server: ANTHROPIC_API_KEY is required")
		}
		if model == "" {
			model = "claude-sonnet-4-5"
		}
		return anthropic.NewFromAPIKey(key, model)
	}
}

func buildPolicy() (policy.Policy, error) {
	cfg := config.Default()
	if path := os.Getenv("CONVERSA_CONFIG"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	layers := []policy.Policy{policy.NewRetry(cfg.RetryOptions())}
	if cfg.HasRateLimit() {
		layers = append(layers, policy.NewRateLimit(cfg.RateLimitOptions()))
	}
	if len(layers) == 1 {
		return layers[0], nil
	}
	return policy.NewComposite(layers...), nil
}
