package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/simulacra-ai/conversa/config"
	"github.com/simulacra-ai/conversa/conversation"
	"github.com/simulacra-ai/conversa/policy"
	"github.com/simulacra-ai/conversa/providers/anthropic"
	"github.com/simulacra-ai/conversa/providers/bedrock"
	"github.com/simulacra-ai/conversa/providers/openai"
	"github.com/simulacra-ai/conversa/sessionstore"
	"github.com/simulacra-ai/conversa/sessionstore/file"
)

func defaultStoreDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".conversa", "sessions")
	}
	return filepath.Join(home, ".conversa", "sessions")
}

// buildProvider resolves flags.provider into a conversation.Provider,
// reading its API key from flags.apiKey or the provider's conventional
// environment variable when flags.apiKey is empty.
func buildProvider(ctx context.Context, flags *rootFlags) (conversation.Provider, error) {
	switch flags.provider {
	case "anthropic", "":
		key := resolveAPIKey(flags.apiKey, "ANTHROPIC_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("demo: no Anthropic API key (set --api-key or ANTHROPIC_API_KEY)")
		}
		model := flags.model
		if model == "" {
			model = "claude-sonnet-4-5"
		}
		return anthropic.NewFromAPIKey(key, model)

	case "openai":
		key := resolveAPIKey(flags.apiKey, "OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("demo: no OpenAI API key (set --api-key or OPENAI_API_KEY)")
		}
		model := flags.model
		if model == "" {
			model = "gpt-4o"
		}
		return openai.NewFromAPIKey(key, model)

	case "bedrock":
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("demo: load AWS config: %w", err)
		}
		model := flags.model
		if model == "" {
			model = "anthropic.claude-3-5-sonnet-20241022-v2:0"
		}
		rt := bedrockruntime.NewFromConfig(cfg)
		return bedrock.NewFromClient(rt, bedrock.Options{DefaultModel: model})

	default:
		return nil, fmt.Errorf("demo: unknown provider %q (want anthropic, openai, or bedrock)", flags.provider)
	}
}

func resolveAPIKey(flagValue, envVar string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(envVar)
}

// buildPolicy loads flags.configPath (if set) and returns the retry policy
// it describes, layered with a rate limit when the document configured
// one. An empty configPath falls back to config.Default().
func buildPolicy(flags *rootFlags) (policy.Policy, error) {
	cfg := config.Default()
	if flags.configPath != "" {
		loaded, err := config.Load(flags.configPath)
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

func buildStore(flags *rootFlags) sessionstore.Store {
	return file.New(flags.storeDir)
}
