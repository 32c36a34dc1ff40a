package main

import (
	"github.com/spf13/cobra"
)

// rootFlags are the persistent flags every subcommand reads to build its
// provider/policy/store stack.
type rootFlags struct {
	provider   string
	model      string
	apiKey     string
	configPath string
	storeDir   string
	sessionID  string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Drive a conversa conversation from the terminal",
		Long: `demo is a minimal terminal client for conversa. It loads a named
session from a YAML store on disk, sends it through a configurable model
provider, and saves the updated history back when the exchange completes.`,
	}

	cmd.PersistentFlags().StringVar(&flags.provider, "provider", "anthropic",
		"model provider to use: anthropic, openai, or bedrock")
	cmd.PersistentFlags().StringVar(&flags.model, "model", "",
		"model identifier; defaults to the provider's own default")
	cmd.PersistentFlags().StringVar(&flags.apiKey, "api-key", "",
		"API key for the selected provider; falls back to its *_API_KEY environment variable")
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "",
		"path to a policy/telemetry YAML document; omit to use built-in defaults")
	cmd.PersistentFlags().StringVar(&flags.storeDir, "store-dir", defaultStoreDir(),
		"directory holding one YAML file per session")
	cmd.PersistentFlags().StringVar(&flags.sessionID, "session", "default",
		"session identifier to load, extend, and save")

	cmd.AddCommand(buildSendCmd(flags), buildChatCmd(flags), buildSessionsCmd(flags))
	return cmd
}
