package conversation

import (
	"context"

	"github.com/simulacra-ai/conversa/cancel"
	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/stream"
)

type (
	// Provider drives a single model call. ExecuteRequest blocks for the
	// whole call: once it has started streaming content through receiver
	// it must call exactly one terminal Receiver method
	// (CompleteMessage, Error, or Cancel) and then return nil — a
	// non-nil return is reserved for failures before any content
	// streamed (connection refused, auth rejected, malformed handshake),
	// which is the only class of failure the request-execution policy
	// ever sees and may retry. A stream that fails mid-flight reports
	// that failure through receiver.Error, never through the return
	// value, so the policy never retries a partially-observed response.
	//
	// Clone returns an independent Provider a spawned child conversation
	// can use concurrently with the parent.
	//
	// ContextTransformers returns the provider's own prompt/completion
	// rewriters, re-read fresh on every request so a routing provider
	// may swap them between calls.
	Provider interface {
		ExecuteRequest(ctx context.Context, req model.Request, receiver stream.Receiver, token cancel.Token) error
		Clone() Provider
		ContextTransformers() []any
	}

	// Toolkit supplies the tool definitions advertised to a Provider on
	// every request.
	Toolkit interface {
		Definitions() []model.ToolDefinition
	}

	// SummarizationContext is handed to a SummarizationStrategy when a
	// checkpoint is being built.
	SummarizationContext struct {
		SessionID          string
		Messages           []model.Message
		PreviousCheckpoint *model.CheckpointState
		System             string
		Context            map[string]any
	}

	// SummarizationStrategy builds the prompt messages sent to a
	// checkpoint child conversation. The last returned message must have
	// role user.
	SummarizationStrategy interface {
		BuildPrompt(ctx SummarizationContext) ([]model.Message, error)
	}
)
