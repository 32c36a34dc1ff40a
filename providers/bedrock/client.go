// Package bedrock adapts the AWS Bedrock Converse streaming API to
// conversation.Provider: it translates a model.Request into
// bedrockruntime.ConverseStreamInput, drives the stream's event channel
// through a stream.Receiver, and maps Bedrock's stop reasons and usage onto
// conversa's normalized model types.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/simulacra-ai/conversa/cancel"
	"github.com/simulacra-ai/conversa/conversation"
	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/stream"
	"github.com/simulacra-ai/conversa/toolkit"
)

// Runtime captures the subset of the AWS Bedrock runtime client used by
// Client, so tests can substitute a fake. *bedrockruntime.Client satisfies
// it.
type Runtime interface {
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (StreamOutput, error)
}

// StreamOutput is the subset of *bedrockruntime.ConverseStreamOutput
// Client needs, letting tests substitute a fake event stream instead of a
// real HTTP response.
type StreamOutput interface {
	GetStream() *bedrockruntime.ConverseStreamEventStream
}

// Options configures Client's defaults.
type Options struct {
	DefaultModel string
	MaxTokens    int
	Temperature  float32
}

// Client implements conversation.Provider on top of AWS Bedrock Converse.
type Client struct {
	runtime Runtime
	opts    Options
	tools   []model.ToolDefinition
}

// New builds a Client from a Runtime, typically a runtime fake in tests.
func New(runtime Runtime, opts Options) (*Client, error) {
	if runtime == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("bedrock: default model identifier is required")
	}
	return &Client{runtime: runtime, opts: opts}, nil
}

// NewFromClient builds a Client from a real *bedrockruntime.Client.
func NewFromClient(client *bedrockruntime.Client, opts Options) (*Client, error) {
	if client == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	return New(runtimeAdapter{client}, opts)
}

// runtimeAdapter adapts *bedrockruntime.Client's concrete
// *bedrockruntime.ConverseStreamOutput return value to the Runtime/
// StreamOutput seam, since *bedrockruntime.ConverseStreamOutput already
// implements StreamOutput via its GetStream method.
type runtimeAdapter struct {
	client *bedrockruntime.Client
}

func (r runtimeAdapter) ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (StreamOutput, error) {
	return r.client.ConverseStream(ctx, params, optFns...)
}

// WithTools returns a copy of c that advertises defs to every subsequent
// request it drives. conversation.Conversation supplies its Toolkit's
// Definitions() through this, typically once at construction time.
func (c *Client) WithTools(defs []model.ToolDefinition) *Client {
	cp := *c
	cp.tools = defs
	return &cp
}

// Clone implements conversation.Provider: Client carries no per-call
// mutable state, so a child conversation can share the same instance.
func (c *Client) Clone() conversation.Provider { return c }

// ContextTransformers implements conversation.Provider. The Bedrock adapter
// does not rewrite prompts or completions of its own.
func (c *Client) ContextTransformers() []any { return nil }

// ExecuteRequest implements conversation.Provider.
func (c *Client) ExecuteRequest(ctx context.Context, req model.Request, receiver stream.Receiver, token cancel.Token) error {
	input, err := c.prepareRequest(req)
	if err != nil {
		return err
	}

	receiver.BeforeRequest(input)
	out, err := c.runtime.ConverseStream(ctx, input)
	receiver.RequestRaw(input)
	// ConverseStream rejects a malformed or unauthorized request before any
	// event is ever delivered, so this failure is returned directly and the
	// request-execution policy may retry it.
	if err != nil {
		return fmt.Errorf("bedrock: converse stream: %w", err)
	}

	es := out.GetStream()
	proc := newEventProcessor(receiver)
	events := es.Events()
loop:
	for {
		select {
		case <-token.AwaitCancellation():
			receiver.Cancel()
			_ = es.Close()
			return cancel.OperationCanceled
		case ev, ok := <-events:
			if !ok {
				break loop
			}
			receiver.StreamRaw(ev)
			if err := proc.handle(ev); err != nil {
				_ = es.Close()
				return proc.reportOrReturn(err)
			}
		}
	}
	if err := es.Err(); err != nil {
		_ = es.Close()
		return proc.reportOrReturn(fmt.Errorf("bedrock: stream: %w", err))
	}
	_ = es.Close()

	msg, err := model.NewAssistantMessage(proc.blocks)
	if err != nil {
		receiver.Error(fmt.Errorf("bedrock: assemble response: %w", err))
		return nil
	}
	receiver.ResponseRaw(proc.finalRaw)
	receiver.CompleteMessage(stream.CompleteMessageEvent{
		Message:    msg,
		StopReason: mapStopReason(proc.stopReason),
		Usage:      proc.usage,
	})
	return nil
}

func (c *Client) prepareRequest(req model.Request) (*bedrockruntime.ConverseStreamInput, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("bedrock: at least one message is required")
	}
	msgs, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	input := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(c.opts.DefaultModel),
		Messages: msgs,
	}
	if req.System != "" {
		input.System = []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: req.System},
		}
	}
	if cfg := c.inferenceConfig(); cfg != nil {
		input.InferenceConfig = cfg
	}
	if len(c.tools) > 0 {
		toolCfg, err := encodeTools(c.tools)
		if err != nil {
			return nil, err
		}
		input.ToolConfig = toolCfg
	}
	return input, nil
}

func (c *Client) inferenceConfig() *brtypes.InferenceConfiguration {
	var cfg brtypes.InferenceConfiguration
	if c.opts.MaxTokens > 0 {
		cfg.MaxTokens = aws.Int32(int32(c.opts.MaxTokens))
	}
	if c.opts.Temperature > 0 {
		cfg.Temperature = aws.Float32(c.opts.Temperature)
	}
	if cfg.MaxTokens == nil && cfg.Temperature == nil {
		return nil
	}
	return &cfg
}

func encodeMessages(msgs []model.Message) ([]brtypes.Message, error) {
	out := make([]brtypes.Message, 0, len(msgs))
	for _, m := range msgs {
		blocks := make([]brtypes.ContentBlock, 0, len(m.Content))
		for _, c := range m.Content {
			block, err := encodeBlock(c.Block)
			if err != nil {
				return nil, err
			}
			if block != nil {
				blocks = append(blocks, block)
			}
		}
		if len(blocks) == 0 {
			continue
		}
		var role brtypes.ConversationRole
		switch m.Role {
		case model.RoleUser:
			role = brtypes.ConversationRoleUser
		case model.RoleAssistant:
			role = brtypes.ConversationRoleAssistant
		default:
			return nil, fmt.Errorf("bedrock: unsupported message role %q", m.Role)
		}
		out = append(out, brtypes.Message{Role: role, Content: blocks})
	}
	if len(out) == 0 {
		return nil, errors.New("bedrock: no encodable messages")
	}
	return out, nil
}

func encodeBlock(b model.Block) (brtypes.ContentBlock, error) {
	switch v := b.(type) {
	case model.TextBlock:
		if v.Text == "" {
			return nil, nil
		}
		return &brtypes.ContentBlockMemberText{Value: v.Text}, nil
	case model.ToolBlock:
		doc := document.NewLazyDocument(v.Params)
		return &brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
			ToolUseId: aws.String(v.ToolRequestID),
			Name:      aws.String(v.Tool),
			Input:     doc,
		}}, nil
	case model.ToolResultBlock:
		tr := brtypes.ToolResultBlock{
			ToolUseId: aws.String(v.ToolRequestID),
			Content: []brtypes.ToolResultContentBlock{
				&brtypes.ToolResultContentBlockMemberText{Value: resultText(v.Result)},
			},
		}
		return &brtypes.ContentBlockMemberToolResult{Value: tr}, nil
	default:
		// ThinkingBlock and RawBlock round-trips are out of scope: Bedrock's
		// reasoningContent block carries an opaque signature this adapter
		// does not preserve across turns.
		return nil, nil
	}
}

func resultText(r model.ToolResult) string {
	if r.Message != "" {
		return r.Message
	}
	data, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	return string(data)
}

func encodeTools(defs []model.ToolDefinition) (*brtypes.ToolConfiguration, error) {
	tools := make([]brtypes.Tool, 0, len(defs))
	for _, def := range defs {
		schemaDoc := document.NewLazyDocument(toolkit.ParamsDocument(def.Parameters))
		tools = append(tools, &brtypes.ToolMemberToolSpec{Value: brtypes.ToolSpecification{
			Name:        aws.String(def.Name),
			Description: aws.String(def.Description),
			InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: schemaDoc},
		}})
	}
	return &brtypes.ToolConfiguration{Tools: tools}, nil
}

func mapStopReason(s brtypes.StopReason) model.StopReason {
	switch s {
	case brtypes.StopReasonEndTurn:
		return model.StopEndTurn
	case brtypes.StopReasonStopSequence:
		return model.StopStopSequence
	case brtypes.StopReasonMaxTokens:
		return model.StopMaxTokens
	case brtypes.StopReasonToolUse:
		return model.StopToolUse
	case "":
		return model.StopOther
	default:
		return model.StopOther
	}
}
