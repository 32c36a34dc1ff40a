// Package anthropic adapts github.com/anthropics/anthropic-sdk-go's
// Messages API to conversation.Provider: it translates a model.Request
// into sdk.MessageNewParams, drives the streaming response through a
// stream.Receiver, and maps Anthropic's stop reasons and usage onto
// conversa's normalized model types.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/simulacra-ai/conversa/cancel"
	"github.com/simulacra-ai/conversa/conversation"
	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/stream"
	"github.com/simulacra-ai/conversa/toolkit"
)

// MessagesClient captures the subset of the Anthropic SDK used by Client,
// so tests can substitute a fake. *sdk.MessageService satisfies it.
type MessagesClient interface {
	NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion]
}

// Options configures Client's defaults.
type Options struct {
	DefaultModel string
	MaxTokens    int
	Temperature  float64
}

// Client implements conversation.Provider on top of Anthropic Claude
// Messages.
type Client struct {
	msg   MessagesClient
	opts  Options
	tools []model.ToolDefinition
}

// New builds a Client from an already-constructed Anthropic Messages
// client.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("anthropic: default model identifier is required")
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	return &Client{msg: msg, opts: opts}, nil
}

// NewFromAPIKey constructs a Client using the SDK's default HTTP client,
// configured from apiKey directly rather than the ANTHROPIC_API_KEY
// environment variable a caller may not want to rely on implicitly.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&ac.Messages, Options{DefaultModel: defaultModel})
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

// ContextTransformers implements conversation.Provider. The Anthropic
// adapter does not rewrite prompts or completions of its own.
func (c *Client) ContextTransformers() []any { return nil }

// ExecuteRequest implements conversation.Provider.
func (c *Client) ExecuteRequest(ctx context.Context, req model.Request, receiver stream.Receiver, token cancel.Token) error {
	params, err := c.prepareRequest(req)
	if err != nil {
		return err
	}

	receiver.BeforeRequest(params)
	iter := c.msg.NewStreaming(ctx, *params)
	receiver.RequestRaw(params)

	// Anthropic reports a request-level rejection (bad auth, malformed
	// body) through Err() before the first Next() call ever succeeds; at
	// that point nothing has streamed yet, so the failure is returned
	// directly and the request-execution policy may retry it.
	if err := iter.Err(); err != nil {
		_ = iter.Close()
		return fmt.Errorf("anthropic: stream: %w", err)
	}

	proc := newEventProcessor(receiver)
	for iter.Next() {
		select {
		case <-token.AwaitCancellation():
			receiver.Cancel()
			_ = iter.Close()
			return cancel.OperationCanceled
		default:
		}
		receiver.StreamRaw(iter.Current())
		if err := proc.handle(iter.Current()); err != nil {
			_ = iter.Close()
			return proc.reportOrReturn(err)
		}
	}
	if err := iter.Err(); err != nil {
		_ = iter.Close()
		return proc.reportOrReturn(fmt.Errorf("anthropic: stream: %w", err))
	}
	_ = iter.Close()

	msg, err := model.NewAssistantMessage(proc.blocks)
	if err != nil {
		receiver.Error(fmt.Errorf("anthropic: assemble response: %w", err))
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

func (c *Client) prepareRequest(req model.Request) (*sdk.MessageNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("anthropic: at least one message is required")
	}
	msgs, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	params := &sdk.MessageNewParams{
		Model:     sdk.Model(c.opts.DefaultModel),
		MaxTokens: int64(c.opts.MaxTokens),
		Messages:  msgs,
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if c.opts.Temperature > 0 {
		params.Temperature = sdk.Float(c.opts.Temperature)
	}
	if len(c.tools) > 0 {
		tools, err := encodeTools(c.tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}
	return params, nil
}

func encodeMessages(msgs []model.Message) ([]sdk.MessageParam, error) {
	out := make([]sdk.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		blocks := make([]sdk.ContentBlockParamUnion, 0, len(m.Content))
		for _, c := range m.Content {
			block, err := encodeBlock(c.Block)
			if err != nil {
				return nil, err
			}
			if block != nil {
				blocks = append(blocks, *block)
			}
		}
		if len(blocks) == 0 {
			continue
		}
		switch m.Role {
		case model.RoleUser:
			out = append(out, sdk.NewUserMessage(blocks...))
		case model.RoleAssistant:
			out = append(out, sdk.NewAssistantMessage(blocks...))
		default:
			return nil, fmt.Errorf("anthropic: unsupported message role %q", m.Role)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("anthropic: no encodable messages")
	}
	return out, nil
}

func encodeBlock(b model.Block) (*sdk.ContentBlockParamUnion, error) {
	switch v := b.(type) {
	case model.TextBlock:
		if v.Text == "" {
			return nil, nil
		}
		block := sdk.NewTextBlock(v.Text)
		return &block, nil
	case model.ToolBlock:
		block := sdk.NewToolUseBlock(v.ToolRequestID, v.Params, v.Tool)
		return &block, nil
	case model.ToolResultBlock:
		content := resultText(v.Result)
		block := sdk.NewToolResultBlock(v.ToolRequestID, content, !v.Result.Result)
		return &block, nil
	default:
		// ThinkingBlock and RawBlock round-trips are out of scope: a
		// conversation switching into/out of extended thinking mode
		// loses prior thinking content rather than re-sending the
		// provider-specific signature, which would tie this adapter to
		// Anthropic's exact thinking wire format.
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

func encodeTools(defs []model.ToolDefinition) ([]sdk.ToolUnionParam, error) {
	out := make([]sdk.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		schema := sdk.ToolInputSchemaParam{ExtraFields: toolkit.ParamsDocument(def.Parameters)}
		u := sdk.ToolUnionParamOfTool(schema, sanitizeName(def.Name))
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(def.Description)
		}
		out = append(out, u)
	}
	return out, nil
}

// sanitizeName maps conversa's tool names (which permit characters
// Anthropic's ^[a-zA-Z0-9_-]{1,128}$ constraint rejects) onto a safe
// identifier. conversa tool names are already restricted to that
// alphabet by convention, so this is presently the identity function; it
// exists as a seam rather than dead code, since a non-Anthropic tool
// source (mcpbridge, for instance) is not guaranteed to honor that
// convention.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, name)
}

func mapStopReason(s string) model.StopReason {
	switch s {
	case "end_turn":
		return model.StopEndTurn
	case "max_tokens":
		return model.StopMaxTokens
	case "stop_sequence":
		return model.StopStopSequence
	case "tool_use":
		return model.StopToolUse
	case "":
		return model.StopOther
	default:
		return model.StopOther
	}
}
