// Package openai adapts github.com/openai/openai-go's Chat Completions API
// to conversation.Provider: it translates a model.Request into
// oai.ChatCompletionNewParams, drives the streaming response through a
// stream.Receiver, and maps OpenAI's finish reasons and usage onto
// conversa's normalized model types.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/shared"

	"github.com/simulacra-ai/conversa/cancel"
	"github.com/simulacra-ai/conversa/conversation"
	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/stream"
	"github.com/simulacra-ai/conversa/toolkit"
)

// ChatCompletions captures the subset of the OpenAI SDK used by Client, so
// tests can substitute a fake. client.Chat.Completions satisfies it.
type ChatCompletions interface {
	NewStreaming(ctx context.Context, body oai.ChatCompletionNewParams, opts ...option.RequestOption) *ssestream.Stream[oai.ChatCompletionChunk]
}

// Options configures Client's defaults.
type Options struct {
	DefaultModel string
	MaxTokens    int
	Temperature  float64
}

// Client implements conversation.Provider on top of OpenAI Chat
// Completions.
type Client struct {
	chat  ChatCompletions
	opts  Options
	tools []model.ToolDefinition
}

// New builds a Client from an already-constructed OpenAI chat completions
// client.
func New(chat ChatCompletions, opts Options) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openai: chat completions client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("openai: default model identifier is required")
	}
	return &Client{chat: chat, opts: opts}, nil
}

// NewFromAPIKey constructs a Client configured from apiKey directly rather
// than the OPENAI_API_KEY environment variable a caller may not want to
// rely on implicitly.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	oc := oai.NewClient(option.WithAPIKey(apiKey))
	return New(&oc.Chat.Completions, Options{DefaultModel: defaultModel})
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

// ContextTransformers implements conversation.Provider. The OpenAI adapter
// does not rewrite prompts or completions of its own.
func (c *Client) ContextTransformers() []any { return nil }

// ExecuteRequest implements conversation.Provider.
func (c *Client) ExecuteRequest(ctx context.Context, req model.Request, receiver stream.Receiver, token cancel.Token) error {
	params, err := c.prepareRequest(req)
	if err != nil {
		return err
	}

	receiver.BeforeRequest(params)
	iter := c.chat.NewStreaming(ctx, *params)
	receiver.RequestRaw(params)

	// A request-level rejection (bad auth, malformed body) surfaces
	// through Err() before the first Next() call ever succeeds; nothing
	// has streamed yet at that point, so the failure is returned directly
	// and the request-execution policy may retry it.
	if err := iter.Err(); err != nil {
		_ = iter.Close()
		return fmt.Errorf("openai: stream: %w", err)
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
		return proc.reportOrReturn(fmt.Errorf("openai: stream: %w", err))
	}
	_ = iter.Close()

	blocks := proc.finish()
	msg, err := model.NewAssistantMessage(blocks)
	if err != nil {
		receiver.Error(fmt.Errorf("openai: assemble response: %w", err))
		return nil
	}
	receiver.ResponseRaw(proc.finalRaw)
	receiver.CompleteMessage(stream.CompleteMessageEvent{
		Message:    msg,
		StopReason: mapFinishReason(proc.finishReason),
		Usage:      proc.usage,
	})
	return nil
}

func (c *Client) prepareRequest(req model.Request) (*oai.ChatCompletionNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("openai: at least one message is required")
	}
	msgs, err := encodeMessages(req)
	if err != nil {
		return nil, err
	}
	params := &oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.opts.DefaultModel),
		Messages: msgs,
		StreamOptions: oai.ChatCompletionStreamOptionsParam{
			IncludeUsage: param.NewOpt(true),
		},
	}
	if c.opts.Temperature > 0 {
		params.Temperature = param.NewOpt(c.opts.Temperature)
	}
	if c.opts.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(c.opts.MaxTokens))
	}
	if len(c.tools) > 0 {
		params.Tools = encodeTools(c.tools)
	}
	return params, nil
}

func encodeMessages(req model.Request) ([]oai.ChatCompletionMessageParamUnion, error) {
	var out []oai.ChatCompletionMessageParamUnion
	if req.System != "" {
		out = append(out, oai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case model.RoleUser:
			encoded, err := encodeUserMessage(m)
			if err != nil {
				return nil, err
			}
			out = append(out, encoded...)
		case model.RoleAssistant:
			encoded, err := encodeAssistantMessage(m)
			if err != nil {
				return nil, err
			}
			out = append(out, encoded)
		default:
			return nil, fmt.Errorf("openai: unsupported message role %q", m.Role)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("openai: no encodable messages")
	}
	return out, nil
}

// encodeUserMessage splits a conversa user Message into OpenAI's wire
// shape: plain text becomes one "user" message, and each ToolResultBlock
// becomes its own "tool" message keyed by ToolRequestID, since OpenAI has
// no single-message equivalent of a user turn carrying both.
func encodeUserMessage(m model.Message) ([]oai.ChatCompletionMessageParamUnion, error) {
	var out []oai.ChatCompletionMessageParamUnion
	if text := m.Text(); text != "" {
		out = append(out, oai.UserMessage(text))
	}
	for _, c := range m.Content {
		trb, ok := c.Block.(model.ToolResultBlock)
		if !ok {
			continue
		}
		out = append(out, oai.ToolMessage(resultText(trb.Result), trb.ToolRequestID))
	}
	return out, nil
}

func encodeAssistantMessage(m model.Message) (oai.ChatCompletionMessageParamUnion, error) {
	asst := oai.ChatCompletionAssistantMessageParam{}
	if text := m.Text(); text != "" {
		asst.Content.OfString = oai.String(text)
	}
	for _, c := range m.Content {
		tb, ok := c.Block.(model.ToolBlock)
		if !ok {
			continue
		}
		args, err := json.Marshal(tb.Params)
		if err != nil {
			return oai.ChatCompletionMessageParamUnion{}, fmt.Errorf("openai: encode tool call arguments: %w", err)
		}
		asst.ToolCalls = append(asst.ToolCalls, oai.ChatCompletionMessageToolCallParam{
			ID: tb.ToolRequestID,
			Function: oai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tb.Tool,
				Arguments: string(args),
			},
		})
	}
	return oai.ChatCompletionMessageParamUnion{OfAssistant: &asst}, nil
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

func encodeTools(defs []model.ToolDefinition) []oai.ChatCompletionToolParam {
	out := make([]oai.ChatCompletionToolParam, 0, len(defs))
	for _, def := range defs {
		out = append(out, oai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        def.Name,
				Description: param.NewOpt(def.Description),
				Parameters:  shared.FunctionParameters(toolkit.ParamsDocument(def.Parameters)),
			},
		})
	}
	return out
}

func mapFinishReason(s string) model.StopReason {
	switch s {
	case "stop":
		return model.StopEndTurn
	case "length":
		return model.StopMaxTokens
	case "tool_calls":
		return model.StopToolUse
	case "":
		return model.StopOther
	default:
		return model.StopOther
	}
}
