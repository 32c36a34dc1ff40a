// Package model defines the provider-agnostic content, message, tool, and
// request/usage types conversa's core is built around: a typed, tagged
// union of content blocks assembled by the streaming state machine,
// strung into alternating user/assistant messages, and the tool/usage
// shapes providers and tools exchange with the conversation.
//
// Content and message identity is a stable hash of content (see hash.go),
// computed once at construction time and never recomputed by transforms
// (see the transform package's doc comment for why this is deliberate).
package model

import "time"

type (
	// Role identifies the speaker of a Message.
	Role string

	// Block is the marker interface implemented by every content-block
	// variant (TextBlock, ThinkingBlock, ToolBlock, ToolResultBlock,
	// RawBlock). Block values never carry id/timestamp/extended metadata
	// themselves — that's Content's job — so two otherwise-identical
	// blocks hash identically regardless of when or where they were
	// constructed.
	Block interface {
		blockKind() Kind
	}

	// Kind tags which Block variant a Content wraps.
	Kind string

	// Content is a single content block: a Block payload plus the
	// metadata every content block carries. ID is a stable hash of Block
	// when not explicitly supplied (see WithID).
	Content struct {
		Block     Block
		ID        string
		Timestamp *time.Time
		Extended  map[string]any
	}

	// TextBlock is plain text content, legal in both user and assistant
	// messages.
	TextBlock struct {
		Text string
	}

	// ThinkingBlock carries provider-issued reasoning content. Assistant
	// messages only.
	ThinkingBlock struct {
		Thought   string
		Signature string
	}

	// ToolBlock declares a tool invocation requested by the assistant.
	// Assistant messages only.
	ToolBlock struct {
		ToolRequestID string
		Tool          string
		Params        map[string]any
	}

	// ToolResultBlock carries the result of a tool invocation, supplied by
	// the user side in response to a prior ToolBlock. User messages only.
	ToolResultBlock struct {
		ToolRequestID string
		Tool          string
		Result        ToolResult
	}

	// RawBlock is an opaque, provider-specific payload — the escape hatch
	// for provider features the normalized model doesn't cover. ModelKind
	// identifies the originating provider family so a conversation
	// switched across providers can route raw blocks back to their
	// originator and degrade gracefully (render as text) elsewhere.
	RawBlock struct {
		ModelKind string
		Data      string
	}

	// ContentOption customizes a Content constructed by NewContent.
	ContentOption func(*Content)
)

const (
	KindText       Kind = "text"
	KindThinking   Kind = "thinking"
	KindTool       Kind = "tool"
	KindToolResult Kind = "tool_result"
	KindRaw        Kind = "raw"
)

const (
	// RoleUser identifies messages authored by the calling application
	// (including tool results, which are user-authored by convention).
	RoleUser Role = "user"
	// RoleAssistant identifies messages produced by the model.
	RoleAssistant Role = "assistant"
)

func (TextBlock) blockKind() Kind       { return KindText }
func (ThinkingBlock) blockKind() Kind   { return KindThinking }
func (ToolBlock) blockKind() Kind       { return KindTool }
func (ToolResultBlock) blockKind() Kind { return KindToolResult }
func (RawBlock) blockKind() Kind        { return KindRaw }

// Kind returns the content's block kind.
func (c Content) Kind() Kind {
	if c.Block == nil {
		return ""
	}
	return c.Block.blockKind()
}

// WithID overrides the default content-hash ID. Providers that must
// preserve a provider-issued identifier (e.g., a tool_use id that doubles
// as the block id) use this.
func WithID(id string) ContentOption {
	return func(c *Content) { c.ID = id }
}

// WithTimestamp attaches a timestamp to the content block.
func WithTimestamp(t time.Time) ContentOption {
	return func(c *Content) { c.Timestamp = &t }
}

// WithExtended attaches provider-specific adornments to the content block.
func WithExtended(extended map[string]any) ContentOption {
	return func(c *Content) { c.Extended = extended }
}

// NewContent wraps block into a Content, computing a stable hash ID unless
// WithID overrides it.
func NewContent(block Block, opts ...ContentOption) Content {
	c := Content{Block: block}
	for _, opt := range opts {
		opt(&c)
	}
	if c.ID == "" {
		c.ID = hashBlock(block)
	}
	return c
}

// Text is a convenience constructor for a text Content.
func Text(text string, opts ...ContentOption) Content {
	return NewContent(TextBlock{Text: text}, opts...)
}

// Thinking is a convenience constructor for a thinking Content.
func Thinking(thought, signature string, opts ...ContentOption) Content {
	return NewContent(ThinkingBlock{Thought: thought, Signature: signature}, opts...)
}

// ToolUse is a convenience constructor for a tool-invocation Content.
func ToolUse(toolRequestID, tool string, params map[string]any, opts ...ContentOption) Content {
	return NewContent(ToolBlock{ToolRequestID: toolRequestID, Tool: tool, Params: params}, opts...)
}

// ToolResultContent is a convenience constructor for a tool_result Content.
func ToolResultContent(toolRequestID, tool string, result ToolResult, opts ...ContentOption) Content {
	return NewContent(ToolResultBlock{ToolRequestID: toolRequestID, Tool: tool, Result: result}, opts...)
}

// Raw is a convenience constructor for a raw passthrough Content.
func Raw(modelKind, data string, opts ...ContentOption) Content {
	return NewContent(RawBlock{ModelKind: modelKind, Data: data}, opts...)
}
