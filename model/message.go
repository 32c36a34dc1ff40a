package model

import "time"

type (
	// Message is a single turn-level chat message. User messages may only
	// carry TextBlock/ToolResultBlock/RawBlock content; assistant messages
	// only TextBlock/ThinkingBlock/ToolBlock/RawBlock. Construct with
	// NewUserMessage/NewAssistantMessage so that invariant is enforced at
	// the boundary rather than left to callers.
	Message struct {
		Role      Role
		Content   []Content
		ID        string
		Timestamp *time.Time
	}

	// MessageOption customizes a Message constructed by NewUserMessage or
	// NewAssistantMessage.
	MessageOption func(*Message)
)

// WithMessageID overrides the default content-hash id for a Message.
func WithMessageID(id string) MessageOption {
	return func(m *Message) { m.ID = id }
}

// WithMessageTimestamp attaches a timestamp to a Message.
func WithMessageTimestamp(t time.Time) MessageOption {
	return func(m *Message) { m.Timestamp = &t }
}

// NewUserMessage constructs a user Message, rejecting content kinds that
// are assistant-only.
func NewUserMessage(content []Content, opts ...MessageOption) (Message, error) {
	for _, c := range content {
		switch c.Kind() {
		case KindThinking, KindTool:
			return Message{}, newRoleError(RoleUser, c.Kind())
		}
	}
	return newMessage(RoleUser, content, opts), nil
}

// NewAssistantMessage constructs an assistant Message, rejecting content
// kinds that are user-only.
func NewAssistantMessage(content []Content, opts ...MessageOption) (Message, error) {
	for _, c := range content {
		if c.Kind() == KindToolResult {
			return Message{}, newRoleError(RoleAssistant, c.Kind())
		}
	}
	return newMessage(RoleAssistant, content, opts), nil
}

func newMessage(role Role, content []Content, opts []MessageOption) Message {
	m := Message{Role: role, Content: content}
	for _, opt := range opts {
		opt(&m)
	}
	if m.ID == "" {
		m.ID = hashMessage(role, content)
	}
	return m
}

// HasToolUse reports whether the message contains at least one ToolBlock.
func (m Message) HasToolUse() bool {
	for _, c := range m.Content {
		if c.Kind() == KindTool {
			return true
		}
	}
	return false
}

// Text concatenates every TextBlock in the message, in order. It is used to
// derive checkpoint summaries (concatenating all assistant text blocks)
// and for rendering transcripts.
func (m Message) Text() string {
	var out string
	for _, c := range m.Content {
		if tb, ok := c.Block.(TextBlock); ok {
			out += tb.Text
		}
	}
	return out
}

// WithContent returns a copy of m with its content replaced. Messages are
// never mutated in place; transformers use this instead of mutating
// m.Content directly. The returned Message keeps m's existing ID and
// Timestamp — transforms never re-hash (see the transform package).
func (m Message) WithContent(content []Content) Message {
	m.Content = content
	return m
}

type roleError struct {
	role Role
	kind Kind
}

func newRoleError(role Role, kind Kind) error { return &roleError{role: role, kind: kind} }

func (e *roleError) Error() string {
	return "model: content kind " + string(e.kind) + " is not valid in a " + string(e.role) + " message"
}
