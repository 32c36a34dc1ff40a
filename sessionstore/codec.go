package sessionstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/simulacra-ai/conversa/model"
)

// WireContent is the serializable shape of a model.Content: every adapter
// that persists to a byte-oriented store (file/sql/sqlite/mongo) flattens
// the Block tagged union into this struct rather than each inventing its
// own encoding of the same five block kinds.
type WireContent struct {
	Kind      model.Kind     `json:"kind" yaml:"kind" bson:"kind"`
	ID        string         `json:"id" yaml:"id" bson:"id"`
	Timestamp *time.Time     `json:"timestamp,omitempty" yaml:"timestamp,omitempty" bson:"timestamp,omitempty"`
	Extended  map[string]any `json:"extended,omitempty" yaml:"extended,omitempty" bson:"extended,omitempty"`

	Text          string            `json:"text,omitempty" yaml:"text,omitempty" bson:"text,omitempty"`
	Thought       string            `json:"thought,omitempty" yaml:"thought,omitempty" bson:"thought,omitempty"`
	Signature     string            `json:"signature,omitempty" yaml:"signature,omitempty" bson:"signature,omitempty"`
	ToolRequestID string            `json:"tool_request_id,omitempty" yaml:"tool_request_id,omitempty" bson:"tool_request_id,omitempty"`
	Tool          string            `json:"tool,omitempty" yaml:"tool,omitempty" bson:"tool,omitempty"`
	Params        map[string]any    `json:"params,omitempty" yaml:"params,omitempty" bson:"params,omitempty"`
	Result        *model.ToolResult `json:"result,omitempty" yaml:"result,omitempty" bson:"result,omitempty"`
	ModelKind     string            `json:"model_kind,omitempty" yaml:"model_kind,omitempty" bson:"model_kind,omitempty"`
	Data          string            `json:"data,omitempty" yaml:"data,omitempty" bson:"data,omitempty"`
}

// WireMessage is the serializable shape of a model.Message.
type WireMessage struct {
	Role      model.Role    `json:"role" yaml:"role" bson:"role"`
	ID        string        `json:"id" yaml:"id" bson:"id"`
	Timestamp *time.Time    `json:"timestamp,omitempty" yaml:"timestamp,omitempty" bson:"timestamp,omitempty"`
	Content   []WireContent `json:"content" yaml:"content" bson:"content"`
}

func EncodeContent(c model.Content) WireContent {
	w := WireContent{Kind: c.Kind(), ID: c.ID, Timestamp: c.Timestamp, Extended: c.Extended}
	switch b := c.Block.(type) {
	case model.TextBlock:
		w.Text = b.Text
	case model.ThinkingBlock:
		w.Thought = b.Thought
		w.Signature = b.Signature
	case model.ToolBlock:
		w.ToolRequestID = b.ToolRequestID
		w.Tool = b.Tool
		w.Params = b.Params
	case model.ToolResultBlock:
		w.ToolRequestID = b.ToolRequestID
		w.Tool = b.Tool
		result := b.Result
		w.Result = &result
	case model.RawBlock:
		w.ModelKind = b.ModelKind
		w.Data = b.Data
	}
	return w
}

func DecodeContent(w WireContent) (model.Content, error) {
	var block model.Block
	switch w.Kind {
	case model.KindText:
		block = model.TextBlock{Text: w.Text}
	case model.KindThinking:
		block = model.ThinkingBlock{Thought: w.Thought, Signature: w.Signature}
	case model.KindTool:
		block = model.ToolBlock{ToolRequestID: w.ToolRequestID, Tool: w.Tool, Params: w.Params}
	case model.KindToolResult:
		if w.Result == nil {
			return model.Content{}, fmt.Errorf("sessionstore: tool_result content missing result")
		}
		block = model.ToolResultBlock{ToolRequestID: w.ToolRequestID, Tool: w.Tool, Result: *w.Result}
	case model.KindRaw:
		block = model.RawBlock{ModelKind: w.ModelKind, Data: w.Data}
	default:
		return model.Content{}, fmt.Errorf("sessionstore: unknown content kind %q", w.Kind)
	}
	opts := []model.ContentOption{model.WithID(w.ID)}
	if w.Timestamp != nil {
		opts = append(opts, model.WithTimestamp(*w.Timestamp))
	}
	if w.Extended != nil {
		opts = append(opts, model.WithExtended(w.Extended))
	}
	return model.NewContent(block, opts...), nil
}

func EncodeMessage(m model.Message) WireMessage {
	w := WireMessage{Role: m.Role, ID: m.ID, Timestamp: m.Timestamp}
	for _, c := range m.Content {
		w.Content = append(w.Content, EncodeContent(c))
	}
	return w
}

func DecodeMessage(w WireMessage) (model.Message, error) {
	content := make([]model.Content, 0, len(w.Content))
	for _, wc := range w.Content {
		c, err := DecodeContent(wc)
		if err != nil {
			return model.Message{}, err
		}
		content = append(content, c)
	}
	opts := []model.MessageOption{model.WithMessageID(w.ID)}
	if w.Timestamp != nil {
		opts = append(opts, model.WithMessageTimestamp(*w.Timestamp))
	}
	switch w.Role {
	case model.RoleUser:
		return model.NewUserMessage(content, opts...)
	case model.RoleAssistant:
		return model.NewAssistantMessage(content, opts...)
	default:
		return model.Message{}, fmt.Errorf("sessionstore: unknown message role %q", w.Role)
	}
}

// EncodeMessagesWire converts msgs into the wire representation every
// structured-document adapter (file/mongo) persists directly.
func EncodeMessagesWire(msgs []model.Message) []WireMessage {
	wire := make([]WireMessage, len(msgs))
	for i, m := range msgs {
		wire[i] = EncodeMessage(m)
	}
	return wire
}

// DecodeMessagesWire is the inverse of EncodeMessagesWire.
func DecodeMessagesWire(wire []WireMessage) ([]model.Message, error) {
	out := make([]model.Message, 0, len(wire))
	for _, w := range wire {
		m, err := DecodeMessage(w)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// MessagesToJSON marshals msgs into a single JSON array, the shape
// sessionstore/sql and sessionstore/sqlite store in a TEXT/JSONB column.
func MessagesToJSON(msgs []model.Message) ([]byte, error) {
	return json.Marshal(EncodeMessagesWire(msgs))
}

// MessagesFromJSON is the inverse of MessagesToJSON.
func MessagesFromJSON(data []byte) ([]model.Message, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var wire []WireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("sessionstore: decode messages: %w", err)
	}
	return DecodeMessagesWire(wire)
}
