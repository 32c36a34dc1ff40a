package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/stream"
)

// eventProcessor accumulates Anthropic's streaming events into the
// normalized content blocks stream.Receiver expects, driving
// StartContent/UpdateContent/CompleteContent and StartMessage/
// UpdateMessage itself so Client.ExecuteRequest only needs to hand it
// every event in order.
type eventProcessor struct {
	receiver stream.Receiver

	started    bool
	text       map[int]*strings.Builder
	toolName   map[int]string
	toolID     map[int]string
	toolJSON   map[int]*strings.Builder
	blocks     []model.Content
	stopReason string
	usage      model.Usage
	finalRaw   any
}

func newEventProcessor(receiver stream.Receiver) *eventProcessor {
	return &eventProcessor{
		receiver: receiver,
		text:     make(map[int]*strings.Builder),
		toolName: make(map[int]string),
		toolID:   make(map[int]string),
		toolJSON: make(map[int]*strings.Builder),
	}
}

// reportOrReturn decides, per conversation.Provider's contract, whether a
// mid-stream failure should be reported through the receiver (if any
// content has already streamed, so a retry could duplicate it) or
// returned directly (nothing streamed yet, safe to retry the whole call).
func (p *eventProcessor) reportOrReturn(err error) error {
	if p.started {
		p.receiver.Error(err)
		return nil
	}
	return err
}

func (p *eventProcessor) handle(event sdk.MessageStreamEventUnion) error {
	switch ev := event.AsAny().(type) {
	case sdk.MessageStartEvent:
		p.started = true
		p.receiver.StartMessage(stream.MessageEvent{})
		return nil

	case sdk.ContentBlockStartEvent:
		idx := int(ev.Index)
		switch block := ev.ContentBlock.AsAny().(type) {
		case sdk.TextBlock:
			p.text[idx] = &strings.Builder{}
			p.receiver.StartContent(stream.ContentEvent{Index: idx, Content: model.Text("")})
		case sdk.ToolUseBlock:
			if block.ID == "" || block.Name == "" {
				return fmt.Errorf("anthropic: tool_use content block missing id or name")
			}
			p.toolID[idx] = block.ID
			p.toolName[idx] = block.Name
			p.toolJSON[idx] = &strings.Builder{}
			p.receiver.StartContent(stream.ContentEvent{
				Index:   idx,
				Content: model.ToolUse(block.ID, block.Name, nil),
			})
		}
		return nil

	case sdk.ContentBlockDeltaEvent:
		idx := int(ev.Index)
		switch delta := ev.Delta.AsAny().(type) {
		case sdk.TextDelta:
			if delta.Text == "" {
				return nil
			}
			b := p.text[idx]
			if b == nil {
				b = &strings.Builder{}
				p.text[idx] = b
			}
			b.WriteString(delta.Text)
			p.receiver.UpdateContent(stream.ContentEvent{Index: idx, Content: model.Text(b.String())})
		case sdk.InputJSONDelta:
			if delta.PartialJSON == "" {
				return nil
			}
			b := p.toolJSON[idx]
			if b == nil {
				return fmt.Errorf("anthropic: tool input delta for content block %d with no preceding tool_use start", idx)
			}
			b.WriteString(delta.PartialJSON)
			params := decodeToolParams(b.String())
			p.receiver.UpdateContent(stream.ContentEvent{
				Index:   idx,
				Content: model.ToolUse(p.toolID[idx], p.toolName[idx], params),
			})
		}
		return nil

	case sdk.ContentBlockStopEvent:
		idx := int(ev.Index)
		var content model.Content
		switch {
		case p.text[idx] != nil:
			content = model.Text(p.text[idx].String())
		case p.toolName[idx] != "":
			content = model.ToolUse(p.toolID[idx], p.toolName[idx], decodeToolParams(p.toolJSON[idx].String()))
		default:
			return nil
		}
		p.receiver.CompleteContent(stream.ContentEvent{Index: idx, Content: content})
		p.blocks = append(p.blocks, content)
		return nil

	case sdk.MessageDeltaEvent:
		p.stopReason = string(ev.Delta.StopReason)
		p.usage = model.Usage{
			InputTokens:              int(ev.Usage.InputTokens),
			OutputTokens:             int(ev.Usage.OutputTokens),
			CacheCreationInputTokens: int(ev.Usage.CacheCreationInputTokens),
			CacheReadInputTokens:     int(ev.Usage.CacheReadInputTokens),
		}
		return nil

	case sdk.MessageStopEvent:
		p.finalRaw = ev
		return nil
	}
	return nil
}

func decodeToolParams(raw string) map[string]any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = "{}"
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return map[string]any{}
	}
	return out
}
