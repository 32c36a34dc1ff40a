package bedrock

import (
	"encoding/json"
	"fmt"
	"strings"

	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/stream"
)

// eventProcessor accumulates Bedrock ConverseStream events into the
// normalized content blocks stream.Receiver expects.
type eventProcessor struct {
	receiver stream.Receiver

	started    bool
	text       map[int]*strings.Builder
	toolID     map[int]string
	toolName   map[int]string
	toolJSON   map[int]*strings.Builder
	blocks     []model.Content
	stopReason brtypes.StopReason
	usage      model.Usage
	finalRaw   any
}

func newEventProcessor(receiver stream.Receiver) *eventProcessor {
	return &eventProcessor{
		receiver: receiver,
		text:     make(map[int]*strings.Builder),
		toolID:   make(map[int]string),
		toolName: make(map[int]string),
		toolJSON: make(map[int]*strings.Builder),
	}
}

// reportOrReturn decides whether a mid-stream failure should be reported
// through the receiver (if any content has already streamed, so a retry
// could duplicate it) or returned directly (nothing streamed yet, safe to
// retry the whole call).
func (p *eventProcessor) reportOrReturn(err error) error {
	if p.started {
		p.receiver.Error(err)
		return nil
	}
	return err
}

func (p *eventProcessor) handle(event brtypes.ConverseStreamOutput) error {
	switch ev := event.(type) {
	case *brtypes.ConverseStreamOutputMemberMessageStart:
		p.started = true
		p.receiver.StartMessage(stream.MessageEvent{})
		return nil

	case *brtypes.ConverseStreamOutputMemberContentBlockStart:
		idx := int(ev.Value.ContentBlockIndex)
		start, ok := ev.Value.Start.(*brtypes.ContentBlockStartMemberToolUse)
		if !ok {
			return nil
		}
		if start.Value.ToolUseId == nil || *start.Value.ToolUseId == "" {
			return fmt.Errorf("bedrock: tool_use content block missing id")
		}
		if start.Value.Name == nil || *start.Value.Name == "" {
			return fmt.Errorf("bedrock: tool_use content block missing name")
		}
		p.toolID[idx] = *start.Value.ToolUseId
		p.toolName[idx] = *start.Value.Name
		p.toolJSON[idx] = &strings.Builder{}
		p.receiver.StartContent(stream.ContentEvent{
			Index:   idx,
			Content: model.ToolUse(p.toolID[idx], p.toolName[idx], nil),
		})
		return nil

	case *brtypes.ConverseStreamOutputMemberContentBlockDelta:
		idx := int(ev.Value.ContentBlockIndex)
		switch delta := ev.Value.Delta.(type) {
		case *brtypes.ContentBlockDeltaMemberText:
			if delta.Value == "" {
				return nil
			}
			b := p.text[idx]
			if b == nil {
				b = &strings.Builder{}
				p.text[idx] = b
				p.receiver.StartContent(stream.ContentEvent{Index: idx, Content: model.Text("")})
			}
			b.WriteString(delta.Value)
			p.receiver.UpdateContent(stream.ContentEvent{Index: idx, Content: model.Text(b.String())})
		case *brtypes.ContentBlockDeltaMemberToolUse:
			if delta.Value.Input == nil {
				return nil
			}
			b := p.toolJSON[idx]
			if b == nil {
				return fmt.Errorf("bedrock: tool input delta for content block %d with no preceding tool_use start", idx)
			}
			b.WriteString(*delta.Value.Input)
			params := decodeToolParams(b.String())
			p.receiver.UpdateContent(stream.ContentEvent{
				Index:   idx,
				Content: model.ToolUse(p.toolID[idx], p.toolName[idx], params),
			})
		}
		return nil

	case *brtypes.ConverseStreamOutputMemberContentBlockStop:
		idx := int(ev.Value.ContentBlockIndex)
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

	case *brtypes.ConverseStreamOutputMemberMessageStop:
		p.stopReason = ev.Value.StopReason
		return nil

	case *brtypes.ConverseStreamOutputMemberMetadata:
		p.finalRaw = ev
		if ev.Value.Usage == nil {
			return nil
		}
		u := ev.Value.Usage
		p.usage = model.Usage{
			InputTokens:          intFromPtr(u.InputTokens),
			OutputTokens:         intFromPtr(u.OutputTokens),
			CacheReadInputTokens: intFromPtr(u.CacheReadInputTokens),
		}
		return nil
	}
	return nil
}

func intFromPtr(p *int32) int {
	if p == nil {
		return 0
	}
	return int(*p)
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
