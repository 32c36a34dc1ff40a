package openai

import (
	"encoding/json"
	"strings"

	oai "github.com/openai/openai-go"

	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/stream"
)

// eventProcessor accumulates OpenAI's streaming chunks into the normalized
// content blocks stream.Receiver expects. Content index 0 is reserved for
// the text block (present or not); each tool call occupies index
// tc.Index+1, matching the per-call index OpenAI itself assigns tool call
// fragments across chunks.
type eventProcessor struct {
	receiver stream.Receiver

	started     bool
	completed   bool
	textStarted bool
	text        strings.Builder

	toolOrder []int
	toolID    map[int]string
	toolName  map[int]string
	toolArgs  map[int]*strings.Builder

	blocks       []model.Content
	finishReason string
	usage        model.Usage
	finalRaw     any
}

func newEventProcessor(receiver stream.Receiver) *eventProcessor {
	return &eventProcessor{
		receiver: receiver,
		toolID:   make(map[int]string),
		toolName: make(map[int]string),
		toolArgs: make(map[int]*strings.Builder),
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

func (p *eventProcessor) handle(chunk oai.ChatCompletionChunk) error {
	if !p.started {
		p.started = true
		p.receiver.StartMessage(stream.MessageEvent{})
	}
	p.finalRaw = chunk

	if chunk.Usage.TotalTokens > 0 || chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
		p.usage = model.Usage{
			InputTokens:  int(chunk.Usage.PromptTokens),
			OutputTokens: int(chunk.Usage.CompletionTokens),
		}
	}

	if len(chunk.Choices) == 0 {
		return nil
	}
	choice := chunk.Choices[0]
	delta := choice.Delta

	if delta.Content != "" {
		if !p.textStarted {
			p.textStarted = true
			p.receiver.StartContent(stream.ContentEvent{Index: 0, Content: model.Text("")})
		}
		p.text.WriteString(delta.Content)
		p.receiver.UpdateContent(stream.ContentEvent{Index: 0, Content: model.Text(p.text.String())})
	}

	for _, tc := range delta.ToolCalls {
		idx := int(tc.Index)
		args, seen := p.toolArgs[idx]
		if !seen {
			args = &strings.Builder{}
			p.toolArgs[idx] = args
			p.toolOrder = append(p.toolOrder, idx)
		}
		if tc.ID != "" {
			p.toolID[idx] = tc.ID
		}
		if tc.Function.Name != "" {
			p.toolName[idx] = tc.Function.Name
		}
		args.WriteString(tc.Function.Arguments)

		content := model.ToolUse(p.toolID[idx], p.toolName[idx], decodeToolParams(args.String()))
		if !seen {
			p.receiver.StartContent(stream.ContentEvent{Index: idx + 1, Content: content})
		} else {
			p.receiver.UpdateContent(stream.ContentEvent{Index: idx + 1, Content: content})
		}
	}

	if choice.FinishReason != "" && !p.completed {
		p.completed = true
		p.finishReason = string(choice.FinishReason)
		if p.textStarted {
			content := model.Text(p.text.String())
			p.receiver.CompleteContent(stream.ContentEvent{Index: 0, Content: content})
			p.blocks = append(p.blocks, content)
		}
		for _, idx := range p.toolOrder {
			content := model.ToolUse(p.toolID[idx], p.toolName[idx], decodeToolParams(p.toolArgs[idx].String()))
			p.receiver.CompleteContent(stream.ContentEvent{Index: idx + 1, Content: content})
			p.blocks = append(p.blocks, content)
		}
	}
	return nil
}

// finish returns the assembled content blocks for the completed message.
func (p *eventProcessor) finish() []model.Content { return p.blocks }

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
