// Package summarize implements the default checkpoint summarization
// strategy a conversation.Conversation calls into when building a
// checkpoint: render everything since the last checkpoint as a transcript,
// wrap it with the previous summary and system prompt, and ask for a
// structured briefing a successor conversation can continue from.
package summarize

import (
	"fmt"
	"strings"

	"github.com/simulacra-ai/conversa/conversation"
	"github.com/simulacra-ai/conversa/model"
)

// Default is conversa's built-in conversation.SummarizationStrategy. It
// concatenates, into a single user message: the previous checkpoint's
// summary (if any), the system prompt (if any), a rendered transcript of
// every message since the last checkpoint, and an instruction asking for
// a concise structured briefing.
type Default struct {
	// Instruction overrides the fixed briefing instruction appended after
	// the transcript. Empty means briefingInstruction.
	Instruction string
}

// BuildPrompt implements conversation.SummarizationStrategy.
func (d Default) BuildPrompt(ctx conversation.SummarizationContext) ([]model.Message, error) {
	var b strings.Builder

	if ctx.PreviousCheckpoint != nil && ctx.PreviousCheckpoint.Summary != "" {
		b.WriteString("Previous summary:\n")
		b.WriteString(ctx.PreviousCheckpoint.Summary)
		b.WriteString("\n\n")
	}
	if ctx.System != "" {
		b.WriteString("System prompt:\n")
		b.WriteString(ctx.System)
		b.WriteString("\n\n")
	}
	b.WriteString("Transcript:\n")
	b.WriteString(RenderTranscript(ctx.Messages))
	b.WriteString("\n\n")
	if d.Instruction != "" {
		b.WriteString(d.Instruction)
	} else {
		b.WriteString(briefingInstruction)
	}

	um, err := model.NewUserMessage([]model.Content{model.Text(b.String())})
	if err != nil {
		return nil, fmt.Errorf("summarize: build prompt: %w", err)
	}
	return []model.Message{um}, nil
}

const briefingInstruction = "Write a concise, structured briefing of the conversation above for a successor who will continue it without seeing the original messages. Preserve: decisions made, the state of any in-progress work, facts established along the way, the outcome of every tool call, and explicit instructions the user gave. Omit plans that were later superseded."
