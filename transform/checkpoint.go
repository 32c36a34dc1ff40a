package transform

import "github.com/simulacra-ai/conversa/model"

// CheckpointSubstitution replaces the message history up to an active
// checkpoint's boundary message with a single synthetic user message
// carrying the checkpoint's summary. The boundary message itself is kept
// when it is an assistant message — it reads as the natural reply to the
// summary — and skipped when it is a user message.
type CheckpointSubstitution struct{}

func (CheckpointSubstitution) TransformPrompt(messages []model.Message, ctx Context) ([]model.Message, error) {
	if ctx.Checkpoint == nil {
		return messages, nil
	}

	boundary := -1
	for i, m := range messages {
		if m.ID == ctx.Checkpoint.MessageID {
			boundary = i
			break
		}
	}
	if boundary == -1 {
		return messages, nil
	}

	summary, err := model.NewUserMessage([]model.Content{model.Text(ctx.Checkpoint.Summary)})
	if err != nil {
		return nil, err
	}

	rest := messages[boundary+1:]
	if messages[boundary].Role == model.RoleAssistant {
		out := make([]model.Message, 0, len(rest)+2)
		out = append(out, summary, messages[boundary])
		return append(out, rest...), nil
	}

	out := make([]model.Message, 0, len(rest)+1)
	out = append(out, summary)
	return append(out, rest...), nil
}

func (CheckpointSubstitution) TransformCompletion(msg model.Message) (model.Message, error) {
	return msg, nil
}
