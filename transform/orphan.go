package transform

import "github.com/simulacra-ai/conversa/model"

// OrphanPruner drops assistant tool-call blocks that never received a
// matching tool_result later in the message list — the case left behind
// when a checkpoint boundary or manual history edit removes the result
// but not the call. It never rewrites the completion direction.
type OrphanPruner struct{}

func (OrphanPruner) TransformPrompt(messages []model.Message, _ Context) ([]model.Message, error) {
	satisfied := make(map[string]bool)
	out := make([]model.Message, len(messages))

	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]

		for _, c := range msg.Content {
			if tr, ok := c.Block.(model.ToolResultBlock); ok {
				satisfied[tr.ToolRequestID] = true
			}
		}

		kept := make([]model.Content, 0, len(msg.Content))
		for _, c := range msg.Content {
			if tb, ok := c.Block.(model.ToolBlock); ok && !satisfied[tb.ToolRequestID] {
				continue
			}
			kept = append(kept, c)
		}
		if len(kept) == 0 {
			kept = []model.Content{model.Text("")}
		}
		out[i] = msg.WithContent(kept)
	}

	return out, nil
}

func (OrphanPruner) TransformCompletion(msg model.Message) (model.Message, error) {
	return msg, nil
}
