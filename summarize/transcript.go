package summarize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/simulacra-ai/conversa/model"
)

// RenderTranscript renders messages as alternating "User:"/"Assistant:"
// turns, one per line, with thinking blocks, tool calls, and tool results
// annotated inline. Any text content that itself contains Markdown is
// flattened to plain text first so it can't be mistaken for transcript
// structure once embedded.
func RenderTranscript(messages []model.Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		var speaker string
		switch m.Role {
		case model.RoleUser:
			speaker = "User"
		case model.RoleAssistant:
			speaker = "Assistant"
		default:
			speaker = string(m.Role)
		}
		body := renderContent(m.Content)
		if body == "" {
			continue
		}
		lines = append(lines, speaker+": "+body)
	}
	return strings.Join(lines, "\n")
}

func renderContent(content []model.Content) string {
	parts := make([]string, 0, len(content))
	for _, c := range content {
		switch block := c.Block.(type) {
		case model.TextBlock:
			if t := plainify(block.Text); t != "" {
				parts = append(parts, t)
			}
		case model.ThinkingBlock:
			if t := plainify(block.Thought); t != "" {
				parts = append(parts, fmt.Sprintf("[Thinking: %s]", t))
			}
		case model.ToolBlock:
			parts = append(parts, fmt.Sprintf("[Called tool: %s]", block.Tool))
		case model.ToolResultBlock:
			parts = append(parts, fmt.Sprintf("[Tool %s returned: %s]", block.Tool, renderToolResult(block.Result)))
		}
	}
	return strings.Join(parts, " ")
}

func renderToolResult(result model.ToolResult) string {
	if !result.Result {
		if result.Error != "" {
			return fmt.Sprintf("error (%s): %s", result.Error, result.Message)
		}
		return fmt.Sprintf("error: %s", result.Message)
	}
	data, err := json.Marshal(result)
	if err != nil {
		return "ok"
	}
	return string(data)
}
