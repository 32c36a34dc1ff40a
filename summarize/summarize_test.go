package summarize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simulacra-ai/conversa/conversation"
	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/summarize"
)

func TestDefaultBuildPromptEndsInUserMessage(t *testing.T) {
	um, err := model.NewUserMessage([]model.Content{model.Text("what's the status?")})
	require.NoError(t, err)
	tb := model.ToolUse("call-1", "lookup", map[string]any{"id": 1})
	am, err := model.NewAssistantMessage([]model.Content{tb})
	require.NoError(t, err)

	messages, err := summarize.Default{}.BuildPrompt(conversation.SummarizationContext{
		SessionID: "sess-1",
		Messages:  []model.Message{um, am},
		System:    "You are a helpful assistant.",
	})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, model.RoleUser, messages[0].Role)

	text := messages[0].Text()
	assert.Contains(t, text, "System prompt:")
	assert.Contains(t, text, "You are a helpful assistant.")
	assert.Contains(t, text, "User: what's the status?")
	assert.Contains(t, text, "[Called tool: lookup]")
	assert.Contains(t, text, "concise, structured briefing")
}

func TestDefaultBuildPromptIncludesPreviousSummary(t *testing.T) {
	um, err := model.NewUserMessage([]model.Content{model.Text("continue")})
	require.NoError(t, err)

	messages, err := summarize.Default{}.BuildPrompt(conversation.SummarizationContext{
		Messages:           []model.Message{um},
		PreviousCheckpoint: &model.CheckpointState{MessageID: "prev-id", Summary: "earlier we set up the database"},
	})
	require.NoError(t, err)
	text := messages[0].Text()
	assert.Contains(t, text, "Previous summary:")
	assert.Contains(t, text, "earlier we set up the database")
}

func TestRenderTranscriptAnnotatesThinkingAndToolResults(t *testing.T) {
	am, err := model.NewAssistantMessage([]model.Content{
		model.Thinking("considering options", ""),
		model.Text("Here's the answer."),
	})
	require.NoError(t, err)
	um, err := model.NewUserMessage([]model.Content{
		model.ToolResultContent("call-1", "lookup", model.Success(map[string]any{"value": 42})),
	})
	require.NoError(t, err)

	out := summarize.RenderTranscript([]model.Message{am, um})
	assert.Contains(t, out, "Assistant: [Thinking: considering options] Here's the answer.")
	assert.Contains(t, out, "[Tool lookup returned:")
	assert.Contains(t, out, `"value":42`)
}

func TestRenderTranscriptFlattensMarkdownInTextBlocks(t *testing.T) {
	am, err := model.NewAssistantMessage([]model.Content{
		model.Text("# Heading\n\nSome **bold** text with a list:\n\n- one\n- two\n"),
	})
	require.NoError(t, err)

	out := summarize.RenderTranscript([]model.Message{am})
	assert.Contains(t, out, "Heading")
	assert.Contains(t, out, "Some bold text with a list")
	assert.Contains(t, out, "one")
	assert.Contains(t, out, "two")
	assert.NotContains(t, out, "#")
	assert.NotContains(t, out, "**")
}

func TestRenderTranscriptSkipsEmptyMessages(t *testing.T) {
	um, err := model.NewUserMessage(nil)
	require.NoError(t, err)
	am, err := model.NewAssistantMessage([]model.Content{model.Text("hi")})
	require.NoError(t, err)

	out := summarize.RenderTranscript([]model.Message{um, am})
	assert.Equal(t, "Assistant: hi", out)
}
