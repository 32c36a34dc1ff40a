package transform_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/transform"
)

func mustUserMsg(t *testing.T, content ...model.Content) model.Message {
	t.Helper()
	m, err := model.NewUserMessage(content)
	require.NoError(t, err)
	return m
}

func mustAssistantMsg(t *testing.T, content ...model.Content) model.Message {
	t.Helper()
	m, err := model.NewAssistantMessage(content)
	require.NoError(t, err)
	return m
}

func TestOrphanPrunerDropsUnmatchedToolCalls(t *testing.T) {
	orphanCall := mustAssistantMsg(t, model.ToolUse("call-1", "get_weather", map[string]any{}))
	laterUser := mustUserMsg(t, model.Text("thanks"))

	messages := []model.Message{orphanCall, laterUser}
	out, err := (transform.OrphanPruner{}).TransformPrompt(messages, transform.Context{})
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Len(t, out[0].Content, 1)
	_, isText := out[0].Content[0].Block.(model.TextBlock)
	assert.True(t, isText, "orphaned tool block replaced with empty text placeholder")
}

func TestOrphanPrunerKeepsToolCallWithLaterResult(t *testing.T) {
	call := mustAssistantMsg(t, model.ToolUse("call-1", "get_weather", map[string]any{}))
	result := mustUserMsg(t, model.ToolResultContent("call-1", "get_weather", model.Success(nil)))

	out, err := (transform.OrphanPruner{}).TransformPrompt([]model.Message{call, result}, transform.Context{})
	require.NoError(t, err)

	require.Len(t, out, 2)
	require.Len(t, out[0].Content, 1)
	_, isTool := out[0].Content[0].Block.(model.ToolBlock)
	assert.True(t, isTool)
}

func TestCheckpointSubstitutionPassesThroughWithoutActiveCheckpoint(t *testing.T) {
	messages := []model.Message{mustUserMsg(t, model.Text("hi"))}
	out, err := (transform.CheckpointSubstitution{}).TransformPrompt(messages, transform.Context{})
	require.NoError(t, err)
	assert.Equal(t, messages, out)
}

func TestCheckpointSubstitutionPassesThroughWhenBoundaryMissing(t *testing.T) {
	messages := []model.Message{mustUserMsg(t, model.Text("hi"))}
	ctx := transform.Context{Checkpoint: &model.CheckpointState{MessageID: "nonexistent", Summary: "s"}}
	out, err := (transform.CheckpointSubstitution{}).TransformPrompt(messages, ctx)
	require.NoError(t, err)
	assert.Equal(t, messages, out)
}

func TestCheckpointSubstitutionKeepsAssistantBoundary(t *testing.T) {
	old := mustUserMsg(t, model.Text("old question"))
	boundary := mustAssistantMsg(t, model.Text("old answer"))
	after := mustUserMsg(t, model.Text("new question"))

	ctx := transform.Context{Checkpoint: &model.CheckpointState{MessageID: boundary.ID, Summary: "summary text"}}
	out, err := (transform.CheckpointSubstitution{}).TransformPrompt([]model.Message{old, boundary, after}, ctx)
	require.NoError(t, err)

	require.Len(t, out, 3)
	assert.Equal(t, model.RoleUser, out[0].Role)
	assert.Equal(t, "summary text", out[0].Text())
	assert.Equal(t, boundary.ID, out[1].ID)
	assert.Equal(t, after.ID, out[2].ID)
}

func TestCheckpointSubstitutionSkipsUserBoundary(t *testing.T) {
	old := mustAssistantMsg(t, model.Text("old answer"))
	boundary := mustUserMsg(t, model.Text("old question"))
	after := mustAssistantMsg(t, model.Text("new answer"))

	ctx := transform.Context{Checkpoint: &model.CheckpointState{MessageID: boundary.ID, Summary: "summary text"}}
	out, err := (transform.CheckpointSubstitution{}).TransformPrompt([]model.Message{old, boundary, after}, ctx)
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Equal(t, "summary text", out[0].Text())
	assert.Equal(t, after.ID, out[1].ID)
}

func TestCompositeAppliesChildrenInOrder(t *testing.T) {
	boundary := mustAssistantMsg(t, model.Text("answer"))
	after := mustAssistantMsg(t, model.ToolUse("call-9", "noop", map[string]any{}))
	ctx := transform.Context{Checkpoint: &model.CheckpointState{MessageID: boundary.ID, Summary: "s"}}

	composite := transform.NewComposite(transform.CheckpointSubstitution{}, transform.OrphanPruner{})
	out, err := composite.TransformPrompt([]model.Message{boundary, after}, ctx)
	require.NoError(t, err)

	require.Len(t, out, 3)
	_, isText := out[2].Content[0].Block.(model.TextBlock)
	assert.True(t, isText, "orphan pruner runs after checkpoint substitution and still prunes the dangling call")
}

type upperCaseProviderTransform struct{}

func (upperCaseProviderTransform) TransformPrompt(messages []model.Message) ([]model.Message, error) {
	out := make([]model.Message, 0, len(messages))
	for _, m := range messages {
		up, err := model.NewUserMessage([]model.Content{model.Text(strings.ToUpper(m.Text()))})
		if err != nil {
			return nil, err
		}
		out = append(out, up)
	}
	return out, nil
}

func TestRunProviderPromptNoOpWhenNotImplemented(t *testing.T) {
	messages := []model.Message{mustUserMsg(t, model.Text("hi"))}
	out, err := transform.RunProviderPrompt(struct{}{}, messages)
	require.NoError(t, err)
	assert.Equal(t, messages, out)
}

func TestRunProviderPromptInvokesImplementation(t *testing.T) {
	messages := []model.Message{mustUserMsg(t, model.Text("hi"))}
	out, err := transform.RunProviderPrompt(upperCaseProviderTransform{}, messages)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "HI", out[0].Text())
}
