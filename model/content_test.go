package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simulacra-ai/conversa/model"
)

func TestContentIDStableAcrossReserialization(t *testing.T) {
	a := model.Text("hello")
	b := model.Text("hello")
	assert.Equal(t, a.ID, b.ID, "identical content must hash identically")

	c := model.Text("different")
	assert.NotEqual(t, a.ID, c.ID)
}

func TestContentIDIgnoresTimestampAndExtended(t *testing.T) {
	a := model.Text("hello")
	b := model.Text("hello", model.WithTimestamp(time.Unix(0, 0)), model.WithExtended(map[string]any{"foo": "bar"}))
	assert.Equal(t, a.ID, b.ID, "timestamp and extended metadata must not affect content identity")
}

func TestToolBlockHashIncludesParams(t *testing.T) {
	a := model.ToolUse("c1", "get_weather", map[string]any{"city": "Paris"})
	b := model.ToolUse("c1", "get_weather", map[string]any{"city": "London"})
	assert.NotEqual(t, a.ID, b.ID)
}

func TestMessageRoleValidation(t *testing.T) {
	_, err := model.NewUserMessage([]model.Content{model.Thinking("nope", "")})
	require.Error(t, err)

	_, err = model.NewAssistantMessage([]model.Content{
		model.ToolResultContent("c1", "tool", model.Success(nil)),
	})
	require.Error(t, err)

	msg, err := model.NewUserMessage([]model.Content{model.Text("hi")})
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, msg.Role)
	assert.NotEmpty(t, msg.ID)
}

func TestMessageIDStable(t *testing.T) {
	m1, err := model.NewUserMessage([]model.Content{model.Text("hi")})
	require.NoError(t, err)
	m2, err := model.NewUserMessage([]model.Content{model.Text("hi")})
	require.NoError(t, err)
	assert.Equal(t, m1.ID, m2.ID)
}

func TestToolResultJSONRoundTrip(t *testing.T) {
	ok := model.Success(map[string]any{"temp": float64(18)})
	b, err := ok.MarshalJSON()
	require.NoError(t, err)

	var decoded model.ToolResult
	require.NoError(t, decoded.UnmarshalJSON(b))
	assert.True(t, decoded.Result)
	assert.Equal(t, float64(18), decoded.Extra["temp"])

	fail := model.Failure("boom", "E_BOOM")
	b, err = fail.MarshalJSON()
	require.NoError(t, err)
	var decodedFail model.ToolResult
	require.NoError(t, decodedFail.UnmarshalJSON(b))
	assert.False(t, decodedFail.Result)
	assert.Equal(t, "boom", decodedFail.Message)
	assert.Equal(t, "E_BOOM", decodedFail.Error)
}

func TestUsageAddNormalizesNegatives(t *testing.T) {
	a := model.Usage{InputTokens: -5, OutputTokens: 10}
	b := model.Usage{InputTokens: 3, OutputTokens: -1}
	sum := a.Add(b)
	assert.Equal(t, 3, sum.InputTokens)
	assert.Equal(t, 10, sum.OutputTokens)
	assert.Equal(t, 13, sum.Total())
}
