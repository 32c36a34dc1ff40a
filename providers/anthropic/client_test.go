package anthropic_test

import (
	"context"
	"encoding/json"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simulacra-ai/conversa/cancel"
	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/providers/anthropic"
	"github.com/simulacra-ai/conversa/stream"
)

// testDecoder feeds a fixed sequence of SSE events to ssestream.Stream,
// the same fake the teacher's own stream tests use.
type testDecoder struct {
	events []ssestream.Event
	i      int
}

func (d *testDecoder) Event() ssestream.Event { return d.events[d.i-1] }
func (d *testDecoder) Next() bool {
	if d.i >= len(d.events) {
		return false
	}
	d.i++
	return true
}
func (d *testDecoder) Close() error { return nil }
func (d *testDecoder) Err() error   { return nil }

func mustJSON(t *testing.T, raw string) []byte {
	t.Helper()
	var v sdk.MessageStreamEventUnion
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

type stubMessages struct {
	lastParams sdk.MessageNewParams
	stream     *ssestream.Stream[sdk.MessageStreamEventUnion]
}

func (s *stubMessages) NewStreaming(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion] {
	s.lastParams = body
	return s.stream
}

func textOnlyStream(t *testing.T) *ssestream.Stream[sdk.MessageStreamEventUnion] {
	t.Helper()
	events := []ssestream.Event{
		{Type: "message_start", Data: mustJSON(t, `{"type":"message_start"}`)},
		{Type: "content_block_start", Data: mustJSON(t, `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`)},
		{Type: "content_block_delta", Data: mustJSON(t, `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`)},
		{Type: "content_block_delta", Data: mustJSON(t, `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" there"}}`)},
		{Type: "content_block_stop", Data: mustJSON(t, `{"type":"content_block_stop","index":0}`)},
		{Type: "message_delta", Data: mustJSON(t, `{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"input_tokens":10,"output_tokens":3}}`)},
		{Type: "message_stop", Data: mustJSON(t, `{"type":"message_stop"}`)},
	}
	return ssestream.NewStream[sdk.MessageStreamEventUnion](&testDecoder{events: events}, nil)
}

func toolUseStream(t *testing.T) *ssestream.Stream[sdk.MessageStreamEventUnion] {
	t.Helper()
	events := []ssestream.Event{
		{Type: "message_start", Data: mustJSON(t, `{"type":"message_start"}`)},
		{Type: "content_block_start", Data: mustJSON(t, `{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"call-1","name":"get_weather"}}`)},
		{Type: "content_block_delta", Data: mustJSON(t, `{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"city\""}}`)},
		{Type: "content_block_delta", Data: mustJSON(t, `{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":":\"Paris\"}"}}`)},
		{Type: "content_block_stop", Data: mustJSON(t, `{"type":"content_block_stop","index":0}`)},
		{Type: "message_delta", Data: mustJSON(t, `{"type":"message_delta","delta":{"stop_reason":"tool_use"},"usage":{"input_tokens":12,"output_tokens":8}}`)},
		{Type: "message_stop", Data: mustJSON(t, `{"type":"message_stop"}`)},
	}
	return ssestream.NewStream[sdk.MessageStreamEventUnion](&testDecoder{events: events}, nil)
}

func recordingReceiver() (*stream.Listener, *[]stream.StreamEvent) {
	var events []stream.StreamEvent
	return stream.NewListener(func(evt stream.StreamEvent) { events = append(events, evt) }), &events
}

func userMessage(t *testing.T, text string) model.Message {
	t.Helper()
	m, err := model.NewUserMessage([]model.Content{model.Text(text)})
	require.NoError(t, err)
	return m
}

func TestExecuteRequestAssemblesTextResponse(t *testing.T) {
	stub := &stubMessages{stream: textOnlyStream(t)}
	cl, err := anthropic.New(stub, anthropic.Options{DefaultModel: "claude-test", MaxTokens: 256})
	require.NoError(t, err)

	receiver, events := recordingReceiver()
	src := cancel.NewSource()
	req := model.Request{Messages: []model.Message{userMessage(t, "hi")}}

	require.NoError(t, cl.ExecuteRequest(context.Background(), req, receiver, src.Token()))

	var complete *stream.CompleteMessageEvent
	for _, evt := range *events {
		if evt.Type == stream.EventCompleteMessage {
			c := evt.Complete
			complete = &c
		}
	}
	require.NotNil(t, complete)
	assert.Equal(t, "Hello there", complete.Message.Text())
	assert.Equal(t, model.StopEndTurn, complete.StopReason)
	assert.Equal(t, 10, complete.Usage.InputTokens)
	assert.Equal(t, 3, complete.Usage.OutputTokens)
}

func TestExecuteRequestAssemblesToolUseResponse(t *testing.T) {
	stub := &stubMessages{stream: toolUseStream(t)}
	cl, err := anthropic.New(stub, anthropic.Options{DefaultModel: "claude-test", MaxTokens: 256})
	require.NoError(t, err)

	receiver, events := recordingReceiver()
	src := cancel.NewSource()
	req := model.Request{Messages: []model.Message{userMessage(t, "weather?")}}

	require.NoError(t, cl.ExecuteRequest(context.Background(), req, receiver, src.Token()))

	var complete *stream.CompleteMessageEvent
	for _, evt := range *events {
		if evt.Type == stream.EventCompleteMessage {
			c := evt.Complete
			complete = &c
		}
	}
	require.NotNil(t, complete)
	require.True(t, complete.Message.HasToolUse())
	assert.Equal(t, model.StopToolUse, complete.StopReason)

	tb := complete.Message.Content[0].Block.(model.ToolBlock)
	assert.Equal(t, "call-1", tb.ToolRequestID)
	assert.Equal(t, "get_weather", tb.Tool)
	assert.Equal(t, "Paris", tb.Params["city"])
}

func TestNewRejectsMissingDefaultModel(t *testing.T) {
	_, err := anthropic.New(&stubMessages{}, anthropic.Options{})
	require.Error(t, err)
}
