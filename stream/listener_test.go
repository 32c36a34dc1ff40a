package stream_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/stream"
)

func TestListenerFansOutEachMethod(t *testing.T) {
	var got []stream.EventType
	l := stream.NewListener(func(evt stream.StreamEvent) {
		got = append(got, evt.Type)
	})

	l.BeforeRequest(nil)
	l.RequestRaw(nil)
	l.StartContent(stream.ContentEvent{Index: 0, Content: model.Text("")})
	l.UpdateContent(stream.ContentEvent{Index: 0, Content: model.Text("hi")})
	l.CompleteContent(stream.ContentEvent{Index: 0, Content: model.Text("hi")})
	l.StartMessage(stream.MessageEvent{})
	l.UpdateMessage(stream.MessageEvent{})
	l.StreamRaw("chunk")
	l.ResponseRaw("final")
	l.CompleteMessage(stream.CompleteMessageEvent{StopReason: model.StopEndTurn})

	assert.Equal(t, []stream.EventType{
		stream.EventBeforeRequest,
		stream.EventRequestRaw,
		stream.EventStartContent,
		stream.EventUpdateContent,
		stream.EventCompleteContent,
		stream.EventStartMessage,
		stream.EventUpdateMessage,
		stream.EventStreamRaw,
		stream.EventResponseRaw,
		stream.EventCompleteMessage,
	}, got)
}

func TestListenerDropsEventsAfterTerminal(t *testing.T) {
	var got []stream.EventType
	l := stream.NewListener(func(evt stream.StreamEvent) {
		got = append(got, evt.Type)
	})

	l.CompleteMessage(stream.CompleteMessageEvent{})
	l.UpdateMessage(stream.MessageEvent{})
	l.StreamRaw("late")

	assert.Equal(t, []stream.EventType{stream.EventCompleteMessage}, got)
}

func TestListenerDropsAfterError(t *testing.T) {
	var got []stream.EventType
	l := stream.NewListener(func(evt stream.StreamEvent) {
		got = append(got, evt.Type)
	})

	l.Error(assert.AnError)
	l.CompleteMessage(stream.CompleteMessageEvent{})

	assert.Equal(t, []stream.EventType{stream.EventError}, got)
}

func TestListenerDropsAfterCancel(t *testing.T) {
	var got []stream.EventType
	l := stream.NewListener(func(evt stream.StreamEvent) {
		got = append(got, evt.Type)
	})

	l.Cancel()
	l.StartMessage(stream.MessageEvent{})

	assert.Equal(t, []stream.EventType{stream.EventCancel}, got)
}

func TestListenerRecoversCallbackPanicAsError(t *testing.T) {
	var got []stream.StreamEvent
	l := stream.NewListener(func(evt stream.StreamEvent) {
		got = append(got, evt)
		if evt.Type == stream.EventStartMessage {
			panic("boom")
		}
	})

	l.StartMessage(stream.MessageEvent{})

	require.Len(t, got, 2)
	assert.Equal(t, stream.EventStartMessage, got[0].Type)
	assert.Equal(t, stream.EventError, got[1].Type)
	require.Error(t, got[1].Err)
	assert.Contains(t, got[1].Err.Error(), "boom")
}

func TestListenerPanicDuringErrorDoesNotLoop(t *testing.T) {
	calls := 0
	l := stream.NewListener(func(evt stream.StreamEvent) {
		calls++
		panic("always panics")
	})

	assert.NotPanics(t, func() {
		l.Error(assert.AnError)
	})
	assert.Equal(t, 1, calls)
}
