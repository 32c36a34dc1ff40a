package workflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simulacra-ai/conversa/cancel"
	"github.com/simulacra-ai/conversa/eventbus"
	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/stream"
	"github.com/simulacra-ai/conversa/workflow"
)

func TestWorkflowSpawnChildBubblesEventsAsChildWorkflowEvent(t *testing.T) {
	parentProvider := &scriptedProvider{turns: []func(model.Request, stream.Receiver, cancel.Token) error{textTurn("parent done")}}
	parentConv := newConv(t, parentProvider, nil)
	parent, err := workflow.New(workflow.Options{Conversation: parentConv, ContextData: map[string]any{"tenant": "acme"}})
	require.NoError(t, err)

	childProvider := &scriptedProvider{turns: []func(model.Request, stream.Receiver, cancel.Token) error{textTurn("child done")}}
	childConv := newConv(t, childProvider, nil)

	var bubbled []eventbus.ChildEvent
	parent.Bus().On(func(evt eventbus.Event) {
		if evt.Name == "child_workflow_event" {
			bubbled = append(bubbled, evt.Payload.(eventbus.ChildEvent))
		}
	})

	child, err := parent.SpawnChild(workflow.SpawnOptions{ChildConversation: childConv})
	require.NoError(t, err)

	require.NoError(t, child.Start(context.Background(), "hi"))

	var sawWorkflowEnd bool
	for _, evt := range bubbled {
		if evt.Name == "workflow_end" {
			sawWorkflowEnd = true
			assert.Equal(t, workflow.ReasonComplete, evt.Payload.(workflow.WorkflowEndPayload).Reason)
		}
	}
	assert.True(t, sawWorkflowEnd, "expected child's workflow_end to bubble as child_workflow_event")
}

func TestWorkflowCancelCascadesToLiveChild(t *testing.T) {
	parentStarted := make(chan struct{})
	parentProvider := &scriptedProvider{turns: []func(model.Request, stream.Receiver, cancel.Token) error{cancelAwareTurn(parentStarted)}}
	parentConv := newConv(t, parentProvider, nil)
	parent, err := workflow.New(workflow.Options{Conversation: parentConv})
	require.NoError(t, err)

	childStarted := make(chan struct{})
	childProvider := &scriptedProvider{turns: []func(model.Request, stream.Receiver, cancel.Token) error{cancelAwareTurn(childStarted)}}
	childConv := newConv(t, childProvider, nil)

	child, err := parent.SpawnChild(workflow.SpawnOptions{ChildConversation: childConv})
	require.NoError(t, err)

	parentDone := make(chan error, 1)
	go func() { parentDone <- parent.Start(context.Background(), "hi") }()
	<-parentStarted

	childDone := make(chan error, 1)
	go func() { childDone <- child.Start(context.Background(), "hi") }()
	<-childStarted

	require.NoError(t, parent.Cancel())
	require.ErrorIs(t, <-parentDone, cancel.OperationCanceled)
	require.ErrorIs(t, <-childDone, cancel.OperationCanceled)

	assert.Equal(t, workflow.StateDisposed, parent.State())
	assert.Equal(t, workflow.StateDisposed, child.State())
}
