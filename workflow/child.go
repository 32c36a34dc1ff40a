package workflow

import (
	"fmt"

	"github.com/simulacra-ai/conversa/conversation"
	"github.com/simulacra-ai/conversa/eventbus"
)

// SpawnOptions configures a child workflow.
type SpawnOptions struct {
	// ChildConversation is the (already constructed, typically via the
	// parent conversation's own SpawnChild) conversation the new workflow
	// drives.
	ChildConversation *conversation.Conversation
	// ContextData is merged on top of the parent's context data; entries
	// here take precedence on key collision.
	ContextData map[string]any
}

// SpawnChild builds a child Workflow sharing this workflow's tool
// registry and a merged copy of its context data. The child's events
// bubble up as "child_workflow_event"; if this workflow ever ends with
// reason cancel, the child is cancelled too (provided it is still live).
func (w *Workflow) SpawnChild(opts SpawnOptions) (*Workflow, error) {
	if opts.ChildConversation == nil {
		return nil, fmt.Errorf("workflow: spawn child: ChildConversation is required")
	}

	merged, err := deepMergeContextData(w.contextData, opts.ContextData)
	if err != nil {
		return nil, fmt.Errorf("workflow: spawn child: merge context data: %w", err)
	}

	child, err := New(Options{
		Conversation: opts.ChildConversation,
		Registry:     w.registry,
		ContextData:  merged,
	})
	if err != nil {
		return nil, err
	}

	w.bindChildBubbling(child)
	w.cascadeCancelTo(child)
	return child, nil
}

// bindChildBubbling re-emits every event the child publishes, wrapped as
// "child_workflow_event", on this workflow's own bus. The subscription
// detaches itself right after relaying the child's own "workflow_end",
// its final event before disposal.
func (w *Workflow) bindChildBubbling(child *Workflow) {
	var sub eventbus.Subscription
	sub = child.bus.On(func(evt eventbus.Event) {
		w.bus.Emit("child_workflow_event", eventbus.ChildEvent{Name: evt.Name, Payload: evt.Payload})
		if evt.Name == "workflow_end" {
			sub.Close()
		}
	})
}

// cascadeCancelTo registers a one-shot listener on w's own bus so that if
// w ends with reason cancel, child is cancelled too. Using bus.Once
// mirrors how a still-live child "registers once(workflow_end) on its
// parent" without needing a mutable list of live children: a child that
// already disposed itself simply no-ops when Cancel is called again.
func (w *Workflow) cascadeCancelTo(child *Workflow) {
	w.bus.Once("workflow_end", func(evt eventbus.Event) {
		payload, ok := evt.Payload.(WorkflowEndPayload)
		if ok && payload.Reason == ReasonCancel {
			_ = child.Cancel()
		}
	})
}
