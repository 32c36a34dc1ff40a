// Package workflow implements the agentic loop driver that sits on top of
// a Conversation: it watches for tool_use completions, executes the
// requested tools in parallel-respecting batches, feeds results back, and
// drains a follow-up queue until the loop terminates, all observable
// through its own event bus.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/simulacra-ai/conversa/conversation"
	"github.com/simulacra-ai/conversa/eventbus"
	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/toolkit"
)

// State is one position in a Workflow's lifecycle.
type State string

const (
	StateIdle     State = "idle"
	StateBusy     State = "busy"
	StateDisposed State = "disposed"
)

// EndReason names why a Workflow stopped.
type EndReason string

const (
	ReasonComplete EndReason = "complete"
	ReasonError    EndReason = "error"
	ReasonCancel   EndReason = "cancel"
)

// ErrInvalidState is returned when an operation is attempted from a
// lifecycle state that does not permit it.
var ErrInvalidState = errors.New("workflow: invalid state for operation")

// ErrDisposed is returned by any operation attempted on a disposed
// Workflow.
var ErrDisposed = errors.New("workflow: already disposed")

type (
	// WorkflowEndPayload is published under "workflow_end" (and bubbled as
	// "workflow_event"/"child_workflow_event") when the loop terminates.
	WorkflowEndPayload struct {
		Reason EndReason
		Err    error
	}

	// MessageDequeuedPayload is published under "message_dequeued" when a
	// queued follow-up prompt is popped and sent.
	MessageDequeuedPayload struct {
		Text string
	}
)

// Options configures a new Workflow.
type Options struct {
	Conversation *conversation.Conversation
	Registry     *toolkit.Registry
	ContextData  map[string]any
}

// Workflow drives a single Conversation's agentic loop: tool execution
// after tool_use completions, follow-up queue draining, and cancellation.
// It implements toolkit.WorkflowHandle so tools can queue and clear
// follow-ups; child workflows are spawned through SpawnChild.
type Workflow struct {
	conv        *conversation.Conversation
	registry    *toolkit.Registry
	contextData map[string]any
	bus         *eventbus.Bus

	mu        sync.Mutex
	state     State
	queue     []string
	instances *toolkit.Instances
	ctx       context.Context
	convSubs  []eventbus.Subscription
}

// New builds an idle Workflow bound to opts.Conversation. Registry may be
// nil if the conversation never produces tool_use.
func New(opts Options) (*Workflow, error) {
	if opts.Conversation == nil {
		return nil, fmt.Errorf("workflow: Conversation is required")
	}
	data := opts.ContextData
	if data == nil {
		data = map[string]any{}
	}
	return &Workflow{
		conv:        opts.Conversation,
		registry:    opts.Registry,
		contextData: data,
		bus:         eventbus.New(),
		state:       StateIdle,
	}, nil
}

// Bus returns the workflow's own event bus, publishing "workflow_end",
// "message_dequeued", and "child_workflow_event".
func (w *Workflow) Bus() *eventbus.Bus { return w.bus }

// State returns the workflow's current lifecycle state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Start attaches the workflow to its conversation's event bus and moves to
// busy. If initialUserMessage is non-empty, Start sends it itself
// (blocking until the conversation reaches a terminal outcome, which may
// recursively drive the entire rest of the loop through the handlers
// attached below); an empty string means the prompt was already sent by
// the caller (e.g. a Manager reacting to a "prompt_send" it just
// observed) and Start only needs to begin observing.
func (w *Workflow) Start(ctx context.Context, initialUserMessage string) error {
	w.mu.Lock()
	if w.state != StateIdle {
		st := w.state
		w.mu.Unlock()
		return fmt.Errorf("%w: start requires idle, got %s", ErrInvalidState, st)
	}
	w.state = StateBusy
	w.ctx = ctx
	convBus := w.conv.Bus()
	w.convSubs = []eventbus.Subscription{
		convBus.On(w.handleConversationEvent),
	}
	w.mu.Unlock()

	if initialUserMessage != "" {
		return w.conv.Prompt(ctx, initialUserMessage)
	}
	return nil
}

// QueueMessage appends text to the FIFO of follow-up prompts drained when
// the agentic loop would otherwise terminate normally. Implements
// toolkit.WorkflowHandle.
func (w *Workflow) QueueMessage(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.queue = append(w.queue, text)
}

// ClearQueue empties the follow-up queue. Implements
// toolkit.WorkflowHandle.
func (w *Workflow) ClearQueue() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.queue = nil
}

func (w *Workflow) popQueue() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return "", false
	}
	text := w.queue[0]
	w.queue = w.queue[1:]
	return text, true
}

// Cancel cancels the underlying conversation's in-flight request (if any),
// ends the workflow with reason cancel, cascades cancellation to any
// still-live children, and disposes.
func (w *Workflow) Cancel() error {
	w.mu.Lock()
	if w.state == StateDisposed {
		w.mu.Unlock()
		return ErrDisposed
	}
	w.mu.Unlock()

	if err := w.conv.CancelResponse(); err != nil && !errors.Is(err, conversation.ErrInvalidState) {
		return err
	}
	w.end(ReasonCancel, nil)
	return w.dispose()
}

// end publishes "workflow_end".
func (w *Workflow) end(reason EndReason, err error) {
	w.bus.Emit("workflow_end", WorkflowEndPayload{Reason: reason, Err: err})
}

// Dispose detaches the workflow from its conversation's bus and moves to
// disposed. It is legal to call directly, but the loop calls it
// automatically once it reaches a terminal state.
func (w *Workflow) Dispose() error {
	return w.dispose()
}

func (w *Workflow) dispose() error {
	w.mu.Lock()
	if w.state == StateDisposed {
		w.mu.Unlock()
		return ErrInvalidState
	}
	w.state = StateDisposed
	subs := w.convSubs
	w.convSubs = nil
	w.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	return nil
}

func (w *Workflow) isBusy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == StateBusy
}

func (w *Workflow) handleConversationEvent(evt eventbus.Event) {
	switch evt.Name {
	case "message_complete":
		if payload, ok := evt.Payload.(model.MessageCompletePayload); ok {
			w.onMessageComplete(payload)
		}
	case "request_error":
		if payload, ok := evt.Payload.(conversation.RequestErrorPayload); ok {
			w.onRequestError(payload)
		}
	}
}

func (w *Workflow) onRequestError(payload conversation.RequestErrorPayload) {
	if !w.isBusy() {
		return
	}
	w.end(ReasonError, payload.Err)
	_ = w.dispose()
}

func (w *Workflow) onMessageComplete(payload model.MessageCompletePayload) {
	if !w.isBusy() {
		return
	}

	if payload.StopReason == model.StopToolUse {
		w.runAgenticToolTurn(payload.Message)
		return
	}

	text, ok := w.popQueue()
	if !ok {
		w.end(ReasonComplete, nil)
		_ = w.dispose()
		return
	}

	w.bus.Emit("message_dequeued", MessageDequeuedPayload{Text: text})
	if err := w.conv.Prompt(w.ctx, text); err != nil && !w.isBusy() {
		// The conversation-level error, if any, already surfaced via its own
		// request_error event and this workflow's onRequestError handler;
		// nothing further to do here.
		return
	}
}

func (w *Workflow) runAgenticToolTurn(assistantMsg model.Message) {
	results, err := w.executeToolBatches(w.ctx, assistantMsg)
	if err != nil {
		w.bus.Emit("lifecycle_error", conversation.LifecycleErrorPayload{Stage: "tool_execution", Err: err})
		w.end(ReasonError, err)
		_ = w.dispose()
		return
	}
	if len(results) == 0 {
		// Either there were no tool blocks to run (shouldn't happen given
		// stop_reason was tool_use) or every remaining batch was abandoned
		// because the workflow stopped being busy mid-turn (e.g. Cancel).
		return
	}
	if !w.isBusy() {
		return
	}
	_ = w.conv.SendMessage(w.ctx, results)
}
