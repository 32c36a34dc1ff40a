package workflow

import (
	"context"
	"sync"

	"github.com/simulacra-ai/conversa/conversation"
	"github.com/simulacra-ai/conversa/eventbus"
	"github.com/simulacra-ai/conversa/toolkit"
)

// ManagerState is one position in a Manager's aggregate busy/idle
// indicator.
type ManagerState string

const (
	ManagerIdle ManagerState = "idle"
	ManagerBusy ManagerState = "busy"
)

// ManagerStateChangePayload is published under "state_change" on a
// Manager's own bus.
type ManagerStateChangePayload struct {
	State ManagerState
}

// ManagerOptions configures a new Manager.
type ManagerOptions struct {
	Conversation *conversation.Conversation
	Registry     *toolkit.Registry
}

// Manager is the convenience layer that spares a caller from manually
// instantiating a Workflow per prompt: it watches a Conversation's
// "prompt_send" and, whenever no workflow is currently active, starts one
// and bubbles its events as "workflow_event". It also tracks
// "checkpoint_begin"/"checkpoint_complete" so a single aggregate busy
// indicator covers both ordinary turns and checkpoint summarization,
// which otherwise look to an external observer like silent idle time.
type Manager struct {
	conv     *conversation.Conversation
	registry *toolkit.Registry
	bus      *eventbus.Bus

	mu      sync.Mutex
	state   ManagerState
	current *Workflow
	sub     eventbus.Subscription
}

// NewManager builds a Manager attached to opts.Conversation.
func NewManager(opts ManagerOptions) *Manager {
	m := &Manager{
		conv:     opts.Conversation,
		registry: opts.Registry,
		bus:      eventbus.New(),
		state:    ManagerIdle,
	}
	m.sub = m.conv.Bus().On(m.handleConversationEvent)
	return m
}

// Bus returns the manager's own event bus, publishing "workflow_event"
// (bubbled from the currently active workflow) and "state_change".
func (m *Manager) Bus() *eventbus.Bus { return m.bus }

// State returns the manager's current aggregate busy/idle indicator.
func (m *Manager) State() ManagerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Dispose detaches the manager from its conversation's bus. Any workflow
// currently in flight keeps running to its own natural conclusion.
func (m *Manager) Dispose() {
	m.mu.Lock()
	sub := m.sub
	m.sub = nil
	m.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
}

func (m *Manager) setState(s ManagerState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	m.bus.Emit("state_change", ManagerStateChangePayload{State: s})
}

func (m *Manager) handleConversationEvent(evt eventbus.Event) {
	switch evt.Name {
	case "prompt_send":
		m.onPromptSend()
	case "checkpoint_begin":
		m.setState(ManagerBusy)
	case "checkpoint_complete":
		m.maybeReturnToIdle()
	}
}

func (m *Manager) onPromptSend() {
	m.mu.Lock()
	if m.current != nil {
		m.mu.Unlock()
		return
	}
	wf, err := New(Options{Conversation: m.conv, Registry: m.registry})
	if err != nil {
		m.mu.Unlock()
		return
	}
	m.current = wf
	m.mu.Unlock()

	m.bindWorkflowBubbling(wf)
	m.setState(ManagerBusy)

	// The prompt that triggered this event is already in flight (we are
	// observing it synchronously, mid-send); Start only needs to attach
	// the workflow's own listeners before the resulting message_complete
	// arrives.
	_ = wf.Start(context.Background(), "")
}

func (m *Manager) bindWorkflowBubbling(wf *Workflow) {
	var sub eventbus.Subscription
	sub = wf.Bus().On(func(evt eventbus.Event) {
		m.bus.Emit("workflow_event", eventbus.ChildEvent{Name: evt.Name, Payload: evt.Payload})
		if evt.Name == "workflow_end" {
			sub.Close()
			m.mu.Lock()
			m.current = nil
			m.mu.Unlock()
			m.maybeReturnToIdle()
		}
	})
}

// maybeReturnToIdle drops the manager to idle unless a workflow is still
// actively driving the conversation (it is not, by construction, when
// called from checkpoint_complete, since Checkpoint requires the
// conversation to be idle and therefore no workflow mid-turn).
func (m *Manager) maybeReturnToIdle() {
	m.mu.Lock()
	active := m.current != nil
	m.mu.Unlock()
	if !active {
		m.setState(ManagerIdle)
	}
}
