// Package conversation implements the per-session state machine that
// turns a sequence of user prompts into model requests: it normalizes
// messages, runs the context-transformer pipeline, drives a Provider
// through the configured policy, accumulates history, and republishes
// every step of the exchange on an event bus so callers, loggers, and
// workflow drivers can observe it without polling.
package conversation

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/simulacra-ai/conversa/cancel"
	"github.com/simulacra-ai/conversa/eventbus"
	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/policy"
	"github.com/simulacra-ai/conversa/telemetry"
	"github.com/simulacra-ai/conversa/transform"
)

// State is one position in the conversation's lifecycle.
type State string

const (
	StateIdle              State = "idle"
	StateAwaitingResponse  State = "awaiting_response"
	StateStreamingResponse State = "streaming_response"
	StateStopping          State = "stopping"
	StateDisposed          State = "disposed"
)

func (s State) String() string { return string(s) }

// Options configures a new Conversation. Only Provider is required;
// every other field falls back to a harmless default.
type Options struct {
	SessionID   string
	Provider    Provider
	Toolkit     Toolkit
	Policy      policy.Policy
	Transformer transform.Transformer
	Summarizer  SummarizationStrategy
	System      string

	Bus     *eventbus.Bus
	Logger  telemetry.Logger
	Tracer  telemetry.Tracer
	Metrics telemetry.Metrics
}

// Conversation is the state machine governing a single session's
// request/response lifecycle. A zero Conversation is not usable; build
// one with New.
type Conversation struct {
	mu sync.Mutex

	sessionID   string
	provider    Provider
	toolkit     Toolkit
	plcy        policy.Policy
	transformer transform.Transformer
	summarizer  SummarizationStrategy
	system      string

	bus     *eventbus.Bus
	logger  telemetry.Logger
	tracer  telemetry.Tracer
	metrics telemetry.Metrics

	state      State
	history    []model.Message
	checkpoint *model.CheckpointState
	cancelSrc  *cancel.Source
}

// New builds a Conversation in the idle state.
func New(opts Options) (*Conversation, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("conversation: Provider is required")
	}

	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	plcy := opts.Policy
	if plcy == nil {
		plcy = policy.NewRetry(policy.DefaultRetryOptions())
	}

	bus := opts.Bus
	if bus == nil {
		bus = eventbus.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}

	return &Conversation{
		sessionID:   sessionID,
		provider:    opts.Provider,
		toolkit:     opts.Toolkit,
		plcy:        plcy,
		transformer: opts.Transformer,
		summarizer:  opts.Summarizer,
		system:      opts.System,
		bus:         bus,
		logger:      logger,
		tracer:      tracer,
		metrics:     metrics,
		state:       StateIdle,
	}, nil
}

// SessionID returns the identifier this conversation was created or
// spawned with.
func (c *Conversation) SessionID() string { return c.sessionID }

// State returns the conversation's current lifecycle state.
func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Bus returns the event bus this conversation (and its descendants, via
// bubbling) publishes on.
func (c *Conversation) Bus() *eventbus.Bus { return c.bus }

// History returns a copy of the conversation's accumulated messages.
func (c *Conversation) History() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Message, len(c.history))
	copy(out, c.history)
	return out
}

// ActiveCheckpoint returns the conversation's active checkpoint, or nil
// if none has been taken.
func (c *Conversation) ActiveCheckpoint() *model.CheckpointState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.checkpoint == nil {
		return nil
	}
	cp := *c.checkpoint
	return &cp
}

// setState transitions the conversation's state field. Callers must hold
// c.mu. It deliberately does not publish "state_change" itself — Emit runs
// subscriber handlers synchronously, and a handler calling back into any
// lock-taking Conversation method while c.mu is held would deadlock on
// Go's non-reentrant sync.Mutex. Callers publish state_change themselves,
// always after releasing c.mu (see emitStateChange).
func (c *Conversation) setState(s State) {
	c.state = s
}

// emitStateChange publishes "state_change". Callers must NOT hold c.mu.
func (c *Conversation) emitStateChange(s State) {
	c.bus.Emit("state_change", StateChangePayload{State: s})
}

// Event payload types. Each names the conversation-tree event it rides
// under; see Conversation.Bus.
type (
	StateChangePayload struct {
		State State
	}
	RawPayload struct {
		RequestID string
		Raw       any
	}
	ContentEventPayload struct {
		RequestID string
		Index     int
		Content   model.Content
	}
	MessageEventPayload struct {
		RequestID string
		Message   model.Message
	}
	PromptSendPayload struct {
		Message model.Message
	}
	RequestSuccessPayload struct {
		RequestID string
	}
	RequestErrorPayload struct {
		RequestID string
		Message   string
		Err       error
	}
	LifecycleErrorPayload struct {
		Stage string
		Err   error
	}
	CreateChildPayload struct {
		ChildSessionID string
		IsCheckpoint   bool
	}
)
