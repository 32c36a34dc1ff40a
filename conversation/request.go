package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/simulacra-ai/conversa/cancel"
	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/policy"
	"github.com/simulacra-ai/conversa/stream"
	"github.com/simulacra-ai/conversa/transform"
)

// ErrInvalidState is returned when an operation is attempted from a
// lifecycle state that does not permit it.
var ErrInvalidState = errors.New("conversation: invalid state for operation")

// ErrDisposed is returned by any operation attempted on a disposed
// Conversation.
var ErrDisposed = errors.New("conversation: already disposed")

// Prompt is sugar for SendMessage with a single text block.
func (c *Conversation) Prompt(ctx context.Context, text string) error {
	return c.SendMessage(ctx, []model.Content{model.Text(text)})
}

// SendMessage normalizes content into a user message, runs the prompt
// transformer pipeline, and drives the configured Provider through the
// configured Policy until the request reaches a terminal outcome. It
// blocks until that outcome (completion, provider error, or
// cancellation) and returns the corresponding error, nil on success.
func (c *Conversation) SendMessage(ctx context.Context, content []model.Content) error {
	c.mu.Lock()
	if c.state == StateDisposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	if c.state != StateIdle {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: send_message requires idle, got %s", ErrInvalidState, st)
	}

	userMsg, err := model.NewUserMessage(content, model.WithMessageTimestamp(time.Now()))
	if err != nil {
		c.mu.Unlock()
		return err
	}

	baseHistory := append([]model.Message{}, c.history...)
	baseHistory = append(baseHistory, userMsg)
	c.setState(StateAwaitingResponse)
	c.mu.Unlock()
	c.emitStateChange(StateAwaitingResponse)

	c.bus.Emit("prompt_send", PromptSendPayload{Message: userMsg})

	outgoing, err := c.applyPromptTransformers(baseHistory)
	if err != nil {
		c.resetToIdle()
		c.failLifecycle("transform_prompt", err)
		return err
	}

	var toolDefs []model.ToolDefinition
	if c.toolkit != nil {
		toolDefs = c.toolkit.Definitions()
	}

	req := model.Request{Messages: outgoing, Tools: toolDefs, System: c.system}

	src := cancel.NewSource()
	c.mu.Lock()
	c.cancelSrc = src
	c.mu.Unlock()

	requestID := uuid.NewString()
	outcome := newRequestOutcome()
	receiver := &conversationReceiver{conv: c, requestID: requestID, outcome: outcome}

	_, _, err = policy.Execute(ctx, c.plcy, src.Token(), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.provider.ExecuteRequest(ctx, req, receiver, src.Token())
	})

	if err != nil {
		c.resetToIdle()
		if isCancellation(err) {
			return err
		}
		c.bus.Emit("request_error", RequestErrorPayload{RequestID: requestID, Message: err.Error(), Err: err})
		return err
	}

	<-outcome.done

	switch outcome.kind {
	case outcomeError:
		c.resetToIdle()
		c.bus.Emit("request_error", RequestErrorPayload{RequestID: requestID, Message: outcome.err.Error(), Err: outcome.err})
		return outcome.err

	case outcomeCancel:
		c.resetToIdle()
		return cancel.OperationCanceled

	default: // outcomeComplete
		assistantMsg := outcome.complete.Message
		assistantMsg, terr := c.applyCompletionTransformers(assistantMsg)
		if terr != nil {
			c.resetToIdle()
			c.failLifecycle("transform_completion", terr)
			return terr
		}

		stopReason := outcome.complete.StopReason
		if assistantMsg.HasToolUse() {
			stopReason = model.StopToolUse
		}

		c.mu.Lock()
		c.history = append(c.history, userMsg, assistantMsg)
		c.cancelSrc = nil
		c.setState(StateIdle)
		c.mu.Unlock()
		c.emitStateChange(StateIdle)

		c.bus.Emit("request_success", RequestSuccessPayload{RequestID: requestID})
		c.bus.Emit("message_complete", model.MessageCompletePayload{
			Message:    assistantMsg,
			Usage:      outcome.complete.Usage,
			StopReason: stopReason,
		})
		return nil
	}
}

// resetToIdle clears the active cancellation source and returns the
// conversation to idle, publishing state_change after releasing c.mu.
func (c *Conversation) resetToIdle() {
	c.mu.Lock()
	c.cancelSrc = nil
	c.setState(StateIdle)
	c.mu.Unlock()
	c.emitStateChange(StateIdle)
}

// isCancellation reports whether err is (or wraps) cancel.OperationCanceled.
func isCancellation(err error) bool {
	return errors.Is(err, cancel.OperationCanceled)
}

// failLifecycle publishes a lifecycle_error. Used for failures outside the
// provider's own error channel (prompt or completion transform failures);
// callers are responsible for having already returned the conversation to
// idle via resetToIdle before calling this.
func (c *Conversation) failLifecycle(stage string, err error) {
	c.bus.Emit("lifecycle_error", LifecycleErrorPayload{Stage: stage, Err: err})
}

func (c *Conversation) applyPromptTransformers(messages []model.Message) ([]model.Message, error) {
	var err error
	for _, t := range c.provider.ContextTransformers() {
		messages, err = transform.RunProviderPrompt(t, messages)
		if err != nil {
			return nil, err
		}
	}
	if c.transformer != nil {
		messages, err = c.transformer.TransformPrompt(messages, transform.Context{Checkpoint: c.ActiveCheckpoint()})
		if err != nil {
			return nil, err
		}
	}
	return messages, nil
}

func (c *Conversation) applyCompletionTransformers(msg model.Message) (model.Message, error) {
	var err error
	for _, t := range c.provider.ContextTransformers() {
		msg, err = transform.RunProviderCompletion(t, msg)
		if err != nil {
			return model.Message{}, err
		}
	}
	if c.transformer != nil {
		msg, err = c.transformer.TransformCompletion(msg)
		if err != nil {
			return model.Message{}, err
		}
	}
	return msg, nil
}

// outcomeKind tags a requestOutcome's terminal result.
type outcomeKind int

const (
	outcomeComplete outcomeKind = iota
	outcomeError
	outcomeCancel
)

// requestOutcome captures the single terminal Receiver call a well-behaved
// Provider makes, synchronizing it with the goroutine that awaits it.
type requestOutcome struct {
	once     sync.Once
	done     chan struct{}
	kind     outcomeKind
	complete stream.CompleteMessageEvent
	err      error
}

func newRequestOutcome() *requestOutcome {
	return &requestOutcome{done: make(chan struct{})}
}

func (o *requestOutcome) setComplete(evt stream.CompleteMessageEvent) {
	o.once.Do(func() {
		o.kind = outcomeComplete
		o.complete = evt
		close(o.done)
	})
}

func (o *requestOutcome) setError(err error) {
	o.once.Do(func() {
		o.kind = outcomeError
		o.err = err
		close(o.done)
	})
}

func (o *requestOutcome) setCancel() {
	o.once.Do(func() {
		o.kind = outcomeCancel
		close(o.done)
	})
}

// conversationReceiver adapts a single request's stream.Receiver calls
// into conversation bus events, and captures the terminal call into an
// requestOutcome the driving goroutine waits on.
type conversationReceiver struct {
	conv      *Conversation
	requestID string
	outcome   *requestOutcome

	streamingOnce sync.Once
}

func (r *conversationReceiver) enterStreaming() {
	r.streamingOnce.Do(func() {
		r.conv.mu.Lock()
		transitioned := r.conv.state == StateAwaitingResponse
		if transitioned {
			r.conv.setState(StateStreamingResponse)
		}
		r.conv.mu.Unlock()
		if transitioned {
			r.conv.emitStateChange(StateStreamingResponse)
		}
	})
}

func (r *conversationReceiver) BeforeRequest(raw any) {
	r.conv.bus.Emit("before_request", RawPayload{RequestID: r.requestID, Raw: raw})
}

func (r *conversationReceiver) RequestRaw(raw any) {
	r.conv.bus.Emit("raw_request", RawPayload{RequestID: r.requestID, Raw: raw})
}

func (r *conversationReceiver) StartContent(evt stream.ContentEvent) {
	r.enterStreaming()
	r.conv.bus.Emit("start_content", ContentEventPayload{RequestID: r.requestID, Index: evt.Index, Content: evt.Content})
}

func (r *conversationReceiver) UpdateContent(evt stream.ContentEvent) {
	r.conv.bus.Emit("update_content", ContentEventPayload{RequestID: r.requestID, Index: evt.Index, Content: evt.Content})
}

func (r *conversationReceiver) CompleteContent(evt stream.ContentEvent) {
	r.conv.bus.Emit("complete_content", ContentEventPayload{RequestID: r.requestID, Index: evt.Index, Content: evt.Content})
}

func (r *conversationReceiver) StartMessage(evt stream.MessageEvent) {
	r.enterStreaming()
	r.conv.bus.Emit("start_message", MessageEventPayload{RequestID: r.requestID, Message: evt.Message})
}

func (r *conversationReceiver) UpdateMessage(evt stream.MessageEvent) {
	r.conv.bus.Emit("update_message", MessageEventPayload{RequestID: r.requestID, Message: evt.Message})
}

func (r *conversationReceiver) CompleteMessage(evt stream.CompleteMessageEvent) {
	r.outcome.setComplete(evt)
}

func (r *conversationReceiver) Error(err error) {
	r.outcome.setError(err)
}

func (r *conversationReceiver) Cancel() {
	r.outcome.setCancel()
}

func (r *conversationReceiver) StreamRaw(chunk any) {
	r.conv.bus.Emit("raw_stream", RawPayload{RequestID: r.requestID, Raw: chunk})
}

func (r *conversationReceiver) ResponseRaw(final any) {
	r.conv.bus.Emit("raw_response", RawPayload{RequestID: r.requestID, Raw: final})
}
