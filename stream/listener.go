package stream

import "fmt"

type (
	// EventType tags which Receiver call produced a StreamEvent.
	EventType string

	// StreamEvent is the single-callback projection of every Receiver
	// method. Listener uses Type to tell callers which field is populated;
	// exactly one of Content, Message, Complete, Err, Raw is meaningful
	// for any given Type.
	StreamEvent struct {
		Type     EventType
		Content  ContentEvent
		Message  MessageEvent
		Complete CompleteMessageEvent
		Err      error
		Raw      any
	}

	// Callback observes the serialized stream of a single model call.
	Callback func(StreamEvent)

	// Listener adapts a single Callback into a Receiver. It is the
	// pattern most Providers use to drive a conversation: one function
	// that switches on StreamEvent.Type instead of implementing twelve
	// interface methods.
	//
	// Listener also enforces the receiver's terminal-event contract: once
	// CompleteMessage, Error, or Cancel has fired, every later call is
	// dropped rather than forwarded, so a Provider that (incorrectly)
	// keeps emitting after a terminal event cannot violate the contract
	// downstream.
	Listener struct {
		callback Callback
		terminal bool
	}
)

const (
	EventBeforeRequest   EventType = "before_request"
	EventRequestRaw      EventType = "request_raw"
	EventStartContent    EventType = "start_content"
	EventUpdateContent   EventType = "update_content"
	EventCompleteContent EventType = "complete_content"
	EventStartMessage    EventType = "start_message"
	EventUpdateMessage   EventType = "update_message"
	EventCompleteMessage EventType = "complete_message"
	EventError           EventType = "error"
	EventCancel          EventType = "cancel"
	EventStreamRaw       EventType = "stream_raw"
	EventResponseRaw     EventType = "response_raw"
)

// NewListener builds a Listener that forwards every Receiver call to
// callback as a StreamEvent.
func NewListener(callback Callback) *Listener {
	return &Listener{callback: callback}
}

func (l *Listener) BeforeRequest(raw any) {
	l.dispatch(StreamEvent{Type: EventBeforeRequest, Raw: raw})
}

func (l *Listener) RequestRaw(raw any) {
	l.dispatch(StreamEvent{Type: EventRequestRaw, Raw: raw})
}

func (l *Listener) StartContent(evt ContentEvent) {
	l.dispatch(StreamEvent{Type: EventStartContent, Content: evt})
}

func (l *Listener) UpdateContent(evt ContentEvent) {
	l.dispatch(StreamEvent{Type: EventUpdateContent, Content: evt})
}

func (l *Listener) CompleteContent(evt ContentEvent) {
	l.dispatch(StreamEvent{Type: EventCompleteContent, Content: evt})
}

func (l *Listener) StartMessage(evt MessageEvent) {
	l.dispatch(StreamEvent{Type: EventStartMessage, Message: evt})
}

func (l *Listener) UpdateMessage(evt MessageEvent) {
	l.dispatch(StreamEvent{Type: EventUpdateMessage, Message: evt})
}

func (l *Listener) CompleteMessage(evt CompleteMessageEvent) {
	l.dispatch(StreamEvent{Type: EventCompleteMessage, Complete: evt})
	l.terminal = true
}

func (l *Listener) Error(err error) {
	l.dispatch(StreamEvent{Type: EventError, Err: err})
	l.terminal = true
}

func (l *Listener) Cancel() {
	l.dispatch(StreamEvent{Type: EventCancel})
	l.terminal = true
}

func (l *Listener) StreamRaw(chunk any) {
	l.dispatch(StreamEvent{Type: EventStreamRaw, Raw: chunk})
}

func (l *Listener) ResponseRaw(final any) {
	l.dispatch(StreamEvent{Type: EventResponseRaw, Raw: final})
}

// dispatch forwards evt to the callback unless the stream has already
// reached a terminal event, recovering a callback panic and re-routing it
// through an Error event — except when evt itself was the Error event,
// which would loop.
func (l *Listener) dispatch(evt StreamEvent) {
	if l.terminal {
		return
	}
	l.safeInvoke(evt)
}

func (l *Listener) safeInvoke(evt StreamEvent) {
	defer func() {
		if r := recover(); r != nil {
			if evt.Type == EventError {
				return
			}
			err := panicError{value: r}
			l.terminal = true
			l.callback(StreamEvent{Type: EventError, Err: err})
		}
	}()
	l.callback(evt)
}

// panicError wraps a recovered panic value so it satisfies error without
// losing the original value for callers that want it back (errors.As).
type panicError struct{ value any }

func (e panicError) Error() string { return fmt.Sprintf("stream callback panicked: %v", e.value) }

// Unwrap exposes the original recovered value when it is itself an error.
func (e panicError) Unwrap() error {
	if err, ok := e.value.(error); ok {
		return err
	}
	return nil
}
