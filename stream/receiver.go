// Package stream defines the normalized sink interface
// (conversation ← provider) a model provider drives while streaming a
// response, and the Listener adapter that fans those calls into a single
// serialized event callback.
package stream

import "github.com/simulacra-ai/conversa/model"

type (
	// ContentEvent carries one content block's state at a point in the
	// stream. For StartContent/UpdateContent, Content is the accumulation
	// so far (monotonic: text appends, tool-call params accrete, thinking
	// and citations accrete). For CompleteContent, Content is the
	// complete, final block, consistent with every prior
	// Start/UpdateContent for the same Index.
	ContentEvent struct {
		Index   int
		Content model.Content
	}

	// MessageEvent carries the cumulative assistant message built so far.
	MessageEvent struct {
		Message model.Message
	}

	// CompleteMessageEvent carries the finalized assistant message,
	// its normalized stop reason, and usage for the call.
	CompleteMessageEvent struct {
		Message    model.Message
		StopReason model.StopReason
		Usage      model.Usage
	}

	// Receiver is the sink a Provider drives while streaming a single
	// model call. Events for one request are serialized (never
	// concurrent), and after Error or Cancel no further events are
	// emitted.
	//
	// Call order: BeforeRequest and RequestRaw are opaque pre-wire
	// observability hooks; then zero or more passes of
	// StartContent→(UpdateContent)*→CompleteContent, interleaved with
	// exactly one StartMessage and any number of UpdateMessage calls;
	// then exactly one of CompleteMessage, Error, or Cancel. StreamRaw may
	// be called at any time before the terminal call, and ResponseRaw at
	// most once, at the very end.
	Receiver interface {
		BeforeRequest(raw any)
		RequestRaw(raw any)

		StartContent(evt ContentEvent)
		UpdateContent(evt ContentEvent)
		CompleteContent(evt ContentEvent)

		StartMessage(evt MessageEvent)
		UpdateMessage(evt MessageEvent)

		CompleteMessage(evt CompleteMessageEvent)
		Error(err error)
		Cancel()

		StreamRaw(chunk any)
		ResponseRaw(final any)
	}
)
