// Package eventbus provides the synchronous, typed publish/subscribe
// substrate conversation.Conversation, workflow.Workflow, and
// workflow.Manager are built on. It underlies the open event taxonomy
// (state_change, message_complete, child_event, ...) and the parent/child
// bubbling those components implement.
//
// Publish is synchronous and fans out to subscribers in registration order
// on the publisher's own goroutine — there is no internal buffering or
// background delivery goroutine. This matches the single-threaded,
// cooperative scheduling model those components run under: event ordering
// within one request is exactly the order the stream receiver observed it.
package eventbus

import (
	"sort"
	"sync"
)

type (
	// Event is a single published occurrence. Name identifies the event
	// (e.g. "message_complete"); Payload carries whatever data that event
	// name is documented to carry. conversa does not seal Event into a
	// closed type hierarchy — the set of event names is open, so new
	// event names can be added by new components without changing this
	// package.
	Event struct {
		Name    string
		Payload any
	}

	// Handler reacts to a single published Event.
	Handler func(Event)

	// ChildEvent is the payload published under the name "child_event"
	// (or "child_workflow_event") when a parent re-emits something a
	// descendant conversation or workflow raised. Name/Payload are the
	// descendant's original event, unmodified — listeners recurse on
	// ChildEvent to observe an entire conversation tree from the root.
	ChildEvent struct {
		Name    string
		Payload any
	}

	// Subscription represents one active registration on a Bus. Close is
	// idempotent and safe to call multiple times or concurrently.
	Subscription interface {
		Close()
	}

	// Bus fans out published events to every currently registered
	// subscriber, synchronously, in registration order.
	Bus struct {
		mu   sync.RWMutex
		subs map[*subscription]Handler
		seq  uint64
	}

	subscription struct {
		bus     *Bus
		once    sync.Once
		closeFn func()
		seq     uint64
	}
)

// New constructs a ready-to-use Bus.
func New() *Bus {
	return &Bus{subs: make(map[*subscription]Handler)}
}

// On registers handler to receive every event published after this call
// returns, until the returned Subscription is closed.
func (b *Bus) On(handler Handler) Subscription {
	sub := &subscription{bus: b}
	b.mu.Lock()
	b.seq++
	sub.seq = b.seq
	b.subs[sub] = handler
	b.mu.Unlock()
	sub.closeFn = func() {
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
	}
	return sub
}

// Once registers handler to receive exactly the next matching event (any
// event, if name is empty, otherwise only events with that Name), then
// unregisters itself before invoking handler. This is the primitive used
// for detaching parent-side listeners exactly once when a child disposes.
func (b *Bus) Once(name string, handler Handler) Subscription {
	var sub Subscription
	sub = b.On(func(evt Event) {
		if name != "" && evt.Name != name {
			return
		}
		sub.Close()
		handler(evt)
	})
	return sub
}

// Emit publishes an event by name/payload to every currently registered
// subscriber. The subscriber snapshot is taken under the read lock and
// released before any handler runs, so a handler registering or closing
// another subscription mid-emit never deadlocks and never sees a
// half-updated subscriber set for this particular Emit call.
func (b *Bus) Emit(name string, payload any) {
	b.mu.RLock()
	subs := make([]*subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].seq < subs[j].seq })
	handlers := make([]Handler, len(subs))
	for i, s := range subs {
		handlers[i] = b.subs[s]
	}
	b.mu.RUnlock()

	evt := Event{Name: name, Payload: payload}
	for _, h := range handlers {
		h(evt)
	}
}

// Len reports the number of currently registered subscriptions. Intended
// for tests verifying listener teardown, not for production logic.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (s *subscription) Close() {
	s.once.Do(func() {
		if s.closeFn != nil {
			s.closeFn()
		}
	})
}
