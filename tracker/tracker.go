// Package tracker implements a passive usage aggregator: attach it to a
// Conversation's bus and it accumulates token counts from every
// "message_complete" it observes, directly and bubbled from descendants
// via eventbus.ChildEvent, the same subscribe-and-recurse shape
// policy.TokenLimit uses to meter usage for rate limiting.
package tracker

import (
	"sync"

	"github.com/simulacra-ai/conversa/eventbus"
	"github.com/simulacra-ai/conversa/model"
)

// Stats is a snapshot of accumulated usage at some point in time.
type Stats struct {
	Total       model.Usage
	LastRequest model.Usage
}

// Tracker accumulates model.Usage across a conversation subtree and emits
// "stats_update" on its own bus every time a new message_complete changes
// the total, so a UI can show a single running token counter without
// polling.
type Tracker struct {
	bus *eventbus.Bus

	mu          sync.Mutex
	total       model.Usage
	lastRequest model.Usage
}

// New returns a Tracker with its own private event bus for "stats_update".
func New() *Tracker {
	return &Tracker{bus: eventbus.New()}
}

// Bus returns the tracker's own bus, which publishes "stats_update" with a
// Stats payload after every change.
func (t *Tracker) Bus() *eventbus.Bus { return t.bus }

// Attach subscribes the tracker to a conversation's (or workflow's) bus.
func (t *Tracker) Attach(bus *eventbus.Bus) eventbus.Subscription {
	return bus.On(t.handleEvent)
}

// Stats returns the current accumulated totals.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{Total: t.total, LastRequest: t.lastRequest}
}

func (t *Tracker) handleEvent(evt eventbus.Event) {
	switch evt.Name {
	case "message_complete":
		if payload, ok := evt.Payload.(model.MessageCompletePayload); ok {
			t.record(payload.Usage.Normalize())
		}
	case "child_event":
		if child, ok := evt.Payload.(eventbus.ChildEvent); ok {
			t.handleEvent(eventbus.Event{Name: child.Name, Payload: child.Payload})
		}
	}
}

func (t *Tracker) record(u model.Usage) {
	t.mu.Lock()
	t.lastRequest = u
	t.total = t.total.Add(u)
	stats := Stats{Total: t.total, LastRequest: t.lastRequest}
	t.mu.Unlock()

	t.bus.Emit("stats_update", stats)
}
