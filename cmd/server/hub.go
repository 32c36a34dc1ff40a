package main

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/simulacra-ai/conversa/conversation"
	"github.com/simulacra-ai/conversa/eventbus"
)

// hub fans conversation bus events out to every currently connected SSE
// client. Subscribers register/unregister as HTTP requests for /events
// start and end; broadcast is called from whatever goroutine is driving
// the conversation (a POST /message handler), matching the bus's own
// synchronous, caller's-goroutine delivery model one level up.
type hub struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[chan []byte]struct{})}
}

// attach subscribes to bus and forwards every event as a line of JSON to
// newly registered /events clients.
func (h *hub) attach(bus *eventbus.Bus) eventbus.Subscription {
	return bus.On(func(evt eventbus.Event) {
		h.broadcast(evt.Name, evt.Payload)
	})
}

func (h *hub) broadcast(name string, payload any) {
	line := encodeEvent(name, payload)

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- line:
		default:
			// A slow or gone client must never stall the conversation
			// goroutine driving the agentic loop; dropped frames are the
			// cost of a best-effort broadcast.
		}
	}
}

func (h *hub) subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *hub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
	close(ch)
}

// sseEnvelope is the wire shape every forwarded event takes; errors are
// flattened to their message since error values carry no exported fields
// for encoding/json to walk.
type sseEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func encodeEvent(name string, payload any) []byte {
	data := payload
	switch p := payload.(type) {
	case conversation.RequestErrorPayload:
		data = map[string]any{"requestID": p.RequestID, "message": p.Message}
	case conversation.LifecycleErrorPayload:
		errText := ""
		if p.Err != nil {
			errText = p.Err.Error()
		}
		data = map[string]any{"stage": p.Stage, "error": errText}
	}
	b, err := json.Marshal(sseEnvelope{Event: name, Data: data})
	if err != nil {
		b, _ = json.Marshal(sseEnvelope{Event: name, Data: fmt.Sprintf("unmarshalable payload: %v", err)})
	}
	return b
}
