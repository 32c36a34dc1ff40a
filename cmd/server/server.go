package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/simulacra-ai/conversa/conversation"
	"github.com/simulacra-ai/conversa/eventbus"
	"github.com/simulacra-ai/conversa/toolkit"
	"github.com/simulacra-ai/conversa/workflow"
)

// server holds the single conversation this process exposes, the hub
// fanning its bus out to connected SSE clients, and the toolkit every
// Workflow started over it shares.
type server struct {
	conv     *conversation.Conversation
	registry *toolkit.Registry
	bus      *eventbus.Bus
	hub      *hub
}

func newServer() (*server, error) {
	ctx := context.Background()

	provider, err := buildProvider(ctx)
	if err != nil {
		return nil, err
	}
	plcy, err := buildPolicy()
	if err != nil {
		return nil, err
	}
	registry, err := demoRegistry()
	if err != nil {
		return nil, fmt.Errorf("server: build toolkit: %w", err)
	}

	bus := eventbus.New()
	h := newHub()
	h.attach(bus)

	conv, err := conversation.New(conversation.Options{
		SessionID: "server-demo",
		Provider:  provider,
		Toolkit:   registry,
		Policy:    plcy,
		Bus:       bus,
	})
	if err != nil {
		return nil, err
	}

	return &server{conv: conv, registry: registry, bus: bus, hub: h}, nil
}

func (s *server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	}))

	r.Get("/", s.handleIndex)
	r.Get("/events", s.handleEvents)
	r.Post("/message", s.handleMessage)
	return r
}

func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{
		"service": "conversa SSE demo",
		"events":  "GET /events",
		"message": "POST /message {\"text\":\"...\"}",
	})
}

// handleEvents streams every event the conversation's bus publishes,
// wrapped as text/event-stream, until the client disconnects.
func (s *server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.hub.subscribe()
	defer s.hub.unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case line, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", line)
			flusher.Flush()
		}
	}
}

type messageRequest struct {
	Text string `json:"text"`
}

// handleMessage drives the conversation's agentic loop in the background
// and returns immediately; the caller watches /events for the reply
// (and any tool calls along the way) as it streams in.
func (s *server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		http.Error(w, "body must be {\"text\": \"...\"}", http.StatusBadRequest)
		return
	}

	wf, err := workflow.New(workflow.Options{Conversation: s.conv, Registry: s.registry})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	go func() {
		ctx := context.Background()
		if err := wf.Start(ctx, req.Text); err != nil {
			s.hub.broadcast("server_error", map[string]any{"message": err.Error()})
		}
	}()

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}
