package main

import (
	"context"
	"fmt"

	"github.com/simulacra-ai/conversa/conversation"
	"github.com/simulacra-ai/conversa/eventbus"
	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/sessionstore"
	"github.com/simulacra-ai/conversa/toolkit"
	"github.com/simulacra-ai/conversa/workflow"
)

// session bundles everything one subcommand run needs to send a message
// and persist the result: the store it loaded from, the conversation
// itself, and the provider/session identifiers Save needs to record. Each
// call to send drives its own Workflow over the shared conversation and
// registry, since a Workflow is one-shot per top-level prompt: it ends
// and disposes once the agentic loop reaches a terminal state.
type session struct {
	store    sessionstore.Store
	conv     *conversation.Conversation
	registry *toolkit.Registry
	flags    *rootFlags
	provider string
}

// openSession loads flags.sessionID's history from the store (if any) and
// builds a Conversation seeded with it, ready for SendMessage.
func openSession(ctx context.Context, flags *rootFlags, printDelta func(text string)) (*session, error) {
	store := buildStore(flags)

	rec, _, err := store.Load(ctx, flags.sessionID)
	if err != nil {
		return nil, fmt.Errorf("demo: load session %s: %w", flags.sessionID, err)
	}

	provider, err := buildProvider(ctx, flags)
	if err != nil {
		return nil, err
	}
	plcy, err := buildPolicy(flags)
	if err != nil {
		return nil, err
	}
	registry, err := demoRegistry()
	if err != nil {
		return nil, fmt.Errorf("demo: build toolkit: %w", err)
	}

	bus := eventbus.New()
	if printDelta != nil {
		// update_content carries each block's cumulative text so far, not
		// a delta, so printed-length-per-index bookkeeping is needed to
		// avoid re-printing what's already on screen.
		printed := map[int]int{}
		bus.On(func(evt eventbus.Event) {
			if evt.Name != "update_content" {
				return
			}
			payload, ok := evt.Payload.(conversation.ContentEventPayload)
			if !ok {
				return
			}
			text, ok := payload.Content.Block.(model.TextBlock)
			if !ok {
				return
			}
			if already := printed[payload.Index]; already < len(text.Text) {
				printDelta(text.Text[already:])
				printed[payload.Index] = len(text.Text)
			}
		})
	}

	conv, err := conversation.New(conversation.Options{
		SessionID: flags.sessionID,
		Provider:  provider,
		Toolkit:   registry,
		Policy:    plcy,
		Bus:       bus,
	})
	if err != nil {
		return nil, err
	}
	if len(rec.Messages) > 0 {
		if err := conv.Load(rec.Messages, rec.Metadata.Checkpoint); err != nil {
			return nil, fmt.Errorf("demo: restore session %s: %w", flags.sessionID, err)
		}
	}

	return &session{store: store, conv: conv, registry: registry, flags: flags, provider: flags.provider}, nil
}

// send drives text through a fresh Workflow over the conversation: the
// model's reply, any tool calls it issues, their execution, and the
// follow-up turns that feed results back, until the agentic loop reaches
// a terminal state. It then persists the resulting history.
func (s *session) send(ctx context.Context, text string) (string, error) {
	wf, err := workflow.New(workflow.Options{Conversation: s.conv, Registry: s.registry})
	if err != nil {
		return "", err
	}
	if err := wf.Start(ctx, text); err != nil {
		return "", err
	}

	history := s.conv.History()
	var reply string
	if len(history) > 0 {
		reply = history[len(history)-1].Text()
	}

	meta := &sessionstore.Metadata{Provider: s.provider}
	if cp := s.conv.ActiveCheckpoint(); cp != nil {
		meta.Checkpoint = cp
		meta.IsCheckpoint = true
	}
	if err := s.store.Save(ctx, s.flags.sessionID, history, meta); err != nil {
		return reply, fmt.Errorf("demo: save session %s: %w", s.flags.sessionID, err)
	}
	return reply, nil
}
