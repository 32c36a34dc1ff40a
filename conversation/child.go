package conversation

import (
	"github.com/google/uuid"

	"github.com/simulacra-ai/conversa/eventbus"
	"github.com/simulacra-ai/conversa/model"
)

// SpawnOptions configures SpawnChild.
type SpawnOptions struct {
	// SessionID overrides the generated child session id.
	SessionID string
	// ForkSession preloads the child with a copy of the parent's current
	// history.
	ForkSession bool
	// System overrides the parent's system prompt for the child. Empty
	// means inherit the parent's.
	System string
}

// SpawnChild creates an independent child Conversation sharing this
// conversation's provider family (via Provider.Clone), policy,
// transformer, and summarizer. Every event the child publishes (and,
// transitively, every event its own children bubble to it) is republished
// on this conversation's bus wrapped in eventbus.ChildEvent under the name
// "child_event", so a listener on the root conversation observes the
// entire tree.
func (c *Conversation) SpawnChild(opts SpawnOptions) (*Conversation, error) {
	return c.spawnChild(opts.ForkSession, opts.SessionID, opts.System, false)
}

func (c *Conversation) spawnChild(forkSession bool, id, system string, isCheckpoint bool) (*Conversation, error) {
	c.mu.Lock()
	providerClone := c.provider.Clone()
	plcy := c.plcy
	transformer := c.transformer
	summarizer := c.summarizer
	sys := c.system
	if system != "" {
		sys = system
	}
	var preload []model.Message
	if forkSession {
		preload = append([]model.Message{}, c.history...)
	}
	c.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}

	child, err := New(Options{
		SessionID:   id,
		Provider:    providerClone,
		Toolkit:     c.toolkit,
		Policy:      plcy,
		Transformer: transformer,
		Summarizer:  summarizer,
		System:      sys,
		Logger:      c.logger,
		Tracer:      c.tracer,
		Metrics:     c.metrics,
	})
	if err != nil {
		return nil, err
	}

	if len(preload) > 0 {
		if err := child.Load(preload, nil); err != nil {
			return nil, err
		}
	}

	c.bindChildBubbling(child)

	c.bus.Emit("create_child", CreateChildPayload{ChildSessionID: child.sessionID, IsCheckpoint: isCheckpoint})
	return child, nil
}

// bindChildBubbling republishes every event a child publishes onto c's
// bus as a "child_event", detaching itself right after relaying the
// child's own "dispose" event so that final event still reaches
// listeners on c before teardown.
func (c *Conversation) bindChildBubbling(child *Conversation) {
	var sub eventbus.Subscription
	sub = child.bus.On(func(evt eventbus.Event) {
		c.bus.Emit("child_event", eventbus.ChildEvent{Name: evt.Name, Payload: evt.Payload})
		if evt.Name == "dispose" {
			sub.Close()
		}
	})
}
