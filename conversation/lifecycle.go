package conversation

import (
	"errors"
	"fmt"

	"github.com/simulacra-ai/conversa/model"
)

// ErrNoNewMessagesSinceCheckpoint is returned by Checkpoint when no
// message has been added since the last checkpoint (or since the start of
// history, if none exists yet).
var ErrNoNewMessagesSinceCheckpoint = errors.New("conversation: no messages since last checkpoint")

// CancelResponse requests cancellation of an in-flight request. It is
// legal from awaiting_response or streaming_response; it moves the
// conversation to stopping and trips the active request's cancellation
// source, which is what ultimately resolves the SendMessage call that is
// blocked on it.
func (c *Conversation) CancelResponse() error {
	c.mu.Lock()
	if c.state == StateDisposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	if c.state != StateAwaitingResponse && c.state != StateStreamingResponse {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: cancel_response requires an in-flight request, got %s", ErrInvalidState, st)
	}
	src := c.cancelSrc
	c.setState(StateStopping)
	c.mu.Unlock()
	c.emitStateChange(StateStopping)

	if src == nil {
		return nil
	}
	if err := src.Cancel(); err != nil {
		return fmt.Errorf("conversation: cancel_response: %w", err)
	}
	return nil
}

// Clear drops accumulated history and the active checkpoint. Legal only
// from idle.
func (c *Conversation) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDisposed {
		return ErrDisposed
	}
	if c.state != StateIdle {
		return fmt.Errorf("%w: clear requires idle, got %s", ErrInvalidState, c.state)
	}
	c.history = nil
	c.checkpoint = nil
	return nil
}

// Load replaces history and the active checkpoint wholesale, for
// restoring a conversation from a session store. Legal only from idle.
// If checkpoint is non-nil, its MessageID must name a message present in
// messages.
func (c *Conversation) Load(messages []model.Message, checkpoint *model.CheckpointState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDisposed {
		return ErrDisposed
	}
	if c.state != StateIdle {
		return fmt.Errorf("%w: load requires idle, got %s", ErrInvalidState, c.state)
	}

	if checkpoint != nil {
		found := false
		for _, m := range messages {
			if m.ID == checkpoint.MessageID {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("conversation: load: checkpoint message id %q not present in messages", checkpoint.MessageID)
		}
	}

	c.history = append([]model.Message{}, messages...)
	if checkpoint != nil {
		cp := *checkpoint
		c.checkpoint = &cp
	} else {
		c.checkpoint = nil
	}
	return nil
}

// Dispose tears the conversation down: any in-flight request is
// cancelled, the state moves to disposed, and "dispose" is published so
// parent conversations detach their child-bubbling subscription. Disposing
// an already-disposed conversation is an error.
func (c *Conversation) Dispose() error {
	c.mu.Lock()
	if c.state == StateDisposed {
		c.mu.Unlock()
		return fmt.Errorf("%w: already disposed", ErrInvalidState)
	}
	src := c.cancelSrc
	c.cancelSrc = nil
	c.setState(StateDisposed)
	c.mu.Unlock()
	c.emitStateChange(StateDisposed)

	if src != nil {
		_ = src.Cancel()
	}
	c.bus.Emit("dispose", nil)
	return nil
}

// messagesSinceCheckpointLocked returns the messages added since the
// active checkpoint (or all of history if none), plus the id of the last
// message in history — the boundary a new checkpoint would record. Callers
// must hold c.mu.
func (c *Conversation) messagesSinceCheckpointLocked() ([]model.Message, string) {
	if len(c.history) == 0 {
		return nil, ""
	}
	lastID := c.history[len(c.history)-1].ID
	if c.checkpoint == nil {
		return append([]model.Message{}, c.history...), lastID
	}
	idx := -1
	for i, m := range c.history {
		if m.ID == c.checkpoint.MessageID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return append([]model.Message{}, c.history...), lastID
	}
	return append([]model.Message{}, c.history[idx+1:]...), lastID
}
