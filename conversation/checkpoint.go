package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/simulacra-ai/conversa/model"
)

// Checkpoint summarizes every message added since the last checkpoint (or
// the whole history, if none exists) by spawning a disposable child
// conversation, running the configured SummarizationStrategy's prompt
// through it, and recording the resulting text as the new checkpoint.
// Legal only from idle; fails if no message has been added since the
// previous checkpoint.
func (c *Conversation) Checkpoint(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateDisposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	if c.state != StateIdle {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: checkpoint requires idle, got %s", ErrInvalidState, st)
	}
	if c.summarizer == nil {
		c.mu.Unlock()
		return errors.New("conversation: checkpoint: no SummarizationStrategy configured")
	}

	messagesSince, boundaryID := c.messagesSinceCheckpointLocked()
	if len(messagesSince) == 0 {
		c.mu.Unlock()
		return ErrNoNewMessagesSinceCheckpoint
	}
	var prevCheckpoint *model.CheckpointState
	if c.checkpoint != nil {
		cp := *c.checkpoint
		prevCheckpoint = &cp
	}
	sessionID := c.sessionID
	system := c.system
	c.mu.Unlock()

	c.bus.Emit("checkpoint_begin", nil)

	promptMessages, err := c.summarizer.BuildPrompt(SummarizationContext{
		SessionID:          sessionID,
		Messages:           messagesSince,
		PreviousCheckpoint: prevCheckpoint,
		System:             system,
	})
	if err != nil {
		return fmt.Errorf("conversation: checkpoint: build prompt: %w", err)
	}
	if len(promptMessages) == 0 || promptMessages[len(promptMessages)-1].Role != model.RoleUser {
		return errors.New("conversation: checkpoint: summarization prompt must end in a user message")
	}

	child, err := c.spawnChild(false, "", "", true)
	if err != nil {
		return fmt.Errorf("conversation: checkpoint: spawn child: %w", err)
	}
	defer func() { _ = child.Dispose() }()

	preload := promptMessages[:len(promptMessages)-1]
	if len(preload) > 0 {
		if err := child.Load(preload, nil); err != nil {
			return fmt.Errorf("conversation: checkpoint: preload child: %w", err)
		}
	}
	last := promptMessages[len(promptMessages)-1]

	// SendMessage blocks until the request reaches a terminal outcome, so
	// the summary is available from the child's history the moment it
	// returns — no need to race its own event bus.
	if err := child.SendMessage(ctx, last.Content); err != nil {
		return fmt.Errorf("conversation: checkpoint: send prompt: %w", err)
	}

	childHistory := child.History()
	summary := childHistory[len(childHistory)-1].Text()
	if summary == "" {
		return errors.New("conversation: checkpoint: summarization returned an empty summary")
	}

	newCheckpoint := model.CheckpointState{MessageID: boundaryID, Summary: summary}
	c.mu.Lock()
	c.checkpoint = &newCheckpoint
	c.mu.Unlock()

	c.bus.Emit("checkpoint_complete", newCheckpoint)
	return nil
}
