// Package transform rewrites the message list sent to a model provider
// and the assistant message a provider returns, without mutating stored
// conversation history. A Conversation runs provider-level transformers
// (narrower, context-free) before its own conversation-level Composite in
// both directions.
package transform

import "github.com/simulacra-ai/conversa/model"

type (
	// Context carries state a conversation-level transformer may need
	// beyond the message list itself. Checkpoint is nil unless a
	// checkpoint is currently active.
	Context struct {
		Checkpoint *model.CheckpointState
	}

	// Transformer rewrites outgoing messages before a request and the
	// assistant message a request completed with.
	Transformer interface {
		TransformPrompt(messages []model.Message, ctx Context) ([]model.Message, error)
		TransformCompletion(msg model.Message) (model.Message, error)
	}

	// PromptTransformer is the half of a provider-level transformer that
	// rewrites outgoing messages. Provider transformers implement
	// whichever of PromptTransformer/CompletionTransformer they need;
	// neither is required.
	PromptTransformer interface {
		TransformPrompt(messages []model.Message) ([]model.Message, error)
	}

	// CompletionTransformer is the half of a provider-level transformer
	// that rewrites the finalized assistant message.
	CompletionTransformer interface {
		TransformCompletion(msg model.Message) (model.Message, error)
	}

	// Composite applies a fixed ordered list of conversation-level
	// transformers, each seeing the previous one's output.
	Composite struct {
		children []Transformer
	}
)

// NewComposite builds a Composite applying children in the given order for
// TransformPrompt, and the same order for TransformCompletion (a
// transformer that rewrote the prompt on the way out also gets first look
// at rewriting the completion on the way back).
func NewComposite(children ...Transformer) *Composite {
	return &Composite{children: children}
}

func (c *Composite) TransformPrompt(messages []model.Message, ctx Context) ([]model.Message, error) {
	var err error
	for _, child := range c.children {
		messages, err = child.TransformPrompt(messages, ctx)
		if err != nil {
			return nil, err
		}
	}
	return messages, nil
}

func (c *Composite) TransformCompletion(msg model.Message) (model.Message, error) {
	var err error
	for _, child := range c.children {
		msg, err = child.TransformCompletion(msg)
		if err != nil {
			return model.Message{}, err
		}
	}
	return msg, nil
}

// RunProviderPrompt applies t's PromptTransformer half to messages if t
// implements it, otherwise returns messages unchanged.
func RunProviderPrompt(t any, messages []model.Message) ([]model.Message, error) {
	pt, ok := t.(PromptTransformer)
	if !ok {
		return messages, nil
	}
	return pt.TransformPrompt(messages)
}

// RunProviderCompletion applies t's CompletionTransformer half to msg if t
// implements it, otherwise returns msg unchanged.
func RunProviderCompletion(t any, msg model.Message) (model.Message, error) {
	ct, ok := t.(CompletionTransformer)
	if !ok {
		return msg, nil
	}
	return ct.TransformCompletion(msg)
}
