package conversation_test

import (
	"context"
	"errors"

	"github.com/simulacra-ai/conversa/cancel"
	"github.com/simulacra-ai/conversa/conversation"
	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/stream"
)

// fakeProvider drives a scripted Receiver sequence for tests.
type fakeProvider struct {
	behavior     func(req model.Request, receiver stream.Receiver, token cancel.Token) error
	transformers []any
}

func (p *fakeProvider) ExecuteRequest(ctx context.Context, req model.Request, receiver stream.Receiver, token cancel.Token) error {
	return p.behavior(req, receiver, token)
}

func (p *fakeProvider) Clone() conversation.Provider { return p }

func (p *fakeProvider) ContextTransformers() []any { return p.transformers }

// completingProvider streams a single text block then completes normally.
func completingProvider(text string) *fakeProvider {
	return &fakeProvider{behavior: func(req model.Request, receiver stream.Receiver, token cancel.Token) error {
		receiver.BeforeRequest(nil)
		receiver.StartMessage(stream.MessageEvent{})
		c := model.Text(text)
		receiver.StartContent(stream.ContentEvent{Index: 0, Content: c})
		receiver.CompleteContent(stream.ContentEvent{Index: 0, Content: c})
		msg, err := model.NewAssistantMessage([]model.Content{c})
		if err != nil {
			return err
		}
		receiver.CompleteMessage(stream.CompleteMessageEvent{
			Message:    msg,
			StopReason: model.StopEndTurn,
			Usage:      model.Usage{InputTokens: 5, OutputTokens: 7},
		})
		return nil
	}}
}

// connectionFailureProvider fails before any streaming starts.
func connectionFailureProvider(msg string) *fakeProvider {
	return &fakeProvider{behavior: func(req model.Request, receiver stream.Receiver, token cancel.Token) error {
		return errors.New(msg)
	}}
}

// midStreamErrorProvider starts streaming, then reports a mid-flight
// failure through Receiver.Error rather than a Go return value.
func midStreamErrorProvider(msg string) *fakeProvider {
	return &fakeProvider{behavior: func(req model.Request, receiver stream.Receiver, token cancel.Token) error {
		receiver.StartMessage(stream.MessageEvent{})
		receiver.Error(errors.New(msg))
		return nil
	}}
}

// blockingProvider signals ready once entered, then blocks on release.
func blockingProvider(ready, release chan struct{}) *fakeProvider {
	return &fakeProvider{behavior: func(req model.Request, receiver stream.Receiver, token cancel.Token) error {
		receiver.StartMessage(stream.MessageEvent{})
		close(ready)
		<-release
		msg, err := model.NewAssistantMessage([]model.Content{model.Text("ok")})
		if err != nil {
			return err
		}
		receiver.CompleteMessage(stream.CompleteMessageEvent{Message: msg, StopReason: model.StopEndTurn})
		return nil
	}}
}

// cancellingProvider signals started, waits for the token to cancel, then
// reports cancellation the way the Provider contract requires.
func cancellingProvider(started chan struct{}) *fakeProvider {
	return &fakeProvider{behavior: func(req model.Request, receiver stream.Receiver, token cancel.Token) error {
		receiver.StartMessage(stream.MessageEvent{})
		close(started)
		<-token.AwaitCancellation()
		receiver.Cancel()
		return cancel.OperationCanceled
	}}
}

type fakeToolkit struct{ defs []model.ToolDefinition }

func (t fakeToolkit) Definitions() []model.ToolDefinition { return t.defs }

type fakeSummarizer struct{ prompt string }

func (f fakeSummarizer) BuildPrompt(ctx conversation.SummarizationContext) ([]model.Message, error) {
	prompt := f.prompt
	if prompt == "" {
		prompt = "summarize please"
	}
	um, err := model.NewUserMessage([]model.Content{model.Text(prompt)})
	if err != nil {
		return nil, err
	}
	return []model.Message{um}, nil
}
