package conversation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simulacra-ai/conversa/conversation"
	"github.com/simulacra-ai/conversa/model"
)

func TestCheckpointRequiresIdle(t *testing.T) {
	ready := make(chan struct{})
	release := make(chan struct{})
	conv, err := conversation.New(conversation.Options{
		Provider:   blockingProvider(ready, release),
		Summarizer: fakeSummarizer{},
	})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- conv.SendMessage(context.Background(), []model.Content{model.Text("hi")}) }()
	<-ready

	err = conv.Checkpoint(context.Background())
	assert.ErrorIs(t, err, conversation.ErrInvalidState)

	close(release)
	require.NoError(t, <-errCh)
}

func TestCheckpointRequiresNewMessagesSinceLastBoundary(t *testing.T) {
	conv, err := conversation.New(conversation.Options{
		Provider:   completingProvider("reply"),
		Summarizer: fakeSummarizer{},
	})
	require.NoError(t, err)

	err = conv.Checkpoint(context.Background())
	assert.ErrorIs(t, err, conversation.ErrNoNewMessagesSinceCheckpoint)
}

func TestCheckpointWithoutSummarizerConfiguredIsAnError(t *testing.T) {
	conv, err := conversation.New(conversation.Options{Provider: completingProvider("reply")})
	require.NoError(t, err)
	require.NoError(t, conv.SendMessage(context.Background(), []model.Content{model.Text("hi")}))

	err = conv.Checkpoint(context.Background())
	assert.Error(t, err)
}

func TestCheckpointProducesSummaryAndRecordsBoundary(t *testing.T) {
	conv, err := conversation.New(conversation.Options{
		Provider:   completingProvider("assistant reply"),
		Summarizer: fakeSummarizer{},
	})
	require.NoError(t, err)

	require.NoError(t, conv.SendMessage(context.Background(), []model.Content{model.Text("hello")}))
	history := conv.History()
	lastID := history[len(history)-1].ID

	require.NoError(t, conv.Checkpoint(context.Background()))

	cp := conv.ActiveCheckpoint()
	require.NotNil(t, cp)
	assert.Equal(t, lastID, cp.MessageID)
	assert.NotEmpty(t, cp.Summary)

	// Checkpointing again immediately, with no new messages since the
	// boundary just recorded, must fail.
	err = conv.Checkpoint(context.Background())
	assert.ErrorIs(t, err, conversation.ErrNoNewMessagesSinceCheckpoint)
}

func TestCheckpointRejectsSummarizerPromptNotEndingInUserMessage(t *testing.T) {
	badSummarizer := summarizerFunc(func(ctx conversation.SummarizationContext) ([]model.Message, error) {
		am, err := model.NewAssistantMessage([]model.Content{model.Text("not a user message")})
		if err != nil {
			return nil, err
		}
		return []model.Message{am}, nil
	})
	conv, err := conversation.New(conversation.Options{
		Provider:   completingProvider("reply"),
		Summarizer: badSummarizer,
	})
	require.NoError(t, err)
	require.NoError(t, conv.SendMessage(context.Background(), []model.Content{model.Text("hi")}))

	err = conv.Checkpoint(context.Background())
	assert.Error(t, err)
}

type summarizerFunc func(ctx conversation.SummarizationContext) ([]model.Message, error)

func (f summarizerFunc) BuildPrompt(ctx conversation.SummarizationContext) ([]model.Message, error) {
	return f(ctx)
}
