package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/sessionstore"
	"github.com/simulacra-ai/conversa/sessionstore/memory"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	msg, err := model.NewUserMessage([]model.Content{model.Text("hi")})
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, "sess-1", []model.Message{msg}, &sessionstore.Metadata{Label: "first"}))

	rec, ok, err := s.Load(ctx, "sess-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first", rec.Metadata.Label)
	assert.Equal(t, 1, rec.Metadata.MessageCount)
	require.Len(t, rec.Messages, 1)
	assert.Equal(t, "hi", rec.Messages[0].Text())
}

func TestLoadMissingReturnsFalse(t *testing.T) {
	s := memory.New()
	_, ok, err := s.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSavePreservesUnmentionedMetadata(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "sess-1", nil, &sessionstore.Metadata{Label: "first", Provider: "anthropic"}))
	require.NoError(t, s.Save(ctx, "sess-1", nil, &sessionstore.Metadata{Label: "second"}))

	rec, ok, err := s.Load(ctx, "sess-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", rec.Metadata.Label)
	assert.Equal(t, "anthropic", rec.Metadata.Provider)
}

func TestListOrdersByUpdatedAtDescending(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "sess-a", nil, nil))
	require.NoError(t, s.Save(ctx, "sess-b", nil, nil))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.False(t, list[0].UpdatedAt.Before(list[1].UpdatedAt))
}

func TestDeleteReportsExistence(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "sess-1", nil, nil))

	ok, err := s.Delete(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Delete(ctx, "sess-1")
	require.NoError(t, err)
	assert.False(t, ok)
}
