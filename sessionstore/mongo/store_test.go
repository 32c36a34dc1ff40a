package mongo

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/sessionstore"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	store, err := NewStore(newFakeClient())
	require.NoError(t, err)
	ctx := context.Background()

	msg, err := model.NewUserMessage([]model.Content{model.Text("hi")})
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, "sess-1", []model.Message{msg}, &sessionstore.Metadata{Label: "first"}))

	rec, ok, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first", rec.Metadata.Label)
	assert.Equal(t, 1, rec.Metadata.MessageCount)
	require.Len(t, rec.Messages, 1)
	assert.Equal(t, "hi", rec.Messages[0].Text())
}

func TestLoadMissingReturnsFalse(t *testing.T) {
	store, err := NewStore(newFakeClient())
	require.NoError(t, err)
	_, ok, err := store.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSavePreservesUnmentionedMetadata(t *testing.T) {
	store, err := NewStore(newFakeClient())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sess-1", nil, &sessionstore.Metadata{Label: "first", Provider: "anthropic"}))
	require.NoError(t, store.Save(ctx, "sess-1", nil, &sessionstore.Metadata{Label: "second"}))

	rec, ok, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", rec.Metadata.Label)
	assert.Equal(t, "anthropic", rec.Metadata.Provider)
}

func TestListOrdersByUpdatedAtDescending(t *testing.T) {
	store, err := NewStore(newFakeClient())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sess-a", nil, nil))
	require.NoError(t, store.Save(ctx, "sess-b", nil, nil))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.False(t, list[0].UpdatedAt.Before(list[1].UpdatedAt))
}

func TestDeleteReportsExistence(t *testing.T) {
	store, err := NewStore(newFakeClient())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "sess-1", nil, nil))

	ok, err := store.Delete(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Delete(ctx, "sess-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewStoreRejectsNilClient(t *testing.T) {
	_, err := NewStore(nil)
	assert.Error(t, err)
}

// fakeClient is a map-backed double for Client, mirroring the teacher's
// own fakeSessionsCollection (features/session/mongo/clients/mongo)
// closely enough to exercise Store's $set-upsert and cursor-scan paths
// without a live server.
type fakeClient struct {
	mu   sync.Mutex
	docs map[string]sessionDocument
}

func newFakeClient() *fakeClient {
	return &fakeClient{docs: make(map[string]sessionDocument)}
}

func (c *fakeClient) FindOne(_ context.Context, filter any, _ ...options.Lister[options.FindOneOptions]) singleResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := filter.(bson.M)["session_id"].(string)
	doc, ok := c.docs[id]
	if !ok {
		return fakeSingleResult{err: mongodriver.ErrNoDocuments}
	}
	copyDoc := doc
	return fakeSingleResult{doc: &copyDoc}
}

func (c *fakeClient) Find(_ context.Context, _ any, _ ...options.Lister[options.FindOptions]) (cursor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	docs := make([]sessionDocument, 0, len(c.docs))
	for _, doc := range c.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].UpdatedAt.After(docs[j].UpdatedAt) })
	boxed := make([]any, len(docs))
	for i := range docs {
		d := docs[i]
		boxed[i] = &d
	}
	return &fakeCursor{docs: boxed, idx: -1}, nil
}

func (c *fakeClient) UpdateOne(_ context.Context, filter, update any, _ ...options.Lister[options.UpdateOneOptions]) (*mongodriver.UpdateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := filter.(bson.M)["session_id"].(string)
	set, ok := update.(bson.M)["$set"].(sessionDocument)
	if !ok {
		return nil, errors.New("unsupported $set payload")
	}
	c.docs[id] = set
	return &mongodriver.UpdateResult{MatchedCount: 1}, nil
}

func (c *fakeClient) DeleteOne(_ context.Context, filter any) (*mongodriver.DeleteResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := filter.(bson.M)["session_id"].(string)
	if _, ok := c.docs[id]; !ok {
		return &mongodriver.DeleteResult{DeletedCount: 0}, nil
	}
	delete(c.docs, id)
	return &mongodriver.DeleteResult{DeletedCount: 1}, nil
}

func (c *fakeClient) Indexes() indexView {
	return fakeIndexView{}
}

type fakeIndexView struct{}

func (fakeIndexView) CreateOne(context.Context, mongodriver.IndexModel, ...options.Lister[options.CreateIndexesOptions]) (string, error) {
	return "session_id_idx", nil
}

type fakeSingleResult struct {
	doc *sessionDocument
	err error
}

func (r fakeSingleResult) Decode(val any) error {
	if r.err != nil {
		return r.err
	}
	typed, ok := val.(*sessionDocument)
	if !ok {
		return errors.New("unsupported target")
	}
	*typed = *r.doc
	return nil
}

type fakeCursor struct {
	docs []any
	idx  int
}

func (c *fakeCursor) Close(context.Context) error { return nil }

func (c *fakeCursor) Decode(val any) error {
	if c.idx < 0 || c.idx >= len(c.docs) {
		return errors.New("no document")
	}
	typed, ok := val.(*sessionDocument)
	if !ok {
		return errors.New("unsupported target")
	}
	*typed = *(c.docs[c.idx].(*sessionDocument))
	return nil
}

func (c *fakeCursor) Err() error { return nil }

func (c *fakeCursor) Next(context.Context) bool {
	next := c.idx + 1
	if next >= len(c.docs) {
		return false
	}
	c.idx = next
	return true
}
