package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/sessionstore"
)

// Store implements sessionstore.Store by delegating to a Client.
type Store struct {
	client Client
}

// NewStore builds a Store using client.
func NewStore(client Client) (*Store, error) {
	if client == nil {
		return nil, errors.New("sessionstore/mongo: client is required")
	}
	return &Store{client: client}, nil
}

// Open opens a Store against the real Mongo collection selected by opts.
func Open(ctx context.Context, opts Options) (*Store, error) {
	client, err := New(ctx, opts)
	if err != nil {
		return nil, err
	}
	return NewStore(client)
}

// List implements sessionstore.Store.
func (s *Store) List(ctx context.Context) ([]sessionstore.Metadata, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cur, err := s.client.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("sessionstore/mongo: list: %w", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []sessionstore.Metadata
	for cur.Next(ctx) {
		var doc sessionDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("sessionstore/mongo: list: decode: %w", err)
		}
		out = append(out, doc.metadata())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("sessionstore/mongo: list: %w", err)
	}
	return out, nil
}

// Load implements sessionstore.Store.
func (s *Store) Load(ctx context.Context, id string) (sessionstore.Record, bool, error) {
	doc, ok, err := s.loadDocument(ctx, id)
	if err != nil || !ok {
		return sessionstore.Record{}, ok, err
	}
	messages, err := sessionstore.DecodeMessagesWire(doc.Messages)
	if err != nil {
		return sessionstore.Record{}, false, fmt.Errorf("sessionstore/mongo: load %s: %w", id, err)
	}
	return sessionstore.Record{Metadata: doc.metadata(), Messages: messages}, true, nil
}

func (s *Store) loadDocument(ctx context.Context, id string) (sessionDocument, bool, error) {
	var doc sessionDocument
	err := s.client.FindOne(ctx, bson.M{"session_id": id}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return sessionDocument{}, false, nil
	}
	if err != nil {
		return sessionDocument{}, false, fmt.Errorf("sessionstore/mongo: load %s: %w", id, err)
	}
	return doc, true, nil
}

// Save implements sessionstore.Store.
func (s *Store) Save(ctx context.Context, id string, messages []model.Message, partial *sessionstore.Metadata) error {
	existing, ok, err := s.loadDocument(ctx, id)
	if err != nil {
		return err
	}
	base := existing.metadata()
	now := time.Now().UTC()
	if !ok {
		base = sessionstore.Metadata{ID: id, CreatedAt: now}
	}
	meta := sessionstore.MergeMetadata(base, partial)
	meta.UpdatedAt = now
	meta.MessageCount = len(messages)

	doc := documentFromMetadata(meta, sessionstore.EncodeMessagesWire(messages))

	filter := bson.M{"session_id": id}
	update := bson.M{"$set": doc}
	if _, err := s.client.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true)); err != nil {
		return fmt.Errorf("sessionstore/mongo: save %s: %w", id, err)
	}
	return nil
}

// Delete implements sessionstore.Store.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.client.DeleteOne(ctx, bson.M{"session_id": id})
	if err != nil {
		return false, fmt.Errorf("sessionstore/mongo: delete %s: %w", id, err)
	}
	return res.DeletedCount > 0, nil
}
