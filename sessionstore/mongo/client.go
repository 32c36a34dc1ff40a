// Package mongo provides a sessionstore.Store backed by MongoDB, adapted
// from the teacher's features/session/mongo client (narrow
// collection/cursor/singleResult interfaces wrapping the real driver, so a
// Store is testable against a fake without a live server) but retargeted
// at go.mongodb.org/mongo-driver/v2, this module's pinned major version.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/sessionstore"
)

const (
	defaultCollection = "conversa_sessions"
	defaultOpTimeout  = 5 * time.Second
)

// Options configures the Mongo-backed Store.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// Client is the narrow surface Store needs from a Mongo collection,
// mirroring the teacher's collection/singleResult/cursor split so tests
// can substitute a fake without a live server.
type Client interface {
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (cursor, error)
	UpdateOne(ctx context.Context, filter, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongodriver.UpdateResult, error)
	DeleteOne(ctx context.Context, filter any) (*mongodriver.DeleteResult, error)
	Indexes() indexView
}

type indexView interface {
	CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...options.Lister[options.CreateIndexesOptions]) (string, error)
}

type singleResult interface {
	Decode(val any) error
}

type cursor interface {
	Close(ctx context.Context) error
	Decode(val any) error
	Err() error
	Next(ctx context.Context) bool
}

// New returns a Client backed by a real Mongo collection, selected from
// opts.Client/Database/Collection, and ensures the session_id unique index
// exists.
func New(ctx context.Context, opts Options) (Client, error) {
	if opts.Client == nil {
		return nil, errors.New("sessionstore/mongo: client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("sessionstore/mongo: database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	coll := realCollection{coll: opts.Client.Database(opts.Database).Collection(collName)}

	index := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := coll.Indexes().CreateOne(ctx, index); err != nil {
		return nil, err
	}
	return coll, nil
}

type realCollection struct {
	coll *mongodriver.Collection
}

func (c realCollection) FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult {
	return c.coll.FindOne(ctx, filter, opts...)
}

func (c realCollection) Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (cursor, error) {
	return c.coll.Find(ctx, filter, opts...)
}

func (c realCollection) UpdateOne(ctx context.Context, filter, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongodriver.UpdateResult, error) {
	return c.coll.UpdateOne(ctx, filter, update, opts...)
}

func (c realCollection) DeleteOne(ctx context.Context, filter any) (*mongodriver.DeleteResult, error) {
	return c.coll.DeleteOne(ctx, filter)
}

func (c realCollection) Indexes() indexView {
	return c.coll.Indexes()
}

// sessionDocument is the BSON shape one session is stored as.
type sessionDocument struct {
	SessionID     string                     `bson:"session_id"`
	CreatedAt     time.Time                  `bson:"created_at"`
	UpdatedAt     time.Time                  `bson:"updated_at"`
	MessageCount  int                        `bson:"message_count"`
	Label         string                     `bson:"label,omitempty"`
	ParentID      string                     `bson:"parent_id,omitempty"`
	ForkMessageID string                     `bson:"fork_message_id,omitempty"`
	Detached      bool                       `bson:"detached,omitempty"`
	IsCheckpoint  bool                       `bson:"is_checkpoint,omitempty"`
	Checkpoint    *model.CheckpointState     `bson:"checkpoint,omitempty"`
	Provider      string                     `bson:"provider,omitempty"`
	Model         string                     `bson:"model,omitempty"`
	Messages      []sessionstore.WireMessage `bson:"messages"`
}

func (doc sessionDocument) metadata() sessionstore.Metadata {
	return sessionstore.Metadata{
		ID:            doc.SessionID,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
		MessageCount:  doc.MessageCount,
		Label:         doc.Label,
		ParentID:      doc.ParentID,
		ForkMessageID: doc.ForkMessageID,
		Detached:      doc.Detached,
		IsCheckpoint:  doc.IsCheckpoint,
		Checkpoint:    doc.Checkpoint,
		Provider:      doc.Provider,
		Model:         doc.Model,
	}
}

func documentFromMetadata(meta sessionstore.Metadata, messages []sessionstore.WireMessage) sessionDocument {
	return sessionDocument{
		SessionID:     meta.ID,
		CreatedAt:     meta.CreatedAt,
		UpdatedAt:     meta.UpdatedAt,
		MessageCount:  meta.MessageCount,
		Label:         meta.Label,
		ParentID:      meta.ParentID,
		ForkMessageID: meta.ForkMessageID,
		Detached:      meta.Detached,
		IsCheckpoint:  meta.IsCheckpoint,
		Checkpoint:    meta.Checkpoint,
		Provider:      meta.Provider,
		Model:         meta.Model,
		Messages:      messages,
	}
}
