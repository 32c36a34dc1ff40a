// Package memory provides a process-local sessionstore.Store; its sessions
// do not persist beyond the process.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/sessionstore"
)

// Store is an in-memory sessionstore.Store. It is safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	recs map[string]sessionstore.Record
}

// New returns an empty Store.
func New() *Store {
	return &Store{recs: make(map[string]sessionstore.Record)}
}

// List implements sessionstore.Store.
func (s *Store) List(context.Context) ([]sessionstore.Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]sessionstore.Metadata, 0, len(s.recs))
	for _, rec := range s.recs {
		out = append(out, sessionstore.CloneMetadata(rec.Metadata))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// Load implements sessionstore.Store.
func (s *Store) Load(_ context.Context, id string) (sessionstore.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.recs[id]
	if !ok {
		return sessionstore.Record{}, false, nil
	}
	return sessionstore.Record{
		Metadata: sessionstore.CloneMetadata(rec.Metadata),
		Messages: sessionstore.CloneMessages(rec.Messages),
	}, true, nil
}

// Save implements sessionstore.Store.
func (s *Store) Save(_ context.Context, id string, messages []model.Message, partial *sessionstore.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := s.recs[id]
	meta := existing.Metadata
	if !ok {
		meta = sessionstore.Metadata{ID: id, CreatedAt: now}
	}
	meta = sessionstore.MergeMetadata(meta, partial)
	meta.UpdatedAt = now
	meta.MessageCount = len(messages)

	s.recs[id] = sessionstore.Record{
		Metadata: meta,
		Messages: sessionstore.CloneMessages(messages),
	}
	return nil
}

// Delete implements sessionstore.Store.
func (s *Store) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recs[id]; !ok {
		return false, nil
	}
	delete(s.recs, id)
	return true, nil
}
