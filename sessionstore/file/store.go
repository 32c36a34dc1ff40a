// Package file provides a sessionstore.Store that keeps one YAML document
// per session on disk, matching the teacher's own choice of
// gopkg.in/yaml.v3 for structured documents (see config.Load) and
// os.WriteFile(path, data, 0600) for writing them (see cmd/regolden).
package file

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/sessionstore"
)

// document is the on-disk shape of one session: sessionstore.Metadata
// flattened alongside its wire-encoded message history, so a session's
// entire state lives in a single human-readable file.
type document struct {
	ID           string `yaml:"id"`
	CreatedAt    string `yaml:"created_at"`
	UpdatedAt    string `yaml:"updated_at"`
	MessageCount int    `yaml:"message_count"`

	Label         string                 `yaml:"label,omitempty"`
	ParentID      string                 `yaml:"parent_id,omitempty"`
	ForkMessageID string                 `yaml:"fork_message_id,omitempty"`
	Detached      bool                   `yaml:"detached,omitempty"`
	IsCheckpoint  bool                   `yaml:"is_checkpoint,omitempty"`
	Checkpoint    *model.CheckpointState `yaml:"checkpoint,omitempty"`
	Provider      string                 `yaml:"provider,omitempty"`
	Model         string                 `yaml:"model,omitempty"`

	Messages []sessionstore.WireMessage `yaml:"messages,omitempty"`
}

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

// Store persists sessions as one YAML file per session under Dir. It is
// safe for concurrent use; a single mutex serializes all filesystem
// access, since the underlying files offer no locking of their own.
type Store struct {
	mu  sync.Mutex
	dir string
}

// New returns a Store rooted at dir. dir is created on first Save if it
// does not already exist.
func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, url.PathEscape(id)+".yaml")
}

// List implements sessionstore.Store.
func (s *Store) List(context.Context) ([]sessionstore.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sessionstore/file: list %s: %w", s.dir, err)
	}

	out := make([]sessionstore.Metadata, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		doc, err := s.readDocument(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		meta, err := metadataFromDocument(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// Load implements sessionstore.Store.
func (s *Store) Load(_ context.Context, id string) (sessionstore.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readDocument(s.path(id))
	if os.IsNotExist(err) {
		return sessionstore.Record{}, false, nil
	}
	if err != nil {
		return sessionstore.Record{}, false, err
	}

	meta, err := metadataFromDocument(doc)
	if err != nil {
		return sessionstore.Record{}, false, err
	}
	messages, err := sessionstore.DecodeMessagesWire(doc.Messages)
	if err != nil {
		return sessionstore.Record{}, false, fmt.Errorf("sessionstore/file: decode %s: %w", id, err)
	}
	return sessionstore.Record{Metadata: meta, Messages: messages}, true, nil
}

// Save implements sessionstore.Store.
func (s *Store) Save(_ context.Context, id string, messages []model.Message, partial *sessionstore.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("sessionstore/file: create %s: %w", s.dir, err)
	}

	path := s.path(id)
	existing, err := s.readDocument(path)
	var base sessionstore.Metadata
	now := nowUTC()
	if err == nil {
		base, err = metadataFromDocument(existing)
		if err != nil {
			return err
		}
	} else if os.IsNotExist(err) {
		base = sessionstore.Metadata{ID: id, CreatedAt: now}
	} else {
		return err
	}

	meta := sessionstore.MergeMetadata(base, partial)
	meta.UpdatedAt = now
	meta.MessageCount = len(messages)

	doc := documentFromMetadata(meta)
	doc.Messages = sessionstore.EncodeMessagesWire(messages)

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("sessionstore/file: marshal %s: %w", id, err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("sessionstore/file: write %s: %w", path, err)
	}
	return nil
}

// Delete implements sessionstore.Store.
func (s *Store) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(id))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sessionstore/file: delete %s: %w", id, err)
	}
	return true, nil
}

func (s *Store) readDocument(path string) (document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return document{}, err
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("sessionstore/file: parse %s: %w", path, err)
	}
	return doc, nil
}
