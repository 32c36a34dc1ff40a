// Package sessionstore defines the persistence collaborator a Conversation
// is loaded from and saved to, and the concrete adapters
// (memory/file/sql/sqlite/mongo) that implement it.
package sessionstore

import (
	"context"
	"errors"
	"time"

	"github.com/simulacra-ai/conversa/model"
)

// ErrNotFound names a missing session. The Store methods do not return it:
// Load and Delete report a missing id through their bool result.
var ErrNotFound = errors.New("sessionstore: session not found")

// Metadata is the bookkeeping a Store maintains about a session
// independently of its message history. CreatedAt, UpdatedAt, and
// MessageCount are maintained by the Store itself on every Save; the rest
// are caller-supplied and passed through unchanged.
type Metadata struct {
	ID           string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int

	Label         string
	ParentID      string
	ForkMessageID string
	Detached      bool
	IsCheckpoint  bool
	Checkpoint    *model.CheckpointState
	Provider      string
	Model         string
}

// Record is a session's full persisted state.
type Record struct {
	Metadata Metadata
	Messages []model.Message
}

// Store persists session metadata and message history. Implementations
// must be safe for concurrent use.
type Store interface {
	// List returns every session's Metadata, ordered by UpdatedAt
	// descending (most recently touched first).
	List(ctx context.Context) ([]Metadata, error)

	// Load returns the full Record for id. The second return value is
	// false when id names no session; Load then returns a zero Record
	// and a nil error, not ErrNotFound — callers that want an error
	// instead should check the bool themselves.
	Load(ctx context.Context, id string) (Record, bool, error)

	// Save writes messages as id's new history and merges partial into
	// id's stored Metadata: a nil field in partial leaves the
	// corresponding stored field untouched, except ID, CreatedAt,
	// UpdatedAt, and MessageCount, which Save always computes itself, and
	// the Detached and IsCheckpoint bools, which a non-nil partial always
	// overwrites (see MergeMetadata).
	// Creates the session if id is new.
	Save(ctx context.Context, id string, messages []model.Message, partial *Metadata) error

	// Delete removes id's Record. Reports whether a session existed to
	// delete.
	Delete(ctx context.Context, id string) (bool, error)
}

// MergeMetadata applies partial onto base, a shared helper every adapter
// uses to honor Save's "nil field leaves stored value untouched" contract.
// String and pointer fields are only overwritten when non-empty/non-nil in
// partial; Detached and IsCheckpoint are plain bools with no "unset" value,
// so a non-nil partial always carries both through as given — a caller
// that wants to change one flips the field it cares about and repeats the
// Store's current value (from a prior List/Load) for the other.
func MergeMetadata(base Metadata, partial *Metadata) Metadata {
	if partial == nil {
		return base
	}
	out := base
	if partial.Label != "" {
		out.Label = partial.Label
	}
	if partial.ParentID != "" {
		out.ParentID = partial.ParentID
	}
	if partial.ForkMessageID != "" {
		out.ForkMessageID = partial.ForkMessageID
	}
	out.Detached = partial.Detached
	out.IsCheckpoint = partial.IsCheckpoint
	if partial.Checkpoint != nil {
		cp := *partial.Checkpoint
		out.Checkpoint = &cp
	}
	if partial.Provider != "" {
		out.Provider = partial.Provider
	}
	if partial.Model != "" {
		out.Model = partial.Model
	}
	return out
}

// CloneMetadata returns a deep copy of m, since Metadata carries a pointer
// field (Checkpoint) adapters must not let callers mutate through a
// returned value.
func CloneMetadata(m Metadata) Metadata {
	out := m
	if m.Checkpoint != nil {
		cp := *m.Checkpoint
		out.Checkpoint = &cp
	}
	return out
}

// CloneMessages returns a shallow copy of the slice header, enough to stop
// a caller's append from aliasing a Store's internal slice.
func CloneMessages(msgs []model.Message) []model.Message {
	if msgs == nil {
		return nil
	}
	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	return out
}
