// Package sqlite provides a sessionstore.Store backed by an embedded
// SQLite database via modernc.org/sqlite, the teacher pack's pure-Go
// driver of choice for an embedded backend (see
// haasonsaas-nexus/internal/memory/backend/sqlitevec). It mirrors
// sessionstore/sql's schema and query shape, swapping $N placeholders for
// SQLite's "?" and pgx for modernc's driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/sessionstore"
)

// Schema is the DDL Open applies automatically; New leaves schema
// application to the caller.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id                 TEXT PRIMARY KEY,
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL,
	message_count      INTEGER NOT NULL,
	label              TEXT NOT NULL DEFAULT '',
	parent_id          TEXT NOT NULL DEFAULT '',
	fork_message_id    TEXT NOT NULL DEFAULT '',
	detached           INTEGER NOT NULL DEFAULT 0,
	is_checkpoint      INTEGER NOT NULL DEFAULT 0,
	checkpoint_msg_id  TEXT NOT NULL DEFAULT '',
	checkpoint_summary TEXT NOT NULL DEFAULT '',
	provider           TEXT NOT NULL DEFAULT '',
	model              TEXT NOT NULL DEFAULT '',
	messages           TEXT NOT NULL
)`

const timeLayout = time.RFC3339Nano

// Store persists sessions in a local SQLite "sessions" table.
type Store struct {
	db *sql.DB
}

// New wraps db, an already-open *sql.DB using the "sqlite" driver. It does
// not apply Schema.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens path (":memory:" for an ephemeral database) with the "sqlite"
// driver and applies Schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sessionstore/sqlite: open %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sessionstore/sqlite: create schema: %w", err)
	}
	return New(db), nil
}

// List implements sessionstore.Store.
func (s *Store) List(ctx context.Context) ([]sessionstore.Metadata, error) {
	const q = `
		SELECT id, created_at, updated_at, message_count, label, parent_id,
		       fork_message_id, detached, is_checkpoint, checkpoint_msg_id,
		       checkpoint_summary, provider, model
		FROM   sessions
		ORDER  BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sessionstore/sqlite: list: %w", err)
	}
	defer rows.Close()

	var out []sessionstore.Metadata
	for rows.Next() {
		meta, err := scanMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("sessionstore/sqlite: list: scan: %w", err)
		}
		out = append(out, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sessionstore/sqlite: list: %w", err)
	}
	return out, nil
}

// Load implements sessionstore.Store.
func (s *Store) Load(ctx context.Context, id string) (sessionstore.Record, bool, error) {
	const q = `
		SELECT id, created_at, updated_at, message_count, label, parent_id,
		       fork_message_id, detached, is_checkpoint, checkpoint_msg_id,
		       checkpoint_summary, provider, model, messages
		FROM   sessions
		WHERE  id = ?`

	var (
		meta    sessionstore.Metadata
		created string
		updated string
		msgText string
		cpMsgID string
		cpSum   string
	)
	row := s.db.QueryRowContext(ctx, q, id)
	err := row.Scan(
		&meta.ID, &created, &updated, &meta.MessageCount,
		&meta.Label, &meta.ParentID, &meta.ForkMessageID, &meta.Detached,
		&meta.IsCheckpoint, &cpMsgID, &cpSum, &meta.Provider, &meta.Model,
		&msgText,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return sessionstore.Record{}, false, nil
	}
	if err != nil {
		return sessionstore.Record{}, false, fmt.Errorf("sessionstore/sqlite: load %s: %w", id, err)
	}
	if meta.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return sessionstore.Record{}, false, fmt.Errorf("sessionstore/sqlite: load %s: created_at: %w", id, err)
	}
	if meta.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return sessionstore.Record{}, false, fmt.Errorf("sessionstore/sqlite: load %s: updated_at: %w", id, err)
	}
	if cpMsgID != "" || cpSum != "" {
		meta.Checkpoint = &model.CheckpointState{MessageID: cpMsgID, Summary: cpSum}
	}

	messages, err := sessionstore.MessagesFromJSON([]byte(msgText))
	if err != nil {
		return sessionstore.Record{}, false, fmt.Errorf("sessionstore/sqlite: load %s: %w", id, err)
	}
	return sessionstore.Record{Metadata: meta, Messages: messages}, true, nil
}

// Save implements sessionstore.Store.
func (s *Store) Save(ctx context.Context, id string, messages []model.Message, partial *sessionstore.Metadata) error {
	existing, ok, err := s.Load(ctx, id)
	if err != nil {
		return err
	}
	base := existing.Metadata
	now := time.Now().UTC()
	if !ok {
		base = sessionstore.Metadata{ID: id, CreatedAt: now}
	}
	meta := sessionstore.MergeMetadata(base, partial)
	meta.UpdatedAt = now
	meta.MessageCount = len(messages)

	msgJSON, err := sessionstore.MessagesToJSON(messages)
	if err != nil {
		return fmt.Errorf("sessionstore/sqlite: save %s: %w", id, err)
	}

	var cpMsgID, cpSummary string
	if meta.Checkpoint != nil {
		cpMsgID, cpSummary = meta.Checkpoint.MessageID, meta.Checkpoint.Summary
	}

	const q = `
		INSERT INTO sessions
		    (id, created_at, updated_at, message_count, label, parent_id,
		     fork_message_id, detached, is_checkpoint, checkpoint_msg_id,
		     checkpoint_summary, provider, model, messages)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    updated_at         = excluded.updated_at,
		    message_count      = excluded.message_count,
		    label              = excluded.label,
		    parent_id          = excluded.parent_id,
		    fork_message_id    = excluded.fork_message_id,
		    detached           = excluded.detached,
		    is_checkpoint      = excluded.is_checkpoint,
		    checkpoint_msg_id  = excluded.checkpoint_msg_id,
		    checkpoint_summary = excluded.checkpoint_summary,
		    provider           = excluded.provider,
		    model              = excluded.model,
		    messages           = excluded.messages`

	_, err = s.db.ExecContext(ctx, q,
		meta.ID, meta.CreatedAt.Format(timeLayout), meta.UpdatedAt.Format(timeLayout),
		meta.MessageCount, meta.Label, meta.ParentID, meta.ForkMessageID, meta.Detached,
		meta.IsCheckpoint, cpMsgID, cpSummary, meta.Provider, meta.Model, string(msgJSON),
	)
	if err != nil {
		return fmt.Errorf("sessionstore/sqlite: save %s: %w", id, err)
	}
	return nil
}

// Delete implements sessionstore.Store.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("sessionstore/sqlite: delete %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sessionstore/sqlite: delete %s: %w", id, err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMetadata(row scanner) (sessionstore.Metadata, error) {
	var (
		meta    sessionstore.Metadata
		created string
		updated string
		cpMsgID string
		cpSum   string
	)
	if err := row.Scan(
		&meta.ID, &created, &updated, &meta.MessageCount,
		&meta.Label, &meta.ParentID, &meta.ForkMessageID, &meta.Detached,
		&meta.IsCheckpoint, &cpMsgID, &cpSum, &meta.Provider, &meta.Model,
	); err != nil {
		return sessionstore.Metadata{}, err
	}
	var err error
	if meta.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return sessionstore.Metadata{}, err
	}
	if meta.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return sessionstore.Metadata{}, err
	}
	if cpMsgID != "" || cpSum != "" {
		meta.Checkpoint = &model.CheckpointState{MessageID: cpMsgID, Summary: cpSum}
	}
	return meta, nil
}
