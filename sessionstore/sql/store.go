// Package sql provides a sessionstore.Store backed by a SQL database
// reached through database/sql, matching the teacher's own CockroachStore
// (internal/sessions/cockroach.go) in structure: a *sql.DB, parameterized
// queries with $N placeholders, and errors wrapped with the failing
// operation's name. It targets Postgres-family databases via
// github.com/jackc/pgx/v5/stdlib, registered under the "pgx" driver name.
package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/sessionstore"
)

// Store persists sessions in a "sessions" table (schema below). It is safe
// for concurrent use; concurrency control is whatever *sql.DB provides.
type Store struct {
	db *sql.DB
}

// Schema is the DDL New's caller is expected to have applied (or apply
// itself via db.ExecContext(ctx, sql.Schema)) before using a Store.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id                 TEXT PRIMARY KEY,
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL,
	message_count      INTEGER NOT NULL,
	label              TEXT NOT NULL DEFAULT '',
	parent_id          TEXT NOT NULL DEFAULT '',
	fork_message_id    TEXT NOT NULL DEFAULT '',
	detached           BOOLEAN NOT NULL DEFAULT FALSE,
	is_checkpoint      BOOLEAN NOT NULL DEFAULT FALSE,
	checkpoint_msg_id  TEXT NOT NULL DEFAULT '',
	checkpoint_summary TEXT NOT NULL DEFAULT '',
	provider           TEXT NOT NULL DEFAULT '',
	model              TEXT NOT NULL DEFAULT '',
	messages           JSONB NOT NULL
)`

// New wraps db. New does not apply Schema; callers that want it applied
// automatically should run db.ExecContext(ctx, sql.Schema) themselves.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens a pgx-backed *sql.DB for dsn and wraps it in a Store.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sessionstore/sql: open: %w", err)
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
		return nil, fmt.Errorf("sessionstore/sql: list: %w", err)
	}
	defer rows.Close()

	var out []sessionstore.Metadata
	for rows.Next() {
		meta, err := scanMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("sessionstore/sql: list: scan: %w", err)
		}
		out = append(out, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sessionstore/sql: list: %w", err)
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
		WHERE  id = $1`

	var (
		meta     sessionstore.Metadata
		msgJSON  []byte
		cpMsgID  string
		cpSumary string
	)
	row := s.db.QueryRowContext(ctx, q, id)
	err := row.Scan(
		&meta.ID, &meta.CreatedAt, &meta.UpdatedAt, &meta.MessageCount,
		&meta.Label, &meta.ParentID, &meta.ForkMessageID, &meta.Detached,
		&meta.IsCheckpoint, &cpMsgID, &cpSumary, &meta.Provider, &meta.Model,
		&msgJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return sessionstore.Record{}, false, nil
	}
	if err != nil {
		return sessionstore.Record{}, false, fmt.Errorf("sessionstore/sql: load %s: %w", id, err)
	}
	if cpMsgID != "" || cpSumary != "" {
		meta.Checkpoint = &model.CheckpointState{MessageID: cpMsgID, Summary: cpSumary}
	}

	messages, err := sessionstore.MessagesFromJSON(msgJSON)
	if err != nil {
		return sessionstore.Record{}, false, fmt.Errorf("sessionstore/sql: load %s: %w", id, err)
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
		return fmt.Errorf("sessionstore/sql: save %s: %w", id, err)
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
		    updated_at         = EXCLUDED.updated_at,
		    message_count      = EXCLUDED.message_count,
		    label              = EXCLUDED.label,
		    parent_id          = EXCLUDED.parent_id,
		    fork_message_id    = EXCLUDED.fork_message_id,
		    detached           = EXCLUDED.detached,
		    is_checkpoint      = EXCLUDED.is_checkpoint,
		    checkpoint_msg_id  = EXCLUDED.checkpoint_msg_id,
		    checkpoint_summary = EXCLUDED.checkpoint_summary,
		    provider           = EXCLUDED.provider,
		    model              = EXCLUDED.model,
		    messages           = EXCLUDED.messages`

	_, err = s.db.ExecContext(ctx, q,
		meta.ID, meta.CreatedAt, meta.UpdatedAt, meta.MessageCount, meta.Label,
		meta.ParentID, meta.ForkMessageID, meta.Detached, meta.IsCheckpoint,
		cpMsgID, cpSummary, meta.Provider, meta.Model, msgJSON,
	)
	if err != nil {
		return fmt.Errorf("sessionstore/sql: save %s: %w", id, err)
	}
	return nil
}

// Delete implements sessionstore.Store.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("sessionstore/sql: delete %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sessionstore/sql: delete %s: %w", id, err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMetadata(row scanner) (sessionstore.Metadata, error) {
	var (
		meta    sessionstore.Metadata
		cpMsgID string
		cpSum   string
	)
	if err := row.Scan(
		&meta.ID, &meta.CreatedAt, &meta.UpdatedAt, &meta.MessageCount,
		&meta.Label, &meta.ParentID, &meta.ForkMessageID, &meta.Detached,
		&meta.IsCheckpoint, &cpMsgID, &cpSum, &meta.Provider, &meta.Model,
	); err != nil {
		return sessionstore.Metadata{}, err
	}
	if cpMsgID != "" || cpSum != "" {
		meta.Checkpoint = &model.CheckpointState{MessageID: cpMsgID, Summary: cpSum}
	}
	return meta, nil
}
