package sql_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/sessionstore"
	sessionsql "github.com/simulacra-ai/conversa/sessionstore/sql"
)

func TestLoadMissingReturnsFalse(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM sessions WHERE id = \\$1").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	store := sessionsql.New(db)
	_, ok, err := store.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC().Truncate(time.Second)
	rows := sqlmock.NewRows([]string{
		"id", "created_at", "updated_at", "message_count", "label", "parent_id",
		"fork_message_id", "detached", "is_checkpoint", "checkpoint_msg_id",
		"checkpoint_summary", "provider", "model", "messages",
	}).AddRow("sess-1", now, now, 0, "first", "", "", false, false, "", "", "anthropic", "claude", []byte("[]"))

	mock.ExpectQuery("SELECT (.+) FROM sessions WHERE id = \\$1").WithArgs("sess-1").WillReturnRows(rows)

	store := sessionsql.New(db)
	rec, ok, err := store.Load(context.Background(), "sess-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first", rec.Metadata.Label)
	assert.Equal(t, "anthropic", rec.Metadata.Provider)
	assert.Empty(t, rec.Messages)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM sessions WHERE id = \\$1").
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec("INSERT INTO sessions").
		WillReturnResult(sqlmock.NewResult(1, 1))

	store := sessionsql.New(db)
	msg, err := model.NewUserMessage([]model.Content{model.Text("hi")})
	require.NoError(t, err)

	err = store.Save(context.Background(), "sess-1", []model.Message{msg}, &sessionstore.Metadata{Label: "first"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteReportsExistence(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM sessions WHERE id = \\$1").
		WithArgs("sess-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := sessionsql.New(db)
	ok, err := store.Delete(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
