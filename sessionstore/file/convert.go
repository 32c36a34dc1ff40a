package file

import (
	"fmt"
	"time"

	"github.com/simulacra-ai/conversa/sessionstore"
)

func nowUTC() time.Time {
	return time.Now().UTC()
}

func documentFromMetadata(m sessionstore.Metadata) document {
	return document{
		ID:            m.ID,
		CreatedAt:     m.CreatedAt.Format(timeLayout),
		UpdatedAt:     m.UpdatedAt.Format(timeLayout),
		MessageCount:  m.MessageCount,
		Label:         m.Label,
		ParentID:      m.ParentID,
		ForkMessageID: m.ForkMessageID,
		Detached:      m.Detached,
		IsCheckpoint:  m.IsCheckpoint,
		Checkpoint:    m.Checkpoint,
		Provider:      m.Provider,
		Model:         m.Model,
	}
}

func metadataFromDocument(doc document) (sessionstore.Metadata, error) {
	created, err := parseTime(doc.CreatedAt)
	if err != nil {
		return sessionstore.Metadata{}, fmt.Errorf("sessionstore/file: created_at: %w", err)
	}
	updated, err := parseTime(doc.UpdatedAt)
	if err != nil {
		return sessionstore.Metadata{}, fmt.Errorf("sessionstore/file: updated_at: %w", err)
	}
	return sessionstore.Metadata{
		ID:            doc.ID,
		CreatedAt:     created,
		UpdatedAt:     updated,
		MessageCount:  doc.MessageCount,
		Label:         doc.Label,
		ParentID:      doc.ParentID,
		ForkMessageID: doc.ForkMessageID,
		Detached:      doc.Detached,
		IsCheckpoint:  doc.IsCheckpoint,
		Checkpoint:    doc.Checkpoint,
		Provider:      doc.Provider,
		Model:         doc.Model,
	}, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}
