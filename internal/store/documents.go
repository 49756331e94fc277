package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateDocument inserts a new document in the processing state.
// conversationID nil makes the document globally visible.
func (s *Store) CreateDocument(ctx context.Context, text string, conversationID *uuid.UUID, ownerID uuid.UUID) (*Document, error) {
	doc := &Document{
		ID:             uuid.New(),
		Text:           text,
		Status:         DocumentProcessing,
		ConversationID: conversationID,
		OwnerID:        ownerID,
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO documents (id, text, status, conversation_id, owner_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		doc.ID, doc.Text, doc.Status.String(), doc.ConversationID, doc.OwnerID,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting document: %w", err)
	}

	s.logger.Debug("created document", "id", doc.ID, "scoped", doc.ConversationID != nil)
	return doc, nil
}

// GetDocument retrieves a document by id.
func (s *Store) GetDocument(ctx context.Context, id uuid.UUID) (*Document, error) {
	var doc Document
	var status string

	err := s.pool.QueryRow(ctx, `
		SELECT id, text, status, conversation_id, owner_id, created_at, updated_at
		FROM documents WHERE id = $1`, id,
	).Scan(&doc.ID, &doc.Text, &status, &doc.ConversationID, &doc.OwnerID, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("getting document %s: %w", id, err)
	}

	doc.Status, err = ParseDocumentStatus(status)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", id, err)
	}
	return &doc, nil
}

// UpdateDocumentText replaces a document's content and resets its lifecycle
// to processing. The caller is responsible for scheduling the re-chunk,
// which discards all existing chunks.
func (s *Store) UpdateDocumentText(ctx context.Context, id uuid.UUID, text string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents SET text = $2, status = $3, updated_at = now()
		WHERE id = $1`,
		id, text, DocumentProcessing.String())
	if err != nil {
		return fmt.Errorf("updating document %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetDocumentStatus records a lifecycle transition. The state machine is
// enforced in the UPDATE: a write from a state that does not allow the
// transition affects zero rows and returns ErrInvalidTransition, so a
// duplicate job finding its document already settled cannot drag it
// backwards.
func (s *Store) SetDocumentStatus(ctx context.Context, id uuid.UUID, status DocumentStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)`,
		id, status.String(), documentStatusesAllowing(status))
	if err != nil {
		return fmt.Errorf("setting document %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		var current string
		err := s.pool.QueryRow(ctx, `SELECT status FROM documents WHERE id = $1`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("document %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("setting document %s status: %w", id, err)
		}
		return fmt.Errorf("document %s: %s to %s: %w", id, current, status, ErrInvalidTransition)
	}
	return nil
}

// DeleteDocument removes a document; its chunks cascade at the schema
// level, so in-flight embedding jobs referencing them become no-ops.
func (s *Store) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}

	s.logger.Debug("deleted document", "id", id)
	return nil
}

// ListDocuments returns documents in a scope: global documents when
// conversationID is nil, otherwise the documents attached to that
// conversation. Newest first.
func (s *Store) ListDocuments(ctx context.Context, conversationID *uuid.UUID) ([]Document, error) {
	var rows pgx.Rows
	var err error
	if conversationID == nil {
		rows, err = s.pool.Query(ctx, `
			SELECT id, text, status, conversation_id, owner_id, created_at, updated_at
			FROM documents WHERE conversation_id IS NULL
			ORDER BY created_at DESC`)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT id, text, status, conversation_id, owner_id, created_at, updated_at
			FROM documents WHERE conversation_id = $1
			ORDER BY created_at DESC`, *conversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var status string
		if err := rows.Scan(&doc.ID, &doc.Text, &status, &doc.ConversationID,
			&doc.OwnerID, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		doc.Status, err = ParseDocumentStatus(status)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
