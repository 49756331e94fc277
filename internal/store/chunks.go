package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// ReplaceChunks atomically replaces a document's chunk set: all existing
// chunks are deleted and the new set inserted inside one transaction, so
// no chunk can reference stale content after a re-chunk. New chunks start
// in the uploaded state.
func (s *Store) ReplaceChunks(ctx context.Context, documentID uuid.UUID, chunks []NewChunk) ([]DocumentChunk, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("chunk replace rollback", "error", rbErr)
		}
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
		return nil, fmt.Errorf("deleting old chunks: %w", err)
	}

	created := make([]DocumentChunk, 0, len(chunks))
	for _, nc := range chunks {
		chunk := DocumentChunk{
			ID:         uuid.New(),
			DocumentID: documentID,
			Text:       nc.Text,
			Order:      nc.Order,
			Status:     ChunkUploaded,
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO document_chunks (id, document_id, text, order_no, status)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at, updated_at`,
			chunk.ID, chunk.DocumentID, chunk.Text, chunk.Order, chunk.Status.String(),
		).Scan(&chunk.CreatedAt, &chunk.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("inserting chunk %d: %w", nc.Order, err)
		}
		created = append(created, chunk)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing chunk replacement: %w", err)
	}

	s.logger.Debug("replaced chunks", "document_id", documentID, "count", len(created))
	return created, nil
}

// GetChunk retrieves a chunk by id.
func (s *Store) GetChunk(ctx context.Context, id uuid.UUID) (*DocumentChunk, error) {
	var chunk DocumentChunk
	var status string

	err := s.pool.QueryRow(ctx, `
		SELECT id, document_id, text, order_no, status, created_at, updated_at
		FROM document_chunks WHERE id = $1`, id,
	).Scan(&chunk.ID, &chunk.DocumentID, &chunk.Text, &chunk.Order, &status,
		&chunk.CreatedAt, &chunk.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("chunk %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("getting chunk %s: %w", id, err)
	}

	chunk.Status, err = ParseChunkStatus(status)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", id, err)
	}
	return &chunk, nil
}

// SetChunkStatus records a chunk status transition. A missing row returns
// ErrNotFound, which embedding jobs treat as "chunk was deleted, no-op";
// a write the state machine disallows returns ErrInvalidTransition.
func (s *Store) SetChunkStatus(ctx context.Context, id uuid.UUID, status ChunkStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE document_chunks SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)`,
		id, status.String(), chunkStatusesAllowing(status))
	if err != nil {
		return fmt.Errorf("setting chunk %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.chunkStatusConflict(ctx, id, status)
	}
	return nil
}

// chunkStatusConflict classifies a zero-row status update: the chunk is
// either gone or in a state that does not allow the transition.
func (s *Store) chunkStatusConflict(ctx context.Context, id uuid.UUID, status ChunkStatus) error {
	var current string
	err := s.pool.QueryRow(ctx, `SELECT status FROM document_chunks WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("chunk %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("setting chunk %s status: %w", id, err)
	}
	return fmt.Errorf("chunk %s: %s to %s: %w", id, current, status, ErrInvalidTransition)
}

// SetChunkEmbedding persists a vector into the named embedding column and
// marks the chunk completed, in one statement. A since-deleted chunk id
// surfaces as ErrNotFound; a chunk no longer in the embedding state
// surfaces as ErrInvalidTransition. Either way the caller drops the vector.
func (s *Store) SetChunkEmbedding(ctx context.Context, id uuid.UUID, column string, vec pgvector.Vector) error {
	if !validColumns[column] {
		return fmt.Errorf("%w: %q", ErrInvalidColumn, column)
	}

	query := fmt.Sprintf(`
		UPDATE document_chunks SET %s = $2, status = $3, updated_at = now()
		WHERE id = $1 AND status = ANY($4)`, column)
	tag, err := s.pool.Exec(ctx, query, id, vec, ChunkCompleted.String(), chunkStatusesAllowing(ChunkCompleted))
	if err != nil {
		return fmt.Errorf("storing embedding for chunk %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.chunkStatusConflict(ctx, id, ChunkCompleted)
	}
	return nil
}

// ChunkStatuses returns the statuses of all chunks of a document.
// Used to settle the parent document once the batch is terminal.
func (s *Store) ChunkStatuses(ctx context.Context, documentID uuid.UUID) ([]ChunkStatus, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT status FROM document_chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return nil, fmt.Errorf("listing chunk statuses: %w", err)
	}
	defer rows.Close()

	var statuses []ChunkStatus
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning chunk status: %w", err)
		}
		status, err := ParseChunkStatus(raw)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, rows.Err()
}

// SimilarChunks runs the nearest-neighbour query: cosine distance on the
// named embedding column, completed chunks only, constrained to the given
// scope. Results are ordered by distance then chunk order, truncated to
// limit. Threshold filtering happens in the retriever.
//
// conversationID nil restricts to the global corpus; includeGlobal true
// with a conversation id selects the union of both.
func (s *Store) SimilarChunks(ctx context.Context, column string, vec pgvector.Vector, conversationID *uuid.UUID, includeGlobal bool, limit int) ([]ChunkMatch, error) {
	if !validColumns[column] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidColumn, column)
	}

	scope := `d.conversation_id IS NULL`
	args := []any{vec, ChunkCompleted.String(), limit}
	if conversationID != nil {
		if includeGlobal {
			scope = `(d.conversation_id IS NULL OR d.conversation_id = $4)`
		} else {
			scope = `d.conversation_id = $4`
		}
		args = append(args, *conversationID)
	}

	query := fmt.Sprintf(`
		SELECT c.id, c.document_id, c.text, c.order_no, c.status,
		       c.created_at, c.updated_at, c.%s <=> $1 AS distance
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.%s IS NOT NULL AND c.status = $2 AND %s
		ORDER BY distance ASC, c.order_no ASC
		LIMIT $3`, column, column, scope)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	defer rows.Close()

	var matches []ChunkMatch
	for rows.Next() {
		var m ChunkMatch
		var status string
		if err := rows.Scan(&m.Chunk.ID, &m.Chunk.DocumentID, &m.Chunk.Text,
			&m.Chunk.Order, &status, &m.Chunk.CreatedAt, &m.Chunk.UpdatedAt,
			&m.Distance); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		m.Chunk.Status, err = ParseChunkStatus(status)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
