// Package ingest drives the document pipeline: splitting uploaded text
// into token windows and embedding each window in the background.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/lantern-ai/lantern/internal/chunker"
	"github.com/lantern-ai/lantern/internal/store"
)

// Store is the slice of storage the pipeline needs.
type Store interface {
	GetDocument(ctx context.Context, id uuid.UUID) (*store.Document, error)
	SetDocumentStatus(ctx context.Context, id uuid.UUID, status store.DocumentStatus) error
	ReplaceChunks(ctx context.Context, documentID uuid.UUID, chunks []store.NewChunk) ([]store.DocumentChunk, error)
	GetChunk(ctx context.Context, id uuid.UUID) (*store.DocumentChunk, error)
	SetChunkStatus(ctx context.Context, id uuid.UUID, status store.ChunkStatus) error
	SetChunkEmbedding(ctx context.Context, id uuid.UUID, column string, vec pgvector.Vector) error
	ChunkStatuses(ctx context.Context, documentID uuid.UUID) ([]store.ChunkStatus, error)
}

// Embedder produces one embedding vector for one text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Splitter cuts text into ordered token windows.
type Splitter interface {
	Split(text string) []chunker.Chunk
}

// Pipeline schedules chunking and embedding work for documents.
type Pipeline struct {
	store    Store
	embedder Embedder
	splitter Splitter
	column   string
	pool     *Pool
	logger   *slog.Logger

	// One chunking pass per document at a time. Embedding jobs for
	// different chunks still run concurrently.
	docLocks lockTable
}

// lockTable hands out one mutex per in-flight document and reclaims the
// entry once the last holder releases it, so the table never grows with
// documents that are no longer being chunked.
type lockTable struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*docLock
}

type docLock struct {
	mu   sync.Mutex
	refs int
}

func (t *lockTable) acquire(id uuid.UUID) func() {
	t.mu.Lock()
	if t.locks == nil {
		t.locks = make(map[uuid.UUID]*docLock)
	}
	l, ok := t.locks[id]
	if !ok {
		l = &docLock{}
		t.locks[id] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, id)
		}
		t.mu.Unlock()
	}
}

func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}

// New wires a pipeline over the given worker pool. column is the
// embedding column of the active profile.
func New(st Store, embedder Embedder, splitter Splitter, column string, pool *Pool, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:    st,
		embedder: embedder,
		splitter: splitter,
		column:   column,
		pool:     pool,
		logger:   logger,
	}
}

// IngestDocument schedules the full pipeline for a document. The call
// returns once the chunking job is queued; embedding proceeds in the
// background.
func (p *Pipeline) IngestDocument(ctx context.Context, documentID uuid.UUID) error {
	return p.pool.Submit(ctx, func(ctx context.Context) {
		if err := p.chunkDocument(ctx, documentID); err != nil {
			p.logger.Error("chunking document", "document_id", documentID, "error", err)
		}
	})
}

func (p *Pipeline) lockDocument(id uuid.UUID) func() {
	return p.docLocks.acquire(id)
}

// chunkDocument replaces a document's chunk set from its current text and
// queues one embedding job per chunk. A document whose text yields no
// chunks completes immediately.
func (p *Pipeline) chunkDocument(ctx context.Context, documentID uuid.UUID) error {
	unlock := p.lockDocument(documentID)
	defer unlock()

	doc, err := p.store.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil // deleted while queued
		}
		return err
	}

	chunks := p.splitter.Split(doc.Text)

	if err := p.store.SetDocumentStatus(ctx, documentID, store.DocumentExtracted); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			// Duplicate delivery: the document already moved past
			// processing, so this pass has nothing left to do.
			return nil
		}
		return p.fail(ctx, documentID, fmt.Errorf("marking extracted: %w", err))
	}

	newChunks := make([]store.NewChunk, len(chunks))
	for i, c := range chunks {
		newChunks[i] = store.NewChunk{Order: c.Order, Text: c.Text}
	}
	stored, err := p.store.ReplaceChunks(ctx, documentID, newChunks)
	if err != nil {
		return p.fail(ctx, documentID, fmt.Errorf("replacing chunks: %w", err))
	}

	if len(stored) == 0 {
		p.logger.Info("document has no embeddable text", "document_id", documentID)
		if err := p.store.SetDocumentStatus(ctx, documentID, store.DocumentCompleted); err != nil && !errors.Is(err, store.ErrInvalidTransition) {
			return err
		}
		return nil
	}

	if err := p.store.SetDocumentStatus(ctx, documentID, store.DocumentEmbedding); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			// A concurrent re-upload reset the lifecycle; its own
			// chunking pass owns the document now.
			return nil
		}
		return p.fail(ctx, documentID, fmt.Errorf("marking embedding: %w", err))
	}

	p.logger.Info("chunked document", "document_id", documentID, "chunks", len(stored))

	for _, c := range stored {
		chunkID := c.ID
		if err := p.pool.Submit(ctx, func(ctx context.Context) {
			p.embedChunk(ctx, documentID, chunkID)
		}); err != nil {
			return p.fail(ctx, documentID, fmt.Errorf("queueing embed job: %w", err))
		}
	}
	return nil
}

// embedChunk embeds one chunk and settles the parent document once every
// chunk has reached a terminal status. A failed chunk never blocks its
// siblings. The job is a no-op when the chunk has been replaced or its
// document deleted.
func (p *Pipeline) embedChunk(ctx context.Context, documentID, chunkID uuid.UUID) {
	chunk, err := p.store.GetChunk(ctx, chunkID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return
		}
		p.logger.Error("loading chunk", "chunk_id", chunkID, "error", err)
		return
	}
	if chunk.Status.Terminal() && chunk.Status != store.ChunkFailed {
		return // already embedded, duplicate delivery
	}

	if err := p.store.SetChunkStatus(ctx, chunkID, store.ChunkEmbedding); err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidTransition) {
			return // deleted, or another job already claimed it
		}
		p.logger.Error("marking chunk embedding", "chunk_id", chunkID, "error", err)
		return
	}

	vec, err := p.embedder.Embed(ctx, chunk.Text)
	if err != nil {
		p.logger.Error("embedding chunk",
			"chunk_id", chunkID, "order", chunk.Order, "error", err)
		if err := p.store.SetChunkStatus(ctx, chunkID, store.ChunkFailed); err != nil && !errors.Is(err, store.ErrNotFound) {
			p.logger.Error("marking chunk failed", "chunk_id", chunkID, "error", err)
		}
		p.settleDocument(ctx, documentID)
		return
	}

	if err := p.store.SetChunkEmbedding(ctx, chunkID, p.column, pgvector.NewVector(vec)); err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidTransition) {
			return // chunk replaced or reset mid-flight, discard the vector
		}
		p.logger.Error("storing embedding", "chunk_id", chunkID, "error", err)
		return
	}

	p.settleDocument(ctx, documentID)
}

// settleDocument moves a document to completed or failed once all of its
// chunks are terminal. Concurrent embed jobs may both observe the terminal
// set; the status write itself admits only one winner.
func (p *Pipeline) settleDocument(ctx context.Context, documentID uuid.UUID) {
	statuses, err := p.store.ChunkStatuses(ctx, documentID)
	if err != nil {
		p.logger.Error("checking chunk statuses", "document_id", documentID, "error", err)
		return
	}

	anyFailed := false
	for _, s := range statuses {
		if !s.Terminal() {
			return
		}
		if s == store.ChunkFailed {
			anyFailed = true
		}
	}

	final := store.DocumentCompleted
	if anyFailed {
		final = store.DocumentFailed
	}
	if err := p.store.SetDocumentStatus(ctx, documentID, final); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			return // a sibling job settled the document first
		}
		p.logger.Error("settling document", "document_id", documentID, "error", err)
		return
	}
	p.logger.Info("document settled", "document_id", documentID, "status", final)
}

func (p *Pipeline) fail(ctx context.Context, documentID uuid.UUID, cause error) error {
	if err := p.store.SetDocumentStatus(ctx, documentID, store.DocumentFailed); err != nil && !errors.Is(err, store.ErrNotFound) {
		p.logger.Error("marking document failed", "document_id", documentID, "error", err)
	}
	return cause
}
