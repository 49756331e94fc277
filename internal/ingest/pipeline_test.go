package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/goleak"

	"github.com/lantern-ai/lantern/internal/chunker"
	"github.com/lantern-ai/lantern/internal/config"
	"github.com/lantern-ai/lantern/internal/log"
	"github.com/lantern-ai/lantern/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeStore struct {
	mu        sync.Mutex
	docs      map[uuid.UUID]*store.Document
	chunks    map[uuid.UUID]*store.DocumentChunk
	byDoc     map[uuid.UUID][]uuid.UUID
	vectors   map[uuid.UUID]string // chunk id -> column written
	docStatus []store.DocumentStatus
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:    make(map[uuid.UUID]*store.Document),
		chunks:  make(map[uuid.UUID]*store.DocumentChunk),
		byDoc:   make(map[uuid.UUID][]uuid.UUID),
		vectors: make(map[uuid.UUID]string),
	}
}

func (f *fakeStore) addDocument(text string) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.docs[id] = &store.Document{ID: id, Text: text, Status: store.DocumentProcessing}
	return id
}

func (f *fakeStore) GetDocument(_ context.Context, id uuid.UUID) (*store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (f *fakeStore) SetDocumentStatus(_ context.Context, id uuid.UUID, status store.DocumentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return store.ErrNotFound
	}
	if !doc.Status.CanTransition(status) {
		return store.ErrInvalidTransition
	}
	doc.Status = status
	f.docStatus = append(f.docStatus, status)
	return nil
}

func (f *fakeStore) ReplaceChunks(_ context.Context, documentID uuid.UUID, chunks []store.NewChunk) ([]store.DocumentChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.byDoc[documentID] {
		delete(f.chunks, id)
	}
	f.byDoc[documentID] = nil

	out := make([]store.DocumentChunk, 0, len(chunks))
	for _, c := range chunks {
		chunk := &store.DocumentChunk{
			ID:         uuid.New(),
			DocumentID: documentID,
			Text:       c.Text,
			Order:      c.Order,
			Status:     store.ChunkUploaded,
		}
		f.chunks[chunk.ID] = chunk
		f.byDoc[documentID] = append(f.byDoc[documentID], chunk.ID)
		out = append(out, *chunk)
	}
	return out, nil
}

func (f *fakeStore) GetChunk(_ context.Context, id uuid.UUID) (*store.DocumentChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chunk, ok := f.chunks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *chunk
	return &cp, nil
}

func (f *fakeStore) SetChunkStatus(_ context.Context, id uuid.UUID, status store.ChunkStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	chunk, ok := f.chunks[id]
	if !ok {
		return store.ErrNotFound
	}
	if !chunk.Status.CanTransition(status) {
		return store.ErrInvalidTransition
	}
	chunk.Status = status
	return nil
}

func (f *fakeStore) SetChunkEmbedding(_ context.Context, id uuid.UUID, column string, _ pgvector.Vector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	chunk, ok := f.chunks[id]
	if !ok {
		return store.ErrNotFound
	}
	if !chunk.Status.CanTransition(store.ChunkCompleted) {
		return store.ErrInvalidTransition
	}
	chunk.Status = store.ChunkCompleted
	f.vectors[id] = column
	return nil
}

func (f *fakeStore) ChunkStatuses(_ context.Context, documentID uuid.UUID) ([]store.ChunkStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var statuses []store.ChunkStatus
	for _, id := range f.byDoc[documentID] {
		statuses = append(statuses, f.chunks[id].Status)
	}
	return statuses, nil
}

func (f *fakeStore) documentStatus(id uuid.UUID) store.DocumentStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[id].Status
}

type fakeEmbedder struct {
	failOn string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, errors.New("embedding backend unavailable")
	}
	return []float32{1, 2, 3}, nil
}

type lineSplitter struct{}

func (lineSplitter) Split(text string) []chunker.Chunk {
	var chunks []chunker.Chunk
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		chunks = append(chunks, chunker.Chunk{Order: len(chunks) + 1, Text: line})
	}
	return chunks
}

func waitForTerminal(t *testing.T, st *fakeStore, docID uuid.UUID) store.DocumentStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		status := st.documentStatus(docID)
		if status == store.DocumentCompleted || status == store.DocumentFailed {
			return status
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("document %s never settled, last status %v", docID, st.documentStatus(docID))
	return 0
}

func newTestPipeline(t *testing.T, st *fakeStore, embedder Embedder) *Pipeline {
	t.Helper()
	pool := NewPool(4, 64, log.NewNop())
	t.Cleanup(func() {
		if err := pool.Close(); err != nil {
			t.Errorf("closing pool: %v", err)
		}
	})
	return New(st, embedder, lineSplitter{}, config.ColumnOllama, pool, log.NewNop())
}

func TestPipelineEmbedsAllChunks(t *testing.T) {
	st := newFakeStore()
	docID := st.addDocument("alpha\nbeta\ngamma")
	p := newTestPipeline(t, st, &fakeEmbedder{})

	if err := p.IngestDocument(context.Background(), docID); err != nil {
		t.Fatalf("IngestDocument() error = %v", err)
	}

	if got := waitForTerminal(t, st, docID); got != store.DocumentCompleted {
		t.Fatalf("final status = %v, want completed", got)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.vectors) != 3 {
		t.Fatalf("stored %d vectors, want 3", len(st.vectors))
	}
	for id, column := range st.vectors {
		if column != config.ColumnOllama {
			t.Errorf("chunk %s written to column %q, want %q", id, column, config.ColumnOllama)
		}
	}
	for _, id := range st.byDoc[docID] {
		if st.chunks[id].Status != store.ChunkCompleted {
			t.Errorf("chunk %s status = %v, want completed", id, st.chunks[id].Status)
		}
	}
}

func TestPipelineFailedChunkDoesNotBlockSiblings(t *testing.T) {
	st := newFakeStore()
	docID := st.addDocument("alpha\npoison\ngamma")
	p := newTestPipeline(t, st, &fakeEmbedder{failOn: "poison"})

	if err := p.IngestDocument(context.Background(), docID); err != nil {
		t.Fatalf("IngestDocument() error = %v", err)
	}

	if got := waitForTerminal(t, st, docID); got != store.DocumentFailed {
		t.Fatalf("final status = %v, want failed", got)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	var completed, failed int
	for _, id := range st.byDoc[docID] {
		switch st.chunks[id].Status {
		case store.ChunkCompleted:
			completed++
		case store.ChunkFailed:
			failed++
		}
	}
	if completed != 2 || failed != 1 {
		t.Fatalf("completed = %d, failed = %d, want 2 and 1", completed, failed)
	}
}

func TestPipelineEmptyDocumentCompletes(t *testing.T) {
	st := newFakeStore()
	docID := st.addDocument("   \n\n  ")
	p := newTestPipeline(t, st, &fakeEmbedder{})

	if err := p.IngestDocument(context.Background(), docID); err != nil {
		t.Fatalf("IngestDocument() error = %v", err)
	}

	if got := waitForTerminal(t, st, docID); got != store.DocumentCompleted {
		t.Fatalf("final status = %v, want completed", got)
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.vectors) != 0 {
		t.Fatalf("stored %d vectors for an empty document, want 0", len(st.vectors))
	}
}

func TestPipelineDeletedDocumentIsNoop(t *testing.T) {
	st := newFakeStore()
	p := newTestPipeline(t, st, &fakeEmbedder{})

	if err := p.IngestDocument(context.Background(), uuid.New()); err != nil {
		t.Fatalf("IngestDocument() error = %v", err)
	}

	// Give the job time to run; nothing should be recorded.
	time.Sleep(50 * time.Millisecond)
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.docStatus) != 0 {
		t.Fatalf("recorded status writes %v for a missing document", st.docStatus)
	}
}

func TestPipelineEmbedDeletedChunkIsNoop(t *testing.T) {
	st := newFakeStore()
	docID := st.addDocument("alpha")
	p := newTestPipeline(t, st, &fakeEmbedder{})

	p.embedChunk(context.Background(), docID, uuid.New())

	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.vectors) != 0 {
		t.Fatal("embed of a missing chunk wrote a vector")
	}
}

func TestPipelineReingestReplacesChunks(t *testing.T) {
	st := newFakeStore()
	docID := st.addDocument("alpha\nbeta")
	p := newTestPipeline(t, st, &fakeEmbedder{})

	if err := p.IngestDocument(context.Background(), docID); err != nil {
		t.Fatalf("IngestDocument() error = %v", err)
	}
	waitForTerminal(t, st, docID)

	st.mu.Lock()
	st.docs[docID].Text = "gamma"
	st.docs[docID].Status = store.DocumentProcessing
	st.mu.Unlock()

	if err := p.IngestDocument(context.Background(), docID); err != nil {
		t.Fatalf("IngestDocument() error = %v", err)
	}
	if got := waitForTerminal(t, st, docID); got != store.DocumentCompleted {
		t.Fatalf("final status = %v, want completed", got)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	ids := st.byDoc[docID]
	if len(ids) != 1 {
		t.Fatalf("document has %d chunks after re-ingest, want 1", len(ids))
	}
	if st.chunks[ids[0]].Text != "gamma" {
		t.Errorf("chunk text = %q, want %q", st.chunks[ids[0]].Text, "gamma")
	}
}

func TestPipelineDuplicateJobOnSettledDocument(t *testing.T) {
	st := newFakeStore()
	docID := st.addDocument("alpha\nbeta")
	p := newTestPipeline(t, st, &fakeEmbedder{})

	if err := p.IngestDocument(context.Background(), docID); err != nil {
		t.Fatalf("IngestDocument() error = %v", err)
	}
	if got := waitForTerminal(t, st, docID); got != store.DocumentCompleted {
		t.Fatalf("final status = %v, want completed", got)
	}

	st.mu.Lock()
	before := append([]uuid.UUID(nil), st.byDoc[docID]...)
	st.mu.Unlock()

	// A stale duplicate of the chunking job must not drag the document
	// back through the lifecycle or touch its chunk set.
	if err := p.chunkDocument(context.Background(), docID); err != nil {
		t.Fatalf("duplicate chunkDocument() error = %v", err)
	}

	if got := st.documentStatus(docID); got != store.DocumentCompleted {
		t.Fatalf("status after duplicate job = %v, want completed", got)
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	after := st.byDoc[docID]
	if len(after) != len(before) {
		t.Fatalf("chunk count changed from %d to %d", len(before), len(after))
	}
	for i := range before {
		if after[i] != before[i] {
			t.Errorf("chunk %d replaced by duplicate job", i)
		}
	}
}

func TestPipelineReleasesDocumentLocks(t *testing.T) {
	st := newFakeStore()
	p := newTestPipeline(t, st, &fakeEmbedder{})

	for range 3 {
		docID := st.addDocument("alpha\nbeta")
		if err := p.IngestDocument(context.Background(), docID); err != nil {
			t.Fatalf("IngestDocument() error = %v", err)
		}
		waitForTerminal(t, st, docID)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if p.docLocks.size() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("lock table holds %d entries after all documents settled, want 0", p.docLocks.size())
}

func TestPoolSubmitAfterClose(t *testing.T) {
	pool := NewPool(1, 1, log.NewNop())
	if err := pool.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	err := pool.Submit(context.Background(), func(context.Context) {})
	if !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("Submit() after close error = %v, want ErrPoolClosed", err)
	}
}
