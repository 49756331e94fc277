package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/lantern-ai/lantern/internal/log"
	"github.com/lantern-ai/lantern/internal/store"
)

type fakeDocumentStore struct {
	docs map[uuid.UUID]*store.Document
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{docs: make(map[uuid.UUID]*store.Document)}
}

func (f *fakeDocumentStore) CreateDocument(_ context.Context, text string, conversationID *uuid.UUID, ownerID uuid.UUID) (*store.Document, error) {
	doc := &store.Document{
		ID:             uuid.New(),
		Text:           text,
		Status:         store.DocumentProcessing,
		ConversationID: conversationID,
		OwnerID:        ownerID,
	}
	f.docs[doc.ID] = doc
	return doc, nil
}

func (f *fakeDocumentStore) GetDocument(_ context.Context, id uuid.UUID) (*store.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return doc, nil
}

func (f *fakeDocumentStore) UpdateDocumentText(_ context.Context, id uuid.UUID, text string) error {
	doc, ok := f.docs[id]
	if !ok {
		return store.ErrNotFound
	}
	doc.Text = text
	doc.Status = store.DocumentProcessing
	return nil
}

func (f *fakeDocumentStore) DeleteDocument(_ context.Context, id uuid.UUID) error {
	if _, ok := f.docs[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeDocumentStore) ListDocuments(_ context.Context, conversationID *uuid.UUID) ([]store.Document, error) {
	var out []store.Document
	for _, doc := range f.docs {
		switch {
		case conversationID == nil && doc.ConversationID == nil:
			out = append(out, *doc)
		case conversationID != nil && doc.ConversationID != nil && *doc.ConversationID == *conversationID:
			out = append(out, *doc)
		}
	}
	return out, nil
}

type fakeIngestor struct {
	scheduled []uuid.UUID
	err       error
}

func (f *fakeIngestor) IngestDocument(_ context.Context, documentID uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.scheduled = append(f.scheduled, documentID)
	return nil
}

func newDocumentServer(st *fakeDocumentStore, ing *fakeIngestor) *Server {
	return NewServer(ServerConfig{
		Logger:    log.NewNop(),
		Documents: st,
		Ingestor:  ing,
	})
}

func TestCreateDocumentSchedulesIngestion(t *testing.T) {
	st := newFakeDocumentStore()
	ing := &fakeIngestor{}
	srv := newDocumentServer(st, ing)

	req := httptest.NewRequest(http.MethodPost, "/api/documents",
		strings.NewReader(`{"text":"lantern uses pgvector"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
	}

	var resp struct {
		ID     uuid.UUID `json:"id"`
		Status string    `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "processing" {
		t.Errorf("status = %q, want processing", resp.Status)
	}
	if len(ing.scheduled) != 1 || ing.scheduled[0] != resp.ID {
		t.Errorf("scheduled = %v, want the new document", ing.scheduled)
	}
}

func TestCreateDocumentRequiresText(t *testing.T) {
	srv := newDocumentServer(newFakeDocumentStore(), &fakeIngestor{})

	req := httptest.NewRequest(http.MethodPost, "/api/documents",
		strings.NewReader(`{"text":"   "}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetDocument(t *testing.T) {
	st := newFakeDocumentStore()
	doc, _ := st.CreateDocument(context.Background(), "some text", nil, uuid.New())
	srv := newDocumentServer(st, &fakeIngestor{})

	req := httptest.NewRequest(http.MethodGet, "/api/documents/"+doc.ID.String(), nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Text != "some text" {
		t.Errorf("text = %q", resp.Text)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	srv := newDocumentServer(newFakeDocumentStore(), &fakeIngestor{})

	req := httptest.NewRequest(http.MethodGet, "/api/documents/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestUpdateDocumentReingests(t *testing.T) {
	st := newFakeDocumentStore()
	doc, _ := st.CreateDocument(context.Background(), "old text", nil, uuid.New())
	doc.Status = store.DocumentCompleted
	ing := &fakeIngestor{}
	srv := newDocumentServer(st, ing)

	req := httptest.NewRequest(http.MethodPut, "/api/documents/"+doc.ID.String(),
		strings.NewReader(`{"text":"new text"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
	}
	if doc.Text != "new text" || doc.Status != store.DocumentProcessing {
		t.Errorf("document = %+v, want new text back in processing", doc)
	}
	if len(ing.scheduled) != 1 || ing.scheduled[0] != doc.ID {
		t.Errorf("scheduled = %v, want re-ingestion of the document", ing.scheduled)
	}
}

func TestDeleteDocument(t *testing.T) {
	st := newFakeDocumentStore()
	doc, _ := st.CreateDocument(context.Background(), "text", nil, uuid.New())
	srv := newDocumentServer(st, &fakeIngestor{})

	req := httptest.NewRequest(http.MethodDelete, "/api/documents/"+doc.ID.String(), nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if _, ok := st.docs[doc.ID]; ok {
		t.Error("document still present after delete")
	}
}

func TestListDocumentsScoping(t *testing.T) {
	st := newFakeDocumentStore()
	convID := uuid.New()
	owner := uuid.New()
	global, _ := st.CreateDocument(context.Background(), "global", nil, owner)
	scoped, _ := st.CreateDocument(context.Background(), "scoped", &convID, owner)
	srv := newDocumentServer(st, &fakeIngestor{})

	fetch := func(url string) []uuid.UUID {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, url, nil)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d", url, w.Code)
		}
		var resp []struct {
			ID uuid.UUID `json:"id"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		ids := make([]uuid.UUID, len(resp))
		for i, d := range resp {
			ids[i] = d.ID
		}
		return ids
	}

	globals := fetch("/api/documents")
	if len(globals) != 1 || globals[0] != global.ID {
		t.Errorf("global listing = %v, want only the global document", globals)
	}

	scopedIDs := fetch("/api/documents?conversation_id=" + convID.String())
	if len(scopedIDs) != 1 || scopedIDs[0] != scoped.ID {
		t.Errorf("scoped listing = %v, want only the scoped document", scopedIDs)
	}
}

func TestIngestionUnavailable(t *testing.T) {
	st := newFakeDocumentStore()
	srv := newDocumentServer(st, &fakeIngestor{err: context.Canceled})

	req := httptest.NewRequest(http.MethodPost, "/api/documents",
		strings.NewReader(`{"text":"text"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}
