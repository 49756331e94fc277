package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lantern-ai/lantern/internal/store"
)

// DocumentStore is the storage surface the document endpoints need.
type DocumentStore interface {
	CreateDocument(ctx context.Context, text string, conversationID *uuid.UUID, ownerID uuid.UUID) (*store.Document, error)
	GetDocument(ctx context.Context, id uuid.UUID) (*store.Document, error)
	UpdateDocumentText(ctx context.Context, id uuid.UUID, text string) error
	DeleteDocument(ctx context.Context, id uuid.UUID) error
	ListDocuments(ctx context.Context, conversationID *uuid.UUID) ([]store.Document, error)
}

// Ingestor schedules background chunking and embedding for a document.
type Ingestor interface {
	IngestDocument(ctx context.Context, documentID uuid.UUID) error
}

type documentHandler struct {
	store    DocumentStore
	ingestor Ingestor
	logger   *slog.Logger
}

type documentResponse struct {
	ID             uuid.UUID  `json:"id"`
	Status         string     `json:"status"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	Text           string     `json:"text,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toDocumentResponse(doc *store.Document, includeText bool) documentResponse {
	resp := documentResponse{
		ID:             doc.ID,
		Status:         doc.Status.String(),
		ConversationID: doc.ConversationID,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}
	if includeText {
		resp.Text = doc.Text
	}
	return resp
}

type createDocumentRequest struct {
	Text           string     `json:"text"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
}

// create handles POST /api/documents. The document is accepted in
// processing state; chunking and embedding run in the background.
func (h *documentHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	doc, err := h.store.CreateDocument(r.Context(), req.Text, req.ConversationID, ownerID(r))
	if err != nil {
		h.logger.Error("creating document", "error", err)
		writeError(w, http.StatusInternalServerError, "creating document failed")
		return
	}

	if err := h.ingestor.IngestDocument(r.Context(), doc.ID); err != nil {
		h.logger.Error("scheduling ingestion", "document_id", doc.ID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "ingestion unavailable")
		return
	}

	writeJSON(w, http.StatusAccepted, toDocumentResponse(doc, false))
}

// get handles GET /api/documents/{id}.
func (h *documentHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	doc, err := h.store.GetDocument(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		h.logger.Error("getting document", "document_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "getting document failed")
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponse(doc, true))
}

// list handles GET /api/documents. Without a conversation_id query
// parameter it lists global documents.
func (h *documentHandler) list(w http.ResponseWriter, r *http.Request) {
	var conversationID *uuid.UUID
	if raw := r.URL.Query().Get("conversation_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid conversation id")
			return
		}
		conversationID = &id
	}

	docs, err := h.store.ListDocuments(r.Context(), conversationID)
	if err != nil {
		h.logger.Error("listing documents", "error", err)
		writeError(w, http.StatusInternalServerError, "listing documents failed")
		return
	}

	out := make([]documentResponse, len(docs))
	for i := range docs {
		out[i] = toDocumentResponse(&docs[i], false)
	}
	writeJSON(w, http.StatusOK, out)
}

type updateDocumentRequest struct {
	Text string `json:"text"`
}

// update handles PUT /api/documents/{id}. New text resets the lifecycle
// and replaces every chunk; stale embedding jobs become no-ops.
func (h *documentHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	var req updateDocumentRequest
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	if err := h.store.UpdateDocumentText(r.Context(), id, req.Text); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		h.logger.Error("updating document", "document_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "updating document failed")
		return
	}

	if err := h.ingestor.IngestDocument(r.Context(), id); err != nil {
		h.logger.Error("scheduling re-ingestion", "document_id", id, "error", err)
		writeError(w, http.StatusServiceUnavailable, "ingestion unavailable")
		return
	}

	doc, err := h.store.GetDocument(r.Context(), id)
	if err != nil {
		h.logger.Error("reloading document", "document_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "updating document failed")
		return
	}
	writeJSON(w, http.StatusAccepted, toDocumentResponse(doc, false))
}

// remove handles DELETE /api/documents/{id}. Chunks cascade; in-flight
// embedding jobs for the deleted chunks become no-ops.
func (h *documentHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	if err := h.store.DeleteDocument(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		h.logger.Error("deleting document", "document_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "deleting document failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
