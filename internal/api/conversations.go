package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lantern-ai/lantern/internal/store"
)

// conversationHistoryLimit caps one page of messages.
const conversationHistoryLimit = 500

// ConversationStore is the storage surface the conversation endpoints need.
type ConversationStore interface {
	GetConversation(ctx context.Context, id uuid.UUID) (*store.Conversation, error)
	ListConversations(ctx context.Context, ownerID uuid.UUID) ([]store.Conversation, error)
	DeleteConversation(ctx context.Context, id uuid.UUID) error
	RecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]store.Message, error)
}

type conversationHandler struct {
	store  ConversationStore
	logger *slog.Logger
}

type conversationResponse struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type messageResponse struct {
	ID        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// list handles GET /api/conversations.
func (h *conversationHandler) list(w http.ResponseWriter, r *http.Request) {
	convs, err := h.store.ListConversations(r.Context(), ownerID(r))
	if err != nil {
		h.logger.Error("listing conversations", "error", err)
		writeError(w, http.StatusInternalServerError, "listing conversations failed")
		return
	}

	out := make([]conversationResponse, len(convs))
	for i, c := range convs {
		out[i] = conversationResponse{ID: c.ID, Title: c.Title, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
	}
	writeJSON(w, http.StatusOK, out)
}

// get handles GET /api/conversations/{id}.
func (h *conversationHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	conv, err := h.store.GetConversation(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("getting conversation", "conversation_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "getting conversation failed")
		return
	}
	writeJSON(w, http.StatusOK, conversationResponse{
		ID: conv.ID, Title: conv.Title, CreatedAt: conv.CreatedAt, UpdatedAt: conv.UpdatedAt,
	})
}

// messages handles GET /api/conversations/{id}/messages, oldest first.
func (h *conversationHandler) messages(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	if _, err := h.store.GetConversation(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("getting conversation", "conversation_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "getting conversation failed")
		return
	}

	msgs, err := h.store.RecentMessages(r.Context(), id, conversationHistoryLimit)
	if err != nil {
		h.logger.Error("listing messages", "conversation_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "listing messages failed")
		return
	}

	out := make([]messageResponse, len(msgs))
	for i, m := range msgs {
		out[i] = messageResponse{ID: m.ID, Role: string(m.Role), Content: m.Content, CreatedAt: m.CreatedAt}
	}
	writeJSON(w, http.StatusOK, out)
}

// remove handles DELETE /api/conversations/{id}. Messages and scoped
// documents cascade.
func (h *conversationHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	if err := h.store.DeleteConversation(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("deleting conversation", "conversation_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "deleting conversation failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
