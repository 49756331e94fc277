// Package api exposes the HTTP surface: JSON endpoints for documents and
// conversations, and a server-sent-events endpoint for chat.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/lantern-ai/lantern/internal/chat"
	"github.com/lantern-ai/lantern/internal/store"
)

// defaultOwnerID identifies requests that carry no X-User-ID header.
// Single-tenant deployments never set the header.
var defaultOwnerID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

func ownerID(r *http.Request) uuid.UUID {
	if raw := r.Header.Get("X-User-ID"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			return id
		}
	}
	return defaultOwnerID
}

// ChatService runs one chat turn, streaming through the sink.
type ChatService interface {
	Respond(ctx context.Context, req chat.Request, sink chat.EventSink) (*chat.Result, error)
}

type chatHandler struct {
	service ChatService
	logger  *slog.Logger
}

type chatRequest struct {
	Query          string     `json:"query"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
}

// send handles POST /api/chat. The response is a stream of data-only SSE
// frames: deltas and tool calls as they happen, then a metadata frame when
// the turn opened a new conversation.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	result, err := h.service.Respond(r.Context(), chat.Request{
		Query:          req.Query,
		ConversationID: req.ConversationID,
		OwnerID:        ownerID(r),
	}, sse)
	if err != nil {
		h.streamError(sse, err)
		return
	}

	if result.CreatedConversation {
		if err := sse.Metadata(result.ConversationID, result.Title); err != nil {
			h.logger.Debug("writing metadata frame", "error", err)
		}
	}
}

// streamError reports a failed turn on the already-open stream.
func (h *chatHandler) streamError(sse *sseWriter, err error) {
	message := "chat failed"
	switch {
	case errors.Is(err, store.ErrNotFound):
		message = "conversation not found"
	case errors.Is(err, chat.ErrModelFailed):
		message = "model call failed"
	}
	h.logger.Error("chat turn failed", "error", err)
	if werr := sse.Error(message); werr != nil {
		h.logger.Debug("writing error frame", "error", werr)
	}
}
