package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// ErrStreamingUnsupported is returned when the ResponseWriter cannot flush.
var ErrStreamingUnsupported = errors.New("api: response writer does not support streaming")

// sseWriter streams data-only server-sent event frames. Each frame is one
// JSON object on a "data:" line. It implements chat.EventSink.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	return &sseWriter{w: w, flusher: flusher}, nil
}

// send writes one frame and flushes so the client sees it immediately.
func (s *sseWriter) send(frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	s.flusher.Flush()
	return nil
}

type deltaFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type toolCallFrame struct {
	Type string `json:"type"`
	Tool string `json:"tool"`
}

type metadataFrame struct {
	Type              string    `json:"type"`
	ConversationID    uuid.UUID `json:"conversation_id"`
	ConversationTitle string    `json:"conversation_title"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Delta delivers one response text fragment.
func (s *sseWriter) Delta(content string) error {
	return s.send(deltaFrame{Type: "delta", Content: content})
}

// ToolCall announces a tool invocation.
func (s *sseWriter) ToolCall(name string) error {
	return s.send(toolCallFrame{Type: "tool_call", Tool: name})
}

// Metadata identifies the conversation. Sent at most once, after the
// final delta.
func (s *sseWriter) Metadata(conversationID uuid.UUID, title string) error {
	return s.send(metadataFrame{
		Type:              "metadata",
		ConversationID:    conversationID,
		ConversationTitle: title,
	})
}

// Error reports a failed turn on an already-open stream.
func (s *sseWriter) Error(message string) error {
	return s.send(errorFrame{Type: "error", Message: message})
}
