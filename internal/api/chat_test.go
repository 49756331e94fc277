package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/lantern-ai/lantern/internal/chat"
	"github.com/lantern-ai/lantern/internal/log"
	"github.com/lantern-ai/lantern/internal/store"
)

type fakeChatService struct {
	result     *chat.Result
	err        error
	gotRequest chat.Request
	script     func(sink chat.EventSink)
}

func (f *fakeChatService) Respond(_ context.Context, req chat.Request, sink chat.EventSink) (*chat.Result, error) {
	f.gotRequest = req
	if f.script != nil {
		f.script(sink)
	}
	return f.result, f.err
}

func newChatServer(service ChatService) *Server {
	return NewServer(ServerConfig{
		Logger: log.NewNop(),
		Chat:   service,
	})
}

// parseFrames decodes the data-only SSE frames of a response body.
func parseFrames(t *testing.T, body string) []map[string]any {
	t.Helper()
	var frames []map[string]any
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		if !strings.HasPrefix(block, "data: ") {
			t.Fatalf("frame without data prefix: %q", block)
		}
		var frame map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(block, "data: ")), &frame); err != nil {
			t.Fatalf("decoding frame %q: %v", block, err)
		}
		frames = append(frames, frame)
	}
	return frames
}

func TestChatStreamsDeltasAndMetadata(t *testing.T) {
	convID := uuid.New()
	service := &fakeChatService{
		script: func(sink chat.EventSink) {
			_ = sink.Delta("Hi ")
			_ = sink.ToolCall("count_contacts")
			_ = sink.Delta("Done")
		},
		result: &chat.Result{
			ConversationID:      convID,
			Title:               "how many contacts?",
			CreatedConversation: true,
			Reply:               "Hi Done",
		},
	}
	srv := newChatServer(service)

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"query":"how many contacts?"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	frames := parseFrames(t, w.Body.String())
	if len(frames) != 4 {
		t.Fatalf("got %d frames, want 4:\n%s", len(frames), w.Body.String())
	}
	if frames[0]["type"] != "delta" || frames[0]["content"] != "Hi " {
		t.Errorf("frame 0 = %v", frames[0])
	}
	if frames[1]["type"] != "tool_call" || frames[1]["tool"] != "count_contacts" {
		t.Errorf("frame 1 = %v", frames[1])
	}
	if frames[2]["type"] != "delta" || frames[2]["content"] != "Done" {
		t.Errorf("frame 2 = %v", frames[2])
	}
	last := frames[len(frames)-1]
	if last["type"] != "metadata" ||
		last["conversation_id"] != convID.String() ||
		last["conversation_title"] != "how many contacts?" {
		t.Errorf("metadata frame = %v", last)
	}
}

func TestChatExistingConversationOmitsMetadata(t *testing.T) {
	convID := uuid.New()
	service := &fakeChatService{
		script: func(sink chat.EventSink) { _ = sink.Delta("ok") },
		result: &chat.Result{ConversationID: convID, Reply: "ok"},
	}
	srv := newChatServer(service)

	body := `{"query":"hi","conversation_id":"` + convID.String() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	frames := parseFrames(t, w.Body.String())
	for _, f := range frames {
		if f["type"] == "metadata" {
			t.Errorf("unexpected metadata frame for an existing conversation: %v", f)
		}
	}
	if service.gotRequest.ConversationID == nil || *service.gotRequest.ConversationID != convID {
		t.Errorf("service got conversation id %v, want %v", service.gotRequest.ConversationID, convID)
	}
}

func TestChatRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"query":`},
		{"empty query", `{"query":"   "}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newChatServer(&fakeChatService{})
			req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestChatUnknownConversationStreamsError(t *testing.T) {
	service := &fakeChatService{err: store.ErrNotFound}
	srv := newChatServer(service)

	body := `{"query":"hi","conversation_id":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	frames := parseFrames(t, w.Body.String())
	if len(frames) != 1 || frames[0]["type"] != "error" {
		t.Fatalf("frames = %v, want a single error frame", frames)
	}
	if msg := frames[0]["message"]; msg != "conversation not found" {
		t.Errorf("error message = %v", msg)
	}
}

func TestChatModelFailureStreamsError(t *testing.T) {
	service := &fakeChatService{err: chat.ErrModelFailed}
	srv := newChatServer(service)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"query":"hi"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	frames := parseFrames(t, w.Body.String())
	if len(frames) != 1 || frames[0]["message"] != "model call failed" {
		t.Fatalf("frames = %v, want a model failure error frame", frames)
	}
}

func TestChatOwnerFromHeader(t *testing.T) {
	owner := uuid.New()
	service := &fakeChatService{
		result: &chat.Result{ConversationID: uuid.New()},
	}
	srv := newChatServer(service)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"query":"hi"}`))
	req.Header.Set("X-User-ID", owner.String())
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if service.gotRequest.OwnerID != owner {
		t.Errorf("OwnerID = %v, want %v", service.gotRequest.OwnerID, owner)
	}
}

func TestChatGenericFailure(t *testing.T) {
	service := &fakeChatService{err: errors.New("boom")}
	srv := newChatServer(service)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"query":"hi"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	frames := parseFrames(t, w.Body.String())
	if len(frames) != 1 || frames[0]["message"] != "chat failed" {
		t.Fatalf("frames = %v, want a generic error frame", frames)
	}
}
