package api

import (
	"log/slog"
	"net/http"
)

// ServerConfig wires the handlers' dependencies.
type ServerConfig struct {
	Logger        *slog.Logger
	Chat          ChatService
	Documents     DocumentStore
	Conversations ConversationStore
	Ingestor      Ingestor

	// Pinger reports storage readiness; nil disables the check.
	Pinger Pinger
}

// Server is the HTTP API.
type Server struct {
	handler http.Handler
}

// NewServer builds the route table and middleware stack.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ch := &chatHandler{service: cfg.Chat, logger: logger}
	dh := &documentHandler{store: cfg.Documents, ingestor: cfg.Ingestor, logger: logger}
	cvh := &conversationHandler{store: cfg.Conversations, logger: logger}
	hh := &healthHandler{pinger: cfg.Pinger, logger: logger}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", hh.live)
	mux.HandleFunc("GET /readyz", hh.ready)

	mux.HandleFunc("POST /api/chat", ch.send)

	mux.HandleFunc("POST /api/documents", dh.create)
	mux.HandleFunc("GET /api/documents", dh.list)
	mux.HandleFunc("GET /api/documents/{id}", dh.get)
	mux.HandleFunc("PUT /api/documents/{id}", dh.update)
	mux.HandleFunc("DELETE /api/documents/{id}", dh.remove)

	mux.HandleFunc("GET /api/conversations", cvh.list)
	mux.HandleFunc("GET /api/conversations/{id}", cvh.get)
	mux.HandleFunc("GET /api/conversations/{id}/messages", cvh.messages)
	mux.HandleFunc("DELETE /api/conversations/{id}", cvh.remove)

	var handler http.Handler = mux
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	return &Server{handler: handler}
}

// Handler returns the fully wrapped route table.
func (s *Server) Handler() http.Handler {
	return s.handler
}
