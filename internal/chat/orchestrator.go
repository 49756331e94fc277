// Package chat orchestrates one conversational turn: history assembly,
// context retrieval, the streaming model call, tool execution, and
// persistence of the final reply.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/lantern-ai/lantern/internal/provider"
	"github.com/lantern-ai/lantern/internal/retriever"
	"github.com/lantern-ai/lantern/internal/store"
)

// maxToolRounds bounds chained tool continuations within one turn.
const maxToolRounds = 8

// ErrModelFailed is returned when the provider fails before producing any
// output. The user message stays persisted; no assistant message is written.
var ErrModelFailed = errors.New("chat: model call failed")

// Streamer is the provider surface the orchestrator needs.
type Streamer interface {
	StreamChat(ctx context.Context, req provider.ChatRequest) <-chan provider.Event
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ConversationStore is the storage surface the orchestrator needs.
type ConversationStore interface {
	CreateConversation(ctx context.Context, ownerID uuid.UUID, title string) (*store.Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID) (*store.Conversation, error)
	AddMessage(ctx context.Context, conversationID uuid.UUID, role store.Role, content string) (*store.Message, error)
	RecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]store.Message, error)
}

// ContextRetriever finds document context for a query embedding.
type ContextRetriever interface {
	FindSimilar(ctx context.Context, query []float32, scope retriever.Scope) ([]store.ChunkMatch, error)
}

// ToolRunner resolves and executes model tool calls.
type ToolRunner interface {
	Definitions() []provider.ToolDefinition
	Call(ctx context.Context, name, args string) (string, error)
}

// Orchestrator runs chat turns.
type Orchestrator struct {
	provider  Streamer
	store     ConversationStore
	retriever ContextRetriever
	tools     ToolRunner
	history   int
	logger    *slog.Logger
}

// New wires an orchestrator. history is how many prior messages are sent
// to the model.
func New(p Streamer, st ConversationStore, r ContextRetriever, tools ToolRunner, history int, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		provider:  p,
		store:     st,
		retriever: r,
		tools:     tools,
		history:   history,
		logger:    logger,
	}
}

// Request is one incoming chat turn. A nil ConversationID starts a new
// conversation titled after the query.
type Request struct {
	Query          string
	ConversationID *uuid.UUID
	OwnerID        uuid.UUID
}

// Result summarizes a finished turn.
type Result struct {
	ConversationID      uuid.UUID
	Title               string
	CreatedConversation bool
	Reply               string
}

type toolCall struct {
	name string
	args string
}

// Respond runs one turn. The user message is persisted before the model is
// called, so a failed call still records what the user asked. Response
// deltas flow through sink as they arrive; the assembled reply is persisted
// once the stream settles. A turn that produced no text persists nothing.
func (o *Orchestrator) Respond(ctx context.Context, req Request, sink EventSink) (*Result, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, store.ErrEmptyContent
	}

	conv, created, err := o.resolveConversation(ctx, req)
	if err != nil {
		return nil, err
	}

	if _, err := o.store.AddMessage(ctx, conv.ID, store.RoleUser, req.Query); err != nil {
		return nil, fmt.Errorf("persisting user message: %w", err)
	}

	history, err := o.store.RecentMessages(ctx, conv.ID, o.history)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	instructions := BuildInstructions(o.retrieveContext(ctx, req.Query, conv.ID))
	messages := HistoryMessages(history)

	reply, err := o.converse(ctx, instructions, messages, sink)
	if err != nil {
		return nil, err
	}

	if reply != "" {
		// Persist even when the client disconnected mid-stream; the
		// partial reply is the conversation's record of this turn.
		persistCtx := context.WithoutCancel(ctx)
		if _, err := o.store.AddMessage(persistCtx, conv.ID, store.RoleAssistant, reply); err != nil {
			return nil, fmt.Errorf("persisting assistant message: %w", err)
		}
	}

	return &Result{
		ConversationID:      conv.ID,
		Title:               conv.Title,
		CreatedConversation: created,
		Reply:               reply,
	}, nil
}

func (o *Orchestrator) resolveConversation(ctx context.Context, req Request) (*store.Conversation, bool, error) {
	if req.ConversationID != nil {
		conv, err := o.store.GetConversation(ctx, *req.ConversationID)
		if err != nil {
			return nil, false, err
		}
		return conv, false, nil
	}
	conv, err := o.store.CreateConversation(ctx, req.OwnerID, DeriveTitle(req.Query))
	if err != nil {
		return nil, false, fmt.Errorf("creating conversation: %w", err)
	}
	return conv, true, nil
}

// retrieveContext embeds the query and fetches nearby chunks from the
// conversation's documents plus global ones. Retrieval is best-effort:
// a failure degrades to an uncontextualized answer instead of failing the
// turn.
func (o *Orchestrator) retrieveContext(ctx context.Context, query string, conversationID uuid.UUID) []store.ChunkMatch {
	vec, err := o.provider.Embed(ctx, query)
	if err != nil {
		o.logger.Warn("embedding query failed, answering without context", "error", err)
		return nil
	}
	matches, err := o.retriever.FindSimilar(ctx, vec, retriever.UnionScope(conversationID))
	if err != nil {
		o.logger.Warn("context retrieval failed, answering without context", "error", err)
		return nil
	}
	return matches
}

// converse drives the provider stream, executing tool calls and issuing
// exactly one continuation call per round of finished tools. Text
// accumulates across continuations into a single reply.
func (o *Orchestrator) converse(ctx context.Context, instructions string, messages []provider.Message, sink EventSink) (string, error) {
	var reply strings.Builder
	defs := o.tools.Definitions()
	flushed := 0 // prefix of reply already sent back as an assistant turn

	for round := 0; ; round++ {
		events := o.provider.StreamChat(ctx, provider.ChatRequest{
			Instructions: instructions,
			Messages:     messages,
			Tools:        defs,
		})

		var pending []toolCall
		var streamErr error

		for ev := range events {
			switch ev.Kind {
			case provider.EventDelta:
				reply.WriteString(ev.Delta)
				if err := sink.Delta(ev.Delta); err != nil {
					o.logger.Warn("delivering delta", "error", err)
				}
			case provider.EventToolCallDone:
				pending = append(pending, toolCall{name: ev.ToolName, args: ev.ToolArgs})
				if err := sink.ToolCall(ev.ToolName); err != nil {
					o.logger.Warn("delivering tool call", "error", err)
				}
			case provider.EventError:
				streamErr = ev.Err
			case provider.EventCompleted:
			default:
				o.logger.Debug("ignoring provider event", "kind", ev.Kind)
			}
		}

		if streamErr != nil {
			return "", fmt.Errorf("%w: %v", ErrModelFailed, streamErr)
		}
		if len(pending) == 0 {
			return reply.String(), nil
		}
		if round >= maxToolRounds {
			o.logger.Warn("tool round limit reached", "rounds", round)
			return reply.String(), nil
		}

		// Tool results ride the next call as plain turns; the model
		// continues from them.
		if text := reply.String()[flushed:]; text != "" {
			messages = append(messages, provider.Message{Role: provider.RoleAssistant, Content: text})
		}
		flushed = reply.Len()
		for _, call := range pending {
			// A canceled turn still finishes the tool it already
			// committed to.
			toolCtx := context.WithoutCancel(ctx)
			result, err := o.tools.Call(toolCtx, call.name, call.args)
			if err != nil {
				o.logger.Error("tool call failed", "tool", call.name, "error", err)
				result = fmt.Sprintf("The tool %q failed: %v", call.name, err)
			}
			messages = append(messages, provider.Message{
				Role:    provider.RoleTool,
				Content: fmt.Sprintf("Tool %q returned: %s", call.name, result),
			})
		}

		if ctx.Err() != nil {
			// Client went away; keep what was generated.
			return reply.String(), nil
		}
	}
}
