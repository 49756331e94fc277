// Package provider talks to an OpenAI-compatible model endpoint for
// embeddings and streaming chat completions.
//
// The streaming surface is deliberately narrow: the SDK's callback-style
// stream is translated into a channel of discrete Event values, which the
// chat orchestrator consumes as a state machine. Event kinds the orchestrator
// does not recognize are ignored by it, so new kinds can be added here
// without breaking consumers.
package provider

// EventKind identifies one kind of provider stream event.
type EventKind int

const (
	// EventDelta carries one text fragment of the assistant response.
	EventDelta EventKind = iota

	// EventToolCallDone signals a fully-accumulated tool invocation with
	// its JSON arguments.
	EventToolCallDone

	// EventCompleted signals the provider finished the current call.
	EventCompleted

	// EventError signals the call failed before producing any usable output.
	EventError

	// EventUnknown is any event kind this version does not model.
	// Consumers treat it as a no-op.
	EventUnknown
)

// String returns the event kind name for logging.
func (k EventKind) String() string {
	switch k {
	case EventDelta:
		return "delta"
	case EventToolCallDone:
		return "tool_call_done"
	case EventCompleted:
		return "completed"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one discrete occurrence on a chat completion stream.
// Exactly the fields for the event's Kind are set.
type Event struct {
	Kind EventKind

	// Delta text fragment (EventDelta).
	Delta string

	// Tool invocation (EventToolCallDone).
	ToolName string
	ToolArgs string // raw JSON arguments

	// Failure cause (EventError).
	Err error
}

// Message roles on chat requests.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one prior conversation turn sent to the chat model.
type Message struct {
	Role    string
	Content string
}

// ToolDefinition declares a callable function to the chat model.
// Parameters is a JSON-schema object.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ChatRequest is the input to one streaming chat completion call.
type ChatRequest struct {
	// Instructions is the system prompt, already carrying retrieval context.
	Instructions string

	// Messages are prior turns plus the new user turn, oldest first.
	Messages []Message

	// Tools the model may invoke.
	Tools []ToolDefinition
}
