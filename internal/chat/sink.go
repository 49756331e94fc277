package chat

// EventSink receives the user-visible side of a chat turn as it happens.
// The HTTP layer implements it over server-sent events; tests implement it
// with a slice.
type EventSink interface {
	// Delta delivers one response text fragment.
	Delta(content string) error

	// ToolCall announces that the assistant is invoking a tool.
	ToolCall(name string) error
}
