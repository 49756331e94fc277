package chat

import (
	"strings"

	"github.com/lantern-ai/lantern/internal/provider"
	"github.com/lantern-ai/lantern/internal/store"
)

const basePrompt = `You are Lantern, a helpful assistant. Answer using the
provided context when it is relevant. If the context does not cover the
question, say so instead of guessing. You may call the available tools to
look up facts.`

// BuildInstructions assembles the system prompt. Retrieved chunks are
// appended in retrieval order, separated by blank lines, so the model sees
// the nearest context first.
func BuildInstructions(matches []store.ChunkMatch) string {
	if len(matches) == 0 {
		return basePrompt
	}

	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\nContext:\n\n")
	for i, m := range matches {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.Chunk.Text)
	}
	return b.String()
}

// HistoryMessages converts stored turns into provider messages, oldest
// first. Roles outside the provider's vocabulary are dropped.
func HistoryMessages(msgs []store.Message) []provider.Message {
	out := make([]provider.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case store.RoleUser:
			out = append(out, provider.Message{Role: provider.RoleUser, Content: m.Content})
		case store.RoleAssistant:
			out = append(out, provider.Message{Role: provider.RoleAssistant, Content: m.Content})
		case store.RoleSystem:
			out = append(out, provider.Message{Role: provider.RoleSystem, Content: m.Content})
		case store.RoleTool:
			out = append(out, provider.Message{Role: provider.RoleTool, Content: m.Content})
		}
	}
	return out
}
