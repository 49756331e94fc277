package provider

import (
	"context"

	"github.com/openai/openai-go/v2"
)

// StreamChat starts a streaming chat completion call and returns a channel
// of discrete events. The channel is closed after EventCompleted or
// EventError; the caller ranges over it until closed.
//
// Delta ordering matches the provider stream exactly. A stream that drops
// after producing content is reported as EventCompleted: the caller keeps
// whatever was accumulated and never fabricates the rest. A stream that
// fails before producing anything is reported as EventError.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		stream := c.api.Chat.Completions.NewStreaming(ctx, c.buildParams(req))
		defer func() {
			_ = stream.Close()
		}()

		acc := openai.ChatCompletionAccumulator{}
		produced := false

		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)

			if tool, ok := acc.JustFinishedToolCall(); ok {
				produced = true
				if !send(ctx, events, Event{
					Kind:     EventToolCallDone,
					ToolName: tool.Name,
					ToolArgs: tool.Arguments,
				}) {
					return
				}
			}

			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				produced = true
				if !send(ctx, events, Event{Kind: EventDelta, Delta: chunk.Choices[0].Delta.Content}) {
					return
				}
			}
		}

		if err := stream.Err(); err != nil {
			if produced {
				// Partial stream: call completion with what was accumulated.
				c.logger.Warn("chat stream closed mid-response", "error", err)
				send(ctx, events, Event{Kind: EventCompleted})
				return
			}
			c.logger.Error("chat stream failed", "error", err)
			send(ctx, events, Event{Kind: EventError, Err: err})
			return
		}

		send(ctx, events, Event{Kind: EventCompleted})
	}()

	return events
}

// send delivers an event unless the caller has gone away.
func send(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// buildParams assembles the SDK request from the domain-level ChatRequest.
func (c *Client) buildParams(req ChatRequest) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.Instructions != "" {
		msgs = append(msgs, openai.SystemMessage(req.Instructions))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		case RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case RoleTool:
			// Tool results travel as user turns: the stream protocol
			// carries no tool-call ids to pair a tool message with, so
			// the content itself names the tool that produced it.
			msgs = append(msgs, openai.UserMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.profile.ChatModel),
		Messages: msgs,
	}

	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolUnionParam, len(req.Tools))
		for i, t := range req.Tools {
			tools[i] = openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  openai.FunctionParameters(t.Parameters),
			})
		}
		params.Tools = tools
	}

	return params
}
