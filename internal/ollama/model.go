// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/jeranaias/rigrun-pal/internal/host"
)

// Model adapts a Client to host.LanguageModel.
type Model struct {
	client  *Client
	name    string
	options *Options
}

// NewModel binds client to a model name. An empty name uses the client default.
func NewModel(client *Client, name string, opts *Options) *Model {
	if name == "" {
		name = client.GetDefaultModel()
	}
	return &Model{client: client, name: name, options: opts}
}

// Name returns the Ollama model name.
func (m *Model) Name() string {
	return m.name
}

// SendRequest streams a chat completion. The system prompt, if any, is sent
// as a leading system message.
func (m *Model) SendRequest(ctx context.Context, messages []host.Message, opts host.RequestOptions) (host.ModelResponse, error) {
	req := ChatRequest{
		Model:    m.name,
		Messages: toMessages(opts.System, messages),
		Options:  m.options,
		Tools:    toTools(opts.Tools),
	}

	reader, err := m.client.ChatStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return &modelResponse{reader: reader}, nil
}

func toMessages(system string, messages []host.Message) []Message {
	out := make([]Message, 0, len(messages)+1)
	if system != "" {
		out = append(out, NewSystemMessage(system))
	}
	for _, msg := range messages {
		out = append(out, Message{Role: string(msg.Role), Content: msg.Content})
	}
	return out
}

// toTools converts host tool descriptors to Ollama function tools.
func toTools(tools []host.Tool) []Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, Tool{
			Type: "function",
			Function: ToolSchema{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toParameters(t.InputSchema),
			},
		})
	}
	return out
}

func toParameters(schema map[string]any) ToolParameters {
	params := ToolParameters{Type: "object", Properties: map[string]ToolProperty{}}
	if t, ok := schema["type"].(string); ok && t != "" {
		params.Type = t
	}

	if props, ok := schema["properties"].(map[string]any); ok {
		for name, raw := range props {
			prop, _ := raw.(map[string]any)
			p := ToolProperty{}
			p.Type, _ = prop["type"].(string)
			p.Description, _ = prop["description"].(string)
			p.Enum = stringSlice(prop["enum"])
			params.Properties[name] = p
		}
	}
	params.Required = stringSlice(schema["required"])
	return params
}

// stringSlice accepts both []string and decoded JSON []any.
func stringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// =============================================================================
// RESPONSE
// =============================================================================

// modelResponse flattens stream chunks into host parts. A chunk carrying both
// text and tool calls yields the text first.
type modelResponse struct {
	reader  *StreamReader
	pending []host.Part
}

func (r *modelResponse) Next(ctx context.Context) (host.Part, error) {
	for len(r.pending) == 0 {
		chunk, err := r.reader.Next(ctx)
		if err != nil {
			return nil, err
		}
		if chunk.Done {
			log.Printf("OLLAMA_DONE | model=%s reason=%s prompt_tokens=%d completion_tokens=%d tokens_per_sec=%.1f",
				chunk.Model, chunk.DoneReason, chunk.PromptTokens, chunk.CompletionTokens, chunk.TokensPerSecond())
		}
		r.pending = partsOf(chunk)
	}
	part := r.pending[0]
	r.pending = r.pending[1:]
	return part, nil
}

func (r *modelResponse) Close() error {
	return r.reader.Close()
}

func partsOf(chunk *StreamChunk) []host.Part {
	var parts []host.Part
	if chunk.Content != "" {
		parts = append(parts, host.TextPart{Value: chunk.Content})
	}
	for _, call := range chunk.ToolCalls {
		id := call.ID
		if id == "" {
			id = uuid.NewString()
		}
		parts = append(parts, host.ToolCallPart{
			CallID: id,
			Name:   call.Function.Name,
			Input:  call.Function.Arguments,
		})
	}
	return parts
}

var _ host.LanguageModel = (*Model)(nil)
var _ host.ModelResponse = (*modelResponse)(nil)

