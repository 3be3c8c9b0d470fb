// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package host

import "context"

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn sent to a language model.
type Message struct {
	Role    Role
	Content string
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Tool is a capability the model may call.
type Tool struct {
	Name        string
	Description string
	// InputSchema is a JSON schema object describing the tool input.
	InputSchema map[string]any
}

// ToolRegistry lists the tools the host has registered.
type ToolRegistry interface {
	Tools() []Tool
}

// ToolsNamed returns the subset of registry tools with the given name.
func ToolsNamed(reg ToolRegistry, name string) []Tool {
	if reg == nil {
		return nil
	}
	var out []Tool
	for _, t := range reg.Tools() {
		if t.Name == name {
			out = append(out, t)
		}
	}
	return out
}

// RequestOptions configures a single model request.
type RequestOptions struct {
	Tools  []Tool
	System string
}

// Part is one chunk of a model response: a TextPart or a ToolCallPart.
type Part interface {
	part()
}

// TextPart is streamed model text.
type TextPart struct {
	Value string
}

// ToolCallPart is a request from the model to invoke a tool.
type ToolCallPart struct {
	CallID string
	Name   string
	Input  map[string]any
}

func (TextPart) part()     {}
func (ToolCallPart) part() {}

// ModelResponse is a lazy, finite, non-restartable sequence of parts.
type ModelResponse interface {
	// Next returns the next part, or io.EOF when the stream is exhausted.
	Next(ctx context.Context) (Part, error)
	// Close releases the underlying stream. It is safe to call more than once.
	Close() error
}

// LanguageModel sends requests to a model the host provides.
type LanguageModel interface {
	SendRequest(ctx context.Context, messages []Message, opts RequestOptions) (ModelResponse, error)
}
