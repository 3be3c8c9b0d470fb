// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package host

import "context"

// =============================================================================
// DISPOSABLES
// =============================================================================

// Disposable is a handle whose release must be called by its owner.
type Disposable interface {
	Dispose()
}

// DisposableFunc adapts a plain function to Disposable.
type DisposableFunc func()

// Dispose calls f.
func (f DisposableFunc) Dispose() { f() }

// DisposeAll releases every handle in order and returns an empty slice that
// reuses the backing array.
func DisposeAll(handles []Disposable) []Disposable {
	for _, d := range handles {
		if d != nil {
			d.Dispose()
		}
	}
	return handles[:0]
}

// =============================================================================
// AGENT DESCRIPTOR
// =============================================================================

// Location is a surface of the host a request can originate from.
type Location string

const (
	LocationPanel    Location = "panel"
	LocationEditor   Location = "editor"
	LocationTerminal Location = "terminal"
)

// SlashCommand is a named sub-invocation offered by an agent.
type SlashCommand struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AgentMetadata carries presentation flags for an agent.
type AgentMetadata struct {
	IsSticky bool `json:"isSticky"`
}

// Disambiguation is a hint the host may use to route free-form requests.
type Disambiguation struct {
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Examples    []string `json:"examples"`
}

// AgentData describes a dynamic chat agent to the host.
type AgentData struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	FullName       string           `json:"fullName"`
	IsDefault      bool             `json:"isDefault"`
	Metadata       AgentMetadata    `json:"metadata"`
	SlashCommands  []SlashCommand   `json:"slashCommands"`
	Locations      []Location       `json:"locations"`
	Disambiguation []Disambiguation `json:"disambiguation"`
}

// HasCommand reports whether the descriptor offers the named slash-command.
func (a AgentData) HasCommand(name string) bool {
	for _, c := range a.SlashCommands {
		if c.Name == name {
			return true
		}
	}
	return false
}

// ThemeIcon names an icon from the host's icon theme.
type ThemeIcon string

// =============================================================================
// REQUESTS AND RESPONSES
// =============================================================================

// EditorData is attached to requests made from an editor selection.
type EditorData struct {
	Document  *TextDocument
	Selection Range
}

// ChatRequest is a single invocation of an agent.
type ChatRequest struct {
	// Command is the slash-command name, without the leading slash.
	Command string
	// Prompt is the free text the user typed after the command.
	Prompt string
	// Location is the surface the request came from.
	Location Location
	// Editor is set only for requests bound to an editor selection.
	Editor *EditorData
	// Model is the language model the host selected for this request.
	Model LanguageModel
}

// ResponsePart is a structured part pushed to a ResponseStream.
type ResponsePart interface {
	responsePart()
}

// MarkdownPart is a chunk of markdown text.
type MarkdownPart struct {
	Value string `json:"value"`
}

// TextEditPart proposes edits to a document. Applying them is up to the host.
type TextEditPart struct {
	URI   string     `json:"uri"`
	Edits []TextEdit `json:"edits"`
}

func (MarkdownPart) responsePart() {}
func (TextEditPart) responsePart() {}

// ResponseStream is the sink a request handler writes its answer into.
type ResponseStream interface {
	// Markdown pushes a MarkdownPart.
	Markdown(value string)
	// Push appends an arbitrary response part.
	Push(part ResponsePart)
}

// RequestHandler services one chat request. Returning nil after ctx is
// cancelled is a normal early exit.
type RequestHandler func(ctx context.Context, req *ChatRequest, stream ResponseStream) error

// Participant is a live chat participant created by the host.
type Participant interface {
	Disposable
	ID() string
	SetIconPath(icon ThemeIcon)
}

// ChatRegistry is the host's chat registration surface.
type ChatRegistry interface {
	// RegisterChatAgent makes a dynamic agent and its commands visible.
	RegisterChatAgent(data AgentData) (Disposable, error)
	// CreateChatParticipant binds a request handler to an agent id.
	CreateChatParticipant(id string, handler RequestHandler) (Participant, error)
}
