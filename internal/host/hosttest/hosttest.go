// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package hosttest provides in-memory host capabilities for tests.
package hosttest

import (
	"context"
	"io"
	"sync"

	"github.com/jeranaias/rigrun-pal/internal/host"
)

// =============================================================================
// RESPONSE RECORDER
// =============================================================================

// Recorder is a host.ResponseStream that keeps every pushed part.
type Recorder struct {
	mu    sync.Mutex
	parts []host.ResponsePart
}

// Markdown records a MarkdownPart.
func (r *Recorder) Markdown(value string) {
	r.Push(host.MarkdownPart{Value: value})
}

// Push records part.
func (r *Recorder) Push(part host.ResponsePart) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parts = append(r.parts, part)
}

// Parts returns a copy of all recorded parts in push order.
func (r *Recorder) Parts() []host.ResponsePart {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]host.ResponsePart(nil), r.parts...)
}

// MarkdownValues returns the values of recorded markdown parts.
func (r *Recorder) MarkdownValues() []string {
	var out []string
	for _, p := range r.Parts() {
		if md, ok := p.(host.MarkdownPart); ok {
			out = append(out, md.Value)
		}
	}
	return out
}

// Edits returns the recorded text-edit parts.
func (r *Recorder) Edits() []host.TextEditPart {
	var out []host.TextEditPart
	for _, p := range r.Parts() {
		if e, ok := p.(host.TextEditPart); ok {
			out = append(out, e)
		}
	}
	return out
}

// =============================================================================
// SCRIPTED MODEL
// =============================================================================

// Request captures the arguments of one SendRequest call.
type Request struct {
	Messages []host.Message
	Options  host.RequestOptions
}

// Model is a host.LanguageModel that replays a fixed list of parts.
type Model struct {
	Parts []host.Part
	// Err is returned from SendRequest when set.
	Err error
	// BeforeNext runs when part i is about to be handed to the caller.
	BeforeNext func(i int)

	mu       sync.Mutex
	requests []Request
	consumed int
	closed   bool
}

// SendRequest records the call and returns a response over m.Parts.
func (m *Model) SendRequest(ctx context.Context, messages []host.Message, opts host.RequestOptions) (host.ModelResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, Request{
		Messages: append([]host.Message(nil), messages...),
		Options:  opts,
	})
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	return &modelResponse{model: m}, nil
}

// Requests returns every recorded request.
func (m *Model) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Consumed returns how many parts callers have pulled.
func (m *Model) Consumed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consumed
}

// Closed reports whether the last response was closed.
func (m *Model) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type modelResponse struct {
	model *Model
	next  int
}

func (r *modelResponse) Next(ctx context.Context) (host.Part, error) {
	if r.next >= len(r.model.Parts) {
		return nil, io.EOF
	}
	i := r.next
	r.next++

	if r.model.BeforeNext != nil {
		r.model.BeforeNext(i)
	}

	r.model.mu.Lock()
	r.model.consumed++
	r.model.mu.Unlock()
	return r.model.Parts[i], nil
}

func (r *modelResponse) Close() error {
	r.model.mu.Lock()
	r.model.closed = true
	r.model.mu.Unlock()
	return nil
}

// =============================================================================
// TOOLS
// =============================================================================

// Tools is a fixed host.ToolRegistry.
type Tools []host.Tool

// Tools returns the list itself.
func (t Tools) Tools() []host.Tool { return t }

// =============================================================================
// CHAT REGISTRY
// =============================================================================

// Registry is a host.ChatRegistry that enforces one live registration per id
// and counts everything it hands out.
type Registry struct {
	mu           sync.Mutex
	agents       map[string]host.AgentData
	participants map[string]*Participant
	registered   int
	disposed     int
	// FailRegister is returned from RegisterChatAgent when set.
	FailRegister error
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		agents:       make(map[string]host.AgentData),
		participants: make(map[string]*Participant),
	}
}

// RegisterChatAgent records data and fails if the id is already live.
func (r *Registry) RegisterChatAgent(data host.AgentData) (host.Disposable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailRegister != nil {
		return nil, r.FailRegister
	}
	if _, ok := r.agents[data.ID]; ok {
		return nil, host.ErrAlreadyRegistered
	}
	r.agents[data.ID] = data
	r.registered++

	var once sync.Once
	return host.DisposableFunc(func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.agents, data.ID)
			r.disposed++
		})
	}), nil
}

// CreateChatParticipant records handler and fails if the id is already live.
func (r *Registry) CreateChatParticipant(id string, handler host.RequestHandler) (host.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.participants[id]; ok {
		return nil, host.ErrAlreadyRegistered
	}
	p := &Participant{id: id, handler: handler, registry: r}
	r.participants[id] = p
	r.registered++
	return p, nil
}

// Agent returns the live descriptor for id.
func (r *Registry) Agent(id string) (host.AgentData, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	return a, ok
}

// Participant returns the live participant for id.
func (r *Registry) Participant(id string) (*Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	return p, ok
}

// Live returns the number of live handles (agents plus participants).
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.agents) + len(r.participants)
}

// Registered returns the total number of handles ever handed out.
func (r *Registry) Registered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registered
}

// Disposed returns the total number of handles released.
func (r *Registry) Disposed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disposed
}

// Participant is the fake host.Participant handed out by Registry.
type Participant struct {
	id       string
	handler  host.RequestHandler
	registry *Registry
	icon     host.ThemeIcon
	once     sync.Once
}

// ID returns the participant id.
func (p *Participant) ID() string { return p.id }

// SetIconPath records the icon.
func (p *Participant) SetIconPath(icon host.ThemeIcon) {
	p.registry.mu.Lock()
	defer p.registry.mu.Unlock()
	p.icon = icon
}

// Icon returns the recorded icon.
func (p *Participant) Icon() host.ThemeIcon {
	p.registry.mu.Lock()
	defer p.registry.mu.Unlock()
	return p.icon
}

// Handle invokes the bound request handler.
func (p *Participant) Handle(ctx context.Context, req *host.ChatRequest, stream host.ResponseStream) error {
	return p.handler(ctx, req, stream)
}

// Dispose removes the participant from its registry.
func (p *Participant) Dispose() {
	p.once.Do(func() {
		r := p.registry
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.participants[p.id] == p {
			delete(r.participants, p.id)
		}
		r.disposed++
	})
}
