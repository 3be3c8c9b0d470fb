// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"log"
	"sort"
	"sync"

	"github.com/jeranaias/rigrun-pal/internal/host"
)

// Registry is an in-memory host.ChatRegistry. At most one agent descriptor
// and one participant may be live per id.
type Registry struct {
	mu           sync.RWMutex
	agents       map[string]host.AgentData
	participants map[string]*participant
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		agents:       make(map[string]host.AgentData),
		participants: make(map[string]*participant),
	}
}

// RegisterChatAgent publishes data until the returned handle is disposed.
func (r *Registry) RegisterChatAgent(data host.AgentData) (host.Disposable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.agents[data.ID]; ok {
		return nil, host.ErrAlreadyRegistered
	}
	r.agents[data.ID] = data
	log.Printf("AGENT_REGISTERED | id=%s commands=%d", data.ID, len(data.SlashCommands))

	var once sync.Once
	return host.DisposableFunc(func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.agents, data.ID)
			r.mu.Unlock()
			log.Printf("AGENT_DISPOSED | id=%s", data.ID)
		})
	}), nil
}

// CreateChatParticipant binds handler to id until the participant is disposed.
func (r *Registry) CreateChatParticipant(id string, handler host.RequestHandler) (host.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.participants[id]; ok {
		return nil, host.ErrAlreadyRegistered
	}
	p := &participant{id: id, handler: handler, registry: r}
	r.participants[id] = p
	return p, nil
}

// AgentInfo is the public view of a live agent.
type AgentInfo struct {
	host.AgentData
	IconPath host.ThemeIcon `json:"iconPath,omitempty"`
	// Ready is true once a participant is bound to the agent id.
	Ready bool `json:"ready"`
}

// Agents returns the live agents sorted by id.
func (r *Registry) Agents() []AgentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]AgentInfo, 0, len(r.agents))
	for id, data := range r.agents {
		info := AgentInfo{AgentData: data}
		if p, ok := r.participants[id]; ok {
			info.Ready = true
			info.IconPath = p.icon
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Agent returns the live descriptor for id.
func (r *Registry) Agent(id string) (host.AgentData, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.agents[id]
	return data, ok
}

// Handler returns the request handler bound to id, or host.ErrUnknownAgent.
func (r *Registry) Handler(id string) (host.RequestHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[id]
	if !ok {
		return nil, host.ErrUnknownAgent
	}
	return p.handler, nil
}

// participant is the host.Participant handed out by Registry.
type participant struct {
	id       string
	handler  host.RequestHandler
	registry *Registry
	icon     host.ThemeIcon
	once     sync.Once
}

func (p *participant) ID() string { return p.id }

func (p *participant) SetIconPath(icon host.ThemeIcon) {
	p.registry.mu.Lock()
	p.icon = icon
	p.registry.mu.Unlock()
}

func (p *participant) Dispose() {
	p.once.Do(func() {
		r := p.registry
		r.mu.Lock()
		// A newer participant may already hold the id.
		if r.participants[p.id] == p {
			delete(r.participants, p.id)
		}
		r.mu.Unlock()
	})
}

var _ host.ChatRegistry = (*Registry)(nil)
