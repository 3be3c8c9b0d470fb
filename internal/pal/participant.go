// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pal

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/rigrun-pal/internal/host"
)

const (
	// ParticipantID identifies the Pal agent to the host.
	ParticipantID = "rigrun.assistant.pal"

	// DefaultConfigDir is the workspace-relative directory holding command files.
	DefaultConfigDir = ".config/pal"

	// CommandExt is the extension of command files.
	CommandExt = ".md"

	// Icon is the theme icon shown next to Pal in the chat UI.
	Icon host.ThemeIcon = "smiley"
)

// Participant builds Pal's agent descriptor and answers its requests.
type Participant struct {
	workspace host.Workspace
	configDir string
	tools     host.ToolRegistry
}

// NewParticipant creates a participant reading commands from configDir,
// relative to the first workspace folder. An empty configDir selects
// DefaultConfigDir.
func NewParticipant(ws host.Workspace, configDir string, tools host.ToolRegistry) *Participant {
	if configDir == "" {
		configDir = DefaultConfigDir
	}
	return &Participant{
		workspace: ws,
		configDir: filepath.FromSlash(configDir),
		tools:     tools,
	}
}

// ID returns ParticipantID.
func (p *Participant) ID() string {
	return ParticipantID
}

// Dir returns the absolute command directory.
func (p *Participant) Dir() (string, error) {
	root, err := host.Root(p.workspace)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, p.configDir), nil
}

// Commands enumerates the command files. The order follows directory
// listing order and carries no meaning.
func (p *Participant) Commands() ([]host.SlashCommand, error) {
	dir, err := p.Dir()
	if err != nil {
		return nil, err
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*"+CommandExt))
	if err != nil {
		return nil, fmt.Errorf("list commands in %s: %w", dir, err)
	}

	commands := make([]host.SlashCommand, 0, len(matches))
	for _, m := range matches {
		// Directories named *.md and dangling symlinks are not commands.
		if info, err := os.Stat(m); err != nil || !info.Mode().IsRegular() {
			continue
		}
		commands = append(commands, host.SlashCommand{
			Name:        strings.TrimSuffix(filepath.Base(m), CommandExt),
			Description: "",
		})
	}
	return commands, nil
}

// AgentData builds a fresh descriptor with a freshly enumerated command list.
func (p *Participant) AgentData() (host.AgentData, error) {
	commands, err := p.Commands()
	if err != nil {
		return host.AgentData{}, err
	}
	return host.AgentData{
		ID:             ParticipantID,
		Name:           "pal",
		FullName:       "Pal",
		IsDefault:      false,
		Metadata:       host.AgentMetadata{IsSticky: false},
		SlashCommands:  commands,
		Locations:      []host.Location{host.LocationEditor},
		Disambiguation: []host.Disambiguation{},
	}, nil
}

// PromptPath returns the file backing command.
func (p *Participant) PromptPath(command string) (string, error) {
	dir, err := p.Dir()
	if err != nil {
		return "", err
	}
	if !validCommandName(command) {
		return "", &PromptError{Command: command, Path: dir, Cause: fs.ErrInvalid}
	}
	return filepath.Join(dir, command+CommandExt), nil
}

// LoadPrompt reads the system prompt for command.
func (p *Participant) LoadPrompt(command string) (string, error) {
	path, err := p.PromptPath(command)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &PromptError{Command: command, Path: path, Cause: err}
	}
	return string(data), nil
}

// validCommandName rejects names that would resolve outside the command
// directory.
func validCommandName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}
