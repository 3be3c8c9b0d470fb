// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pal implements the Pal chat agent.
//
// Pal's slash-commands are markdown files in the workspace configuration
// directory (.config/pal/*.md by default). The file stem is the command name
// and the file body is used verbatim as the system prompt when the command
// is invoked.
//
// # Key Types
//
//   - Participant: builds the agent descriptor and services chat requests
//   - Registrar: keeps the host registration in sync with the command files,
//     debouncing bursts of file events into a single rebuild
//   - Extension: the activated agent (participant + registrar + watcher)
//
// # Lifecycle
//
//	ext, err := pal.Activate(pal.Options{
//	    Workspace: host.Folders{root},
//	    Registry:  chatHost,
//	    Tools:     tools.NewRegistry(tools.Edit()),
//	})
//	defer ext.Close()
//
// Activation registers the agent immediately and then re-registers it,
// after the debounce delay, whenever a command file is created or removed.
package pal
