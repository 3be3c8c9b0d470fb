// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package host defines the capabilities a chat host provides to pal.
//
// Pal never talks to a concrete editor, model server or chat UI directly.
// Everything it needs is expressed here as a small interface and injected
// at activation time, so the orchestration in package pal can run against
// the HTTP host in package server, the terminal host in package cli, or the
// fakes in package hosttest.
//
// # Key Types
//
//   - ChatRegistry: registers agent descriptors and chat participants
//   - LanguageModel: sends a message list and returns a lazy part stream
//   - ResponseStream: sink for markdown and text-edit response parts
//   - ToolRegistry: tools the host makes available for tool calling
//   - Workspace: the open workspace folders
//   - TextDocument, Range, TextEdit: the minimal text model used for edits
//
// # Ownership
//
// Every registration returns a Disposable. Whoever registered a thing owns
// the handle and must call Dispose before registering a replacement.
package host
