// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server is an HTTP chat host for pal.
//
// It implements host.ChatRegistry in memory and exposes the live agents over
// a small JSON/SSE API:
//
//	GET  /health               liveness, optionally probing the model backend
//	GET  /v1/agents            registered agents and their slash-commands
//	POST /v1/agents/{id}/chat  invoke an agent, streamed as server-sent events
//
// A chat stream emits "markdown" and "edit" events as the handler produces
// them, an "error" event if the handler fails after streaming started, and a
// final "done" event.
package server
