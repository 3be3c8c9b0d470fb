// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tools holds the tool definitions a pal host registers for tool
// calling.
//
// Pal only ever enables one tool, "edit", whose single "code" argument is
// the replacement text for the user's selection. The tool is never executed
// by pal itself: a call is turned into a text-edit response part and the
// host decides whether to apply it.
//
// # Key Types
//
//   - Definition: a tool with a typed parameter list
//   - Registry: an ordered set of definitions implementing host.ToolRegistry
//
// # Usage
//
//	reg := tools.NewRegistry(tools.Edit())
//	schemas := reg.Tools() // []host.Tool with JSON-schema inputs
package tools
