// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with the Ollama API.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - StreamReader: pull-based reader for newline-delimited chat streams
//   - Model: adapts a Client to the language-model capability used by agents
//
// # Usage
//
//	client := ollama.NewClient()
//	model := ollama.NewModel(client, "qwen2.5-coder:14b", nil)
//	resp, err := model.SendRequest(ctx, messages, host.RequestOptions{System: prompt})
//	defer resp.Close()
//	for {
//	    part, err := resp.Next(ctx)
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
package ollama
