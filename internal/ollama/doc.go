// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for a local Ollama daemon.
//
// The client implements provider.Client over the non-streaming /api/chat,
// /api/generate and /api/tags endpoints. The daemon endpoint and model are
// read from the config.Settings passed to each call.
//
// # Key Types
//
//   - Client: HTTP client for the Ollama API
//   - ChatRequest: Request structure for chat completions
//   - ModelInfo: one installed model as reported by /api/tags
//
// # Usage
//
//	client := ollama.NewClient()
//	answer, err := client.Chat(ctx, "Hello", conv.Turns(), store.Current())
//	if errors.Is(err, provider.ErrConnectionFailed) {
//	    // daemon is not running
//	}
//
// Unlike the cloud client, the full history is sent with every chat.
package ollama
