// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides the Gemini client for hosted inference.
//
// The client implements provider.Client over the generateContent REST API.
// It holds no user configuration: the credential and model are read from the
// config.Settings passed to each call.
//
// # Key Types
//
//   - Client: HTTP client for the Gemini API
//   - GenerateContentRequest: contents, parts and system instruction
//   - ModelInfo: one entry of the vendor model listing
//
// # Usage
//
//	client := cloud.NewClient(cloud.WithLogger(logger))
//	answer, err := client.Chat(ctx, "Hello", conv.Turns(), store.Current())
//	if errors.Is(err, provider.ErrMissingCredential) {
//	    // prompt for a key
//	}
//
// # Security
//
// The credential is sent only in the x-goog-api-key header, never in the
// URL. Logs carry a short SHA-256 fingerprint of the key instead of the key.
package cloud
