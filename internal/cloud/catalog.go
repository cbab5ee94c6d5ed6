// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"strings"

	"github.com/jeranaias/omnitool/internal/provider"
)

// defaultModels is shown before a live listing succeeds.
var defaultModels = []provider.ModelEntry{
	{ID: "gemini-3-pro-preview", SizeHint: "preview", Label: "Gemini 3.0 Pro Preview", Description: "Latest reasoning & complex tasks"},
	{ID: "gemini-2.5-flash", SizeHint: "latest", Label: "Gemini 2.5 Flash", Description: "Fastest, low latency"},
	{ID: "gemini-2.0-flash-exp", SizeHint: "exp", Label: "Gemini 2.0 Flash Experimental", Description: "Next gen experimental"},
	{ID: "gemini-1.5-pro", SizeHint: "latest", Label: "Gemini 1.5 Pro", Description: "Reasoning & Complex tasks"},
	{ID: "gemini-1.5-flash", SizeHint: "latest", Label: "Gemini 1.5 Flash", Description: "Cost efficient"},
	{ID: "gemini-1.5-flash-8b", SizeHint: "latest", Label: "Gemini 1.5 Flash-8B", Description: "High volume tasks"},
}

// DefaultModels returns a copy of the fallback cloud catalog.
func DefaultModels() []provider.ModelEntry {
	return append([]provider.ModelEntry(nil), defaultModels...)
}

// IsDefaultModel reports whether id is in the fallback catalog.
func IsDefaultModel(id string) bool {
	return provider.ContainsModel(defaultModels, id)
}

// filterModels keeps chat-capable models and strips the "models/" prefix.
func filterModels(infos []ModelInfo) []provider.ModelEntry {
	entries := make([]provider.ModelEntry, 0, len(infos))
	for _, m := range infos {
		name := strings.ToLower(m.Name)
		if !strings.Contains(name, "gemini") && !strings.Contains(name, "learnlm") {
			continue
		}
		if strings.Contains(name, "embedding") {
			continue
		}

		id := strings.TrimPrefix(m.Name, "models/")
		label := m.DisplayName
		if label == "" {
			label = id
		}
		entries = append(entries, provider.ModelEntry{
			ID:          id,
			Label:       label,
			SizeHint:    m.Version,
			Description: m.Description,
		})
	}
	return entries
}
