// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"fmt"
	"time"

	"github.com/jeranaias/omnitool/internal/model"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// Message represents a chat message in the conversation.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ChatRequest is the request body for /api/chat endpoint.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// GenerateRequest is the request body for /api/generate endpoint.
type GenerateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images,omitempty"` // base64, no data URL prefix
	Stream bool     `json:"stream"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ChatResponse is the response from /api/chat endpoint.
type ChatResponse struct {
	Model         string    `json:"model"`
	CreatedAt     time.Time `json:"created_at"`
	Message       Message   `json:"message"`
	Done          bool      `json:"done"`
	TotalDuration int64     `json:"total_duration,omitempty"` // nanoseconds
	EvalCount     int       `json:"eval_count,omitempty"`
}

// GenerateResponse is the response from /api/generate endpoint.
type GenerateResponse struct {
	Model         string    `json:"model"`
	CreatedAt     time.Time `json:"created_at"`
	Response      string    `json:"response"`
	Done          bool      `json:"done"`
	TotalDuration int64     `json:"total_duration,omitempty"`
}

// TotalTime returns the total generation time.
func (r *ChatResponse) TotalTime() time.Duration {
	return time.Duration(r.TotalDuration)
}

// =============================================================================
// MODEL TYPES
// =============================================================================

// ModelInfo contains information about an installed model.
type ModelInfo struct {
	Name       string       `json:"name"`
	ModifiedAt time.Time    `json:"modified_at"`
	Size       int64        `json:"size"`
	Digest     string       `json:"digest"`
	Details    ModelDetails `json:"details,omitempty"`
}

// ModelDetails contains detailed information about a model.
type ModelDetails struct {
	Format            string   `json:"format"`
	Family            string   `json:"family"`
	Families          []string `json:"families"`
	ParameterSize     string   `json:"parameter_size"`
	QuantizationLevel string   `json:"quantization_level"`
}

// ListModelsResponse is the response from /api/tags endpoint.
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// =============================================================================
// ERROR TYPES
// =============================================================================

// OllamaError is the error body returned by the daemon.
type OllamaError struct {
	Error string `json:"error"`
}

// =============================================================================
// HELPER METHODS
// =============================================================================

// FormatSize formats a byte count in gigabytes with one decimal.
func FormatSize(size int64) string {
	const GB = 1024 * 1024 * 1024
	return fmt.Sprintf("%.1f GB", float64(size)/GB)
}

// FormatSize formats the model size in gigabytes with one decimal.
func (m *ModelInfo) FormatSize() string {
	return FormatSize(m.Size)
}

// ShortDigest returns the first 12 characters of the digest.
func (m *ModelInfo) ShortDigest() string {
	if len(m.Digest) <= 12 {
		return m.Digest
	}
	return m.Digest[:12]
}

// toMessages converts turns to daemon messages.
func toMessages(history []model.Turn) []Message {
	messages := make([]Message, 0, len(history)+1)
	for _, t := range history {
		role := "user"
		if t.Speaker == model.SpeakerAssistant {
			role = "assistant"
		}
		messages = append(messages, Message{Role: role, Content: t.Text})
	}
	return messages
}
