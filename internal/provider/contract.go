// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/omnitool/internal/config"
	"github.com/jeranaias/omnitool/internal/model"
)

// =============================================================================
// CLIENT CONTRACT
// =============================================================================

// Client is the capability set every backend implements. Settings are
// passed per call so a client holds no user configuration of its own.
type Client interface {
	// Chat sends message with the preceding history and returns the answer.
	Chat(ctx context.Context, message string, history []model.Turn, s config.Settings) (string, error)

	// AnalyzeImage describes img, guided by prompt. An empty prompt uses the
	// backend's default.
	AnalyzeImage(ctx context.Context, img Image, prompt string, s config.Settings) (string, error)

	// ListModels returns the backend's model catalog.
	ListModels(ctx context.Context, s config.Settings) ([]ModelEntry, error)
}

// Lister lists models for an explicitly chosen provider.
type Lister interface {
	ListModels(ctx context.Context, p config.Provider, s config.Settings) ([]ModelEntry, error)
}

// Validator checks a cloud credential with a live request.
type Validator interface {
	ValidateKey(ctx context.Context, key string) (bool, error)
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// RequestKind selects the operation a Request performs.
type RequestKind int

const (
	KindChat RequestKind = iota
	KindVision
)

// String returns the request kind name.
func (k RequestKind) String() string {
	if k == KindVision {
		return "vision"
	}
	return "chat"
}

// Image is raw image bytes with their MIME type.
type Image struct {
	Data     []byte
	MIMEType string
}

// Base64 returns the image encoded for inline transport.
func (img Image) Base64() string {
	return base64.StdEncoding.EncodeToString(img.Data)
}

// Request is the uniform request handed to the router.
type Request struct {
	Kind RequestKind

	// Chat
	Message string
	History []model.Turn

	// Vision
	Image  Image
	Prompt string
}

// ChatRequest builds a chat request.
func ChatRequest(message string, history []model.Turn) Request {
	return Request{Kind: KindChat, Message: message, History: history}
}

// VisionRequest builds an image analysis request.
func VisionRequest(img Image, prompt string) Request {
	return Request{Kind: KindVision, Image: img, Prompt: prompt}
}

// ModelEntry is one item of a model catalog.
type ModelEntry struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	// SizeHint is the on-disk size for local models or the vendor version
	// for cloud models. Optional.
	SizeHint    string `json:"size_hint,omitempty"`
	Description string `json:"description,omitempty"`
}

// ContainsModel reports whether id is in entries.
func ContainsModel(entries []ModelEntry, id string) bool {
	for _, e := range entries {
		if e.ID == id {
			return true
		}
	}
	return false
}

// =============================================================================
// DATA URLS
// =============================================================================

// DecodeDataURL parses a "data:<mime>;base64,<payload>" string.
func DecodeDataURL(s string) (Image, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return Image{}, errors.New("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return Image{}, errors.New("data URL has no payload")
	}
	mime, encoding, _ := strings.Cut(meta, ";")
	if encoding != "base64" {
		return Image{}, fmt.Errorf("unsupported data URL encoding %q", encoding)
	}
	if mime == "" {
		mime = "application/octet-stream"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("invalid data URL payload: %w", err)
	}
	return Image{Data: data, MIMEType: mime}, nil
}
