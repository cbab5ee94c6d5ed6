// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jeranaias/omnitool/internal/config"
	"github.com/jeranaias/omnitool/internal/model"
	"github.com/jeranaias/omnitool/internal/provider"
)

// Defaults for requests and empty answers.
const (
	DefaultVisionPrompt = "Describe this image."

	EmptyChatAnswer   = "No response from Ollama."
	EmptyVisionAnswer = "No analysis returned."

	// MaxResponseSize is the maximum allowed response body size.
	MaxResponseSize = 10 * 1024 * 1024
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the Ollama client.
type ClientConfig struct {
	// Timeout for each request. Zero leaves the transport default of no
	// timeout; local models can take minutes on first load.
	Timeout time.Duration

	// HTTPClient replaces the default HTTP client when set.
	HTTPClient *http.Client

	// Logger receives one line per request. Defaults to log.Default().
	Logger *log.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with an Ollama daemon.
//
// The endpoint and model are read from the Settings passed to each call,
// so one Client follows every settings change. The Client is safe for
// concurrent use.
//
// Example:
//
//	client := ollama.NewClient()
//	answer, err := client.Chat(ctx, "Hello", history, store.Current())
type Client struct {
	httpClient *http.Client
	logger     *log.Logger
}

// NewClient creates a new Ollama client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new Ollama client with custom configuration.
func NewClientWithConfig(cfg *ClientConfig) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Client{httpClient: httpClient, logger: logger}
}

var _ provider.Client = (*Client)(nil)

// NormalizeEndpoint strips a single trailing slash.
func NormalizeEndpoint(endpoint string) string {
	return strings.TrimSuffix(strings.TrimSpace(endpoint), "/")
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// CheckRunning verifies that the daemon at endpoint answers.
func (c *Client) CheckRunning(ctx context.Context, endpoint string) error {
	base := NormalizeEndpoint(endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/", nil)
	if err != nil {
		return provider.Unknown("failed to create request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider.ConnectionFailed(target(base), err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return provider.Upstream(resp.StatusCode, "unexpected status from Ollama: "+resp.Status)
	}
	return nil
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Chat sends the full history followed by message to /api/chat.
func (c *Client) Chat(ctx context.Context, message string, history []model.Turn, s config.Settings) (string, error) {
	messages := toMessages(history)
	messages = append(messages, Message{Role: "user", Content: message})

	var resp ChatResponse
	err := c.post(ctx, s.LocalEndpoint, "/api/chat", ChatRequest{
		Model:    modelFor(s),
		Messages: messages,
		Stream:   false,
	}, &resp)
	if err != nil {
		return "", err
	}
	c.logger.Printf("OLLAMA_CHAT | model=%s tokens=%d generation=%v", resp.Model, resp.EvalCount, resp.TotalTime().Round(time.Millisecond))

	if resp.Message.Content == "" {
		return EmptyChatAnswer, nil
	}
	return resp.Message.Content, nil
}

// AnalyzeImage sends img to /api/generate. Any HTTP-level rejection is
// reported as VisionUnsupported because the usual cause is a model without
// an image encoder.
func (c *Client) AnalyzeImage(ctx context.Context, img provider.Image, prompt string, s config.Settings) (string, error) {
	if prompt == "" {
		prompt = DefaultVisionPrompt
	}

	var resp GenerateResponse
	err := c.post(ctx, s.LocalEndpoint, "/api/generate", GenerateRequest{
		Model:  modelFor(s),
		Prompt: prompt,
		Images: []string{img.Base64()},
		Stream: false,
	}, &resp)
	if err != nil {
		var pe *provider.Error
		if errors.As(err, &pe) && pe.Kind == provider.KindUpstream {
			return "", provider.VisionUnsupported(pe.Status, pe.Message)
		}
		return "", err
	}

	if resp.Response == "" {
		return EmptyVisionAnswer, nil
	}
	return resp.Response, nil
}

// ListModels retrieves the installed models from /api/tags.
func (c *Client) ListModels(ctx context.Context, s config.Settings) ([]provider.ModelEntry, error) {
	base := NormalizeEndpoint(s.LocalEndpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/tags", nil)
	if err != nil {
		return nil, provider.Unknown("failed to create request", err)
	}

	var result ListModelsResponse
	if err := c.do(req, base, &result); err != nil {
		return nil, err
	}

	entries := make([]provider.ModelEntry, 0, len(result.Models))
	for _, m := range result.Models {
		entries = append(entries, provider.ModelEntry{
			ID:          m.Name,
			Label:       m.Name,
			SizeHint:    m.FormatSize(),
			Description: m.ShortDigest(),
		})
	}
	return entries, nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

func (c *Client) post(ctx context.Context, endpoint, path string, body, out any) error {
	base := NormalizeEndpoint(endpoint)

	data, err := json.Marshal(body)
	if err != nil {
		return provider.Unknown("failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(data))
	if err != nil {
		return provider.Unknown("failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, base, out)
}

// do sends req and decodes a 200 body into out. Every failure is returned
// as a *provider.Error.
func (c *Client) do(req *http.Request, base string, out any) error {
	c.logger.Printf("OLLAMA_REQUEST | method=%s url=%s", req.Method, req.URL.Redacted())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider.ConnectionFailed(target(base), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return provider.ConnectionFailed(target(base), err)
	}
	if int64(len(body)) > MaxResponseSize {
		return provider.Unknown(fmt.Sprintf("response exceeded maximum size of %d bytes", MaxResponseSize), nil)
	}
	c.logger.Printf("OLLAMA_RESPONSE | status=%d duration=%v", resp.StatusCode, time.Since(start).Round(time.Millisecond))

	if resp.StatusCode != http.StatusOK {
		return parseError(resp, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return provider.Unknown("failed to decode Ollama response", err)
	}
	return nil
}

// parseError uses the daemon's {"error": ...} text when present, otherwise
// the HTTP status line.
func parseError(resp *http.Response, body []byte) error {
	var oe OllamaError
	if err := json.Unmarshal(body, &oe); err == nil && oe.Error != "" {
		return provider.Upstream(resp.StatusCode, oe.Error)
	}
	status := resp.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return provider.Upstream(resp.StatusCode, status)
}

func modelFor(s config.Settings) string {
	if s.LocalModelID == "" {
		return config.DefaultLocalModel
	}
	return s.LocalModelID
}

func target(base string) string {
	return "Ollama at " + base
}

// Helper to drain response body
func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(r, MaxResponseSize))
	r.Close()
}
