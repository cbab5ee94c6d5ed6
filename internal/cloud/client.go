// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jeranaias/omnitool/internal/config"
	"github.com/jeranaias/omnitool/internal/model"
	"github.com/jeranaias/omnitool/internal/provider"
)

// Configuration constants for the Gemini API.
const (
	// DefaultBaseURL is the base URL for the Gemini API.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// HistoryWindow is how many trailing turns accompany each chat request.
	HistoryWindow = 5

	// DefaultVisionModel is used when no cloud model is selected.
	DefaultVisionModel = "gemini-2.5-flash-image"

	// DefaultVisionPrompt is sent when the caller gives no prompt.
	DefaultVisionPrompt = "Describe this image in detail."

	// MaxResponseSize is the maximum allowed response body size.
	MaxResponseSize = 10 * 1024 * 1024

	// maxListPages bounds pagination of the models listing.
	maxListPages = 10

	// validationModel is requested by ValidateKey.
	validationModel = "gemini-pro"
)

// Placeholders returned when a success carries no text.
const (
	EmptyChatAnswer   = "No response generated."
	EmptyVisionAnswer = "Could not analyze image."
)

// SystemInstruction is sent with every chat request.
const SystemInstruction = `You are a highly capable, helpful, and intelligent AI assistant powered by Google's Gemini models.
Your goal is to demonstrate your capabilities clearly.
If the user speaks Russian, reply in Russian.
Be concise, accurate, and friendly.
Format your responses using Markdown for better readability (bolding, lists, code blocks).`

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the Gemini generateContent API.
//
// The credential and model come from the Settings passed to each call, so a
// single Client serves every configuration and is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets an overall request timeout. Zero keeps the transport
// default of no timeout. The HTTP client is copied so one passed to
// WithHTTPClient is left unchanged.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// WithLogger sets the request logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a Gemini client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

var _ provider.Client = (*Client)(nil)

// =============================================================================
// OPERATIONS
// =============================================================================

// Chat sends message with the last HistoryWindow turns of history.
func (c *Client) Chat(ctx context.Context, message string, history []model.Turn, s config.Settings) (string, error) {
	key := s.Credential()
	if key == "" {
		return "", provider.MissingCredential()
	}

	recent := model.Trailing(history, HistoryWindow)
	contents := make([]Content, 0, len(recent)+1)
	for _, t := range recent {
		contents = append(contents, Content{Role: roleFor(t.Speaker), Parts: []Part{{Text: t.Text}}})
	}
	contents = append(contents, Content{Role: "user", Parts: []Part{{Text: message}}})

	req := GenerateContentRequest{
		Contents:          contents,
		SystemInstruction: &Content{Parts: []Part{{Text: SystemInstruction}}},
	}

	modelID := s.CloudModelID
	if modelID == "" {
		modelID = config.DefaultCloudModel
	}

	resp, err := c.generate(ctx, key, modelID, req)
	if err != nil {
		return "", err
	}
	if text := resp.Text(); text != "" {
		return text, nil
	}
	return EmptyChatAnswer, nil
}

// AnalyzeImage sends img inline followed by prompt.
func (c *Client) AnalyzeImage(ctx context.Context, img provider.Image, prompt string, s config.Settings) (string, error) {
	key := s.Credential()
	if key == "" {
		return "", provider.MissingCredential()
	}
	if prompt == "" {
		prompt = DefaultVisionPrompt
	}

	req := GenerateContentRequest{
		Contents: []Content{{
			Role: "user",
			Parts: []Part{
				{InlineData: &InlineData{MIMEType: img.MIMEType, Data: img.Base64()}},
				{Text: prompt},
			},
		}},
	}

	modelID := s.CloudModelID
	if modelID == "" {
		modelID = DefaultVisionModel
	}

	resp, err := c.generate(ctx, key, modelID, req)
	if err != nil {
		return "", err
	}
	if text := resp.Text(); text != "" {
		return text, nil
	}
	return EmptyVisionAnswer, nil
}

// ListModels fetches the models available to the credential, keeping only
// Gemini and LearnLM chat models.
func (c *Client) ListModels(ctx context.Context, s config.Settings) ([]provider.ModelEntry, error) {
	key := s.Credential()
	if key == "" {
		return nil, provider.MissingCredential()
	}

	var infos []ModelInfo
	pageToken := ""
	for page := 0; page < maxListPages; page++ {
		query := url.Values{"pageSize": {"1000"}}
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}

		var resp ListModelsResponse
		if err := c.do(ctx, http.MethodGet, key, "/models?"+query.Encode(), nil, &resp); err != nil {
			return nil, err
		}
		infos = append(infos, resp.Models...)

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return filterModels(infos), nil
}

// ValidateKey checks key against the API. 400 and 401 mean the key is invalid;
// any other status means it was accepted. A transport failure is reported
// as invalid with a ConnectionFailed error.
func (c *Client) ValidateKey(ctx context.Context, key string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, provider.MissingCredential()
	}

	body, err := json.Marshal(GenerateContentRequest{
		Contents: []Content{{Parts: []Part{{Text: "Test"}}}},
	})
	if err != nil {
		return false, provider.Unknown("failed to marshal request", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, key, "/models/"+validationModel+":generateContent", body)
	if err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, provider.ConnectionFailed("Gemini API", err)
	}
	drainAndClose(resp.Body)

	c.logger.Printf("CLOUD_KEY_CHECK | key=%s status=%d", keyFingerprint(key), resp.StatusCode)
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized:
		return false, nil
	}
	return true, nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

func (c *Client) generate(ctx context.Context, key, modelID string, req GenerateContentRequest) (*GenerateContentResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, provider.Unknown("failed to marshal request", err)
	}

	var resp GenerateContentResponse
	path := "/models/" + url.PathEscape(modelID) + ":generateContent"
	if err := c.do(ctx, http.MethodPost, key, path, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do performs one request and decodes a 2xx body into out. Every failure
// is returned as a *provider.Error.
func (c *Client) do(ctx context.Context, method, key, path string, body []byte, out any) error {
	req, err := c.newRequest(ctx, method, key, path, body)
	if err != nil {
		return err
	}
	c.logRequest(req, key)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider.ConnectionFailed("Gemini API", err)
	}
	defer resp.Body.Close()

	data, err := readResponse(resp)
	if err != nil {
		return provider.ConnectionFailed("Gemini API", err)
	}
	c.logger.Printf("CLOUD_RESPONSE | status=%d duration=%v", resp.StatusCode, time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return provider.Unknown("failed to decode Gemini response", err)
	}
	return nil
}

// newRequest builds a request against the base URL. The credential travels
// only in the x-goog-api-key header.
func (c *Client) newRequest(ctx context.Context, method, key, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, provider.Unknown("failed to create request", err)
	}
	req.Header.Set("x-goog-api-key", key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", UserAgent)
	return req, nil
}

// UserAgent is sent with every request.
var UserAgent = "omnitool"

// parseError turns a non-2xx response into an Upstream error. The vendor
// message is used when present, otherwise the HTTP status line.
func parseError(resp *http.Response, data []byte) error {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
		return provider.Upstream(resp.StatusCode, apiErr.Error.Message)
	}
	return provider.Upstream(resp.StatusCode, statusLine(resp))
}

// statusLine returns "400 Bad Request" style text.
func statusLine(resp *http.Response) string {
	if resp.Status != "" {
		return resp.Status
	}
	return fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}

func roleFor(s model.Speaker) string {
	if s == model.SpeakerAssistant {
		return "model"
	}
	return "user"
}

// readResponse reads the body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(r, MaxResponseSize))
	r.Close()
}

// logRequest logs method, path and key fingerprint. Headers and bodies are
// never logged.
func (c *Client) logRequest(req *http.Request, key string) {
	c.logger.Printf("CLOUD_REQUEST | method=%s path=%s key=%s", req.Method, req.URL.Path, keyFingerprint(key))
}

// keyFingerprint identifies a key in logs without exposing it.
func keyFingerprint(key string) string {
	if key == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:4])
}

// KeyFingerprint returns the log fingerprint of key.
func KeyFingerprint(key string) string {
	return keyFingerprint(key)
}
