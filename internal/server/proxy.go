// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/jeranaias/omnitool/internal/cloud"
)

// MaxRelayResponseSize bounds a relayed cloud response.
const MaxRelayResponseSize = 32 * 1024 * 1024

// ============================================================================
// DAEMON PROXY
// ============================================================================

// newOllamaProxy forwards requests to the daemon unmodified. Status and body
// of the daemon's answer are relayed as they are.
func (s *Server) newOllamaProxy() *httputil.ReverseProxy {
	target := s.ollamaURL
	return &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(target)
			r.Out.Host = target.Host
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			s.stats.failures.Add(1)

			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "Request body too large"})
				return
			}

			s.logger.Printf("PROXY_ERROR | path=%s target=%s err=%v", r.URL.Path, target.Redacted(), err)
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{
				Error:   ProxyErrorMessage,
				Details: err.Error(),
			})
		},
	}
}

func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	s.stats.proxied.Add(1)
	s.proxy.ServeHTTP(w, r)
}

// ============================================================================
// CLOUD RELAY
// ============================================================================

// CloudRelayRequest asks the gateway to call the cloud API on the client's
// behalf. The key travels to the gateway in the body and onward only in the
// x-goog-api-key header.
type CloudRelayRequest struct {
	APIURL string          `json:"apiUrl"`
	APIKey string          `json:"apiKey"`
	Method string          `json:"method,omitempty"` // GET or POST, default POST
	Body   json.RawMessage `json:"body,omitempty"`
}

// validate checks the request and returns the parsed target.
func (req CloudRelayRequest) validate(allowed map[string]bool) (*url.URL, string, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return nil, "", errors.New("apiKey is required")
	}
	if req.APIURL == "" {
		return nil, "", errors.New("apiUrl is required")
	}

	u, err := url.Parse(req.APIURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid apiUrl: %w", err)
	}
	if u.Scheme != "https" {
		return nil, "", errors.New("apiUrl must use https")
	}
	if !allowed[strings.ToLower(u.Hostname())] {
		return nil, "", fmt.Errorf("host %q is not allowed", u.Hostname())
	}
	if u.User != nil {
		return nil, "", errors.New("apiUrl must not carry credentials")
	}

	method := strings.ToUpper(req.Method)
	switch method {
	case "":
		method = http.MethodPost
	case http.MethodGet, http.MethodPost:
	default:
		return nil, "", fmt.Errorf("method %q is not allowed", req.Method)
	}
	return u, method, nil
}

func (s *Server) handleCloudRelay(w http.ResponseWriter, r *http.Request) {
	s.stats.relayed.Add(1)

	var req CloudRelayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "Request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid relay request", Details: err.Error()})
		return
	}

	target, method, err := req.validate(s.cloudHosts)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid relay request", Details: err.Error()})
		return
	}

	var body io.Reader
	if method == http.MethodPost && len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	out, err := http.NewRequestWithContext(r.Context(), method, target.String(), body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid relay request", Details: err.Error()})
		return
	}
	out.Header.Set("x-goog-api-key", req.APIKey)
	if body != nil {
		out.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.relay.Do(out)
	if err != nil {
		s.stats.failures.Add(1)
		s.logger.Printf("CLOUD_RELAY_ERROR | host=%s key=%s err=%v", target.Hostname(), cloud.KeyFingerprint(req.APIKey), err)
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: RelayErrorMessage, Details: err.Error()})
		return
	}
	defer resp.Body.Close()

	s.logger.Printf("CLOUD_RELAY | host=%s path=%s status=%d key=%s", target.Hostname(), target.Path, resp.StatusCode, cloud.KeyFingerprint(req.APIKey))

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, io.LimitReader(resp.Body, MaxRelayResponseSize))
}
