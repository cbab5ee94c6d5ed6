// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - JSON output for scripting.
//
// Every command that supports --json writes one JSONResponse to stdout.
// Human-readable messages go to stderr in JSON mode.

package cli

import (
	"encoding/json"
	"io"
	"time"

	"github.com/jeranaias/omnitool/internal/config"
	"github.com/jeranaias/omnitool/internal/discovery"
	"github.com/jeranaias/omnitool/internal/provider"
)

// JSONResponse is the response envelope of every command.
type JSONResponse struct {
	Success   bool    `json:"success"`
	Command   string  `json:"command,omitempty"`
	Data      any     `json:"data"`
	Error     *string `json:"error"`
	Timestamp string  `json:"timestamp"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Command:   command,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// NewJSONErrorResponse creates an error response.
func NewJSONErrorResponse(err error) *JSONResponse {
	msg := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// writeJSON writes v indented.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// =============================================================================
// RESPONSE DATA
// =============================================================================

// ConfigData is the data of "config show --json".
type ConfigData struct {
	Settings     config.Settings `json:"settings"`
	SettingsPath string          `json:"settings_path,omitempty"`
	Backend      string          `json:"backend"`
	ConfigPath   string          `json:"config_path,omitempty"`
}

// ModelsData is the data of "models list --json".
type ModelsData struct {
	Provider string                `json:"provider"`
	Current  string                `json:"current"`
	Status   discovery.Status      `json:"status"`
	Models   []provider.ModelEntry `json:"models"`
}

// StatusData is the data of "status --json".
type StatusData struct {
	Provider      string `json:"provider"`
	Backend       string `json:"backend"`
	Model         string `json:"model"`
	LocalEndpoint string `json:"local_endpoint"`
	LocalRunning  bool   `json:"local_running"`
	LocalError    string `json:"local_error,omitempty"`
	CredentialSet bool   `json:"credential_set"`
	KeyID         string `json:"key_id,omitempty"`
	Version       string `json:"version"`
}

// AskData is the data of "ask --json" and "vision --json".
type AskData struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Answer   string `json:"answer"`
}
