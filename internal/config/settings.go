// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
)

// =============================================================================
// PROVIDER
// =============================================================================

// Provider identifies which model backend serves requests.
type Provider int

const (
	// ProviderCloud is the hosted Gemini API.
	ProviderCloud Provider = iota
	// ProviderLocal is an Ollama daemon.
	ProviderLocal
)

// Providers lists every provider in display order.
var Providers = []Provider{ProviderCloud, ProviderLocal}

// String returns the persisted name of the provider.
func (p Provider) String() string {
	switch p {
	case ProviderCloud:
		return "cloud"
	case ProviderLocal:
		return "local"
	}
	return fmt.Sprintf("provider(%d)", int(p))
}

// Label returns the human-facing backend name.
func (p Provider) Label() string {
	switch p {
	case ProviderCloud:
		return "Gemini"
	case ProviderLocal:
		return "Ollama"
	}
	return p.String()
}

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	return p == ProviderCloud || p == ProviderLocal
}

// Other returns the provider that is not p.
func (p Provider) Other() Provider {
	if p == ProviderLocal {
		return ProviderCloud
	}
	return ProviderLocal
}

// ParseProvider converts a name into a Provider. Backend names are accepted
// as aliases.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cloud", "gemini", "remote":
		return ProviderCloud, nil
	case "local", "ollama":
		return ProviderLocal, nil
	}
	return 0, fmt.Errorf("unknown provider %q (want cloud or local)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Provider) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("cannot marshal %s", p)
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Provider) UnmarshalText(text []byte) error {
	parsed, err := ParseProvider(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// =============================================================================
// SETTINGS
// =============================================================================

// Default values for a fresh settings record.
const (
	DefaultLocalEndpoint = "http://localhost:11434"
	DefaultLocalModel    = "llama3"
	DefaultCloudModel    = "gemini-2.5-flash"
)

// CredentialEnvFallback is read when no cloud credential is stored.
const CredentialEnvFallback = "API_KEY"

// Settings is the persisted user-settings record. It is a plain value;
// Store hands out copies.
type Settings struct {
	ActiveProvider  Provider `json:"activeProvider"`
	LocalEndpoint   string   `json:"localEndpoint"`
	LocalModelID    string   `json:"localModelId"`
	CloudCredential string   `json:"cloudCredential"`
	CloudModelID    string   `json:"cloudModelId"`
}

// DefaultSettings returns the record used on first run.
func DefaultSettings() Settings {
	return Settings{
		ActiveProvider:  ProviderCloud,
		LocalEndpoint:   DefaultLocalEndpoint,
		LocalModelID:    DefaultLocalModel,
		CloudCredential: "",
		CloudModelID:    DefaultCloudModel,
	}
}

// ModelFor returns the selected model for p.
func (s Settings) ModelFor(p Provider) string {
	if p == ProviderLocal {
		return s.LocalModelID
	}
	return s.CloudModelID
}

// ActiveModel returns the selected model of the active provider.
func (s Settings) ActiveModel() string {
	return s.ModelFor(s.ActiveProvider)
}

// WithModel returns a copy of s with the model for p set to id.
func (s Settings) WithModel(p Provider, id string) Settings {
	if p == ProviderLocal {
		s.LocalModelID = id
	} else {
		s.CloudModelID = id
	}
	return s
}

// Credential returns the stored cloud credential, falling back to the
// API_KEY environment variable.
func (s Settings) Credential() string {
	if s.CloudCredential != "" {
		return s.CloudCredential
	}
	return strings.TrimSpace(os.Getenv(CredentialEnvFallback))
}

// HasCredential reports whether a cloud credential is available.
func (s Settings) HasCredential() bool {
	return s.Credential() != ""
}

// decodeSettings parses a persisted record. Fields missing from data keep
// their defaults.
func decodeSettings(data []byte) (Settings, error) {
	s := DefaultSettings()
	if err := json.Unmarshal(data, &s); err != nil {
		return DefaultSettings(), fmt.Errorf("failed to decode settings: %w", err)
	}
	if strings.TrimSpace(s.LocalEndpoint) == "" {
		s.LocalEndpoint = DefaultLocalEndpoint
	}
	return s, nil
}

func encodeSettings(s Settings) ([]byte, error) {
	return json.Marshal(s)
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a settings validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the record. Model identifiers are free-form and not
// checked; the endpoint only has to be non-empty.
func (s Settings) Validate() error {
	var errs ValidateErrors

	if !s.ActiveProvider.Valid() {
		errs = append(errs, ValidationError{
			Field:   "active_provider",
			Message: fmt.Sprintf("unknown provider %d", int(s.ActiveProvider)),
		})
	}
	if strings.TrimSpace(s.LocalEndpoint) == "" {
		errs = append(errs, ValidationError{
			Field:   "local_endpoint",
			Message: "must not be empty",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the record.
//
// Supported environment variables:
//   - OMNITOOL_PROVIDER: overrides active_provider
//   - OMNITOOL_OLLAMA_URL: overrides local_endpoint
//   - OMNITOOL_OLLAMA_MODEL: overrides local_model_id
//   - OMNITOOL_GEMINI_MODEL: overrides cloud_model_id
//   - OMNITOOL_API_KEY: overrides cloud_credential
func (s *Settings) ApplyEnvOverrides() {
	if v := os.Getenv("OMNITOOL_PROVIDER"); v != "" {
		if p, err := ParseProvider(v); err == nil {
			s.ActiveProvider = p
		}
	}
	if v := os.Getenv("OMNITOOL_OLLAMA_URL"); v != "" {
		s.LocalEndpoint = v
	}
	if v := os.Getenv("OMNITOOL_OLLAMA_MODEL"); v != "" {
		s.LocalModelID = v
	}
	if v := os.Getenv("OMNITOOL_GEMINI_MODEL"); v != "" {
		s.CloudModelID = v
	}
	if v := os.Getenv("OMNITOOL_API_KEY"); v != "" {
		s.CloudCredential = v
	}
}

// =============================================================================
// GET/SET HELPERS
// =============================================================================

// SettingsKeys lists the keys accepted by Get and Set.
var SettingsKeys = []string{
	"active_provider",
	"local_endpoint",
	"local_model_id",
	"cloud_credential",
	"cloud_model_id",
}

// Get returns a field by key. Keys may be snake_case, kebab-case or the
// persisted camelCase name ("local_model_id", "localModelId").
func (s *Settings) Get(key string) (string, error) {
	field, err := s.field(key)
	if err != nil {
		return "", err
	}
	if str, ok := field.Interface().(fmt.Stringer); ok {
		return str.String(), nil
	}
	return fmt.Sprint(field.Interface()), nil
}

// Set assigns a field by key from its string form.
func (s *Settings) Set(key, value string) error {
	field, err := s.field(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}

	if u, ok := field.Addr().Interface().(encoding.TextUnmarshaler); ok {
		return u.UnmarshalText([]byte(value))
	}
	if field.Kind() != reflect.String {
		return fmt.Errorf("cannot assign string to %s", field.Type())
	}
	field.SetString(strings.TrimSpace(value))
	return nil
}

func (s *Settings) field(key string) (reflect.Value, error) {
	want := normalizeKey(key)
	if want == "" {
		return reflect.Value{}, errors.New("empty key")
	}

	v := reflect.ValueOf(s).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := strings.Split(f.Tag.Get("json"), ",")[0]
		if normalizeKey(f.Name) == want || normalizeKey(tag) == want {
			return v.Field(i), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("unknown field: %s", key)
}

// normalizeKey lower-cases name and drops separators so snake, kebab and
// camel forms compare equal.
func normalizeKey(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		if r == '_' || r == '-' || r == '.' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

// =============================================================================
// DISPLAY
// =============================================================================

// Redacted returns a copy with the credential masked.
func (s Settings) Redacted() Settings {
	if s.CloudCredential != "" {
		s.CloudCredential = "[REDACTED]"
	}
	return s
}

// String returns the record as JSON with the credential redacted.
func (s Settings) String() string {
	data, _ := json.MarshalIndent(s.Redacted(), "", "  ")
	return string(data)
}
