// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/omnitool/internal/storage"
)

// AppConfig is the operator configuration read from ~/.omnitool/config.toml.
// It configures the process, not the user's provider choice; that lives in
// Settings.
type AppConfig struct {
	Storage   StorageConfig   `toml:"storage" json:"storage" yaml:"storage"`
	Gateway   GatewayConfig   `toml:"gateway" json:"gateway" yaml:"gateway"`
	Cloud     CloudConfig     `toml:"cloud" json:"cloud" yaml:"cloud"`
	Local     LocalConfig     `toml:"local" json:"local" yaml:"local"`
	Discovery DiscoveryConfig `toml:"discovery" json:"discovery" yaml:"discovery"`
	Log       LogConfig       `toml:"log" json:"log" yaml:"log"`
}

// StorageConfig selects the settings backend.
type StorageConfig struct {
	// Backend is "file", "sqlite" or "memory".
	Backend string `toml:"backend" json:"backend" yaml:"backend"`
	// Path overrides the default location for the backend.
	Path string `toml:"path" json:"path" yaml:"path"`
}

// GatewayConfig configures the proxy gateway started by "omnitool serve".
type GatewayConfig struct {
	Host        string   `toml:"host" json:"host" yaml:"host"`
	Port        int      `toml:"port" json:"port" yaml:"port"`
	OllamaHost  string   `toml:"ollama_host" json:"ollama_host" yaml:"ollama_host"`
	StaticDir   string   `toml:"static_dir" json:"static_dir" yaml:"static_dir"`
	CloudHosts  []string `toml:"cloud_hosts" json:"cloud_hosts" yaml:"cloud_hosts"`
	BodyLimitMB int      `toml:"body_limit_mb" json:"body_limit_mb" yaml:"body_limit_mb"`
	// RateLimit is requests per second per client IP. Zero disables it.
	RateLimit float64 `toml:"rate_limit" json:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `toml:"rate_burst" json:"rate_burst" yaml:"rate_burst"`
}

// CloudConfig configures the Gemini client.
type CloudConfig struct {
	BaseURL string `toml:"base_url" json:"base_url" yaml:"base_url"`
	// TimeoutSecs of zero leaves the transport default in place.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs" yaml:"timeout_secs"`
}

// LocalConfig configures the Ollama client.
type LocalConfig struct {
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs" yaml:"timeout_secs"`
}

// DiscoveryConfig tunes model discovery.
type DiscoveryConfig struct {
	// Ordering is "last-completed" or "sequenced".
	Ordering string `toml:"ordering" json:"ordering" yaml:"ordering"`
}

// LogConfig configures the process log.
type LogConfig struct {
	// File is the log path. Empty logs to stderr.
	File       string `toml:"file" json:"file" yaml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `toml:"compress" json:"compress" yaml:"compress"`
	Verbose    bool   `toml:"verbose" json:"verbose" yaml:"verbose"`
}

// DefaultCloudHost is the only host the gateway relays to unless configured.
const DefaultCloudHost = "generativelanguage.googleapis.com"

// DefaultApp returns the built-in operator configuration.
func DefaultApp() *AppConfig {
	return &AppConfig{
		Storage: StorageConfig{
			Backend: string(storage.BackendFile),
		},
		Gateway: GatewayConfig{
			Host:        "127.0.0.1",
			Port:        3000,
			OllamaHost:  "http://127.0.0.1:11434",
			StaticDir:   "dist",
			CloudHosts:  []string{DefaultCloudHost},
			BodyLimitMB: 50,
			RateLimit:   20,
			RateBurst:   40,
		},
		Cloud: CloudConfig{
			BaseURL: "https://generativelanguage.googleapis.com/v1beta",
		},
		Discovery: DiscoveryConfig{
			Ordering: "last-completed",
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the omnitool configuration directory. OMNITOOL_HOME
// overrides the default ~/.omnitool.
func ConfigDir() (string, error) {
	if dir := os.Getenv("OMNITOOL_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".omnitool"), nil
}

// AppConfigPathTOML returns the path to the TOML config file.
func AppConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// AppConfigPathJSON returns the path to the JSON config file.
func AppConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// StoragePath returns the path the storage backend should use.
func (c *AppConfig) StoragePath() (string, error) {
	if c.Storage.Path != "" {
		return expandHome(c.Storage.Path), nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	backend, err := storage.ParseBackend(c.Storage.Backend)
	if err != nil {
		return "", err
	}
	switch backend {
	case storage.BackendSQLite:
		return filepath.Join(dir, "omnitool.db"), nil
	case storage.BackendMemory:
		return "", nil
	}
	return filepath.Join(dir, "settings.json"), nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// LoadApp loads the operator configuration. TOML is tried first, then JSON,
// then the built-in defaults. Environment overrides are applied last.
// A broken file is reported alongside the defaults.
func LoadApp() (*AppConfig, error) {
	var loadErr error

	if path, err := AppConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			cfg, err := LoadAppFromPath(path)
			if err == nil {
				return cfg, nil
			}
			loadErr = err
		}
	}

	if path, err := AppConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			cfg, err := LoadAppFromPath(path)
			if err == nil {
				return cfg, nil
			}
			if loadErr == nil {
				loadErr = err
			}
		}
	}

	cfg := DefaultApp()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, loadErr
}

// LoadAppFromPath loads the configuration at path. The format follows the
// extension: .json, .yaml/.yml, anything else is TOML.
func LoadAppFromPath(path string) (*AppConfig, error) {
	cfg := DefaultApp()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		_, err = toml.Decode(string(data), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}

	cfg.fillDefaults()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// fillDefaults restores defaults for zero values a partial file left behind.
func (c *AppConfig) fillDefaults() {
	d := DefaultApp()
	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	if c.Gateway.Host == "" {
		c.Gateway.Host = d.Gateway.Host
	}
	if c.Gateway.Port == 0 {
		c.Gateway.Port = d.Gateway.Port
	}
	if c.Gateway.OllamaHost == "" {
		c.Gateway.OllamaHost = d.Gateway.OllamaHost
	}
	if len(c.Gateway.CloudHosts) == 0 {
		c.Gateway.CloudHosts = d.Gateway.CloudHosts
	}
	if c.Gateway.BodyLimitMB == 0 {
		c.Gateway.BodyLimitMB = d.Gateway.BodyLimitMB
	}
	if c.Cloud.BaseURL == "" {
		c.Cloud.BaseURL = d.Cloud.BaseURL
	}
	if c.Discovery.Ordering == "" {
		c.Discovery.Ordering = d.Discovery.Ordering
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = d.Log.MaxSizeMB
	}
}

// SaveApp writes cfg as TOML to path with 0600 permissions.
func SaveApp(cfg *AppConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# omnitool configuration file")
	fmt.Fprintln(file, "# Provider, model and credential live in the settings store,")
	fmt.Fprintln(file, "# not here. Use \"omnitool config\" to change them.")
	fmt.Fprintln(file, "")

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate validates the configuration and returns any errors.
func (c *AppConfig) Validate() error {
	var errs ValidateErrors

	if _, err := storage.ParseBackend(c.Storage.Backend); err != nil {
		errs = append(errs, ValidationError{Field: "storage.backend", Message: err.Error()})
	}

	if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "gateway.port",
			Message: fmt.Sprintf("must be between 1 and 65535, got %d", c.Gateway.Port),
		})
	}
	if u, err := url.Parse(c.Gateway.OllamaHost); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "gateway.ollama_host",
			Message: fmt.Sprintf("must be an absolute URL, got %q", c.Gateway.OllamaHost),
		})
	}
	if c.Gateway.BodyLimitMB < 0 {
		errs = append(errs, ValidationError{Field: "gateway.body_limit_mb", Message: "must not be negative"})
	}
	if c.Gateway.RateLimit < 0 {
		errs = append(errs, ValidationError{Field: "gateway.rate_limit", Message: "must not be negative"})
	}

	if u, err := url.Parse(c.Cloud.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "cloud.base_url",
			Message: fmt.Sprintf("must be an absolute URL, got %q", c.Cloud.BaseURL),
		})
	}
	if c.Cloud.TimeoutSecs < 0 || c.Local.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{Field: "timeout_secs", Message: "must not be negative"})
	}

	switch c.Discovery.Ordering {
	case "last-completed", "sequenced":
	default:
		errs = append(errs, ValidationError{
			Field:   "discovery.ordering",
			Message: fmt.Sprintf("must be last-completed or sequenced, got %q", c.Discovery.Ordering),
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

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported environment variables:
//   - OMNITOOL_STORAGE: overrides storage.backend
//   - OMNITOOL_STORAGE_PATH: overrides storage.path
//   - PORT: overrides gateway.port
//   - OLLAMA_HOST: overrides gateway.ollama_host
//   - OMNITOOL_STATIC_DIR: overrides gateway.static_dir
//   - OMNITOOL_GEMINI_URL: overrides cloud.base_url
//   - OMNITOOL_LOG_FILE: overrides log.file
//   - OMNITOOL_VERBOSE: overrides log.verbose
func (c *AppConfig) ApplyEnvOverrides() {
	if v := os.Getenv("OMNITOOL_STORAGE"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("OMNITOOL_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Gateway.Port = port
		}
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		c.Gateway.OllamaHost = normalizeOllamaHost(v)
	}
	if v := os.Getenv("OMNITOOL_STATIC_DIR"); v != "" {
		c.Gateway.StaticDir = v
	}
	if v := os.Getenv("OMNITOOL_GEMINI_URL"); v != "" {
		c.Cloud.BaseURL = v
	}
	if v := os.Getenv("OMNITOOL_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv("OMNITOOL_VERBOSE"); v != "" {
		c.Log.Verbose = v == "1" || strings.EqualFold(v, "true")
	}
}

// normalizeOllamaHost accepts the bare host:port form the ollama CLI uses
// for OLLAMA_HOST.
func normalizeOllamaHost(v string) string {
	v = strings.TrimRight(strings.TrimSpace(v), "/")
	if !strings.Contains(v, "://") {
		v = "http://" + v
	}
	return v
}

// String returns the configuration as TOML.
func (c *AppConfig) String() string {
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(c); err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return b.String()
}
