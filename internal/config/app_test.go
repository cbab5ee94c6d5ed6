// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config directory at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("OMNITOOL_HOME", dir)
	for _, key := range []string{
		"OMNITOOL_STORAGE", "OMNITOOL_STORAGE_PATH", "PORT", "OLLAMA_HOST",
		"OMNITOOL_STATIC_DIR", "OMNITOOL_GEMINI_URL", "OMNITOOL_LOG_FILE", "OMNITOOL_VERBOSE",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func TestDefaultApp_Valid(t *testing.T) {
	cfg := DefaultApp()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3000, cfg.Gateway.Port)
	assert.Equal(t, []string{DefaultCloudHost}, cfg.Gateway.CloudHosts)
	assert.Equal(t, 50, cfg.Gateway.BodyLimitMB)
}

func TestLoadApp_NoFiles(t *testing.T) {
	isolate(t)
	cfg, err := LoadApp()
	require.NoError(t, err)
	assert.Equal(t, DefaultApp(), cfg)
}

func TestLoadAppFromPath_Formats(t *testing.T) {
	isolate(t)

	files := map[string]string{
		"config.toml": "[gateway]\nport = 8080\nollama_host = \"http://gpu:11434\"\n",
		"config.json": `{"gateway": {"port": 8080, "ollama_host": "http://gpu:11434"}}`,
		"config.yaml": "gateway:\n  port: 8080\n  ollama_host: http://gpu:11434\n",
	}

	dir := t.TempDir()
	for name, body := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(body), 0600))

			cfg, err := LoadAppFromPath(path)
			require.NoError(t, err)
			assert.Equal(t, 8080, cfg.Gateway.Port)
			assert.Equal(t, "http://gpu:11434", cfg.Gateway.OllamaHost)
			// Untouched sections keep their defaults.
			assert.Equal(t, DefaultApp().Cloud, cfg.Cloud)
			assert.Equal(t, DefaultApp().Gateway.CloudHosts, cfg.Gateway.CloudHosts)
		})
	}
}

func TestLoadAppFromPath_Invalid(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	tests := map[string]string{
		"bad toml":    "[gateway\nport = ",
		"bad port":    "[gateway]\nport = 70000\n",
		"bad backend": "[storage]\nbackend = \"redis\"\n",
		"bad order":   "[discovery]\nordering = \"random\"\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".toml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0600))
			_, err := LoadAppFromPath(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadApp_BrokenFileReportsWithDefaults(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[[[["), 0600))

	cfg, err := LoadApp()
	assert.Error(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, DefaultApp(), cfg)
}

func TestSaveApp_RoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := DefaultApp()
	cfg.Storage.Backend = "sqlite"
	cfg.Gateway.StaticDir = "/srv/omnitool"
	cfg.Log.Verbose = true
	require.NoError(t, SaveApp(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadAppFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestAppConfig_ApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("PORT", "4000")
	t.Setenv("OLLAMA_HOST", "0.0.0.0:11434")
	t.Setenv("OMNITOOL_STORAGE", "sqlite")
	t.Setenv("OMNITOOL_VERBOSE", "true")

	cfg := DefaultApp()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, 4000, cfg.Gateway.Port)
	assert.Equal(t, "http://0.0.0.0:11434", cfg.Gateway.OllamaHost)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.True(t, cfg.Log.Verbose)
	assert.NoError(t, cfg.Validate())
}

func TestAppConfig_StoragePath(t *testing.T) {
	dir := isolate(t)

	tests := map[string]struct {
		backend string
		path    string
		want    string
	}{
		"file default":   {backend: "file", want: filepath.Join(dir, "settings.json")},
		"sqlite default": {backend: "sqlite", want: filepath.Join(dir, "omnitool.db")},
		"memory":         {backend: "memory", want: ""},
		"explicit":       {backend: "file", path: "/tmp/s.json", want: "/tmp/s.json"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultApp()
			cfg.Storage.Backend = tt.backend
			cfg.Storage.Path = tt.path
			got, err := cfg.StoragePath()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
