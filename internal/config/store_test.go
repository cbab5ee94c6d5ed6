// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/omnitool/internal/storage"
)

// failingKV reads fine but refuses every write.
type failingKV struct {
	storage.KV
}

func (failingKV) Put(string, []byte) error { return errors.New("disk full") }

func sampleSettings() Settings {
	return Settings{
		ActiveProvider:  ProviderLocal,
		LocalEndpoint:   "http://gpu-box:11434",
		LocalModelID:    "llava:13b",
		CloudCredential: "AIza-test",
		CloudModelID:    "gemini-1.5-pro",
	}
}

func TestStore_FirstRunDefaults(t *testing.T) {
	store := NewStore(storage.NewMemoryKV())
	assert.Equal(t, DefaultSettings(), store.Current())
}

func TestStore_PersistReloadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []storage.Backend{storage.BackendFile, storage.BackendSQLite} {
		t.Run(string(backend), func(t *testing.T) {
			path := filepath.Join(dir, "settings-"+string(backend))

			kv, err := storage.Open(backend, path)
			require.NoError(t, err)
			require.NoError(t, NewStore(kv).Update(sampleSettings()))
			require.NoError(t, kv.Close())

			reopened, err := storage.Open(backend, path)
			require.NoError(t, err)
			defer reopened.Close()
			assert.Equal(t, sampleSettings(), NewStore(reopened).Current())
		})
	}
}

func TestStore_CorruptRecordFallsBack(t *testing.T) {
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Put(SettingsKey, []byte("{not json")))

	assert.Equal(t, DefaultSettings(), NewStore(kv).Current())
}

func TestStore_UnreadableFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0600))
	kv, err := storage.NewFileKV(path)
	require.NoError(t, err)

	store := NewStore(kv)
	assert.Equal(t, DefaultSettings(), store.Current())

	// The next update overwrites the broken file.
	require.NoError(t, store.Update(sampleSettings()))
	assert.Equal(t, sampleSettings(), NewStore(kv).Current())
}

func TestStore_UpdateRejectsInvalid(t *testing.T) {
	store := NewStore(storage.NewMemoryKV())

	bad := sampleSettings()
	bad.LocalEndpoint = ""
	err := store.Update(bad)
	require.Error(t, err)
	assert.False(t, IsPersistError(err))
	assert.Equal(t, DefaultSettings(), store.Current())
}

func TestStore_PersistFailureStillApplies(t *testing.T) {
	store := NewStore(failingKV{storage.NewMemoryKV()})

	var notified bool
	store.Subscribe(func(prev, next Settings) { notified = true })

	err := store.Update(sampleSettings())
	require.Error(t, err)
	assert.True(t, IsPersistError(err))
	assert.Equal(t, sampleSettings(), store.Current())
	assert.True(t, notified)
}

func TestStore_Subscribe(t *testing.T) {
	store := NewStore(storage.NewMemoryKV())

	var calls []Settings
	cancel := store.Subscribe(func(prev, next Settings) {
		assert.Equal(t, DefaultSettings(), prev)
		calls = append(calls, next)
	})

	require.NoError(t, store.Update(sampleSettings()))
	require.Len(t, calls, 1)
	assert.Equal(t, sampleSettings(), calls[0])

	// Identical records do not notify.
	require.NoError(t, store.Update(sampleSettings()))
	assert.Len(t, calls, 1)

	cancel()
	cancel()
	require.NoError(t, store.Update(DefaultSettings()))
	assert.Len(t, calls, 1)
}

func TestStore_ListenerMayReenter(t *testing.T) {
	store := NewStore(storage.NewMemoryKV())

	store.Subscribe(func(prev, next Settings) {
		if next.ActiveProvider == ProviderLocal && next.LocalModelID == "" {
			_ = store.Update(next.WithModel(ProviderLocal, "llama3"))
		}
	})

	next := DefaultSettings()
	next.ActiveProvider = ProviderLocal
	next.LocalModelID = ""
	require.NoError(t, store.Update(next))
	assert.Equal(t, "llama3", store.Current().LocalModelID)
}

func TestStore_Mutate(t *testing.T) {
	store := NewStore(storage.NewMemoryKV())

	got, err := store.Mutate(func(s *Settings) { s.CloudModelID = "gemini-1.5-flash" })
	require.NoError(t, err)
	assert.Equal(t, "gemini-1.5-flash", got.CloudModelID)
	assert.Equal(t, got, store.Current())

	_, err = store.Mutate(func(s *Settings) { s.LocalEndpoint = "" })
	assert.Error(t, err)
	assert.Equal(t, got, store.Current())
}

func TestStore_CurrentReturnsCopy(t *testing.T) {
	store := NewStore(storage.NewMemoryKV())
	s := store.Current()
	s.CloudModelID = "changed"
	assert.Equal(t, DefaultCloudModel, store.Current().CloudModelID)
}

func TestStore_Reload(t *testing.T) {
	kv := storage.NewMemoryKV()
	store := NewStore(kv)

	var notified int
	store.Subscribe(func(prev, next Settings) { notified++ })

	assert.False(t, store.Reload())

	data, err := encodeSettings(sampleSettings())
	require.NoError(t, err)
	require.NoError(t, kv.Put(SettingsKey, data))

	assert.True(t, store.Reload())
	assert.Equal(t, sampleSettings(), store.Current())
	assert.Equal(t, 1, notified)
}

func TestStore_EnvOverrides(t *testing.T) {
	t.Setenv("OMNITOOL_PROVIDER", "local")

	assert.Equal(t, ProviderCloud, NewStore(storage.NewMemoryKV()).Current().ActiveProvider)
	assert.Equal(t, ProviderLocal, NewStore(storage.NewMemoryKV(), WithEnvOverrides(true)).Current().ActiveProvider)
}

func TestStore_EnvOverridesNeverPersisted(t *testing.T) {
	t.Setenv("OMNITOOL_PROVIDER", "local")
	t.Setenv("OMNITOOL_API_KEY", "env-only-key")

	kv := storage.NewMemoryKV()
	store := NewStore(kv, WithEnvOverrides(true))

	_, err := store.Mutate(func(s *Settings) {
		s.CloudModelID = "gemini-1.5-pro"
		s.LocalModelID = "picked:latest"
	})
	require.NoError(t, err)

	current := store.Current()
	assert.Equal(t, ProviderLocal, current.ActiveProvider)
	assert.Equal(t, "env-only-key", current.CloudCredential)
	assert.Equal(t, "picked:latest", current.LocalModelID)

	data, err := kv.Get(SettingsKey)
	require.NoError(t, err)
	persisted, err := decodeSettings(data)
	require.NoError(t, err)
	assert.Equal(t, ProviderCloud, persisted.ActiveProvider)
	assert.Empty(t, persisted.CloudCredential)
	assert.Equal(t, "gemini-1.5-pro", persisted.CloudModelID)
	assert.Equal(t, "picked:latest", persisted.LocalModelID)

	// a reload keeps the overrides layered over the stored record
	assert.False(t, store.Reload())
	assert.Equal(t, "env-only-key", store.Current().CloudCredential)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := NewStore(storage.NewMemoryKV())
	store.Subscribe(func(prev, next Settings) {})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			s := sampleSettings()
			if n%2 == 0 {
				s.ActiveProvider = ProviderCloud
			}
			_ = store.Update(s)
		}(i)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Current().Validate())
		}()
	}
	wg.Wait()
}

// =============================================================================
// WATCHER
// =============================================================================

func TestWatcher_ReloadsOnExternalEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	kv, err := storage.NewFileKV(path)
	require.NoError(t, err)
	store := NewStore(kv)
	require.NoError(t, store.Update(DefaultSettings().WithModel(ProviderCloud, "gemini-1.5-pro")))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWatcher(store, path, WithDebounce(20*time.Millisecond))
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// A second store writing the same file stands in for a hand edit.
	time.Sleep(100 * time.Millisecond)
	other, err := storage.NewFileKV(path)
	require.NoError(t, err)
	require.NoError(t, NewStore(other).Update(sampleSettings()))

	require.Eventually(t, func() bool {
		return store.Current() == sampleSettings()
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestWatcher_MissingDirectory(t *testing.T) {
	store := NewStore(storage.NewMemoryKV())
	w := NewWatcher(store, filepath.Join(t.TempDir(), "missing", "settings.json"))
	assert.Error(t, w.Run(context.Background()))
}
