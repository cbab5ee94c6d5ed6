// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/jeranaias/omnitool/internal/storage"
)

// SettingsKey is the storage key holding the settings record.
const SettingsKey = "appSettings"

// Listener is called after the settings record changes.
type Listener func(prev, next Settings)

// PersistError reports that an update was applied in memory but could not be
// written to storage. Callers may ignore it; the next successful update
// persists the full record.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("settings not persisted: %v", e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// IsPersistError reports whether err is a PersistError.
func IsPersistError(err error) bool {
	var pe *PersistError
	return errors.As(err, &pe)
}

// =============================================================================
// STORE
// =============================================================================

// Store owns the current settings record and keeps it in sync with storage.
//
// Every read returns a copy. Every update replaces the whole record,
// persists it, then notifies subscribers outside the lock.
//
// Environment overrides are a read-time layer over the persisted record.
// Fields an update leaves at their overridden value are persisted with the
// stored value underneath, so an override never reaches storage.
type Store struct {
	kv     storage.KV
	key    string
	logger *log.Logger
	env    bool

	mu      sync.RWMutex
	stored  Settings
	current Settings

	subMu  sync.Mutex
	subs   []subscription
	nextID int
}

type subscription struct {
	id int
	fn Listener
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger used for load and persist failures.
func WithStoreLogger(l *log.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSettingsKey overrides the storage key.
func WithSettingsKey(key string) StoreOption {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithEnvOverrides layers OMNITOOL_* environment overrides over the
// persisted record on every load.
func WithEnvOverrides(enabled bool) StoreOption {
	return func(s *Store) {
		s.env = enabled
	}
}

// NewStore creates a Store over kv and loads the persisted record. A missing
// or unreadable record falls back to DefaultSettings.
func NewStore(kv storage.KV, opts ...StoreOption) *Store {
	s := &Store{
		kv:     kv,
		key:    SettingsKey,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.stored = s.load()
	s.current = s.overlay(s.stored)
	return s
}

// load reads the persisted record from storage without touching the store.
func (s *Store) load() Settings {
	settings := DefaultSettings()
	if s.kv != nil {
		data, err := s.kv.Get(s.key)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			s.logger.Printf("SETTINGS_LOAD_FAILED | key=%s err=%v", s.key, err)
		default:
			decoded, err := decodeSettings(data)
			if err != nil {
				s.logger.Printf("SETTINGS_LOAD_FAILED | key=%s err=%v", s.key, err)
			} else {
				settings = decoded
			}
		}
	}
	return settings
}

// overlay returns stored with the environment overrides applied, if enabled.
func (s *Store) overlay(stored Settings) Settings {
	if s.env {
		stored.ApplyEnvOverrides()
	}
	return stored
}

// unlayer returns the record to persist when next replaces prev. Fields left
// equal to prev keep their stored value; changed fields take next's value.
func unlayer(stored, prev, next Settings) Settings {
	out := stored
	if next.ActiveProvider != prev.ActiveProvider {
		out.ActiveProvider = next.ActiveProvider
	}
	if next.LocalEndpoint != prev.LocalEndpoint {
		out.LocalEndpoint = next.LocalEndpoint
	}
	if next.LocalModelID != prev.LocalModelID {
		out.LocalModelID = next.LocalModelID
	}
	if next.CloudCredential != prev.CloudCredential {
		out.CloudCredential = next.CloudCredential
	}
	if next.CloudModelID != prev.CloudModelID {
		out.CloudModelID = next.CloudModelID
	}
	return out
}

// Current returns a copy of the current record.
func (s *Store) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update replaces the whole record with next.
//
// An invalid record is rejected with ValidateErrors and nothing changes.
// Otherwise the record is applied, persisted, and subscribers are notified.
// A storage failure is logged and returned as a *PersistError; the new
// record stays active.
func (s *Store) Update(next Settings) error {
	if err := next.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	prev := s.current
	stored := next
	if s.env {
		stored = unlayer(s.stored, prev, next)
	}
	s.stored = stored
	s.current = next
	persistErr := s.persistLocked(stored)
	s.mu.Unlock()

	if prev != next {
		s.notify(prev, next)
	}
	return persistErr
}

// Mutate applies fn to a copy of the current record and stores the result.
// The read and the write are not atomic with respect to other writers;
// the last Update wins.
func (s *Store) Mutate(fn func(*Settings)) (Settings, error) {
	next := s.Current()
	fn(&next)
	err := s.Update(next)
	if err != nil && !IsPersistError(err) {
		return s.Current(), err
	}
	return next, err
}

// Reload re-reads the record from storage and reports whether it changed.
// Subscribers are notified on change.
func (s *Store) Reload() bool {
	stored := s.load()
	loaded := s.overlay(stored)

	s.mu.Lock()
	s.stored = stored
	prev := s.current
	if prev == loaded {
		s.mu.Unlock()
		return false
	}
	s.current = loaded
	s.mu.Unlock()

	s.logger.Printf("SETTINGS_RELOADED | provider=%s", loaded.ActiveProvider)
	s.notify(prev, loaded)
	return true
}

// Subscribe registers fn for change notifications. Listeners run in
// registration order. The returned function removes the subscription.
func (s *Store) Subscribe(fn Listener) (cancel func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					break
				}
			}
			s.subMu.Unlock()
		})
	}
}

func (s *Store) notify(prev, next Settings) {
	s.subMu.Lock()
	listeners := make([]Listener, 0, len(s.subs))
	for _, sub := range s.subs {
		listeners = append(listeners, sub.fn)
	}
	s.subMu.Unlock()

	for _, fn := range listeners {
		fn(prev, next)
	}
}

func (s *Store) persistLocked(next Settings) error {
	if s.kv == nil {
		return nil
	}
	data, err := encodeSettings(next)
	if err == nil {
		err = s.kv.Put(s.key, data)
	}
	if err != nil {
		s.logger.Printf("SETTINGS_PERSIST_FAILED | key=%s err=%v", s.key, err)
		return &PersistError{Err: err}
	}
	return nil
}
