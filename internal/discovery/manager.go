// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package discovery

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/jeranaias/omnitool/internal/config"
	"github.com/jeranaias/omnitool/internal/provider"
)

// =============================================================================
// STATUS
// =============================================================================

// State is the discovery state of one provider.
type State int

const (
	// Idle means no discovery has completed.
	Idle State = iota
	// Discovering means a discovery is in flight. No error is shown.
	Discovering
	// Success means the last applied discovery succeeded.
	Success
	// Error means the last applied discovery failed.
	Error
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Discovering:
		return "discovering"
	case Success:
		return "success"
	case Error:
		return "error"
	}
	return "idle"
}

// Status is the advisory discovery status of one provider.
type Status struct {
	State   State  `json:"state"`
	Message string `json:"message,omitempty"`
}

// Diagnostics shown on failure.
const (
	LocalUnreachableMessage = "Could not connect to Ollama. Check URL or CORS."
	CloudCredentialMessage  = "Invalid Key or Network Error."
)

// Snapshot is a copy of one provider's discovery slot.
type Snapshot struct {
	Provider config.Provider       `json:"provider"`
	Status   Status                `json:"status"`
	Catalog  []provider.ModelEntry `json:"catalog"`
	// Fetched reports a successful listing in this session.
	Fetched bool `json:"fetched"`
}

// =============================================================================
// ORDERING
// =============================================================================

// Ordering decides which completion wins when discoveries overlap.
type Ordering int

const (
	// LastCompletedWins applies every completion as it arrives.
	LastCompletedWins Ordering = iota
	// Sequenced discards completions older than the last applied one.
	Sequenced
)

// ParseOrdering converts a config value into an Ordering.
func ParseOrdering(s string) (Ordering, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "last-completed", "last_completed", "lastcompleted":
		return LastCompletedWins, nil
	case "sequenced", "sequence":
		return Sequenced, nil
	}
	return 0, fmt.Errorf("unknown discovery ordering %q (want last-completed or sequenced)", s)
}

// String returns the config name of the ordering.
func (o Ordering) String() string {
	if o == Sequenced {
		return "sequenced"
	}
	return "last-completed"
}

// =============================================================================
// MANAGER
// =============================================================================

// SettingsStore is the part of config.Store the manager uses.
type SettingsStore interface {
	Current() config.Settings
	Update(next config.Settings) error
	Subscribe(fn config.Listener) (cancel func())
}

var _ SettingsStore = (*config.Store)(nil)

type slot struct {
	status  Status
	catalog []provider.ModelEntry
	fetched bool
	started uint64
	applied uint64
}

type subscriber struct {
	id uint64
	fn func(Snapshot)
}

// Manager runs model discovery for both providers and keeps the advisory
// status and catalog of each. A failed discovery never clears a catalog
// or changes a selection.
type Manager struct {
	lister    provider.Lister
	validator provider.Validator
	store     SettingsStore
	ordering  Ordering
	logger    *log.Logger

	mu    sync.Mutex
	slots map[config.Provider]*slot

	subMu  sync.Mutex
	subs   []subscriber
	nextID uint64

	wg sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithFallback seeds the catalog of p.
func WithFallback(p config.Provider, entries []provider.ModelEntry) Option {
	return func(m *Manager) {
		m.slot(p).catalog = append([]provider.ModelEntry(nil), entries...)
	}
}

// WithOrdering sets the completion ordering policy.
func WithOrdering(o Ordering) Option {
	return func(m *Manager) {
		m.ordering = o
	}
}

// WithValidator sets the credential validator.
func WithValidator(v provider.Validator) Option {
	return func(m *Manager) {
		m.validator = v
	}
}

// WithLogger sets the discovery logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a Manager listing models through lister and applying local
// auto-selection through store.
func New(lister provider.Lister, store SettingsStore, opts ...Option) *Manager {
	m := &Manager{
		lister:   lister,
		store:    store,
		ordering: LastCompletedWins,
		logger:   log.Default(),
		slots:    make(map[config.Provider]*slot, len(config.Providers)),
	}
	for _, p := range config.Providers {
		m.slots[p] = &slot{}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// slot returns the slot for p. Callers hold m.mu, except during New.
func (m *Manager) slot(p config.Provider) *slot {
	sl, ok := m.slots[p]
	if !ok {
		sl = &slot{}
		m.slots[p] = sl
	}
	return sl
}

// Ordering returns the active ordering policy.
func (m *Manager) Ordering() Ordering {
	return m.ordering
}

// Snapshot returns a copy of the slot for p.
func (m *Manager) Snapshot(p config.Provider) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(p)
}

func (m *Manager) snapshotLocked(p config.Provider) Snapshot {
	sl := m.slot(p)
	return Snapshot{
		Provider: p,
		Status:   sl.status,
		Catalog:  append([]provider.ModelEntry(nil), sl.catalog...),
		Fetched:  sl.fetched,
	}
}

// =============================================================================
// DISCOVERY
// =============================================================================

// Refresh lists the models of p and applies the result. It blocks until
// the listing completes and returns the slot as it stands afterwards.
// Concurrent calls for the same provider are allowed.
func (m *Manager) Refresh(ctx context.Context, p config.Provider) Snapshot {
	settings := m.store.Current()
	seq := m.begin(p)

	m.logger.Printf("DISCOVERY_START | provider=%s seq=%d", p, seq)
	entries, err := m.lister.ListModels(ctx, p, settings)

	if err != nil {
		return m.fail(p, seq, err)
	}
	return m.succeed(p, seq, entries)
}

// Trigger runs Refresh on a new goroutine.
func (m *Manager) Trigger(ctx context.Context, p config.Provider) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.Refresh(ctx, p)
	}()
}

// Wait blocks until every triggered discovery has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// begin enters Discovering. The previous catalog is kept.
func (m *Manager) begin(p config.Provider) uint64 {
	m.mu.Lock()
	sl := m.slot(p)
	sl.started++
	seq := sl.started
	sl.status = Status{State: Discovering}
	snap := m.snapshotLocked(p)
	m.mu.Unlock()

	m.notify(snap)
	return seq
}

// stale reports whether a completion with seq must be discarded.
// Callers hold m.mu.
func (m *Manager) stale(sl *slot, seq uint64) bool {
	return m.ordering == Sequenced && seq < sl.applied
}

func (m *Manager) succeed(p config.Provider, seq uint64, entries []provider.ModelEntry) Snapshot {
	m.mu.Lock()
	sl := m.slot(p)
	if m.stale(sl, seq) {
		applied := sl.applied
		snap := m.snapshotLocked(p)
		m.mu.Unlock()
		m.logger.Printf("DISCOVERY_DISCARDED | provider=%s seq=%d applied=%d", p, seq, applied)
		return snap
	}
	sl.applied = seq
	sl.status = Status{State: Success}
	sl.fetched = true

	// An empty cloud listing keeps the fallback catalog.
	if p == config.ProviderLocal || len(entries) > 0 {
		sl.catalog = append([]provider.ModelEntry(nil), entries...)
	}
	snap := m.snapshotLocked(p)
	m.mu.Unlock()

	m.logger.Printf("DISCOVERY_SUCCESS | provider=%s seq=%d models=%d", p, seq, len(entries))
	m.notify(snap)

	if p == config.ProviderLocal {
		m.autoSelectLocal(entries)
	}
	return snap
}

func (m *Manager) fail(p config.Provider, seq uint64, err error) Snapshot {
	msg := FailureMessage(p, err)

	m.mu.Lock()
	sl := m.slot(p)
	if m.stale(sl, seq) {
		applied := sl.applied
		snap := m.snapshotLocked(p)
		m.mu.Unlock()
		m.logger.Printf("DISCOVERY_DISCARDED | provider=%s seq=%d applied=%d", p, seq, applied)
		return snap
	}
	sl.applied = seq
	sl.status = Status{State: Error, Message: msg}
	snap := m.snapshotLocked(p)
	m.mu.Unlock()

	m.logger.Printf("DISCOVERY_FAILED | provider=%s seq=%d kind=%s err=%v", p, seq, provider.KindOf(err), err)
	m.notify(snap)
	return snap
}

// autoSelectLocal selects the first entry when the current local model is
// not installed. The cloud selection is never changed.
func (m *Manager) autoSelectLocal(entries []provider.ModelEntry) {
	if len(entries) == 0 {
		return
	}
	current := m.store.Current()
	if provider.ContainsModel(entries, current.LocalModelID) {
		return
	}

	next := current.WithModel(config.ProviderLocal, entries[0].ID)
	if err := m.store.Update(next); err != nil && !config.IsPersistError(err) {
		m.logger.Printf("DISCOVERY_SELECT_FAILED | provider=local model=%s err=%v", entries[0].ID, err)
		return
	}
	m.logger.Printf("DISCOVERY_SELECTED | provider=local from=%s to=%s", current.LocalModelID, entries[0].ID)
}

// FailureMessage returns the diagnostic for a failed discovery of p.
func FailureMessage(p config.Provider, err error) string {
	if p == config.ProviderLocal {
		return LocalUnreachableMessage
	}
	if isCredentialOrNetwork(err) {
		return CloudCredentialMessage
	}
	return "Model discovery failed: " + err.Error()
}

func isCredentialOrNetwork(err error) bool {
	switch provider.KindOf(err) {
	case provider.KindMissingCredential, provider.KindConnectionFailed:
		return true
	case provider.KindUpstream:
		switch provider.StatusOf(err) {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return true
		}
	}
	return false
}

// =============================================================================
// CREDENTIAL VALIDATION
// =============================================================================

// ValidateCredential checks key against the cloud API. Without a validator
// the key is reported invalid.
func (m *Manager) ValidateCredential(ctx context.Context, key string) (bool, error) {
	if m.validator == nil {
		return false, provider.Unknown("no credential validator configured", nil)
	}
	ok, err := m.validator.ValidateKey(ctx, key)
	m.logger.Printf("CREDENTIAL_CHECK | valid=%t err=%v", ok, err)
	return ok, err
}

// =============================================================================
// TRIGGERS
// =============================================================================

// Start runs the automatic triggers. The active provider is discovered
// once when no catalog has been fetched for it; afterwards the store is
// watched for provider switches and credential changes. The returned
// function stops watching and cancels every discovery the triggers started.
func (m *Manager) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	current := m.store.Current()
	m.maybeDiscoverActive(ctx, current)

	unsubscribe := m.store.Subscribe(func(prev, next config.Settings) {
		if ctx.Err() != nil {
			return
		}
		if prev.ActiveProvider != next.ActiveProvider {
			m.maybeDiscoverActive(ctx, next)
		}
		if prev.CloudCredential != next.CloudCredential && next.CloudCredential != "" {
			m.logger.Printf("DISCOVERY_TRIGGER | provider=cloud reason=credential_changed")
			m.Trigger(ctx, config.ProviderCloud)
		}
	})
	return func() {
		unsubscribe()
		cancel()
	}
}

func (m *Manager) maybeDiscoverActive(ctx context.Context, s config.Settings) {
	p := s.ActiveProvider
	if m.Snapshot(p).Fetched {
		return
	}
	if p == config.ProviderCloud && !s.HasCredential() {
		return
	}
	m.logger.Printf("DISCOVERY_TRIGGER | provider=%s reason=activated", p)
	m.Trigger(ctx, p)
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe registers fn for every status or catalog transition. Callbacks
// run outside the manager's locks, in registration order.
func (m *Manager) Subscribe(fn func(Snapshot)) (cancel func()) {
	m.subMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	m.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			for i, sub := range m.subs {
				if sub.id == id {
					m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
					break
				}
			}
			m.subMu.Unlock()
		})
	}
}

func (m *Manager) notify(snap Snapshot) {
	m.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(m.subs))
	for _, sub := range m.subs {
		fns = append(fns, sub.fn)
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
