// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package picker

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/omnitool/internal/config"
	"github.com/jeranaias/omnitool/internal/discovery"
	"github.com/jeranaias/omnitool/internal/provider"
	"github.com/jeranaias/omnitool/internal/ui/styles"
)

func localSnapshot(ids ...string) discovery.Snapshot {
	snap := discovery.Snapshot{
		Provider: config.ProviderLocal,
		Status:   discovery.Status{State: discovery.Success},
		Fetched:  true,
	}
	for _, id := range ids {
		snap.Catalog = append(snap.Catalog, provider.ModelEntry{ID: id, Label: id, SizeHint: "4.3 GB"})
	}
	return snap
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	pm, ok := next.(Model)
	require.True(t, ok, "Update must return a picker Model")
	return pm, cmd
}

func TestNew_HighlightsCurrent(t *testing.T) {
	m := New(styles.NewPlainTheme(), localSnapshot("llama3", "mistral", "phi3"), "mistral")

	m, cmd := update(t, m, key("enter"))
	require.NotNil(t, cmd)
	assert.Equal(t, Result{ModelID: "mistral", Selected: true}, m.Result())
}

func TestSelect_AfterMovingDown(t *testing.T) {
	m := New(styles.NewPlainTheme(), localSnapshot("llama3", "mistral"), "llama3")

	m, _ = update(t, m, key("down"))
	m, _ = update(t, m, key("enter"))
	assert.Equal(t, "mistral", m.Result().ModelID)
	assert.Empty(t, m.View(), "view is cleared after quitting")
}

func TestCancel(t *testing.T) {
	for _, k := range []string{"esc", "q"} {
		t.Run(k, func(t *testing.T) {
			m := New(styles.NewPlainTheme(), localSnapshot("llama3"), "llama3")
			m, cmd := update(t, m, key(k))
			assert.NotNil(t, cmd)
			assert.False(t, m.Result().Selected)
			assert.Empty(t, m.Result().ModelID)
		})
	}
}

func TestEnter_EmptyCatalog(t *testing.T) {
	snap := localSnapshot()
	m := New(styles.NewPlainTheme(), snap, "llama3")

	assert.Equal(t, 0, m.Len())
	m, cmd := update(t, m, key("enter"))
	assert.Nil(t, cmd)
	assert.False(t, m.Result().Selected)
}

// =============================================================================
// REFRESH TESTS
// =============================================================================

func TestInit_AutoLoadWhenNotFetched(t *testing.T) {
	snap := localSnapshot()
	snap.Fetched = false

	calls := 0
	refresher := func(ctx context.Context) discovery.Snapshot {
		calls++
		return localSnapshot("llama3")
	}

	m := New(styles.NewPlainTheme(), snap, "", WithRefresher(refresher, true))
	assert.True(t, m.Loading())
	assert.NotNil(t, m.Init())

	msg := m.refresh()()
	refreshed, ok := msg.(RefreshedMsg)
	require.True(t, ok)
	assert.Equal(t, 1, calls)

	m, _ = update(t, m, refreshed)
	assert.False(t, m.Loading())
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, discovery.Success, m.Status().State)
}

func TestInit_NoAutoLoadWhenFetched(t *testing.T) {
	refresher := func(ctx context.Context) discovery.Snapshot { return discovery.Snapshot{} }
	m := New(styles.NewPlainTheme(), localSnapshot("llama3"), "llama3", WithRefresher(refresher, true))

	assert.False(t, m.Loading())
	assert.Nil(t, m.Init())
}

func TestRefreshKey(t *testing.T) {
	refresher := func(ctx context.Context) discovery.Snapshot { return localSnapshot("a", "b") }
	m := New(styles.NewPlainTheme(), localSnapshot("llama3"), "llama3", WithRefresher(refresher, false))

	m, cmd := update(t, m, key("r"))
	assert.NotNil(t, cmd)
	assert.True(t, m.Loading())
	assert.Equal(t, discovery.Discovering, m.Status().State)
	assert.Contains(t, m.View(), "Discovering Ollama models...")

	// A second press while loading is ignored.
	_, cmd = update(t, m, key("r"))
	assert.Nil(t, cmd)
}

func TestRefreshKey_WithoutRefresher(t *testing.T) {
	m := New(styles.NewPlainTheme(), localSnapshot("llama3"), "llama3")
	m, cmd := update(t, m, key("r"))
	assert.Nil(t, cmd)
	assert.False(t, m.Loading())
}

func TestRefreshFailure_KeepsEntries(t *testing.T) {
	m := New(styles.NewPlainTheme(), localSnapshot("llama3", "mistral"), "llama3")

	failed := localSnapshot("llama3", "mistral")
	failed.Status = discovery.Status{State: discovery.Error, Message: discovery.LocalUnreachableMessage}
	m, _ = update(t, m, RefreshedMsg{Snapshot: failed})

	assert.Equal(t, 2, m.Len())
	assert.Contains(t, m.View(), "[X] error: "+discovery.LocalUnreachableMessage)
}

// =============================================================================
// VIEW TESTS
// =============================================================================

func TestView(t *testing.T) {
	m := New(styles.NewPlainTheme(), localSnapshot("llama3"), "llama3")
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 60, Height: 16})

	view := m.View()
	assert.Contains(t, view, "Ollama models")
	assert.Contains(t, view, "llama3 (current)")
	assert.Contains(t, view, "[OK] success")
	assert.True(t, strings.HasSuffix(view, "enter select · / filter · esc cancel"))
}

func TestItem(t *testing.T) {
	it := item{entry: provider.ModelEntry{ID: "gemini-2.5-flash", Label: "Gemini 2.5 Flash", SizeHint: "001"}}
	assert.Equal(t, "Gemini 2.5 Flash", it.Title())
	assert.Equal(t, "gemini-2.5-flash · 001", it.Description())
	assert.Contains(t, it.FilterValue(), "gemini-2.5-flash")

	bare := item{entry: provider.ModelEntry{ID: "x"}, current: true}
	assert.Equal(t, "x (current)", bare.Title())
}
