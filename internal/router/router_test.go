// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/omnitool/internal/config"
	"github.com/jeranaias/omnitool/internal/model"
	"github.com/jeranaias/omnitool/internal/provider"
)

// ============================================================================
// FAKES
// ============================================================================

type fakeClient struct {
	name string
	err  error

	mu      sync.Mutex
	chats   int
	visions int
	lists   int
	lastMsg string
	lastLen int
}

func (f *fakeClient) Chat(ctx context.Context, message string, history []model.Turn, s config.Settings) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats++
	f.lastMsg = message
	f.lastLen = len(history)
	if f.err != nil {
		return "", f.err
	}
	return f.name + ":" + message, nil
}

func (f *fakeClient) AnalyzeImage(ctx context.Context, img provider.Image, prompt string, s config.Settings) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visions++
	if f.err != nil {
		return "", f.err
	}
	return f.name + ":vision:" + prompt, nil
}

func (f *fakeClient) ListModels(ctx context.Context, s config.Settings) ([]provider.ModelEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.err != nil {
		return nil, f.err
	}
	return []provider.ModelEntry{{ID: f.name + "-model"}}, nil
}

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chats + f.visions + f.lists
}

func newTestRouter() (*Router, *fakeClient, *fakeClient, *bytes.Buffer) {
	cloud := &fakeClient{name: "cloud"}
	local := &fakeClient{name: "local"}
	var buf bytes.Buffer
	r := New(cloud, local, WithLogger(log.New(&buf, "", 0)))
	return r, cloud, local, &buf
}

func settingsFor(p config.Provider) config.Settings {
	s := config.DefaultSettings()
	s.ActiveProvider = p
	s.CloudCredential = "secret-key"
	return s
}

// ============================================================================
// ISOLATION TESTS
// ============================================================================

func TestDispatch_LocalActiveCallsOnlyLocal(t *testing.T) {
	r, cloud, local, _ := newTestRouter()
	s := settingsFor(config.ProviderLocal)

	history := []model.Turn{model.NewUserTurn("a"), model.NewAssistantTurn("b")}
	resp, err := r.Dispatch(context.Background(), provider.ChatRequest("hi", history), s)
	require.NoError(t, err)
	assert.Equal(t, "local:hi", resp)

	_, err = r.Dispatch(context.Background(), provider.VisionRequest(provider.Image{Data: []byte{1}}, "look"), s)
	require.NoError(t, err)

	assert.Equal(t, 1, local.chats)
	assert.Equal(t, 1, local.visions)
	assert.Equal(t, 2, local.lastLen)
	assert.Zero(t, cloud.calls(), "cloud must not be touched while local is active")
}

func TestDispatch_CloudActiveCallsOnlyCloud(t *testing.T) {
	r, cloud, local, _ := newTestRouter()
	s := settingsFor(config.ProviderCloud)

	resp, err := r.Chat(context.Background(), "hi", nil, s)
	require.NoError(t, err)
	assert.Equal(t, "cloud:hi", resp)

	resp, err = r.AnalyzeImage(context.Background(), provider.Image{Data: []byte{1}}, "look", s)
	require.NoError(t, err)
	assert.Equal(t, "cloud:vision:look", resp)

	assert.Equal(t, 2, cloud.calls())
	assert.Zero(t, local.calls(), "local must not be touched while cloud is active")
}

func TestDispatch_SwitchTakesEffectImmediately(t *testing.T) {
	r, cloud, local, _ := newTestRouter()

	_, _ = r.Chat(context.Background(), "one", nil, settingsFor(config.ProviderCloud))
	_, _ = r.Chat(context.Background(), "two", nil, settingsFor(config.ProviderLocal))

	assert.Equal(t, "one", cloud.lastMsg)
	assert.Equal(t, "two", local.lastMsg)
}

func TestDispatch_ErrorsPassThroughUnchanged(t *testing.T) {
	sentinel := provider.Upstream(429, "quota exceeded")
	r, cloud, _, _ := newTestRouter()
	cloud.err = sentinel

	_, err := r.Chat(context.Background(), "hi", nil, settingsFor(config.ProviderCloud))
	assert.Same(t, sentinel, err)

	var pe *provider.Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 429, pe.Status)
}

func TestDispatch_NilClient(t *testing.T) {
	r := New(&fakeClient{name: "cloud"}, nil, WithLogger(log.New(&bytes.Buffer{}, "", 0)))
	_, err := r.Chat(context.Background(), "hi", nil, settingsFor(config.ProviderLocal))
	assert.Error(t, err)
	assert.Equal(t, provider.KindUnknown, provider.KindOf(err))
}

// ============================================================================
// DECISION & LOGGING TESTS
// ============================================================================

func TestSelect(t *testing.T) {
	r, _, _, _ := newTestRouter()

	s := settingsFor(config.ProviderLocal)
	s.LocalModelID = "llava"
	d := r.Select(provider.KindVision, s)
	assert.Equal(t, config.ProviderLocal, d.Provider)
	assert.Equal(t, "llava", d.Model)
	assert.Equal(t, "kind=vision provider=local model=llava", d.String())

	d = r.Select(provider.KindChat, settingsFor(config.ProviderCloud))
	assert.Equal(t, config.ProviderCloud, d.Provider)
	assert.Equal(t, config.DefaultCloudModel, d.Model)

	assert.Equal(t, "kind=chat provider=cloud model=default", RoutingDecision{}.String())
}

func TestDispatch_LogsWithoutCredential(t *testing.T) {
	r, _, _, buf := newTestRouter()
	_, _ = r.Chat(context.Background(), "hi", nil, settingsFor(config.ProviderCloud))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "ROUTING | kind=chat provider=cloud"), out)
	assert.NotContains(t, out, "secret-key")
}

// ============================================================================
// MODEL LISTING TESTS
// ============================================================================

func TestListModelsFor_IgnoresActiveProvider(t *testing.T) {
	r, cloud, local, _ := newTestRouter()
	s := settingsFor(config.ProviderCloud)

	entries, err := r.Lister().ListModels(context.Background(), config.ProviderLocal, s)
	require.NoError(t, err)
	assert.Equal(t, []provider.ModelEntry{{ID: "local-model"}}, entries)
	assert.Equal(t, 1, local.lists)
	assert.Zero(t, cloud.lists)

	entries, err = r.ListModels(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "cloud-model", entries[0].ID)
}

func TestDispatch_Concurrent(t *testing.T) {
	r, cloud, local, _ := newTestRouter()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := config.ProviderCloud
			if i%2 == 0 {
				p = config.ProviderLocal
			}
			_, _ = r.Chat(context.Background(), "x", nil, settingsFor(p))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 25, cloud.calls())
	assert.Equal(t, 25, local.calls())
}
