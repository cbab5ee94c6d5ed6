// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"context"
	"fmt"
	"log"

	"github.com/jeranaias/omnitool/internal/config"
	"github.com/jeranaias/omnitool/internal/model"
	"github.com/jeranaias/omnitool/internal/provider"
)

// ============================================================================
// ROUTER
// ============================================================================

// Router selects the cloud or local client for each request.
//
// The selection is read from the Settings passed with the call, never
// cached, so a provider switch takes effect on the next request.
type Router struct {
	cloud  provider.Client
	local  provider.Client
	logger *log.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the routing logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Router over the two backends.
func New(cloud, local provider.Client, opts ...Option) *Router {
	r := &Router{
		cloud:  cloud,
		local:  local,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var (
	_ provider.Client = (*Router)(nil)
	_ provider.Lister = listerFunc(nil)
)

// Select returns the decision for a request of kind under s.
func (r *Router) Select(kind provider.RequestKind, s config.Settings) RoutingDecision {
	p := config.ProviderCloud
	if s.ActiveProvider == config.ProviderLocal {
		p = config.ProviderLocal
	}
	return RoutingDecision{Provider: p, Kind: kind, Model: s.ModelFor(p)}
}

// clientFor returns the client serving p.
func (r *Router) clientFor(p config.Provider) provider.Client {
	if p == config.ProviderLocal {
		return r.local
	}
	return r.cloud
}

// Dispatch routes req to the active provider. Delegate errors are returned
// unchanged.
func (r *Router) Dispatch(ctx context.Context, req provider.Request, s config.Settings) (string, error) {
	decision := r.Select(req.Kind, s)
	client := r.clientFor(decision.Provider)
	if client == nil {
		return "", provider.Unknown(fmt.Sprintf("no client configured for %s", decision.Provider), nil)
	}

	r.logger.Printf("ROUTING | %s", decision)

	switch req.Kind {
	case provider.KindVision:
		return client.AnalyzeImage(ctx, req.Image, req.Prompt, s)
	default:
		return client.Chat(ctx, req.Message, req.History, s)
	}
}

// Chat routes a chat turn to the active provider.
func (r *Router) Chat(ctx context.Context, message string, history []model.Turn, s config.Settings) (string, error) {
	return r.Dispatch(ctx, provider.ChatRequest(message, history), s)
}

// AnalyzeImage routes an image analysis to the active provider.
func (r *Router) AnalyzeImage(ctx context.Context, img provider.Image, prompt string, s config.Settings) (string, error) {
	return r.Dispatch(ctx, provider.VisionRequest(img, prompt), s)
}

// ListModels lists the catalog of the active provider.
func (r *Router) ListModels(ctx context.Context, s config.Settings) ([]provider.ModelEntry, error) {
	return r.ListModelsFor(ctx, s.ActiveProvider, s)
}

// ListModelsFor lists the catalog of p regardless of which provider is
// active.
func (r *Router) ListModelsFor(ctx context.Context, p config.Provider, s config.Settings) ([]provider.ModelEntry, error) {
	client := r.clientFor(p)
	if client == nil {
		return nil, provider.Unknown(fmt.Sprintf("no client configured for %s", p), nil)
	}
	r.logger.Printf("ROUTING | kind=models provider=%s", p)
	return client.ListModels(ctx, s)
}

// Lister adapts the router to provider.Lister.
func (r *Router) Lister() provider.Lister {
	return listerFunc(r.ListModelsFor)
}

type listerFunc func(ctx context.Context, p config.Provider, s config.Settings) ([]provider.ModelEntry, error)

func (f listerFunc) ListModels(ctx context.Context, p config.Provider, s config.Settings) ([]provider.ModelEntry, error) {
	return f(ctx, p, s)
}
