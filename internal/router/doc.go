// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router dispatches requests to the active provider.
//
// The router holds a cloud and a local provider.Client and selects between
// them on Settings.ActiveProvider at the moment of each call. It keeps no
// mutable state and returns delegate errors unchanged.
//
// # Key Types
//
//   - Router: the single dispatch point
//   - RoutingDecision: provider, operation and model of one request
//
// # Usage
//
//	r := router.New(cloudClient, localClient, router.WithLogger(logger))
//	answer, err := r.Dispatch(ctx, provider.ChatRequest(msg, conv.Turns()), store.Current())
package router
