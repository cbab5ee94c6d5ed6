// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"fmt"

	"github.com/jeranaias/omnitool/internal/config"
	"github.com/jeranaias/omnitool/internal/provider"
)

// ============================================================================
// ROUTING DECISION
// ============================================================================

// RoutingDecision records where a request goes.
type RoutingDecision struct {
	// Provider is the backend that will serve the request.
	Provider config.Provider

	// Kind is the operation performed.
	Kind provider.RequestKind

	// Model is the model id the backend will be asked for. Empty means the
	// backend's default.
	Model string
}

// String returns a log-friendly description of the decision.
func (d RoutingDecision) String() string {
	model := d.Model
	if model == "" {
		model = "default"
	}
	return fmt.Sprintf("kind=%s provider=%s model=%s", d.Kind, d.Provider, model)
}
