// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package picker

import (
	"github.com/jeranaias/omnitool/internal/discovery"
)

// RefreshedMsg delivers the outcome of a catalog refresh.
type RefreshedMsg struct {
	Snapshot discovery.Snapshot
}

// Result is the outcome of a picker session.
type Result struct {
	// ModelID is the chosen model. Empty when cancelled.
	ModelID string
	// Selected is false when the user cancelled.
	Selected bool
}
