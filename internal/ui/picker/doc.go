// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package picker provides the interactive model selector.
//
// The picker is a Bubble Tea model over a bubbles list of catalog entries.
// It shows the provider's discovery status below the list and a spinner
// while a refresh is in flight:
//
//	enter  select the highlighted model
//	r      refresh the catalog
//	/      filter
//	esc q  cancel
//
// The picker never writes settings. Callers apply the Result.
package picker
