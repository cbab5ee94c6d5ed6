// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package discovery enumerates provider models and validates credentials.
//
// A Manager keeps one slot per provider holding an advisory Status and the
// last known catalog. Each refresh moves the slot through
// Discovering to Success or Error:
//
//   - Discovering clears the previous error but keeps the catalog
//   - Success replaces the catalog; an empty cloud listing keeps the
//     fallback. A local selection missing from the new list is switched to
//     the first entry. The cloud selection is never switched
//   - Error keeps both the catalog and the selection
//
// Overlapping refreshes are resolved by the Ordering policy. The default,
// LastCompletedWins, applies results in completion order; Sequenced drops
// results older than the last one applied.
//
// # Usage
//
//	m := discovery.New(router.Lister(), store,
//	    discovery.WithFallback(config.ProviderCloud, cloud.DefaultModels()),
//	    discovery.WithValidator(cloudClient))
//	stop := m.Start(ctx)
//	defer stop()
//	snap := m.Refresh(ctx, config.ProviderLocal)
package discovery
