// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the local key-value store that holds the
// persisted settings record.
//
// Values are opaque byte blobs. The config package stores a single flat JSON
// object under one key; nothing else in omnitool is persisted.
//
// # Key Types
//
//   - KV: the key-value interface every backend implements
//   - FileKV: one JSON document on disk, written atomically
//   - SQLiteKV: a single "kv" table in a pure-Go SQLite database
//   - MemoryKV: process-local map, for tests and --ephemeral runs
//
// # Usage
//
//	kv, err := storage.Open(storage.BackendFile, "~/.omnitool/settings.json")
//	if err != nil {
//	    return err
//	}
//	defer kv.Close()
//
//	data, err := kv.Get("appSettings")
//	if errors.Is(err, storage.ErrNotFound) {
//	    // first run
//	}
//
// # Storage Location
//
// Defaults live in ~/.omnitool/: settings.json for the file backend and
// omnitool.db for the sqlite backend.
package storage
