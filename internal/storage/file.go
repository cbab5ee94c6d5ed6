// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/jeranaias/omnitool/internal/util"
)

// =============================================================================
// FILE BACKEND
// =============================================================================

// FileKV stores every key in one JSON object on disk:
//
//	{"appSettings": {"activeProvider": "cloud", ...}}
//
// JSON object and array values are embedded as-is so the file stays
// hand-editable. Anything else is stored as a JSON string.
//
// The file is re-read on every Get so external edits are picked up.
// Writes go through util.AtomicWriteFile with 0600 permissions because the
// settings record carries the cloud credential.
type FileKV struct {
	path   string
	mu     sync.Mutex
	closed bool
}

// NewFileKV creates a FileKV at path. The file is created on first Put.
func NewFileKV(path string) (*FileKV, error) {
	if path == "" {
		return nil, errors.New("file store path is empty")
	}
	return &FileKV{path: path}, nil
}

// Path returns the backing file path.
func (f *FileKV) Path() string {
	return f.path
}

func (f *FileKV) Get(key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}

	doc, err := f.readLocked()
	if err != nil {
		return nil, err
	}
	raw, ok := doc[key]
	if !ok {
		return nil, ErrNotFound
	}

	// Values written as JSON strings are returned unquoted.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []byte(s), nil
	}
	return append([]byte(nil), raw...), nil
}

func (f *FileKV) Put(key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	doc, err := f.readLocked()
	if err != nil {
		// A corrupt file is replaced rather than blocking every save.
		doc = make(map[string]json.RawMessage)
	}

	if embeddable(value) {
		doc[key] = json.RawMessage(append([]byte(nil), value...))
	} else {
		quoted, err := json.Marshal(string(value))
		if err != nil {
			return fmt.Errorf("failed to encode value: %w", err)
		}
		doc[key] = quoted
	}
	return f.writeLocked(doc)
}

func (f *FileKV) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	doc, err := f.readLocked()
	if err != nil {
		return err
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	return f.writeLocked(doc)
}

func (f *FileKV) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// embeddable reports whether value can be stored as raw JSON. JSON strings
// are excluded so Get can tell them apart from quoted opaque values.
func embeddable(value []byte) bool {
	trimmed := bytes.TrimSpace(value)
	return len(trimmed) > 0 && trimmed[0] != '"' && json.Valid(trimmed)
}

// readLocked loads the document. A missing file is an empty document.
func (f *FileKV) readLocked() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]json.RawMessage), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	doc := make(map[string]json.RawMessage)
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode store file %s: %w", f.path, err)
	}
	return doc, nil
}

func (f *FileKV) writeLocked(doc map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store file: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(f.path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	return nil
}
