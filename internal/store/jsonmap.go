// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cohort Contributors

package store

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	cohorterr "github.com/cohort-dev/cohort/pkg/errors"
)

// JSONMap is a durable string-keyed map persisted as a single JSON file.
// Every mutation rewrites the whole file through a temp-file-and-rename so a
// crash mid-write never corrupts the previous contents. Mutations are
// serialized internally; concurrent writers across processes are
// last-writer-wins.
type JSONMap[V any] struct {
	mu   sync.RWMutex
	path string
	data map[string]V
}

// OpenJSONMap loads the map at path. A missing file initializes with def and
// writes it out immediately, so the file exists after first open. A file that
// exists but fails to parse falls back to def in memory without persisting
// over the corrupt contents.
func OpenJSONMap[V any](path string, def map[string]V) (*JSONMap[V], error) {
	if def == nil {
		def = make(map[string]V)
	}

	m := &JSONMap[V]{path: path, data: def}

	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if err := m.persistLocked(); err != nil {
			return nil, err
		}
		return m, nil
	case err != nil:
		slog.Warn("override store unreadable, using defaults", "path", path, "error", err)
		return m, nil
	}

	data := make(map[string]V)
	if err := json.Unmarshal(raw, &data); err != nil {
		slog.Warn("override store corrupt, using defaults without rewriting", "path", path, "error", err)
		return m, nil
	}
	m.data = data
	return m, nil
}

// Get returns the value stored under key.
func (m *JSONMap[V]) Get(key string) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

// All returns a copy of the whole map.
func (m *JSONMap[V]) All() map[string]V {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]V, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}

// Len returns the number of stored keys.
func (m *JSONMap[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Set stores key and persists the full map.
func (m *JSONMap[V]) Set(key string, value V) error {
	if key == "" {
		return cohorterr.New(cohorterr.CodeStoreInvalidInput, "store key must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return m.persistLocked()
}

// SetAll replaces multiple keys in one persisted write.
func (m *JSONMap[V]) SetAll(values map[string]V) error {
	if len(values) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		if k == "" {
			return cohorterr.New(cohorterr.CodeStoreInvalidInput, "store key must not be empty")
		}
		m.data[k] = v
	}
	return m.persistLocked()
}

// Delete removes key and persists. Deleting an absent key is a no-op.
func (m *JSONMap[V]) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; !ok {
		return nil
	}
	delete(m.data, key)
	return m.persistLocked()
}

// persistLocked writes the map atomically. Callers hold m.mu (or own the map
// exclusively during open).
func (m *JSONMap[V]) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return cohorterr.Wrapf(err, cohorterr.CodeStoreWriteFailure, "creating store directory for %s", m.path)
	}

	raw, err := json.MarshalIndent(m.data, "", "  ")
	if err != nil {
		return cohorterr.Wrapf(err, cohorterr.CodeStoreWriteFailure, "encoding store %s", m.path)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return cohorterr.Wrapf(err, cohorterr.CodeStoreWriteFailure, "writing store %s", tmp)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return cohorterr.Wrapf(err, cohorterr.CodeStoreWriteFailure, "replacing store %s", m.path)
	}
	return nil
}
