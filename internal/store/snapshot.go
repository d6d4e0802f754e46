// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cohort Contributors

package store

import (
	"context"
	"time"
)

// Snapshot is a set of precomputed embeddings as parallel key/vector arrays.
// Keys are card names or token strings depending on the kind.
type Snapshot struct {
	Keys    []string
	Vectors [][]float32
}

// Empty reports whether the snapshot holds no vectors.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Keys) == 0
}

// SnapshotKind selects which precomputed vector set an operation targets.
type SnapshotKind string

const (
	SnapshotCards  SnapshotKind = "cards"
	SnapshotStaff  SnapshotKind = "staff_cards"
	SnapshotTokens SnapshotKind = "tokens"
)

// Manifest records how a snapshot was produced.
type Manifest struct {
	RunID     string    `json:"run_id"`
	ModelID   string    `json:"model_id"`
	Dimension int       `json:"dimension"`
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotStore persists precomputed embedding snapshots across restarts.
// Load on a store with no data returns an empty snapshot, never an error:
// absent precomputed vectors mean the feature is unavailable, not broken.
type SnapshotStore interface {
	Save(ctx context.Context, kind SnapshotKind, snap *Snapshot) error
	Load(ctx context.Context, kind SnapshotKind) (*Snapshot, error)
	SaveManifest(ctx context.Context, m *Manifest) error
	Manifest(ctx context.Context) (*Manifest, error)
	Close() error
}
