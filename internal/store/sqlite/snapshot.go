// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cohort Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/cohort-dev/cohort/internal/store"
	cohorterr "github.com/cohort-dev/cohort/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface check.
var _ store.SnapshotStore = (*SnapshotStore)(nil)

// SnapshotStore persists precomputed embeddings in SQLite using sqlite-vec
// vec0 virtual tables, one per snapshot kind, plus a single-row manifest.
type SnapshotStore struct {
	db   *sql.DB
	path string
}

// NewSnapshotStore opens (or creates) the snapshot database at dbPath.
func NewSnapshotStore(dbPath string) (*SnapshotStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, cohorterr.Wrapf(err, cohorterr.CodeStoreSnapshotFailure, "opening snapshot db %s", dbPath)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, cohorterr.Wrapf(err, cohorterr.CodeStoreSnapshotFailure, "pinging snapshot db %s", dbPath)
	}

	const manifestDDL = `
CREATE TABLE IF NOT EXISTS snapshot_manifest (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	run_id     TEXT NOT NULL,
	model_id   TEXT NOT NULL,
	dimension  INTEGER NOT NULL,
	created_at TEXT NOT NULL
)`
	if _, err := db.Exec(manifestDDL); err != nil {
		_ = db.Close()
		return nil, cohorterr.Wrapf(err, cohorterr.CodeStoreSnapshotFailure, "creating manifest table")
	}

	return &SnapshotStore{db: db, path: dbPath}, nil
}

// OpenSnapshotStore opens the database only if it already exists. A missing
// file returns (nil, nil): precomputed vectors are an optional feature.
func OpenSnapshotStore(dbPath string) (*SnapshotStore, error) {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, nil
	}
	return NewSnapshotStore(dbPath)
}

func tableFor(kind store.SnapshotKind) (string, error) {
	switch kind {
	case store.SnapshotCards:
		return "vec_cards", nil
	case store.SnapshotStaff:
		return "vec_staff_cards", nil
	case store.SnapshotTokens:
		return "vec_tokens", nil
	default:
		return "", cohorterr.Errorf(cohorterr.CodeStoreInvalidInput, "unknown snapshot kind %q", kind)
	}
}

// Save replaces the whole vector set for kind. The vec0 table is rebuilt so a
// dimension change between precompute runs never leaves mixed rows behind.
func (s *SnapshotStore) Save(ctx context.Context, kind store.SnapshotKind, snap *store.Snapshot) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	if snap == nil || len(snap.Keys) != len(snap.Vectors) {
		return cohorterr.New(cohorterr.CodeStoreInvalidInput, "snapshot keys and vectors must be parallel arrays")
	}
	if len(snap.Keys) == 0 {
		return cohorterr.New(cohorterr.CodeStoreInvalidInput, "refusing to save an empty snapshot")
	}
	dim := len(snap.Vectors[0])

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cohorterr.Wrapf(err, cohorterr.CodeStoreSnapshotFailure, "beginning snapshot save")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+table); err != nil {
		return cohorterr.Wrapf(err, cohorterr.CodeStoreSnapshotFailure, "dropping %s", table)
	}

	ddl := fmt.Sprintf(`CREATE VIRTUAL TABLE %s USING vec0(key TEXT PRIMARY KEY, embedding float[%d])`, table, dim)
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return cohorterr.Wrapf(err, cohorterr.CodeStoreSnapshotFailure, "creating %s", table)
	}

	insert := fmt.Sprintf(`INSERT INTO %s(key, embedding) VALUES (?, ?)`, table)
	for i, key := range snap.Keys {
		if len(snap.Vectors[i]) != dim {
			return cohorterr.Errorf(cohorterr.CodeStoreInvalidInput,
				"vector %d has dimension %d, want %d", i, len(snap.Vectors[i]), dim)
		}
		blob, err := sqlite_vec.SerializeFloat32(snap.Vectors[i])
		if err != nil {
			return cohorterr.Wrapf(err, cohorterr.CodeStoreSnapshotFailure, "serializing vector for %q", key)
		}
		if _, err := tx.ExecContext(ctx, insert, key, blob); err != nil {
			return cohorterr.Wrapf(err, cohorterr.CodeStoreSnapshotFailure, "inserting vector %q", key)
		}
	}

	if err := tx.Commit(); err != nil {
		return cohorterr.Wrapf(err, cohorterr.CodeStoreSnapshotFailure, "committing snapshot save")
	}
	return nil
}

// Load reads the whole vector set for kind. A kind that was never saved
// yields an empty snapshot.
func (s *SnapshotStore) Load(ctx context.Context, kind store.SnapshotKind) (*store.Snapshot, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	exists, err := s.tableExists(ctx, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return &store.Snapshot{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key, embedding FROM `+table)
	if err != nil {
		return nil, cohorterr.Wrapf(err, cohorterr.CodeStoreSnapshotFailure, "reading %s", table)
	}
	defer func() { _ = rows.Close() }()

	snap := &store.Snapshot{}
	for rows.Next() {
		var key string
		var blob []byte
		if err := rows.Scan(&key, &blob); err != nil {
			return nil, cohorterr.Wrapf(err, cohorterr.CodeStoreSnapshotFailure, "scanning %s row", table)
		}
		snap.Keys = append(snap.Keys, key)
		snap.Vectors = append(snap.Vectors, deserializeFloat32(blob))
	}
	if err := rows.Err(); err != nil {
		return nil, cohorterr.Wrapf(err, cohorterr.CodeStoreSnapshotFailure, "iterating %s", table)
	}
	return snap, nil
}

// SaveManifest upserts the single manifest row.
func (s *SnapshotStore) SaveManifest(ctx context.Context, m *store.Manifest) error {
	const q = `INSERT INTO snapshot_manifest(id, run_id, model_id, dimension, created_at)
VALUES (1, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	run_id = excluded.run_id,
	model_id = excluded.model_id,
	dimension = excluded.dimension,
	created_at = excluded.created_at`

	_, err := s.db.ExecContext(ctx, q, m.RunID, m.ModelID, m.Dimension, m.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return cohorterr.Wrapf(err, cohorterr.CodeStoreSnapshotFailure, "saving manifest")
	}
	return nil
}

// Manifest returns the stored manifest, or nil when no precompute has run.
func (s *SnapshotStore) Manifest(ctx context.Context) (*store.Manifest, error) {
	const q = `SELECT run_id, model_id, dimension, created_at FROM snapshot_manifest WHERE id = 1`

	var m store.Manifest
	var createdAt string
	err := s.db.QueryRowContext(ctx, q).Scan(&m.RunID, &m.ModelID, &m.Dimension, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, cohorterr.Wrapf(err, cohorterr.CodeStoreSnapshotFailure, "reading manifest")
	}

	m.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, cohorterr.Wrapf(err, cohorterr.CodeStoreSnapshotFailure, "parsing manifest timestamp %q", createdAt)
	}
	return &m, nil
}

// Close closes the underlying database connection.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

func (s *SnapshotStore) tableExists(ctx context.Context, table string) (bool, error) {
	const q = `SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?`
	var n int
	if err := s.db.QueryRowContext(ctx, q, table).Scan(&n); err != nil {
		return false, cohorterr.Wrapf(err, cohorterr.CodeStoreSnapshotFailure, "checking for table %s", table)
	}
	return n > 0, nil
}

// deserializeFloat32 is the inverse of sqlite_vec.SerializeFloat32: a packed
// little-endian float32 array.
func deserializeFloat32(blob []byte) []float32 {
	out := make([]float32, len(blob)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out
}
