// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cohort Contributors

package server

import (
	"context"
	"time"

	"github.com/cohort-dev/cohort/internal/index"
	"github.com/cohort-dev/cohort/internal/roster"
	cohorterr "github.com/cohort-dev/cohort/pkg/errors"
)

// Services holds dependencies injected into route handlers.
// Each field is an interface so subsystems can be mocked in tests.
// Use NewServices to ensure all required services are provided.
type Services struct {
	roster     RosterService
	similarity SimilarityService
	status     StatusService
}

// NewServices creates a Services instance with validation.
func NewServices(rosterSvc RosterService, similaritySvc SimilarityService, statusSvc StatusService) (*Services, error) {
	if rosterSvc == nil {
		return nil, cohorterr.New(cohorterr.CodeServerConfigInvalid, "roster service is required")
	}
	if similaritySvc == nil {
		return nil, cohorterr.New(cohorterr.CodeServerConfigInvalid, "similarity service is required")
	}
	if statusSvc == nil {
		return nil, cohorterr.New(cohorterr.CodeServerConfigInvalid, "status service is required")
	}
	return &Services{roster: rosterSvc, similarity: similaritySvc, status: statusSvc}, nil
}

// Roster returns the roster service.
func (s *Services) Roster() RosterService {
	return s.roster
}

// Similarity returns the similarity service.
func (s *Services) Similarity() SimilarityService {
	return s.similarity
}

// Status returns the status service.
func (s *Services) Status() StatusService {
	return s.status
}

// RosterService provides record and admin operations for REST handlers.
type RosterService interface {
	// Records returns a dataset's records with overrides and validation
	// flags applied.
	Records(ctx context.Context, dataset string) ([]roster.Record, error)

	// Columns reports each sheet's headers and the current column-mapping
	// overrides.
	Columns(ctx context.Context) (ColumnsInfo, error)

	// SetValidated persists the validation flag for a record.
	SetValidated(ctx context.Context, name string, validated bool) error

	// SetOverrides layers a partial edit over a record's persisted override
	// and invalidates its cached embedding. Returns the merged override.
	SetOverrides(ctx context.Context, name string, update roster.Override) (roster.Override, error)

	// SetColumnMap persists column-mapping overrides (logical field ->
	// spreadsheet header). Returns the full mapping now in effect.
	SetColumnMap(ctx context.Context, mapping map[string]string) (map[string]string, error)
}

// ColumnsInfo describes the spreadsheet's shape for the admin surface.
type ColumnsInfo struct {
	Sheets    map[string][]string `json:"sheets" doc:"Sheet name to column headers"`
	Overrides map[string]string   `json:"column_map_overrides" doc:"Pinned column per logical field"`
}

// SimilarityService ranks records against a free-text seed.
type SimilarityService interface {
	Rank(ctx context.Context, dataset, seed string, topK int) ([]index.Score, error)
}

// StatusService reports runtime state for the status surface.
type StatusService interface {
	Status(ctx context.Context) (StatusInfo, error)
}

// StatusInfo summarizes the running server's state.
type StatusInfo struct {
	Datasets map[string]int `json:"datasets" doc:"Record count per dataset"`
	Encoder  string         `json:"encoder" doc:"Active embedding model ID, or \"unavailable\""`
	Snapshot *SnapshotInfo  `json:"snapshot,omitempty" doc:"Loaded precomputed snapshot, if any"`
}

// SnapshotInfo describes the precomputed vector snapshot in use.
type SnapshotInfo struct {
	RunID     string    `json:"run_id"`
	ModelID   string    `json:"model_id"`
	Dimension int       `json:"dimension"`
	CreatedAt time.Time `json:"created_at"`
}
