// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cohort Contributors

package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/cohort-dev/cohort/internal/index"
	"github.com/cohort-dev/cohort/internal/roster"
	cohorterr "github.com/cohort-dev/cohort/pkg/errors"
)

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-records",
		Method:      http.MethodGet,
		Path:        "/api/v1/records",
		Summary:     "List normalized records",
		Tags:        []string{"records"},
	}, s.handleListRecords)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-columns",
		Method:      http.MethodGet,
		Path:        "/api/v1/columns",
		Summary:     "List spreadsheet columns and mapping overrides",
		Tags:        []string{"columns"},
	}, s.handleListColumns)

	huma.Register(s.api, huma.Operation{
		OperationID: "set-validated",
		Method:      http.MethodPut,
		Path:        "/api/v1/records/{name}/validated",
		Summary:     "Set a record's validation flag",
		Tags:        []string{"records"},
	}, s.handleSetValidated)

	huma.Register(s.api, huma.Operation{
		OperationID: "set-overrides",
		Method:      http.MethodPost,
		Path:        "/api/v1/records/{name}/overrides",
		Summary:     "Override fields of a record",
		Tags:        []string{"records"},
	}, s.handleSetOverrides)

	huma.Register(s.api, huma.Operation{
		OperationID: "set-column-mapping",
		Method:      http.MethodPut,
		Path:        "/api/v1/columns/mapping",
		Summary:     "Pin spreadsheet columns to logical fields",
		Tags:        []string{"columns"},
	}, s.handleSetColumnMap)

	huma.Register(s.api, huma.Operation{
		OperationID: "similarity",
		Method:      http.MethodPost,
		Path:        "/api/v1/similarity",
		Summary:     "Rank records by similarity to a seed text",
		Tags:        []string{"similarity"},
	}, s.handleSimilarity)

	huma.Register(s.api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Report dataset counts, encoder, and snapshot state",
		Tags:        []string{"system"},
	}, s.handleStatus)
}

// --- Request/Response types for huma ---

type listRecordsInput struct {
	Dataset string `query:"dataset" enum:"ecr,staff" default:"ecr" doc:"Dataset to list"`
}
type listRecordsOutput struct {
	Body struct {
		Records []roster.Record `json:"records"`
	}
}

type listColumnsOutput struct {
	Body ColumnsInfo
}

type setValidatedInput struct {
	Name string `path:"name" doc:"Record name"`
	Body struct {
		Validated bool `json:"validated" doc:"New validation state"`
	}
}
type setValidatedOutput struct {
	Body struct {
		Name      string `json:"name"`
		Validated bool   `json:"validated"`
	}
}

type setOverridesInput struct {
	Name string `path:"name" doc:"Record name"`
	Body struct {
		Program    *string  `json:"program,omitempty"`
		Group      *string  `json:"group,omitempty"`
		Background *string  `json:"background,omitempty"`
		Topic      *string  `json:"topic,omitempty"`
		Methods    []string `json:"methods,omitempty"`
		Software   []string `json:"software,omitempty"`
		Offer      []string `json:"offer,omitempty"`
		Seek       []string `json:"seek,omitempty"`
	}
}
type setOverridesOutput struct {
	Body struct {
		Name      string          `json:"name"`
		Overrides roster.Override `json:"overrides"`
	}
}

type setColumnMapInput struct {
	Body struct {
		Mapping map[string]string `json:"mapping" doc:"Logical field to spreadsheet header"`
	}
}
type setColumnMapOutput struct {
	Body struct {
		ColumnMapOverrides map[string]string `json:"column_map_overrides"`
	}
}

type similarityInput struct {
	Body struct {
		Text    string `json:"text" doc:"Free-text seed"`
		TopK    int    `json:"top_k,omitempty" default:"100" doc:"Number of results; clamped to at least 1"`
		Dataset string `json:"dataset,omitempty" doc:"Dataset to rank (default ecr)"`
	}
}
type similarityOutput struct {
	Body struct {
		Scores []index.Score `json:"scores"`
	}
}

// --- Handlers ---

func (s *Server) handleListRecords(ctx context.Context, input *listRecordsInput) (*listRecordsOutput, error) {
	dataset := input.Dataset
	if dataset == "" {
		dataset = roster.DatasetECR
	}

	records, err := s.services.Roster().Records(ctx, dataset)
	if err != nil {
		return nil, humaError(err, fmt.Sprintf("listing records for dataset %q", dataset))
	}

	out := &listRecordsOutput{}
	out.Body.Records = records
	if out.Body.Records == nil {
		out.Body.Records = []roster.Record{}
	}
	return out, nil
}

func (s *Server) handleListColumns(ctx context.Context, _ *struct{}) (*listColumnsOutput, error) {
	info, err := s.services.Roster().Columns(ctx)
	if err != nil {
		return nil, humaError(err, "listing columns")
	}
	return &listColumnsOutput{Body: info}, nil
}

func (s *Server) handleSetValidated(ctx context.Context, input *setValidatedInput) (*setValidatedOutput, error) {
	if input.Name == "" {
		return nil, huma.Error400BadRequest("record name is required")
	}

	if err := s.services.Roster().SetValidated(ctx, input.Name, input.Body.Validated); err != nil {
		return nil, humaError(err, fmt.Sprintf("setting validation for %q", input.Name))
	}

	out := &setValidatedOutput{}
	out.Body.Name = input.Name
	out.Body.Validated = input.Body.Validated
	return out, nil
}

func (s *Server) handleSetOverrides(ctx context.Context, input *setOverridesInput) (*setOverridesOutput, error) {
	if input.Name == "" {
		return nil, huma.Error400BadRequest("record name is required")
	}

	update := roster.Override{
		Program:    input.Body.Program,
		Group:      input.Body.Group,
		Background: input.Body.Background,
		Topic:      input.Body.Topic,
		Methods:    input.Body.Methods,
		Software:   input.Body.Software,
		Offer:      input.Body.Offer,
		Seek:       input.Body.Seek,
	}
	if update.IsZero() {
		return nil, huma.Error400BadRequest("at least one field must be provided")
	}

	merged, err := s.services.Roster().SetOverrides(ctx, input.Name, update)
	if err != nil {
		return nil, humaError(err, fmt.Sprintf("overriding fields of %q", input.Name))
	}

	out := &setOverridesOutput{}
	out.Body.Name = input.Name
	out.Body.Overrides = merged
	return out, nil
}

func (s *Server) handleSetColumnMap(ctx context.Context, input *setColumnMapInput) (*setColumnMapOutput, error) {
	if len(input.Body.Mapping) == 0 {
		return nil, huma.Error400BadRequest("mapping must not be empty")
	}

	mapping, err := s.services.Roster().SetColumnMap(ctx, input.Body.Mapping)
	if err != nil {
		return nil, humaError(err, "setting column mapping")
	}

	out := &setColumnMapOutput{}
	out.Body.ColumnMapOverrides = mapping
	return out, nil
}

func (s *Server) handleSimilarity(ctx context.Context, input *similarityInput) (*similarityOutput, error) {
	dataset := input.Body.Dataset
	if dataset == "" {
		dataset = roster.DatasetECR
	}
	topK := input.Body.TopK
	if topK == 0 {
		topK = 100
	}

	scores, err := s.services.Similarity().Rank(ctx, dataset, input.Body.Text, topK)
	if err != nil {
		return nil, humaError(err, "ranking records")
	}

	out := &similarityOutput{}
	out.Body.Scores = scores
	if out.Body.Scores == nil {
		out.Body.Scores = []index.Score{}
	}
	return out, nil
}

type statusOutput struct {
	Body StatusInfo
}

func (s *Server) handleStatus(ctx context.Context, _ *struct{}) (*statusOutput, error) {
	info, err := s.services.Status().Status(ctx)
	if err != nil {
		return nil, humaError(err, "reading status")
	}
	if info.Datasets == nil {
		info.Datasets = map[string]int{}
	}
	return &statusOutput{Body: info}, nil
}

// humaError maps a coded error onto the matching huma status error so
// handlers stay one-liners.
func humaError(err error, msg string) error {
	switch cohorterr.HTTPStatus(err) {
	case http.StatusNotFound:
		return huma.Error404NotFound(msg, err)
	case http.StatusBadRequest:
		return huma.Error400BadRequest(msg, err)
	case http.StatusServiceUnavailable:
		return huma.Error503ServiceUnavailable(msg, err)
	case http.StatusBadGateway:
		return huma.Error502BadGateway(msg, err)
	default:
		return huma.Error500InternalServerError(msg, err)
	}
}
