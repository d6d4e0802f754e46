// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cohort Contributors

package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cohort-dev/cohort/internal/index"
	"github.com/cohort-dev/cohort/internal/roster"
	"github.com/cohort-dev/cohort/internal/server"
	cohorterr "github.com/cohort-dev/cohort/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock service implementations for testing.
type mockRosterService struct {
	lastValidated map[string]bool
	lastOverride  roster.Override
	lastColumnMap map[string]string
	columnsErr    error
}

func (m *mockRosterService) Records(_ context.Context, dataset string) ([]roster.Record, error) {
	switch dataset {
	case roster.DatasetECR:
		return []roster.Record{
			{Name: "Alice", Program: "Econ", Topic: "labor markets", Tags: []string{"ECR"}},
			{Name: "Bob", Topic: "water governance", Tags: []string{"ECR"}},
		}, nil
	case roster.DatasetStaff:
		return []roster.Record{
			{Name: "Dana", Offer: []string{"GIS", "Python"}},
		}, nil
	default:
		return nil, cohorterr.Errorf(cohorterr.CodeRosterDatasetNotFound, "dataset %q not found", dataset)
	}
}

func (m *mockRosterService) Columns(_ context.Context) (server.ColumnsInfo, error) {
	if m.columnsErr != nil {
		return server.ColumnsInfo{}, m.columnsErr
	}
	return server.ColumnsInfo{
		Sheets:    map[string][]string{"Cohort 2026": {"Name", "Topic"}},
		Overrides: map[string]string{"topic": "Topic"},
	}, nil
}

func (m *mockRosterService) SetValidated(_ context.Context, name string, validated bool) error {
	if name == "Zed" {
		return cohorterr.Errorf(cohorterr.CodeRosterRecordNotFound, "record %q not found", name)
	}
	if m.lastValidated == nil {
		m.lastValidated = map[string]bool{}
	}
	m.lastValidated[name] = validated
	return nil
}

func (m *mockRosterService) SetOverrides(_ context.Context, name string, update roster.Override) (roster.Override, error) {
	if name == "Zed" {
		return roster.Override{}, cohorterr.Errorf(cohorterr.CodeRosterRecordNotFound, "record %q not found", name)
	}
	m.lastOverride = update
	return update, nil
}

func (m *mockRosterService) SetColumnMap(_ context.Context, mapping map[string]string) (map[string]string, error) {
	if _, bad := mapping["bogus"]; bad {
		return nil, cohorterr.New(cohorterr.CodeServerRequestInvalid, "unknown field")
	}
	m.lastColumnMap = mapping
	return mapping, nil
}

type mockSimilarityService struct {
	lastSeed string
	lastTopK int
	fail     error
}

func (m *mockSimilarityService) Rank(_ context.Context, dataset, seed string, topK int) ([]index.Score, error) {
	if m.fail != nil {
		return nil, m.fail
	}
	if dataset != roster.DatasetECR && dataset != roster.DatasetStaff {
		return nil, cohorterr.Errorf(cohorterr.CodeRosterDatasetNotFound, "dataset %q not found", dataset)
	}
	m.lastSeed = seed
	m.lastTopK = topK
	return []index.Score{
		{Name: "Alice", Score: 0.92},
		{Name: "Bob", Score: 0.31},
	}, nil
}

type mockStatusService struct {
	fail error
}

func (m *mockStatusService) Status(_ context.Context) (server.StatusInfo, error) {
	if m.fail != nil {
		return server.StatusInfo{}, m.fail
	}
	return server.StatusInfo{
		Datasets: map[string]int{"ecr": 2, "staff": 1},
		Encoder:  "openai:text-embedding-3-small",
		Snapshot: &server.SnapshotInfo{
			RunID:     "run-1",
			ModelID:   "openai:text-embedding-3-small",
			Dimension: 1536,
		},
	}, nil
}

func newTestServer(t *testing.T) (*server.Server, *mockRosterService, *mockSimilarityService) {
	t.Helper()
	rosterSvc := &mockRosterService{}
	simSvc := &mockSimilarityService{}

	services, err := server.NewServices(rosterSvc, simSvc, &mockStatusService{})
	require.NoError(t, err)

	srv, err := server.New(server.Config{
		ListenAddr: "127.0.0.1:0",
		Services:   services,
	})
	require.NoError(t, err)
	return srv, rosterSvc, simSvc
}

func doJSON(t *testing.T, srv *server.Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
}

func TestListRecordsDefaultsToECR(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/records", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Records []roster.Record `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Records, 2)
	assert.Equal(t, "Alice", body.Records[0].Name)
	assert.Equal(t, []string{"ECR"}, body.Records[0].Tags)
}

func TestListRecordsStaffDataset(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/records?dataset=staff", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Records []roster.Record `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Records, 1)
	assert.Equal(t, "Dana", body.Records[0].Name)
}

func TestListRecordsUnknownDatasetRejected(t *testing.T) {
	srv, _, _ := newTestServer(t)

	// The enum on the query parameter rejects unknown datasets up front.
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/records?dataset=nope", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestListColumns(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/columns", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body server.ColumnsInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"Name", "Topic"}, body.Sheets["Cohort 2026"])
	assert.Equal(t, "Topic", body.Overrides["topic"])
}

func TestListColumnsFailureIs500(t *testing.T) {
	srv, rosterSvc, _ := newTestServer(t)
	rosterSvc.columnsErr = cohorterr.New(cohorterr.CodeRosterSourceReadFailure, "workbook unreadable")

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/columns", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSetValidated(t *testing.T) {
	srv, rosterSvc, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPut, "/api/v1/records/Alice/validated", `{"validated": true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, rosterSvc.lastValidated["Alice"])

	var body struct {
		Name      string `json:"name"`
		Validated bool   `json:"validated"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Alice", body.Name)
	assert.True(t, body.Validated)
}

func TestSetValidatedUnknownRecordIs404(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPut, "/api/v1/records/Zed/validated", `{"validated": true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetOverrides(t *testing.T) {
	srv, rosterSvc, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/records/Alice/overrides",
		`{"topic": "new topic", "methods": ["GIS"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, rosterSvc.lastOverride.Topic)
	assert.Equal(t, "new topic", *rosterSvc.lastOverride.Topic)
	assert.Equal(t, []string{"GIS"}, rosterSvc.lastOverride.Methods)
}

func TestSetOverridesEmptyBodyRejected(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/records/Alice/overrides", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetColumnMapping(t *testing.T) {
	srv, rosterSvc, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPut, "/api/v1/columns/mapping",
		`{"mapping": {"topic": "Notes"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"topic": "Notes"}, rosterSvc.lastColumnMap)

	var body struct {
		Overrides map[string]string `json:"column_map_overrides"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Notes", body.Overrides["topic"])
}

func TestSetColumnMappingEmptyRejected(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPut, "/api/v1/columns/mapping", `{"mapping": {}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetColumnMappingUnknownFieldIs400(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPut, "/api/v1/columns/mapping",
		`{"mapping": {"bogus": "Notes"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimilarity(t *testing.T) {
	srv, _, simSvc := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/similarity",
		`{"text": "spatial analysis", "top_k": 5}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "spatial analysis", simSvc.lastSeed)
	assert.Equal(t, 5, simSvc.lastTopK)

	var body struct {
		Scores []index.Score `json:"scores"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Scores, 2)
	assert.Equal(t, "Alice", body.Scores[0].Name)
	assert.InDelta(t, 0.92, body.Scores[0].Score, 1e-9)
}

func TestSimilarityDefaultsDatasetAndTopK(t *testing.T) {
	srv, _, simSvc := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/similarity", `{"text": "gis"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100, simSvc.lastTopK)
}

func TestSimilarityUnavailableIs503(t *testing.T) {
	srv, _, simSvc := newTestServer(t)
	simSvc.fail = cohorterr.New(cohorterr.CodeEmbedUnavailable, "no model")

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/similarity", `{"text": "gis"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSimilarityUpstreamFailureIs502(t *testing.T) {
	srv, _, simSvc := newTestServer(t)
	simSvc.fail = cohorterr.New(cohorterr.CodeEmbedUpstreamFailure, "provider down")

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/similarity", `{"text": "gis"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestStatusReportsDatasetsAndSnapshot(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body server.StatusInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Datasets["ecr"])
	assert.Equal(t, 1, body.Datasets["staff"])
	assert.Equal(t, "openai:text-embedding-3-small", body.Encoder)
	require.NotNil(t, body.Snapshot)
	assert.Equal(t, 1536, body.Snapshot.Dimension)
}

func TestServerNewRequiresServices(t *testing.T) {
	_, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	require.Error(t, err)
	assert.True(t, cohorterr.HasCode(err, cohorterr.CodeServerConfigInvalid))
}

func TestServerNewRequiresListenAddr(t *testing.T) {
	services, err := server.NewServices(&mockRosterService{}, &mockSimilarityService{}, &mockStatusService{})
	require.NoError(t, err)

	_, err = server.New(server.Config{Services: services})
	require.Error(t, err)
}
