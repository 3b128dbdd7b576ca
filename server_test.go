package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	snapshots := NewSnapshotStore()
	updates := NewUpdateQueues()
	creations := NewCreationQueue(snapshots)
	s := NewServer(snapshots, updates, creations, NewAuditLog(), nil)
	return s, s.Router()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	_, h := newTestServer(t)
	rec := doJSON(t, h, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
}

func TestSnapshotThenTables(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/snapshot", map[string]any{
		"sheets": []map[string]any{
			{"id": "s1", "name": "Model", "order": 0, "cells": map[string]any{
				"0": map[string]any{"0": map[string]any{"value": "Revenue"}},
				"1": map[string]any{"0": map[string]any{"formula": "=SUM(A1:A1)"}},
			}},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/sheets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sheets []SheetInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sheets))
	require.Len(t, sheets, 1)
	assert.Equal(t, "Model", sheets[0].Name)

	rec = doJSON(t, h, http.MethodGet, "/api/sheet/s1/excel-tables", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	values := body["values_table"].(map[string]any)
	require.Len(t, values, 2)
	assert.Equal(t, "Revenue", values["1"].(map[string]any)["A"])
	formulas := body["formulas_table"].(map[string]any)
	assert.Equal(t, "=SUM(A1:A1)", formulas["2"].(map[string]any)["A"])
}

func TestTablesUnknownSheetIs404(t *testing.T) {
	_, h := newTestServer(t)
	rec := doJSON(t, h, http.MethodGet, "/api/sheet/nope/excel-tables", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetCellValidatesReference(t *testing.T) {
	s, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/sheet/s1/cell", map[string]any{"cell": "1A", "value": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/sheet/s1/cell", map[string]any{"cell": "A1", "value": "x"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, s.updates.Pending("s1"), 1)
}

func TestSetCellsReportsQueuedCount(t *testing.T) {
	s, h := newTestServer(t)
	rec := doJSON(t, h, http.MethodPost, "/api/sheet/s1/cells", map[string]any{
		"cells": []map[string]any{
			{"cell": "B1", "value": "b"},
			{"cell": "bogus", "value": "dropped"},
			{"cell": "A1", "formula": "=B1"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeBody(t, rec)["count"])

	ups := s.updates.Pending("s1")
	require.Len(t, ups, 2)
	assert.Equal(t, "B1", ups[0].Ref)
	assert.Equal(t, "A1", ups[1].Ref)
}

func TestFromTableEndpoint(t *testing.T) {
	s, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/sheet/s1/from-table", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "one table is required")

	rec = doJSON(t, h, http.MethodPost, "/api/sheet/s1/from-table", map[string]any{
		"values_table":   map[string]any{"1": map[string]any{"A": "x"}},
		"formulas_table": map[string]any{"1": map[string]any{"A": "=B1"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["count"])

	ups := s.updates.Pending("s1")
	require.Len(t, ups, 1)
	assert.Equal(t, "=B1", ups[0].Formula)
}

func TestPendingUpdatesReadAndClear(t *testing.T) {
	s, h := newTestServer(t)
	require.NoError(t, s.updates.EnqueuePoint("s1", "A1", "x", ""))

	rec := doJSON(t, h, http.MethodGet, "/api/sheet/s1/pending-updates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])

	// Reading is non-destructive.
	assert.Len(t, s.updates.Pending("s1"), 1)

	rec = doJSON(t, h, http.MethodDelete, "/api/sheet/s1/pending-updates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, s.updates.Pending("s1"))
}

func TestAllPendingEndpoint(t *testing.T) {
	s, h := newTestServer(t)
	require.NoError(t, s.updates.EnqueuePoint("s1", "A1", "x", ""))
	require.NoError(t, s.updates.EnqueuePoint("s2", "B2", "y", ""))

	rec := doJSON(t, h, http.MethodGet, "/api/pending-updates/all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["sheets"])
	assert.Equal(t, float64(2), body["total"])
}

func TestCreateSheetEndpoint(t *testing.T) {
	s, h := newTestServer(t)
	rec := doJSON(t, h, http.MethodPost, "/api/sheets", map[string]any{"name": "Assumptions"})
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Assumptions", body["name"])
	assert.NotEmpty(t, body["id"])
	assert.Equal(t, 1, s.creations.PendingCount())
}

func TestAllTablesEndpoint(t *testing.T) {
	s, h := newTestServer(t)
	s.snapshots.ReplaceSnapshot([]SheetSnapshot{
		{ID: "s1", Name: "One", Cells: map[int]map[int]Cell{0: {0: {Value: "a"}}}},
		{ID: "s2", Name: "Two"},
	})
	rec := doJSON(t, h, http.MethodGet, "/api/sheets/excel-tables/all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["count"])
	sheets := body["sheets"].([]any)
	require.Len(t, sheets, 2)
	first := sheets[0].(map[string]any)
	assert.Equal(t, "s1", first["sheet_id"])
}
