package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/logsentinel-project/logsentinel/internal/orchestrate"
)

func TestResultStoreEviction(t *testing.T) {
	rs := newResultStore(3)
	for i := 0; i < 5; i++ {
		rs.Add(&orchestrate.Result{RequestID: fmt.Sprintf("req-%d", i)})
	}
	if rs.Len() != 3 {
		t.Fatalf("Len = %d, want 3", rs.Len())
	}
	recent := rs.Recent(0)
	if recent[0].RequestID != "req-4" {
		t.Errorf("newest = %s, want req-4", recent[0].RequestID)
	}
	if recent[2].RequestID != "req-2" {
		t.Errorf("oldest kept = %s, want req-2", recent[2].RequestID)
	}
	if rs.Get("req-0") != nil {
		t.Error("evicted result should not be retrievable")
	}
}

func TestResultStoreRecentLimit(t *testing.T) {
	rs := newResultStore(10)
	for i := 0; i < 4; i++ {
		rs.Add(&orchestrate.Result{RequestID: fmt.Sprintf("req-%d", i)})
	}
	recent := rs.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("len = %d, want 2", len(recent))
	}
	if recent[0].RequestID != "req-3" || recent[1].RequestID != "req-2" {
		t.Errorf("recent = [%s %s], want newest first", recent[0].RequestID, recent[1].RequestID)
	}
}

func TestResultsEndpointEmpty(t *testing.T) {
	s := testServer(t, nil)
	rec := s.serve(httptest.NewRequest(http.MethodGet, "/api/v1/results", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["total"].(float64) != 0 {
		t.Errorf("total = %v, want 0", body["total"])
	}
}

func TestResultsEndpointAfterAnalyze(t *testing.T) {
	s := testServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", bytes.NewReader(analyzeBody(t)))
	if rec := s.serve(req); rec.Code != http.StatusOK {
		t.Fatalf("analyze status = %d, want 200", rec.Code)
	}

	rec := s.serve(httptest.NewRequest(http.MethodGet, "/api/v1/results", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Results []map[string]interface{} `json:"results"`
		Total   int                      `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Total != 1 || len(body.Results) != 1 {
		t.Fatalf("total = %d, results = %d, want 1 each", body.Total, len(body.Results))
	}
	summary := body.Results[0]
	if summary["risk_level"] == "" {
		t.Error("summary missing risk_level")
	}

	// Fetch the full result by ID
	id := summary["request_id"].(string)
	rec = s.serve(httptest.NewRequest(http.MethodGet, "/api/v1/results?id="+id, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("by-id status = %d, want 200", rec.Code)
	}
	var result orchestrate.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.RequestID != id {
		t.Errorf("request_id = %s, want %s", result.RequestID, id)
	}
	if len(result.Sequences) == 0 {
		t.Error("full result should include matched sequences")
	}
}

func TestResultsEndpointUnknownID(t *testing.T) {
	s := testServer(t, nil)
	rec := s.serve(httptest.NewRequest(http.MethodGet, "/api/v1/results?id=nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestResultsEndpointBadLimit(t *testing.T) {
	s := testServer(t, nil)
	rec := s.serve(httptest.NewRequest(http.MethodGet, "/api/v1/results?limit=abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
