package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/logsentinel-project/logsentinel/internal/core"
	"github.com/logsentinel-project/logsentinel/internal/orchestrate"
	"github.com/logsentinel-project/logsentinel/internal/pattern"
)

type stubGenerator struct {
	text string
	err  error
}

func (g *stubGenerator) Generate(ctx context.Context, promptContext string) (string, error) {
	return g.text, g.err
}

func testServer(t *testing.T, cfg *core.Config) *Server {
	t.Helper()
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	lib, err := pattern.NewLibrary(pattern.Builtin())
	if err != nil {
		t.Fatalf("building library: %v", err)
	}
	return NewServer(Options{
		Config:  cfg,
		Library: lib,
		Version: "test",
	}, zerolog.Nop())
}

func (s *Server) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer(t, nil)
	rec := s.serve(httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	s := testServer(t, nil)
	rec := s.serve(httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["patterns_loaded"].(float64) != 10 {
		t.Errorf("patterns_loaded = %v, want 10", body["patterns_loaded"])
	}
	if body["bus_connected"] != false {
		t.Errorf("bus_connected = %v, want false", body["bus_connected"])
	}
}

func TestPatternsEndpoint(t *testing.T) {
	s := testServer(t, nil)
	rec := s.serve(httptest.NewRequest(http.MethodGet, "/api/v1/patterns", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Patterns []map[string]interface{} `json:"patterns"`
		Total    int                      `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Total != 10 {
		t.Errorf("total = %d, want 10", body.Total)
	}
	found := false
	for _, p := range body.Patterns {
		if p["name"] == "brute_force_success" {
			found = true
		}
	}
	if !found {
		t.Error("brute_force_success missing from pattern list")
	}
}

func TestTechniquesEndpoint(t *testing.T) {
	s := testServer(t, nil)
	rec := s.serve(httptest.NewRequest(http.MethodGet, "/api/v1/techniques", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Total == 0 {
		t.Error("expected a non-empty technique catalog")
	}
}

func analyzeBody(t *testing.T) []byte {
	t.Helper()
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	events := make([]core.Event, 0, 6)
	for i := 0; i < 5; i++ {
		events = append(events, core.NewEvent(
			base.Add(time.Duration(i)*time.Minute), core.SeverityMedium,
			"vpn-gw", "failed login for admin from 203.0.113.50"))
	}
	events = append(events, core.NewEvent(
		base.Add(7*time.Minute), core.SeverityHigh,
		"vpn-gw", "successful login for admin from 203.0.113.50"))

	req := orchestrate.Request{
		ID:     "req-api-1",
		Task:   "search for failed logins",
		Events: events,
	}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestAnalyzeEndpoint(t *testing.T) {
	s := testServer(t, nil)
	rec := s.serve(httptest.NewRequest(http.MethodPost, "/api/v1/analyze", bytes.NewReader(analyzeBody(t))))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var result orchestrate.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid result JSON: %v", err)
	}
	if result.RequestID != "req-api-1" {
		t.Errorf("request_id = %q", result.RequestID)
	}
	if len(result.Sequences) == 0 {
		t.Fatal("expected a detected sequence")
	}
	if result.Sequences[0].Name != "brute_force_success" {
		t.Errorf("sequence = %q, want brute_force_success", result.Sequences[0].Name)
	}
	if result.RiskScore == 0 {
		t.Error("expected non-zero risk score")
	}
}

func TestAnalyzeMarkdownFormat(t *testing.T) {
	s := testServer(t, nil)
	rec := s.serve(httptest.NewRequest(http.MethodPost, "/api/v1/analyze?format=markdown", bytes.NewReader(analyzeBody(t))))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("Content-Type = %q, want text/markdown", ct)
	}
	if !strings.Contains(rec.Body.String(), "# Security Analysis Report") {
		t.Error("markdown report header missing")
	}
}

func TestAnalyzeEmptyEvents(t *testing.T) {
	s := testServer(t, nil)
	body := `{"id": "req-empty", "task": "anything happening?", "events": []}`
	rec := s.serve(httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var result orchestrate.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.RiskScore != 0 || result.RiskLevel != "LOW" {
		t.Errorf("empty set: score=%d level=%s, want 0/LOW", result.RiskScore, result.RiskLevel)
	}
}

func TestAnalyzeInvalidJSON(t *testing.T) {
	s := testServer(t, nil)
	rec := s.serve(httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader("{nope")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAnalyzeMethodNotAllowed(t *testing.T) {
	s := testServer(t, nil)
	rec := s.serve(httptest.NewRequest(http.MethodGet, "/api/v1/analyze", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestAnalyzeWithGenerator(t *testing.T) {
	cfg := core.DefaultConfig()
	lib, err := pattern.NewLibrary(pattern.Builtin())
	if err != nil {
		t.Fatal(err)
	}
	s := NewServer(Options{
		Config:    cfg,
		Library:   lib,
		Generator: &stubGenerator{text: "Synthesized brute-force narrative."},
		Version:   "test",
	}, zerolog.Nop())

	rec := s.serve(httptest.NewRequest(http.MethodPost, "/api/v1/analyze", bytes.NewReader(analyzeBody(t))))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var result orchestrate.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if !result.Generated {
		t.Error("expected generated summary")
	}
	if result.Summary != "Synthesized brute-force narrative." {
		t.Errorf("summary = %q", result.Summary)
	}
}

func TestIngestEventWithoutBus(t *testing.T) {
	s := testServer(t, nil)
	body := `{"source": "vpn-gw", "message": "failed login", "severity": "HIGH"}`
	rec := s.serve(httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body)))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 without a bus", rec.Code)
	}
}

func TestConfigRedactsKeys(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Server.APIKeys = []string{"secret-key-123"}
	cfg.Gemini.APIKeys = []string{"gemini-key-456"}
	s := testServer(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/config", nil)
	req.Header.Set("X-API-Key", "secret-key-123")
	rec := s.serve(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret-key-123") || strings.Contains(rec.Body.String(), "gemini-key-456") {
		t.Error("config response leaked API keys")
	}
}

func TestAuthRequired(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Server.APIKeys = []string{"valid-key"}
	s := testServer(t, cfg)

	// No credentials
	rec := s.serve(httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want 401", rec.Code)
	}

	// Wrong key
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	rec = s.serve(req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("wrong key: status = %d, want 403", rec.Code)
	}

	// Valid bearer key
	req = httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("Authorization", "Bearer valid-key")
	rec = s.serve(req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid key: status = %d, want 200", rec.Code)
	}

	// Health never needs auth
	rec = s.serve(httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health: status = %d, want 200", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := testServer(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/status", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := s.serve(req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("CORS headers missing")
	}
}

func TestRateLimiting(t *testing.T) {
	s := testServer(t, nil)
	limited := false
	for i := 0; i < 500; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
		req.RemoteAddr = "10.9.9.9:1234"
		rec := s.serve(req)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("expected rate limiting to trigger after burst")
	}
}
