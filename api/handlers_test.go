package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/reasonlab/underspec/internal/config"
	"github.com/reasonlab/underspec/internal/dataset"
	"github.com/reasonlab/underspec/internal/store"
)

func newTestServer(t *testing.T, st store.Store) *Server {
	t.Helper()

	gin.SetMode(gin.TestMode)
	t.Setenv("UNDERSPEC_API_KEY", "")
	t.Setenv("UNDERSPEC_DISABLE_AUTH", "true")

	s, err := NewServer(&config.Config{}, st, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func doRequest(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHandlers_Health(t *testing.T) {
	s := newTestServer(t, &fakeStore{})

	rec := doRequest(t, s, http.MethodGet, "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want %d", rec.Code, http.StatusOK)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("status field: %v", body["status"])
	}
}

func TestHandlers_ListRuns(t *testing.T) {
	var gotFilter store.RunFilter
	st := &fakeStore{
		ListRunsFunc: func(_ context.Context, filter store.RunFilter) ([]*store.RunRecord, error) {
			gotFilter = filter
			return []*store.RunRecord{
				{ID: "run_1", Model: "gpt-4o", Mode: "mc", CreatedAt: time.Now().UTC()},
			}, nil
		},
	}
	s := newTestServer(t, st)

	rec := doRequest(t, s, http.MethodGet, "/api/runs?model=gpt-4o&mode=mc&domain=logic&limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", rec.Code, rec.Body.String())
	}
	if gotFilter.Model != "gpt-4o" || gotFilter.Mode != "mc" || gotFilter.Domain != "logic" || gotFilter.Limit != 5 {
		t.Fatalf("filter: %+v", gotFilter)
	}

	var runs []store.RunRecord
	if err := json.NewDecoder(rec.Body).Decode(&runs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run_1" {
		t.Fatalf("runs: %+v", runs)
	}
}

func TestHandlers_ListRunsBadParams(t *testing.T) {
	s := newTestServer(t, &fakeStore{})

	if rec := doRequest(t, s, http.MethodGet, "/api/runs?limit=zero"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: got %d", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodGet, "/api/runs?limit=-1"); rec.Code != http.StatusBadRequest {
		t.Fatalf("negative limit: got %d", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodGet, "/api/runs?since=notatime"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad since: got %d", rec.Code)
	}
}

func TestHandlers_GetRun(t *testing.T) {
	st := &fakeStore{
		GetRunFunc: func(_ context.Context, id string) (*store.RunRecord, error) {
			if id == "run_1" {
				return &store.RunRecord{ID: "run_1", Model: "gpt-4o"}, nil
			}
			return nil, sql.ErrNoRows
		},
	}
	s := newTestServer(t, st)

	rec := doRequest(t, s, http.MethodGet, "/api/runs/run_1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/runs/missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing run: got %d", rec.Code)
	}
}

func TestHandlers_GetRunPredictions(t *testing.T) {
	st := &fakeStore{
		GetRunFunc: func(_ context.Context, id string) (*store.RunRecord, error) {
			if id != "run_1" {
				return nil, sql.ErrNoRows
			}
			return &store.RunRecord{ID: "run_1"}, nil
		},
		GetPredictionsFunc: func(_ context.Context, runID string) ([]store.PredictionRecord, error) {
			return []store.PredictionRecord{
				{RunID: runID, ProblemID: "logic-0001", Correct: true},
			}, nil
		},
	}
	s := newTestServer(t, st)

	rec := doRequest(t, s, http.MethodGet, "/api/runs/run_1/predictions")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var preds []store.PredictionRecord
	if err := json.NewDecoder(rec.Body).Decode(&preds); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(preds) != 1 || preds[0].ProblemID != "logic-0001" {
		t.Fatalf("preds: %+v", preds)
	}

	if rec := doRequest(t, s, http.MethodGet, "/api/runs/missing/predictions"); rec.Code != http.StatusNotFound {
		t.Fatalf("missing run predictions: got %d", rec.Code)
	}
}

func TestHandlers_ListDatasets(t *testing.T) {
	dir := t.TempDir()
	problems := []dataset.Problem{
		{
			ID: "logic-0001", Domain: "logic", Difficulty: 1,
			Statement:   "Facts:\nAlice is calm.\nQuestion: Is Alice happy?",
			Choices:     []string{"Alice is tidy.", "Bob is tall."},
			AnswerIndex: 0,
			MissingFact: "Alice is tidy.",
			Solution:    "yes",
		},
	}
	if err := dataset.WriteCSV(dir+"/logic.csv", problems); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	gin.SetMode(gin.TestMode)
	t.Setenv("UNDERSPEC_API_KEY", "")
	t.Setenv("UNDERSPEC_DISABLE_AUTH", "true")
	cfg := &config.Config{}
	cfg.Generation.DataDir = dir
	s, err := NewServer(cfg, &fakeStore{}, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	rec := doRequest(t, s, http.MethodGet, "/api/datasets")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", rec.Code, rec.Body.String())
	}
	var infos []datasetInfo
	if err := json.NewDecoder(rec.Body).Decode(&infos); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(infos) != 1 || infos[0].Problems != 1 || infos[0].Domains["logic"] != 1 {
		t.Fatalf("infos: %+v", infos)
	}
}

func TestRoutes_AuthRequired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Setenv("UNDERSPEC_API_KEY", "")
	t.Setenv("UNDERSPEC_DISABLE_AUTH", "")

	if _, err := NewServer(&config.Config{}, &fakeStore{}, nil); err == nil {
		t.Fatal("expected error without auth configuration")
	}
}

func TestRoutes_APIKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Setenv("UNDERSPEC_API_KEY", "secret")
	t.Setenv("UNDERSPEC_DISABLE_AUTH", "")

	s, err := NewServer(&config.Config{}, &fakeStore{}, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no key: got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key: got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid key: got %d", rec.Code)
	}
}
