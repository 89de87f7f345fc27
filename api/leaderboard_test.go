package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/reasonlab/underspec/internal/config"
	"github.com/reasonlab/underspec/internal/leaderboard"
)

func newLeaderboardServer(t *testing.T) (*Server, *leaderboard.Store) {
	t.Helper()

	gin.SetMode(gin.TestMode)
	t.Setenv("UNDERSPEC_API_KEY", "")
	t.Setenv("UNDERSPEC_DISABLE_AUTH", "true")

	lb, err := leaderboard.NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() {
		_ = lb.Close()
	})

	s, err := NewServer(&config.Config{}, &fakeStore{}, lb)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s, lb
}

func TestHandlers_GetLeaderboard(t *testing.T) {
	s, lb := newLeaderboardServer(t)
	ctx := context.Background()

	entries := []*leaderboard.Entry{
		{Model: "gpt-4o", Provider: "openai", Dataset: "data/logic.csv", Domain: "logic", Mode: "mc", Accuracy: 0.7},
		{Model: "gemini-2.0-flash", Provider: "gemini", Dataset: "data/logic.csv", Domain: "mixed", Mode: "mc", Accuracy: 0.9},
	}
	for _, e := range entries {
		if err := lb.Save(ctx, e); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	rec := doRequest(t, s, http.MethodGet, "/api/leaderboard?dataset=data/logic.csv&mode=mc")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", rec.Code, rec.Body.String())
	}

	var got []leaderboard.Entry
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].Model != "gemini-2.0-flash" {
		t.Fatalf("entries: %+v", got)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/leaderboard?dataset=data/logic.csv&mode=mc&domain=logic")
	if rec.Code != http.StatusOK {
		t.Fatalf("domain status: got %d body %s", rec.Code, rec.Body.String())
	}
	got = nil
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Model != "gpt-4o" {
		t.Fatalf("domain-filtered entries: %+v", got)
	}
}

func TestHandlers_GetLeaderboardBadParams(t *testing.T) {
	s, _ := newLeaderboardServer(t)

	if rec := doRequest(t, s, http.MethodGet, "/api/leaderboard?mode=mc"); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing dataset: got %d", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodGet, "/api/leaderboard?dataset=d"); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing mode: got %d", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodGet, "/api/leaderboard?dataset=d&mode=mc&limit=bad"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: got %d", rec.Code)
	}
}

func TestHandlers_GetModelHistory(t *testing.T) {
	s, lb := newLeaderboardServer(t)
	ctx := context.Background()

	if err := lb.Save(ctx, &leaderboard.Entry{
		Model: "gpt-4o", Provider: "openai", Dataset: "data/arith.csv", Mode: "fullinfo", Accuracy: 0.8,
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec := doRequest(t, s, http.MethodGet, "/api/leaderboard/history?model=gpt-4o&dataset=data/arith.csv")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var got []leaderboard.Entry
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Mode != "fullinfo" {
		t.Fatalf("entries: %+v", got)
	}

	if rec := doRequest(t, s, http.MethodGet, "/api/leaderboard/history?model=gpt-4o"); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing dataset: got %d", rec.Code)
	}
}
