package leaderboard

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestStore_SaveAndGetLeaderboard(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	e1 := &Entry{
		Model:    "gpt-4o",
		Provider: "openai",
		Dataset:  "data/logic.csv",
		Domain:   "logic",
		Mode:     "mc",
		Accuracy: 0.80,
		Latency:  120,
		EvalDate: time.UnixMilli(1000).UTC(),
	}
	e2 := &Entry{
		Model:    "gemini-2.0-flash",
		Provider: "gemini",
		Dataset:  "data/logic.csv",
		Domain:   "logic",
		Mode:     "mc",
		Accuracy: 0.90,
		Latency:  200,
		EvalDate: time.UnixMilli(2000).UTC(),
	}
	e3 := &Entry{
		Model:    "gpt-4o",
		Provider: "openai",
		Dataset:  "data/logic.csv",
		Domain:   "logic",
		Mode:     "ambiguity",
		Accuracy: 0.95,
		Latency:  90,
		EvalDate: time.UnixMilli(3000).UTC(),
	}

	for _, e := range []*Entry{e1, e2, e3} {
		if err := st.Save(ctx, e); err != nil {
			t.Fatalf("Save %s/%s: %v", e.Model, e.Mode, err)
		}
		if e.ID == 0 {
			t.Fatalf("expected ID to be set for %s/%s", e.Model, e.Mode)
		}
	}

	got, err := st.GetLeaderboard(ctx, "data/logic.csv", "", "mc", 10)
	if err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(entries): got %d want 2", len(got))
	}
	if got[0].Model != "gemini-2.0-flash" {
		t.Fatalf("rank1 model: got %q", got[0].Model)
	}
	if got[1].Model != "gpt-4o" {
		t.Fatalf("rank2 model: got %q", got[1].Model)
	}
	if got[0].Domain != "logic" {
		t.Fatalf("domain: got %q want %q", got[0].Domain, "logic")
	}
}

func TestStore_GetLeaderboard_DomainFilter(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	logic := &Entry{Model: "m-logic", Provider: "local", Dataset: "data/all.csv", Domain: "logic", Mode: "mc", Accuracy: 0.4}
	arith := &Entry{Model: "m-arith", Provider: "local", Dataset: "data/all.csv", Domain: "arith", Mode: "mc", Accuracy: 0.9}
	mixed := &Entry{Model: "m-mixed", Provider: "local", Dataset: "data/all.csv", Domain: "mixed", Mode: "mc", Accuracy: 0.7}
	for _, e := range []*Entry{logic, arith, mixed} {
		if err := st.Save(ctx, e); err != nil {
			t.Fatalf("Save %s: %v", e.Model, err)
		}
	}

	got, err := st.GetLeaderboard(ctx, "data/all.csv", "logic", "mc", 10)
	if err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}
	if len(got) != 1 || got[0].Model != "m-logic" {
		t.Fatalf("domain filter: got %+v", got)
	}

	all, err := st.GetLeaderboard(ctx, "data/all.csv", "", "mc", 10)
	if err != nil {
		t.Fatalf("GetLeaderboard all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("unfiltered: got %d entries want 3", len(all))
	}
}

func TestStore_LatencyTiebreak(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	slow := &Entry{Model: "slow", Provider: "local", Dataset: "d", Domain: "arith", Mode: "mc", Accuracy: 0.5, Latency: 900}
	fast := &Entry{Model: "fast", Provider: "local", Dataset: "d", Domain: "arith", Mode: "mc", Accuracy: 0.5, Latency: 100}
	if err := st.Save(ctx, slow); err != nil {
		t.Fatalf("Save slow: %v", err)
	}
	if err := st.Save(ctx, fast); err != nil {
		t.Fatalf("Save fast: %v", err)
	}

	got, err := st.GetLeaderboard(ctx, "d", "", "mc", 10)
	if err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}
	if got[0].Model != "fast" {
		t.Fatalf("equal accuracy should rank by latency: got %q first", got[0].Model)
	}
}

func TestStore_GetModelHistory_Order(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for i, acc := range []float64{0.20, 0.45, 0.60} {
		if err := st.Save(ctx, &Entry{
			Model:    "gpt-4o",
			Provider: "openai",
			Dataset:  "data/planning.csv",
			Mode:     "fullinfo",
			Accuracy: acc,
			EvalDate: time.UnixMilli(int64(1000 * (i + 1))).UTC(),
		}); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}

	got, err := st.GetModelHistory(ctx, "gpt-4o", "data/planning.csv")
	if err != nil {
		t.Fatalf("GetModelHistory: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len(history): got %d want 3", len(got))
	}
	if got[0].Accuracy != 0.60 || got[2].Accuracy != 0.20 {
		t.Fatalf("history not newest first: %+v", got)
	}
}

func TestStore_Validation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.Save(ctx, nil); err == nil {
		t.Fatal("expected error for nil entry")
	}
	if err := st.Save(ctx, &Entry{Model: "m", Provider: "p", Dataset: "d"}); err == nil {
		t.Fatal("expected error for missing mode")
	}
	if _, err := st.GetLeaderboard(ctx, "", "", "mc", 10); err == nil {
		t.Fatal("expected error for empty dataset")
	}
	if _, err := st.GetModelHistory(ctx, "m", ""); err == nil {
		t.Fatal("expected error for empty dataset")
	}
	if _, err := NewStore(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
