package store

import (
	"fmt"
	"strings"

	"github.com/reasonlab/underspec/internal/config"
	"github.com/reasonlab/underspec/internal/eval"
)

const DefaultSQLitePath = "results/underspec.db"

// Open builds a Store from the storage section of the config.
func Open(cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("store: missing config")
	}

	storageType := strings.ToLower(strings.TrimSpace(cfg.Storage.Type))
	if storageType == "" {
		storageType = "sqlite"
	}

	switch storageType {
	case "sqlite":
		path := strings.TrimSpace(cfg.Storage.Path)
		if path == "" {
			path = DefaultSQLitePath
		}
		return NewSQLiteStore(path)
	case "memory":
		return NewSQLiteStore(":memory:")
	default:
		return nil, fmt.Errorf("store: unsupported type %q", storageType)
	}
}

// FromReport converts an evaluation report into storable records.
func FromReport(runID string, report *eval.Report) (*RunRecord, []PredictionRecord) {
	if report == nil {
		return nil, nil
	}
	s := report.Summary
	run := &RunRecord{
		ID:           runID,
		Model:        s.Model,
		Provider:     s.Provider,
		Dataset:      s.Dataset,
		Domain:       s.Domain,
		Mode:         s.Mode,
		Total:        s.Total,
		Correct:      s.Correct,
		Unparsed:     s.Unparsed,
		Errors:       s.Errors,
		Accuracy:     s.Accuracy,
		InputTokens:  s.InputTokens,
		OutputTokens: s.OutputTokens,
		CostUSD:      s.CostUSD,
		WallMs:       s.WallMs,
		CreatedAt:    s.Timestamp,
	}

	preds := make([]PredictionRecord, 0, len(report.Predictions))
	for _, p := range report.Predictions {
		preds = append(preds, PredictionRecord{
			RunID:        runID,
			ProblemID:    p.ID,
			Domain:       p.Domain,
			Predicted:    p.Predicted,
			Gold:         p.Gold,
			Parsed:       p.Parsed,
			Correct:      p.Correct,
			Cached:       p.Cached,
			LatencyMs:    p.LatencyMs,
			InputTokens:  p.InputTokens,
			OutputTokens: p.OutputTokens,
			Error:        p.Error,
			Raw:          p.Raw,
		})
	}
	return run, preds
}
