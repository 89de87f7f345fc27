package eval

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// WriteResults writes predictions.csv and summary.json for a run under
// <resultsDir>/<runID>/ and returns the run directory.
func WriteResults(resultsDir, runID string, report *Report) (string, error) {
	if report == nil {
		return "", errors.New("eval: nil report")
	}
	resultsDir = strings.TrimSpace(resultsDir)
	if resultsDir == "" {
		resultsDir = "results"
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		runID = NewRunID(report.Summary.Model, report.Summary.Mode)
	}

	dir := filepath.Join(resultsDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("eval: create run dir: %w", err)
	}

	if err := writePredictionsCSV(filepath.Join(dir, "predictions.csv"), report.Predictions); err != nil {
		return "", err
	}
	if err := writeSummaryJSON(filepath.Join(dir, "summary.json"), &report.Summary); err != nil {
		return "", err
	}
	return dir, nil
}

// NewRunID builds a filesystem-safe run identifier.
func NewRunID(model, mode string) string {
	clean := func(s string) string {
		return strings.Map(func(r rune) rune {
			switch {
			case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9', r == '-', r == '.':
				return r
			default:
				return '_'
			}
		}, strings.TrimSpace(s))
	}
	return fmt.Sprintf("%s_%s_%s", clean(model), clean(mode), time.Now().UTC().Format("20060102T150405"))
}

func writePredictionsCSV(path string, preds []Prediction) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("eval: create %q: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"id", "domain", "mode", "predicted", "gold", "parsed", "correct",
		"cached", "latency_ms", "input_tokens", "output_tokens", "error", "raw",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("eval: write header: %w", err)
	}
	for i := range preds {
		p := &preds[i]
		rec := []string{
			p.ID,
			p.Domain,
			p.Mode,
			p.Predicted,
			p.Gold,
			strconv.FormatBool(p.Parsed),
			strconv.FormatBool(p.Correct),
			strconv.FormatBool(p.Cached),
			strconv.FormatInt(p.LatencyMs, 10),
			strconv.Itoa(p.InputTokens),
			strconv.Itoa(p.OutputTokens),
			p.Error,
			p.Raw,
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("eval: write row %s: %w", p.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("eval: flush: %w", err)
	}
	return nil
}

func writeSummaryJSON(path string, s *Summary) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("eval: marshal summary: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("eval: write %q: %w", path, err)
	}
	return nil
}
