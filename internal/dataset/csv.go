package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// choiceSep joins candidate facts inside a single CSV cell. It never occurs
// in generated fact text.
const choiceSep = "||"

var csvHeader = []string{
	"id", "domain", "difficulty", "problem", "choices",
	"answer_index", "missing_fact", "solution",
}

// WriteCSV writes problems to path, creating parent directories.
func WriteCSV(path string, problems []Problem) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("dataset: empty csv path")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("dataset: create dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dataset: create %q: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("dataset: write header: %w", err)
	}
	for i := range problems {
		p := &problems[i]
		if err := p.Validate(); err != nil {
			return err
		}
		rec := []string{
			p.ID,
			p.Domain,
			strconv.Itoa(p.Difficulty),
			p.Statement,
			strings.Join(p.Choices, choiceSep),
			strconv.Itoa(p.AnswerIndex),
			p.MissingFact,
			p.Solution,
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("dataset: write row %s: %w", p.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("dataset: flush: %w", err)
	}
	return nil
}

// ReadCSV loads a dataset file written by WriteCSV. Column order follows the
// header row, so reordered files still load.
func ReadCSV(path string) ([]Problem, error) {
	f, err := os.Open(strings.TrimSpace(path))
	if err != nil {
		return nil, fmt.Errorf("dataset: open %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("dataset: read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range csvHeader {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("dataset: %q missing column %q", path, required)
		}
	}

	var out []Problem
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: %q line %d: %w", path, line, err)
		}

		difficulty, err := strconv.Atoi(strings.TrimSpace(rec[col["difficulty"]]))
		if err != nil {
			return nil, fmt.Errorf("dataset: %q line %d: difficulty: %w", path, line, err)
		}
		answerIdx, err := strconv.Atoi(strings.TrimSpace(rec[col["answer_index"]]))
		if err != nil {
			return nil, fmt.Errorf("dataset: %q line %d: answer_index: %w", path, line, err)
		}

		p := Problem{
			ID:          strings.TrimSpace(rec[col["id"]]),
			Domain:      strings.TrimSpace(rec[col["domain"]]),
			Difficulty:  difficulty,
			Statement:   rec[col["problem"]],
			Choices:     strings.Split(rec[col["choices"]], choiceSep),
			AnswerIndex: answerIdx,
			MissingFact: rec[col["missing_fact"]],
			Solution:    rec[col["solution"]],
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("dataset: %q line %d: %w", path, line, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// List returns dataset CSV files under dir, sorted by name.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(strings.TrimSpace(dir))
	if err != nil {
		return nil, fmt.Errorf("dataset: list %q: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// Filter keeps problems matching domain (empty matches all), capped at limit
// (0 means no cap).
func Filter(in []Problem, domain string, limit int) []Problem {
	domain = strings.ToLower(strings.TrimSpace(domain))
	out := make([]Problem, 0, len(in))
	for _, p := range in {
		if domain != "" && p.Domain != domain {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
