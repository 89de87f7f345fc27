package eval

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/reasonlab/underspec/internal/dataset"
	"github.com/reasonlab/underspec/internal/llm"
	"github.com/reasonlab/underspec/internal/prompt"
)

// Prediction is the outcome of evaluating one problem.
type Prediction struct {
	ID           string `json:"id"`
	Domain       string `json:"domain"`
	Mode         string `json:"mode"`
	Raw          string `json:"raw"`
	Predicted    string `json:"predicted"`
	Gold         string `json:"gold"`
	Parsed       bool   `json:"parsed"`
	Correct      bool   `json:"correct"`
	Cached       bool   `json:"cached"`
	LatencyMs    int64  `json:"latency_ms"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	Error        string `json:"error,omitempty"`
}

// Summary aggregates a run.
type Summary struct {
	Model        string    `json:"model"`
	Provider     string    `json:"provider"`
	Dataset      string    `json:"dataset"`
	Domain       string    `json:"domain"`
	Mode         string    `json:"mode"`
	Total        int       `json:"total"`
	Correct      int       `json:"correct"`
	Unparsed     int       `json:"unparsed"`
	Errors       int       `json:"errors"`
	Accuracy     float64   `json:"accuracy"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd"`
	WallMs       int64     `json:"wall_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

// Report is the full result of one evaluation run.
type Report struct {
	Summary     Summary
	Predictions []Prediction
}

// Runner drives one evaluation run: prompt, call, parse, score.
type Runner struct {
	Provider llm.Provider
	Mode     prompt.Mode
	Dataset  string // dataset path recorded in the summary

	MaxTokens   int
	Temperature float64
	// BatchSize bounds how many examples are in flight together; Parallel
	// enables concurrent calls within a batch, matching provider batch
	// limits rather than any throughput goal.
	BatchSize int
	Parallel  bool
	// StrictAmbiguity additionally requires the named missing information
	// to match the gold fact, not just the underspecified verdict.
	StrictAmbiguity bool
}

func (r *Runner) Run(ctx context.Context, problems []dataset.Problem) (*Report, error) {
	if r == nil {
		return nil, errors.New("eval: nil runner")
	}
	if ctx == nil {
		return nil, errors.New("eval: nil context")
	}
	if r.Provider == nil {
		return nil, errors.New("eval: nil provider")
	}
	if len(problems) == 0 {
		return nil, errors.New("eval: empty dataset")
	}

	batch := r.BatchSize
	if batch <= 0 {
		batch = 1
	}

	start := time.Now()
	preds := make([]Prediction, len(problems))

	for lo := 0; lo < len(problems); lo += batch {
		hi := lo + batch
		if hi > len(problems) {
			hi = len(problems)
		}
		if err := ctx.Err(); err != nil {
			return r.report(preds[:lo], start), err
		}

		if r.Parallel && hi-lo > 1 {
			g, gctx := errgroup.WithContext(ctx)
			for i := lo; i < hi; i++ {
				g.Go(func() error {
					preds[i] = r.evalOne(gctx, &problems[i])
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return r.report(preds[:hi], start), err
			}
		} else {
			for i := lo; i < hi; i++ {
				preds[i] = r.evalOne(ctx, &problems[i])
			}
		}
	}

	return r.report(preds, start), nil
}

func (r *Runner) evalOne(ctx context.Context, p *dataset.Problem) Prediction {
	out := Prediction{
		ID:     p.ID,
		Domain: p.Domain,
		Mode:   string(r.Mode),
	}

	system, user, err := prompt.Build(r.Mode, p)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	resp, err := r.Provider.Complete(ctx, &llm.Request{
		Messages:    []llm.Message{{Role: "user", Content: user}},
		System:      system,
		MaxTokens:   r.MaxTokens,
		Temperature: r.Temperature,
	})
	if resp != nil {
		out.Raw = resp.Text
		out.Cached = resp.Cached
		out.LatencyMs = resp.LatencyMs
		out.InputTokens = resp.InputTokens
		out.OutputTokens = resp.OutputTokens
	}
	if err != nil {
		out.Error = err.Error()
		return out
	}

	r.score(&out, p)
	return out
}

func (r *Runner) score(out *Prediction, p *dataset.Problem) {
	switch r.Mode {
	case prompt.ModeMC:
		out.Gold = string(rune('A' + p.AnswerIndex))
		idx, ok := ParseMC(out.Raw, p.Choices)
		if !ok {
			return
		}
		out.Parsed = true
		out.Predicted = string(rune('A' + idx))
		out.Correct = idx == p.AnswerIndex

	case prompt.ModeAmbiguity:
		out.Gold = "underspecified: " + p.MissingFact
		verdict, ok := ParseAmbiguity(out.Raw)
		if !ok {
			return
		}
		out.Parsed = true
		if verdict.Underspecified {
			out.Predicted = "underspecified: " + verdict.Detail
		} else {
			out.Predicted = "solvable: " + verdict.Detail
		}
		// Every generated problem is underspecified; the verdict alone
		// scores unless strict matching is on.
		out.Correct = verdict.Underspecified
		if out.Correct && r.StrictAmbiguity {
			out.Correct = FactMatch(verdict.Detail, p.MissingFact)
		}

	case prompt.ModeFullInfo:
		out.Gold = p.Solution
		predicted, parsed, correct := ParseFinalAnswer(p.Domain, out.Raw, p.Solution)
		out.Predicted = predicted
		out.Parsed = parsed
		out.Correct = correct
	}
}

func (r *Runner) report(preds []Prediction, start time.Time) *Report {
	s := Summary{
		Model:     strings.TrimSpace(r.Provider.Model()),
		Provider:  strings.TrimSpace(r.Provider.Name()),
		Dataset:   strings.TrimSpace(r.Dataset),
		Mode:      string(r.Mode),
		Total:     len(preds),
		WallMs:    time.Since(start).Milliseconds(),
		Timestamp: time.Now().UTC(),
	}
	for i := range preds {
		p := &preds[i]
		switch {
		case s.Domain == "":
			s.Domain = p.Domain
		case s.Domain != p.Domain:
			s.Domain = "mixed"
		}
		if p.Correct {
			s.Correct++
		}
		if p.Error != "" {
			s.Errors++
		} else if !p.Parsed {
			s.Unparsed++
		}
		s.InputTokens += p.InputTokens
		s.OutputTokens += p.OutputTokens
		if !p.Cached {
			s.CostUSD += llm.EstimateCost(s.Model, p.InputTokens, p.OutputTokens)
		}
	}
	if s.Total > 0 {
		s.Accuracy = float64(s.Correct) / float64(s.Total)
	}
	return &Report{Summary: s, Predictions: preds}
}
