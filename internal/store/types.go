package store

import (
	"context"
	"time"
)

// RunWriter defines persistence for evaluation runs.
type RunWriter interface {
	SaveRun(ctx context.Context, run *RunRecord) error
	SavePredictions(ctx context.Context, runID string, preds []PredictionRecord) error
}

// RunReader defines read access to run and prediction data.
type RunReader interface {
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error)
	GetPredictions(ctx context.Context, runID string) ([]PredictionRecord, error)
}

// Store defines persistence for evaluation runs and predictions.
type Store interface {
	RunWriter
	RunReader
	Close() error
}

// RunRecord stores one evaluation run summary.
type RunRecord struct {
	ID           string
	Model        string
	Provider     string
	Dataset      string
	Domain       string
	Mode         string
	Total        int
	Correct      int
	Unparsed     int
	Errors       int
	Accuracy     float64
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	WallMs       int64
	CreatedAt    time.Time
}

// PredictionRecord stores a single scored model response.
type PredictionRecord struct {
	RunID        string
	ProblemID    string
	Domain       string
	Predicted    string
	Gold         string
	Parsed       bool
	Correct      bool
	Cached       bool
	LatencyMs    int64
	InputTokens  int
	OutputTokens int
	Error        string
	Raw          string
}

// RunFilter filters run listings.
type RunFilter struct {
	Model   string
	Dataset string
	Domain  string
	Mode    string
	Since   time.Time
	Until   time.Time
	Limit   int
}
