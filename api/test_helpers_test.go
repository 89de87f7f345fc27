package api

import (
	"context"

	"github.com/reasonlab/underspec/internal/store"
)

type fakeStore struct {
	SaveRunFunc         func(ctx context.Context, run *store.RunRecord) error
	SavePredictionsFunc func(ctx context.Context, runID string, preds []store.PredictionRecord) error
	GetRunFunc          func(ctx context.Context, id string) (*store.RunRecord, error)
	ListRunsFunc        func(ctx context.Context, filter store.RunFilter) ([]*store.RunRecord, error)
	GetPredictionsFunc  func(ctx context.Context, runID string) ([]store.PredictionRecord, error)
	CloseFunc           func() error
}

func (s *fakeStore) SaveRun(ctx context.Context, run *store.RunRecord) error {
	if s.SaveRunFunc != nil {
		return s.SaveRunFunc(ctx, run)
	}
	return nil
}

func (s *fakeStore) SavePredictions(ctx context.Context, runID string, preds []store.PredictionRecord) error {
	if s.SavePredictionsFunc != nil {
		return s.SavePredictionsFunc(ctx, runID, preds)
	}
	return nil
}

func (s *fakeStore) GetRun(ctx context.Context, id string) (*store.RunRecord, error) {
	if s.GetRunFunc != nil {
		return s.GetRunFunc(ctx, id)
	}
	return nil, nil
}

func (s *fakeStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]*store.RunRecord, error) {
	if s.ListRunsFunc != nil {
		return s.ListRunsFunc(ctx, filter)
	}
	return nil, nil
}

func (s *fakeStore) GetPredictions(ctx context.Context, runID string) ([]store.PredictionRecord, error) {
	if s.GetPredictionsFunc != nil {
		return s.GetPredictionsFunc(ctx, runID)
	}
	return nil, nil
}

func (s *fakeStore) Close() error {
	if s.CloseFunc != nil {
		return s.CloseFunc()
	}
	return nil
}
