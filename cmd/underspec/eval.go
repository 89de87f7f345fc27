package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reasonlab/underspec/internal/config"
	"github.com/reasonlab/underspec/internal/dataset"
	"github.com/reasonlab/underspec/internal/eval"
	"github.com/reasonlab/underspec/internal/leaderboard"
	"github.com/reasonlab/underspec/internal/llm"
	"github.com/reasonlab/underspec/internal/prompt"
	"github.com/reasonlab/underspec/internal/store"
)

type evalOptions struct {
	datasetPath string
	model       string
	provider    string
	mode        string
	domain      string
	limit       int
	batch       int
	parallel    bool
	maxTokens   int
	temperature float64
	noCache     bool
	strict      bool
	resultsDir  string
	port        int
	noSave      bool
}

func newEvalCmd(st *cliState) *cobra.Command {
	var opts evalOptions

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate a model on a dataset",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadState(st)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.datasetPath, "dataset", "", "dataset CSV path")
	cmd.Flags().StringVar(&opts.model, "model", "", "model name (overrides config)")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "provider: gemini|openai|claude|local (inferred from model when empty)")
	cmd.Flags().StringVar(&opts.mode, "mode", string(prompt.ModeMC), "evaluation mode: mc|ambiguity|fullinfo")
	cmd.Flags().StringVar(&opts.domain, "domain", "", "only evaluate problems of this domain")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "max problems to evaluate (0 = all)")
	cmd.Flags().IntVar(&opts.batch, "batch", 0, "batch size (overrides config)")
	cmd.Flags().BoolVar(&opts.parallel, "parallel", false, "evaluate batches concurrently")
	cmd.Flags().IntVar(&opts.maxTokens, "max-tokens", 0, "max completion tokens (overrides config)")
	cmd.Flags().Float64Var(&opts.temperature, "temperature", -1, "sampling temperature (overrides config)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the response cache")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "ambiguity mode: require the named missing fact to match")
	cmd.Flags().StringVar(&opts.resultsDir, "results", "", "results directory (overrides config)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "local endpoint port")
	cmd.Flags().BoolVar(&opts.noSave, "no-save", false, "do not record the run in the store and leaderboard")

	return cmd
}

func runEval(cmd *cobra.Command, st *cliState, opts *evalOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("eval: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("eval: nil options")
	}

	datasetPath := strings.TrimSpace(opts.datasetPath)
	if datasetPath == "" {
		return fmt.Errorf("eval: missing --dataset")
	}

	mode, err := prompt.ParseMode(opts.mode)
	if err != nil {
		return err
	}

	problems, err := dataset.ReadCSV(datasetPath)
	if err != nil {
		return err
	}
	problems = dataset.Filter(problems, opts.domain, opts.limit)
	if len(problems) == 0 {
		return fmt.Errorf("eval: no problems in %s matching the filter", datasetPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	provider, closeProvider, err := buildProvider(ctx, st, opts)
	if err != nil {
		return err
	}
	defer closeProvider()

	batch := opts.batch
	if batch <= 0 {
		batch = st.cfg.Evaluation.BatchSize
	}
	maxTokens := opts.maxTokens
	if maxTokens <= 0 {
		maxTokens = st.cfg.Evaluation.MaxTokens
	}
	temperature := opts.temperature
	if temperature < 0 {
		temperature = st.cfg.Evaluation.Temperature
	}

	runner := &eval.Runner{
		Provider:        provider,
		Mode:            mode,
		Dataset:         datasetPath,
		MaxTokens:       maxTokens,
		Temperature:     temperature,
		BatchSize:       batch,
		Parallel:        opts.parallel || st.cfg.Evaluation.Parallel,
		StrictAmbiguity: opts.strict,
	}

	report, runErr := runner.Run(ctx, problems)
	if report == nil {
		return runErr
	}

	resultsDir := strings.TrimSpace(opts.resultsDir)
	if resultsDir == "" {
		resultsDir = st.cfg.Evaluation.ResultsDir
	}
	runID := eval.NewRunID(report.Summary.Model, report.Summary.Mode)
	runDir, err := eval.WriteResults(resultsDir, runID, report)
	if err != nil {
		return err
	}

	printSummary(cmd, runID, runDir, &report.Summary)

	if !opts.noSave && runErr == nil {
		if err := saveRun(ctx, st, runID, report); err != nil {
			return err
		}
	}
	return runErr
}

// buildProvider assembles the provider chain: the backend, rate limited,
// retried, and fronted by the response cache unless disabled.
func buildProvider(ctx context.Context, st *cliState, opts *evalOptions) (llm.Provider, func(), error) {
	var (
		base llm.Provider
		err  error
	)
	if strings.TrimSpace(opts.provider) == "" && strings.TrimSpace(opts.model) == "" {
		base, err = llm.DefaultProviderFromConfig(ctx, st.cfg)
	} else {
		base, err = llm.NewProvider(ctx, st.cfg, opts.provider, opts.model, opts.port)
	}
	if err != nil {
		return nil, nil, err
	}

	var provider llm.Provider = base
	if qps := st.cfg.Evaluation.RateQPS; qps > 0 {
		provider = llm.WithRateLimit(provider, qps, 1)
	}
	provider = llm.WithRetry(provider, 0)

	if opts.noCache {
		return provider, func() {}, nil
	}
	cached, err := llm.WithCache(provider, st.cfg.Evaluation.CacheDir)
	if err != nil {
		return nil, nil, err
	}
	return cached, func() { _ = cached.Close() }, nil
}

func printSummary(cmd *cobra.Command, runID, runDir string, s *eval.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run: %s\n", runID)
	fmt.Fprintf(out, "Model: %s (%s)  Mode: %s  Dataset: %s\n", s.Model, s.Provider, s.Mode, s.Dataset)
	fmt.Fprintf(out, "Accuracy: %.4f (%d/%d correct, %d unparsed, %d errors)\n",
		s.Accuracy, s.Correct, s.Total, s.Unparsed, s.Errors)
	fmt.Fprintf(out, "Tokens: %d in / %d out  Cost: $%.4f  Wall: %dms\n",
		s.InputTokens, s.OutputTokens, s.CostUSD, s.WallMs)
	fmt.Fprintf(out, "Results: %s\n", runDir)
}

func saveRun(ctx context.Context, st *cliState, runID string, report *eval.Report) error {
	stor, err := store.Open(st.cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	run, preds := store.FromReport(runID, report)
	if err := stor.SaveRun(ctx, run); err != nil {
		return err
	}
	if err := stor.SavePredictions(ctx, runID, preds); err != nil {
		return err
	}

	lb, err := openLeaderboardStore(st.cfg)
	if err != nil {
		return err
	}
	defer lb.Close()

	s := report.Summary
	var meanLatency int64
	if s.Total > 0 {
		var total int64
		for _, p := range report.Predictions {
			total += p.LatencyMs
		}
		meanLatency = total / int64(s.Total)
	}
	return lb.Save(ctx, &leaderboard.Entry{
		Model:    s.Model,
		Provider: s.Provider,
		Dataset:  s.Dataset,
		Domain:   s.Domain,
		Mode:     s.Mode,
		Accuracy: s.Accuracy,
		Latency:  meanLatency,
		Cost:     s.CostUSD,
		EvalDate: s.Timestamp,
	})
}

func openLeaderboardStore(cfg *config.Config) (*leaderboard.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("leaderboard: missing config")
	}

	storageType := strings.ToLower(strings.TrimSpace(cfg.Storage.Type))
	if storageType == "" {
		storageType = "sqlite"
	}

	switch storageType {
	case "sqlite":
		path := strings.TrimSpace(cfg.Storage.Path)
		if path == "" {
			path = store.DefaultSQLitePath
		}
		return leaderboard.NewStore(path)
	case "memory":
		return leaderboard.NewStore(":memory:")
	default:
		return nil, fmt.Errorf("leaderboard: unsupported type %q", storageType)
	}
}
