package main

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/reasonlab/underspec/internal/store"
)

type historyOptions struct {
	model   string
	dataset string
	domain  string
	mode    string
	limit   int
	since   string
}

func newHistoryCmd(st *cliState) *cobra.Command {
	var opts historyOptions

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show evaluation run history",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadState(st)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.model, "model", "", "model to filter")
	cmd.Flags().StringVar(&opts.dataset, "dataset", "", "dataset to filter")
	cmd.Flags().StringVar(&opts.domain, "domain", "", "problem domain to filter")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "mode to filter")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "max runs to list")
	cmd.Flags().StringVar(&opts.since, "since", "", "only runs since date (YYYY-MM-DD or RFC3339)")

	cmd.AddCommand(newHistoryShowCmd(st))
	return cmd
}

func newHistoryShowCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show details for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(cmd, st, args[0])
		},
	}
}

func runHistoryList(cmd *cobra.Command, st *cliState, opts *historyOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("history: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("history: nil options")
	}

	since, err := parseSince(opts.since)
	if err != nil {
		return err
	}

	stor, err := store.Open(st.cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	filter := store.RunFilter{
		Model:   strings.TrimSpace(opts.model),
		Dataset: strings.TrimSpace(opts.dataset),
		Domain:  strings.TrimSpace(opts.domain),
		Mode:    strings.TrimSpace(opts.mode),
		Since:   since,
		Limit:   opts.limit,
	}
	runs, err := stor.ListRuns(cmd.Context(), filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(out, "No runs found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN_ID\tMODEL\tMODE\tDATASET\tDOMAIN\tACCURACY\tTOTAL\tDATE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.4f\t%d\t%s\n",
			r.ID,
			r.Model,
			r.Mode,
			r.Dataset,
			r.Domain,
			r.Accuracy,
			r.Total,
			formatTime(r.CreatedAt),
		)
	}
	return tw.Flush()
}

func runHistoryShow(cmd *cobra.Command, st *cliState, runID string) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("history: missing config (internal error)")
	}

	runID = strings.TrimSpace(runID)
	if runID == "" {
		return fmt.Errorf("history: missing run id")
	}

	stor, err := store.Open(st.cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	run, err := stor.GetRun(cmd.Context(), runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("history: run %q not found", runID)
		}
		return err
	}

	preds, err := stor.GetPredictions(cmd.Context(), runID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Run: %s\n", run.ID)
	_, _ = fmt.Fprintf(out, "Model: %s (%s)  Mode: %s  Dataset: %s  Domain: %s\n",
		run.Model, run.Provider, run.Mode, run.Dataset, run.Domain)
	_, _ = fmt.Fprintf(out, "Date: %s\n", formatTime(run.CreatedAt))
	_, _ = fmt.Fprintf(out, "Accuracy: %.4f (%d/%d correct, %d unparsed, %d errors)\n",
		run.Accuracy, run.Correct, run.Total, run.Unparsed, run.Errors)
	_, _ = fmt.Fprintf(out, "Tokens: %d in / %d out  Cost: $%.4f\n",
		run.InputTokens, run.OutputTokens, run.CostUSD)

	if len(preds) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\nPROBLEM\tRESULT\tPREDICTED\tGOLD\tLAT(ms)\tERROR")
	for _, p := range preds {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			p.ProblemID,
			resultLabel(p),
			p.Predicted,
			p.Gold,
			p.LatencyMs,
			p.Error,
		)
	}
	return tw.Flush()
}

func parseSince(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	layouts := []string{time.RFC3339, "2006-01-02"}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("history: invalid --since %q (expected YYYY-MM-DD or RFC3339)", s)
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format(time.RFC3339)
}

func resultLabel(p store.PredictionRecord) string {
	switch {
	case p.Error != "":
		return "ERROR"
	case !p.Parsed:
		return "UNPARSED"
	case p.Correct:
		return "PASS"
	default:
		return "FAIL"
	}
}
