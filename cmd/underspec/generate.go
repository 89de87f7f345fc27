package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reasonlab/underspec/internal/dataset"
	"github.com/reasonlab/underspec/internal/gen"
)

type generateOptions struct {
	domain     string
	size       int
	seed       int64
	difficulty int
	out        string
}

func newGenerateCmd(st *cliState) *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate synthetic underspecified problem datasets",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadState(st)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.domain, "domain", "all", "problem domain: logic|planning|arith|all")
	cmd.Flags().IntVar(&opts.size, "size", 0, "problems per domain (overrides config)")
	cmd.Flags().Int64Var(&opts.seed, "seed", -1, "random seed (overrides config)")
	cmd.Flags().IntVar(&opts.difficulty, "difficulty", 2, "difficulty level 1-4")
	cmd.Flags().StringVar(&opts.out, "out", "", "output file (single domain) or directory")

	return cmd
}

func runGenerate(cmd *cobra.Command, st *cliState, opts *generateOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("generate: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("generate: nil options")
	}

	size := opts.size
	if size <= 0 {
		size = st.cfg.Generation.Size
	}
	if size <= 0 {
		return fmt.Errorf("generate: size must be > 0 (got %d)", size)
	}

	seed := opts.seed
	if seed < 0 {
		seed = st.cfg.Generation.Seed
	}

	domains, err := resolveDomains(opts.domain)
	if err != nil {
		return err
	}

	out := strings.TrimSpace(opts.out)
	if len(domains) == 1 && strings.HasSuffix(strings.ToLower(out), ".csv") {
		problems, err := gen.Generate(domains[0], size, seed, opts.difficulty)
		if err != nil {
			return err
		}
		if err := dataset.WriteCSV(out, problems); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d %s problems to %s\n", len(problems), domains[0], out)
		return nil
	}

	dir := out
	if dir == "" {
		dir = st.cfg.Generation.DataDir
	}
	if dir == "" {
		dir = "data"
	}

	for _, domain := range domains {
		problems, err := gen.Generate(domain, size, seed, opts.difficulty)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, domain+".csv")
		if err := dataset.WriteCSV(path, problems); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d %s problems to %s\n", len(problems), domain, path)
	}
	return nil
}

func resolveDomains(raw string) ([]string, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" || raw == "all" {
		return dataset.Domains(), nil
	}
	for _, d := range dataset.Domains() {
		if raw == d {
			return []string{d}, nil
		}
	}
	return nil, fmt.Errorf("generate: unknown domain %q (expected %s or all)",
		raw, strings.Join(dataset.Domains(), "|"))
}
