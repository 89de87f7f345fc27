package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/reasonlab/underspec/internal/dataset"
	"github.com/reasonlab/underspec/internal/llm"
	"github.com/reasonlab/underspec/internal/prompt"
)

func newListCmd(st *cliState) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List generated datasets",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadState(st)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, st, dir)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "dataset directory (overrides config)")
	return cmd
}

func runList(cmd *cobra.Command, st *cliState, dir string) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("list: missing config (internal error)")
	}

	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = st.cfg.Generation.DataDir
	}
	if dir == "" {
		dir = "data"
	}

	paths, err := dataset.List(dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(paths) == 0 {
		fmt.Fprintf(out, "No datasets in %s.\n", dir)
	} else {
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "DATASET\tPROBLEMS\tDOMAINS")
		for _, path := range paths {
			problems, err := dataset.ReadCSV(path)
			if err != nil {
				return err
			}
			counts := map[string]int{}
			for _, p := range problems {
				counts[p.Domain]++
			}
			parts := make([]string, 0, len(counts))
			for _, d := range dataset.Domains() {
				if n := counts[d]; n > 0 {
					parts = append(parts, fmt.Sprintf("%s=%d", d, n))
				}
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\n", path, len(problems), strings.Join(parts, " "))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(out, "\nProviders:")
	if reg, err := llm.NewRegistryFromConfig(cmd.Context(), st.cfg); err == nil {
		names := reg.Names()
		sort.Strings(names)
		for _, name := range names {
			p, _ := reg.Get(name)
			fmt.Fprintf(out, "  %s (%s)\n", name, p.Model())
		}
	} else {
		fmt.Fprintf(out, "  none usable: %v\n", err)
	}

	modes := make([]string, 0, len(prompt.Modes()))
	for _, m := range prompt.Modes() {
		modes = append(modes, string(m))
	}
	fmt.Fprintf(out, "Modes: %s\n", strings.Join(modes, " "))
	return nil
}
