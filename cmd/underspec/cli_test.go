package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/reasonlab/underspec/internal/dataset"
)

func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "config.yaml")
	payload := "" +
		"llm:\n" +
		"  default_provider: local\n" +
		"  providers:\n" +
		"    local:\n" +
		"      model: gemma-2-9b-it\n" +
		"generation:\n" +
		"  data_dir: " + filepath.Join(dir, "data") + "\n" +
		"  size: 3\n" +
		"storage:\n" +
		"  type: memory\n"
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("WriteFile config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestGenerateAndList(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)

	out, err := runCLI(t, "--config", cfgPath, "generate", "--domain", "arith", "--seed", "7")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(out, "arith") {
		t.Fatalf("generate output: %q", out)
	}

	csvPath := filepath.Join(dir, "data", "arith.csv")
	problems, err := dataset.ReadCSV(csvPath)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(problems) != 3 {
		t.Fatalf("got %d problems, want 3", len(problems))
	}

	out, err = runCLI(t, "--config", cfgPath, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "arith.csv") || !strings.Contains(out, "arith=3") {
		t.Fatalf("list output: %q", out)
	}
	if !strings.Contains(out, "local (gemma-2-9b-it)") {
		t.Fatalf("list should name configured providers: %q", out)
	}
	if !strings.Contains(out, "Modes: mc ambiguity fullinfo") {
		t.Fatalf("list should name modes: %q", out)
	}
}

func TestGenerateSingleFileOutput(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)
	target := filepath.Join(dir, "custom.csv")

	if _, err := runCLI(t, "--config", cfgPath, "generate",
		"--domain", "logic", "--size", "2", "--seed", "1", "--out", target); err != nil {
		t.Fatalf("generate: %v", err)
	}
	problems, err := dataset.ReadCSV(target)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(problems) != 2 || problems[0].Domain != dataset.DomainLogic {
		t.Fatalf("problems: %+v", problems)
	}
}

func TestGenerateUnknownDomain(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)

	if _, err := runCLI(t, "--config", cfgPath, "generate", "--domain", "chess"); err == nil {
		t.Fatal("expected error for unknown domain")
	}
}

func TestResolveDomains(t *testing.T) {
	all, err := resolveDomains("all")
	if err != nil {
		t.Fatalf("resolveDomains(all): %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all domains: %v", all)
	}

	one, err := resolveDomains(" Planning ")
	if err != nil {
		t.Fatalf("resolveDomains(planning): %v", err)
	}
	if len(one) != 1 || one[0] != dataset.DomainPlanning {
		t.Fatalf("planning: %v", one)
	}

	if _, err := resolveDomains("sudoku"); err == nil {
		t.Fatal("expected error for unknown domain")
	}
}

func TestEvalMissingDataset(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)

	if _, err := runCLI(t, "--config", cfgPath, "eval", "--model", "gpt-4o"); err == nil {
		t.Fatal("expected error without --dataset")
	}
	if _, err := runCLI(t, "--config", cfgPath, "eval",
		"--dataset", filepath.Join(dir, "nope.csv"), "--model", "gpt-4o"); err == nil {
		t.Fatal("expected error for missing dataset file")
	}
}

func TestEvalBadMode(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)

	if _, err := runCLI(t, "--config", cfgPath, "eval",
		"--dataset", "x.csv", "--mode", "oracle"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestHistoryEmpty(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)

	out, err := runCLI(t, "--config", cfgPath, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "No runs found.") {
		t.Fatalf("history output: %q", out)
	}
}

func TestLeaderboardMissingDataset(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)

	if _, err := runCLI(t, "--config", cfgPath, "leaderboard"); err == nil {
		t.Fatal("expected error without --dataset")
	}
}

func TestRootCmd_Wiring(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"generate", "eval", "list", "leaderboard", "history"} {
		if !names[want] {
			t.Fatalf("missing command %q (have %v)", want, names)
		}
	}
}
