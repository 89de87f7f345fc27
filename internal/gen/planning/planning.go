// Package planning generates blocks-world planning problems rendered as
// PDDL plus an English gloss. Each instance withholds exactly one init
// predicate (the position of one block), so the plan cannot be determined
// from the stated initial state and becomes determinable once the withheld
// predicate is supplied.
package planning

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/reasonlab/underspec/internal/dataset"
)

// table is the support value for a block resting on the table.
const table = "table"

// State maps each block to its support (another block or the table).
// A complete state mentions every block exactly once.
type State map[string]string

// Instance is one generated planning problem in symbolic form.
type Instance struct {
	Blocks  []string
	Init    State  // complete initial state
	Goal    State  // goal configuration (may be partial over blocks)
	Hidden  string // block whose init position is withheld
	PlanLen int    // minimal number of moves from Init to Goal
}

// Generate produces n planning problems, each missing exactly one block
// position needed to pin down the plan. Difficulty sets the
// block count (difficulty+3, capped at 6).
func Generate(n int, seed int64, difficulty int) ([]dataset.Problem, error) {
	if n <= 0 {
		return nil, fmt.Errorf("planning: size must be positive (got %d)", n)
	}
	blocks := difficulty + 3
	if blocks < 3 {
		blocks = 3
	}
	if blocks > 6 {
		blocks = 6
	}

	rng := rand.New(rand.NewSource(seed))
	out := make([]dataset.Problem, 0, n)
	for i := 0; i < n; i++ {
		inst, err := generateInstance(rng, blocks)
		if err != nil {
			return nil, err
		}
		p, err := toProblem(inst, rng, fmt.Sprintf("planning-%d", i+1), difficulty)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func generateInstance(rng *rand.Rand, numBlocks int) (Instance, error) {
	blocks := make([]string, numBlocks)
	for i := range blocks {
		blocks[i] = string(rune('a' + i))
	}

	for attempt := 0; attempt < 500; attempt++ {
		init := randomState(rng, blocks)
		goal := randomState(rng, blocks)

		planLen := shortestPlan(init, goal, blocks)
		if planLen <= 1 {
			// Trivial instances tell us nothing about the withheld fact.
			continue
		}

		// Withhold the position of a block the plan genuinely depends on:
		// among all consistent completions of the partial state, plan
		// lengths must disagree, otherwise the answer is determinable
		// without the fact.
		for _, hi := range rng.Perm(len(blocks)) {
			hidden := blocks[hi]
			if planAmbiguousWithout(init, goal, hidden, blocks) {
				return Instance{
					Blocks:  blocks,
					Init:    init,
					Goal:    goal,
					Hidden:  hidden,
					PlanLen: planLen,
				}, nil
			}
		}
	}
	return Instance{}, fmt.Errorf("planning: no nontrivial instance found for %d blocks", numBlocks)
}

// planAmbiguousWithout reports whether hiding the position of block hidden
// leaves the minimal plan length undetermined: at least two consistent
// completions of the partial state disagree on it.
func planAmbiguousWithout(init, goal State, hidden string, blocks []string) bool {
	partial := make(State, len(init))
	for b, sup := range init {
		if b != hidden {
			partial[b] = sup
		}
	}

	lengths := make(map[int]bool)
	for _, sup := range append([]string{table}, blocks...) {
		if sup == hidden {
			continue
		}
		st := make(State, len(init))
		for k, v := range partial {
			st[k] = v
		}
		st[hidden] = sup
		if !Consistent(st, blocks) {
			continue
		}
		lengths[shortestPlan(st, goal, blocks)] = true
		if len(lengths) > 1 {
			return true
		}
	}
	return false
}

// randomState builds a complete, consistent stacking of blocks.
func randomState(rng *rand.Rand, blocks []string) State {
	order := rng.Perm(len(blocks))
	st := make(State, len(blocks))
	var stacks [][]int // stacks[i] holds indices into order, bottom first

	for _, bi := range order {
		b := blocks[bi]
		// Place on the table or on top of an existing stack.
		k := rng.Intn(len(stacks) + 1)
		if k == len(stacks) {
			st[b] = table
			stacks = append(stacks, []int{bi})
			continue
		}
		top := blocks[stacks[k][len(stacks[k])-1]]
		st[b] = top
		stacks[k] = append(stacks[k], bi)
	}
	return st
}

// Consistent reports whether st is a physically possible complete state:
// every block placed, no two blocks on the same support, no cycles.
func Consistent(st State, blocks []string) bool {
	if len(st) != len(blocks) {
		return false
	}
	onTop := make(map[string]int)
	for _, b := range blocks {
		sup, ok := st[b]
		if !ok {
			return false
		}
		if sup != table {
			if _, known := st[sup]; !known {
				return false
			}
			onTop[sup]++
			if onTop[sup] > 1 {
				return false
			}
		}
	}
	// Cycle check: walking down from any block must reach the table.
	for _, b := range blocks {
		cur, steps := b, 0
		for cur != table {
			cur = st[cur]
			steps++
			if steps > len(blocks) {
				return false
			}
		}
	}
	return true
}

func clear(st State, b string) bool {
	for _, sup := range st {
		if sup == b {
			return false
		}
	}
	return true
}

func encode(st State, blocks []string) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		parts = append(parts, b+":"+st[b])
	}
	return strings.Join(parts, ",")
}

func satisfies(st, goal State) bool {
	for b, sup := range goal {
		if st[b] != sup {
			return false
		}
	}
	return true
}

// shortestPlan runs BFS over complete states and returns the minimal number
// of moves from init to goal, or -1 if unreachable (which cannot happen for
// consistent complete states, but callers treat it as a failed check).
func shortestPlan(init, goal State, blocks []string) int {
	if !Consistent(init, blocks) {
		return -1
	}
	start := encode(init, blocks)
	if satisfies(init, goal) {
		return 0
	}

	type node struct {
		st    State
		depth int
	}
	visited := map[string]bool{start: true}
	queue := []node{{st: init, depth: 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, b := range blocks {
			if !clear(cur.st, b) {
				continue
			}
			// Move b onto the table or onto any other clear block.
			targets := []string{table}
			for _, t := range blocks {
				if t != b && clear(cur.st, t) {
					targets = append(targets, t)
				}
			}
			for _, tgt := range targets {
				if cur.st[b] == tgt {
					continue
				}
				next := make(State, len(cur.st))
				for k, v := range cur.st {
					next[k] = v
				}
				next[b] = tgt

				key := encode(next, blocks)
				if visited[key] {
					continue
				}
				if satisfies(next, goal) {
					return cur.depth + 1
				}
				visited[key] = true
				queue = append(queue, node{st: next, depth: cur.depth + 1})
			}
		}
	}
	return -1
}

// Verify checks an instance against its distractor facts:
// the true position must complete the init state consistently and yield
// PlanLen, while no distractor may complete it into a consistent state.
func Verify(inst Instance, distractors []placement) error {
	partial := make(State, len(inst.Init))
	for b, sup := range inst.Init {
		if b == inst.Hidden {
			continue
		}
		partial[b] = sup
	}

	restored := make(State, len(inst.Init))
	for k, v := range partial {
		restored[k] = v
	}
	restored[inst.Hidden] = inst.Init[inst.Hidden]
	if !Consistent(restored, inst.Blocks) {
		return fmt.Errorf("planning: true placement of %s is inconsistent", inst.Hidden)
	}
	if got := shortestPlan(restored, inst.Goal, inst.Blocks); got != inst.PlanLen {
		return fmt.Errorf("planning: plan length %d with true placement, want %d", got, inst.PlanLen)
	}

	for _, d := range distractors {
		st := make(State, len(partial))
		for k, v := range partial {
			st[k] = v
		}
		if d.block != inst.Hidden {
			// A fact about an already-placed block leaves the hidden block
			// unplaced; the state stays incomplete.
			if len(st) == len(inst.Blocks) {
				return fmt.Errorf("planning: distractor %v completes the state", d)
			}
			continue
		}
		st[d.block] = d.support
		if Consistent(st, inst.Blocks) {
			return fmt.Errorf("planning: distractor %v yields a consistent state", d)
		}
	}
	return nil
}

type placement struct {
	block   string
	support string
}

func (p placement) String() string {
	if p.support == table {
		return fmt.Sprintf("Block %s is on the table.", strings.ToUpper(p.block))
	}
	return fmt.Sprintf("Block %s is on block %s.", strings.ToUpper(p.block), strings.ToUpper(p.support))
}

func (p placement) pddl() string {
	if p.support == table {
		return fmt.Sprintf("(on-table %s)", p.block)
	}
	return fmt.Sprintf("(on %s %s)", p.block, p.support)
}

func toProblem(inst Instance, rng *rand.Rand, id string, difficulty int) (dataset.Problem, error) {
	truth := placement{block: inst.Hidden, support: inst.Init[inst.Hidden]}
	distractors := makeDistractors(inst, rng, 3)
	if err := Verify(inst, distractors); err != nil {
		return dataset.Problem{}, err
	}

	choices := []string{truth.String()}
	for _, d := range distractors {
		choices = append(choices, d.String())
	}
	rng.Shuffle(len(choices), func(i, j int) { choices[i], choices[j] = choices[j], choices[i] })

	answerIdx := -1
	for i, c := range choices {
		if c == truth.String() {
			answerIdx = i
			break
		}
	}
	if answerIdx < 0 {
		return dataset.Problem{}, fmt.Errorf("planning: truth lost while shuffling choices")
	}

	return dataset.Problem{
		ID:          id,
		Domain:      dataset.DomainPlanning,
		Difficulty:  difficulty,
		Statement:   render(inst),
		Choices:     choices,
		AnswerIndex: answerIdx,
		MissingFact: truth.String(),
		Solution:    fmt.Sprintf("%d", inst.PlanLen),
	}, nil
}

// makeDistractors draws candidate placements that fail the consistency
// check: restatements of known positions, and placements of the hidden block
// that would be physically impossible.
func makeDistractors(inst Instance, rng *rand.Rand, n int) []placement {
	var pool []placement

	// Restatements of positions the problem already gives.
	for b, sup := range inst.Init {
		if b == inst.Hidden {
			continue
		}
		pool = append(pool, placement{block: b, support: sup})
	}

	// Inconsistent placements of the hidden block: onto an occupied block,
	// onto itself is excluded by construction.
	occupied := make(map[string]bool)
	for b, sup := range inst.Init {
		if b != inst.Hidden && sup != table {
			occupied[sup] = true
		}
	}
	for sup := range occupied {
		if sup != inst.Hidden && sup != inst.Init[inst.Hidden] {
			pool = append(pool, placement{block: inst.Hidden, support: sup})
		}
	}
	// The block(s) resting on the hidden block cannot also be under it.
	for b, sup := range inst.Init {
		if sup == inst.Hidden && b != inst.Hidden {
			pool = append(pool, placement{block: inst.Hidden, support: b})
		}
	}

	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	seen := map[placement]bool{{block: inst.Hidden, support: inst.Init[inst.Hidden]}: true}
	out := make([]placement, 0, n)
	for _, p := range pool {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
		if len(out) == n {
			break
		}
	}
	return out
}

func render(inst Instance) string {
	var sb strings.Builder
	sb.WriteString("You are given a blocks-world planning problem.\n\n")

	fmt.Fprintf(&sb, "(:objects %s - block)\n", strings.Join(inst.Blocks, " "))

	// Clear predicates are deliberately omitted: stating which blocks are
	// clear would reveal the hidden block's position by elimination.
	sb.WriteString("(:init")
	for _, b := range sortedBlocks(inst.Init) {
		if b == inst.Hidden {
			continue
		}
		sb.WriteByte(' ')
		sb.WriteString(placement{block: b, support: inst.Init[b]}.pddl())
	}
	sb.WriteString(")\n")

	sb.WriteString("(:goal (and")
	for _, b := range sortedBlocks(inst.Goal) {
		sb.WriteByte(' ')
		sb.WriteString(placement{block: b, support: inst.Goal[b]}.pddl())
	}
	sb.WriteString("))\n\n")

	fmt.Fprintf(&sb,
		"The position of block %s is not stated in the initial state.\n"+
			"Question: What is the minimum number of moves needed to reach the goal?",
		strings.ToUpper(inst.Hidden))
	return sb.String()
}

func sortedBlocks(st State) []string {
	out := make([]string, 0, len(st))
	for b := range st {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}
