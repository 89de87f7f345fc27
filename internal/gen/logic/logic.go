// Package logic generates rule-satisfiability problems that are solvable
// given exactly one additional fact. Each instance is a set of attribute
// facts about named people, a set of universally quantified implication
// rules, and a goal question whose derivation is blocked by a single
// withheld fact.
package logic

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/reasonlab/underspec/internal/dataset"
)

var names = []string{
	"Alice", "Bob", "Carol", "Dave", "Erin", "Frank", "Grace", "Henry",
}

var attributes = []string{
	"calm", "tidy", "happy", "kind", "brave", "quiet", "clever", "honest",
	"patient", "curious", "careful", "cheerful",
}

// Rule is a per-person implication: anyone with all premise attributes has
// the conclusion attribute.
type Rule struct {
	Premises   []string
	Conclusion string
}

// Instance carries the symbolic form of one generated problem alongside the
// withheld fact, for verification.
type Instance struct {
	People  []string
	Facts   []Fact
	Rules   []Rule
	Goal    Fact
	Missing Fact
}

// Fact states that a person has, or lacks, an attribute. Negated facts
// never feed rule premises; they settle a premise as false.
type Fact struct {
	Person  string
	Attr    string
	Negated bool
}

func (f Fact) String() string {
	if f.Negated {
		return fmt.Sprintf("%s is not %s.", f.Person, f.Attr)
	}
	return fmt.Sprintf("%s is %s.", f.Person, f.Attr)
}

// positive returns the affirmed form of the fact.
func (f Fact) positive() Fact {
	f.Negated = false
	return f
}

// Generate produces n logic problems, each unsolvable as stated and
// solvable once its withheld fact is supplied. About a third of the
// withheld facts are negative, so the goal resolves to "no" and a constant
// answer cannot score well. Difficulty sets the rule chain depth (1..4);
// the same seed yields the same dataset.
func Generate(n int, seed int64, difficulty int) ([]dataset.Problem, error) {
	if n <= 0 {
		return nil, fmt.Errorf("logic: size must be positive (got %d)", n)
	}
	if difficulty < 1 {
		difficulty = 1
	}
	if difficulty > 4 {
		difficulty = 4
	}

	rng := rand.New(rand.NewSource(seed))
	out := make([]dataset.Problem, 0, n)
	for i := 0; i < n; i++ {
		inst := generateInstance(rng, difficulty)
		p, err := toProblem(inst, rng, fmt.Sprintf("logic-%d", i+1), difficulty)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// generateInstance builds a derivation chain for a target person and
// withholds one side condition. Construction plus the closure checks in
// Verify guarantee exactly one fact stands between the statement and the
// goal.
func generateInstance(rng *rand.Rand, difficulty int) Instance {
	depth := difficulty + 1

	people := pick(rng, names, 3)
	// One chain attribute per step plus one distinct side attribute per
	// step; reusing a side attribute across steps could leak the withheld
	// condition through a later, stated step.
	attrs := pick(rng, attributes, 2*depth+1)
	target := people[0]

	chain := attrs[:depth+1]
	sides := attrs[depth+1:]

	var facts []Fact
	var rules []Rule
	facts = append(facts, Fact{Person: target, Attr: chain[0]})

	// One side condition is withheld; all others are stated. A negated
	// withheld condition blocks the chain, so the goal resolves to "no".
	withheldStep := rng.Intn(depth)
	negated := rng.Intn(3) == 0
	var missing Fact
	for step := 0; step < depth; step++ {
		side := sides[step]
		rules = append(rules, Rule{
			Premises:   []string{chain[step], side},
			Conclusion: chain[step+1],
		})
		f := Fact{Person: target, Attr: side}
		if step == withheldStep {
			f.Negated = negated
			missing = f
		} else {
			facts = append(facts, f)
		}
	}

	// Noise facts about the other people keep the statement from telegraphing
	// the target.
	for _, person := range people[1:] {
		facts = append(facts, Fact{Person: person, Attr: attrs[rng.Intn(len(attrs))]})
	}

	rng.Shuffle(len(facts), func(i, j int) { facts[i], facts[j] = facts[j], facts[i] })
	rng.Shuffle(len(rules), func(i, j int) { rules[i], rules[j] = rules[j], rules[i] })

	return Instance{
		People:  people,
		Facts:   facts,
		Rules:   rules,
		Goal:    Fact{Person: target, Attr: chain[depth]},
		Missing: missing,
	}
}

// Derive computes the forward-chaining closure of facts under rules.
// Negated facts contribute nothing to the closure.
func Derive(facts []Fact, rules []Rule) map[Fact]bool {
	known := make(map[Fact]bool, len(facts))
	people := make(map[string]bool)
	for _, f := range facts {
		people[f.Person] = true
		if f.Negated {
			continue
		}
		known[f] = true
	}

	for changed := true; changed; {
		changed = false
		for person := range people {
			for _, r := range rules {
				ok := true
				for _, prem := range r.Premises {
					if !known[Fact{Person: person, Attr: prem}] {
						ok = false
						break
					}
				}
				if !ok {
					continue
				}
				c := Fact{Person: person, Attr: r.Conclusion}
				if !known[c] {
					known[c] = true
					changed = true
				}
			}
		}
	}
	return known
}

// Verify checks that the goal does not follow from the stated facts, that
// the withheld condition is pivotal (its affirmed form completes the
// derivation, so its truth value decides the goal), and that no distractor
// unlocks the goal.
func Verify(inst Instance, distractors []Fact) error {
	if Derive(inst.Facts, inst.Rules)[inst.Goal] {
		return fmt.Errorf("logic: goal %v derivable without missing fact", inst.Goal)
	}
	with := append(append([]Fact{}, inst.Facts...), inst.Missing.positive())
	if !Derive(with, inst.Rules)[inst.Goal] {
		return fmt.Errorf("logic: goal %v not decided by missing fact %v", inst.Goal, inst.Missing)
	}
	for _, d := range distractors {
		withD := append(append([]Fact{}, inst.Facts...), d.positive())
		if Derive(withD, inst.Rules)[inst.Goal] {
			return fmt.Errorf("logic: distractor %v unlocks goal %v", d, inst.Goal)
		}
	}
	return nil
}

func toProblem(inst Instance, rng *rand.Rand, id string, difficulty int) (dataset.Problem, error) {
	distractors := makeDistractors(inst, rng, 3)
	if err := Verify(inst, distractors); err != nil {
		return dataset.Problem{}, err
	}

	choices := make([]string, 0, len(distractors)+1)
	choices = append(choices, inst.Missing.String())
	for _, d := range distractors {
		choices = append(choices, d.String())
	}
	rng.Shuffle(len(choices), func(i, j int) { choices[i], choices[j] = choices[j], choices[i] })

	answerIdx := -1
	missingText := inst.Missing.String()
	for i, c := range choices {
		if c == missingText {
			answerIdx = i
			break
		}
	}
	if answerIdx < 0 {
		return dataset.Problem{}, fmt.Errorf("logic: missing fact lost while shuffling choices")
	}

	solution := "yes"
	if inst.Missing.Negated {
		solution = "no"
	}

	return dataset.Problem{
		ID:          id,
		Domain:      dataset.DomainLogic,
		Difficulty:  difficulty,
		Statement:   render(inst),
		Choices:     choices,
		AnswerIndex: answerIdx,
		MissingFact: missingText,
		Solution:    solution,
	}, nil
}

// makeDistractors draws candidate facts that provably do not unlock the
// goal: attributes of non-target people, restatements of given facts, and
// attributes outside every rule premise.
func makeDistractors(inst Instance, rng *rand.Rand, n int) []Fact {
	premised := make(map[string]bool)
	for _, r := range inst.Rules {
		for _, p := range r.Premises {
			premised[p] = true
		}
	}

	var pool []Fact
	// Facts about other people.
	for _, person := range inst.People[1:] {
		for _, attr := range attributes {
			pool = append(pool, Fact{Person: person, Attr: attr})
		}
	}
	// Restatements of what is already given.
	pool = append(pool, inst.Facts...)
	// Target attributes no rule ever consumes.
	for _, attr := range attributes {
		if !premised[attr] && attr != inst.Goal.Attr {
			pool = append(pool, Fact{Person: inst.Goal.Person, Attr: attr})
		}
	}

	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	stated := make(map[Fact]bool, len(inst.Facts))
	for _, f := range inst.Facts {
		stated[f] = true
	}

	seen := map[Fact]bool{inst.Missing.positive(): true}
	out := make([]Fact, 0, n)
	for _, f := range pool {
		if seen[f] {
			continue
		}
		withF := append(append([]Fact{}, inst.Facts...), f)
		if Derive(withF, inst.Rules)[inst.Goal] {
			continue
		}
		seen[f] = true
		// Negating a candidate keeps the surface form of the choices from
		// telegraphing which answer is negative. Never negate a stated fact;
		// that would contradict the statement.
		if !stated[f] && rng.Intn(3) == 0 {
			f.Negated = true
		}
		out = append(out, f)
		if len(out) == n {
			break
		}
	}
	return out
}

func render(inst Instance) string {
	var sb strings.Builder
	sb.WriteString("Consider the following facts and rules.\n\nFacts:\n")
	for _, f := range inst.Facts {
		sb.WriteString("- ")
		sb.WriteString(f.String())
		sb.WriteByte('\n')
	}
	sb.WriteString("\nRules:\n")
	for _, r := range inst.Rules {
		sb.WriteString("- If a person is ")
		sb.WriteString(strings.Join(r.Premises, " and "))
		sb.WriteString(", then they are ")
		sb.WriteString(r.Conclusion)
		sb.WriteString(".\n")
	}
	fmt.Fprintf(&sb, "\nQuestion: Is %s %s?", inst.Goal.Person, inst.Goal.Attr)
	return sb.String()
}

func pick(rng *rand.Rand, pool []string, n int) []string {
	idx := rng.Perm(len(pool))
	if n > len(pool) {
		n = len(pool)
	}
	out := make([]string, 0, n)
	for _, i := range idx[:n] {
		out = append(out, pool[i])
	}
	return out
}
