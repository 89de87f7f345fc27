// Package arith generates multi-step arithmetic word problems with one
// required quantity omitted from the statement. The multiple-choice
// candidates are the omitted quantity plus facts that do not supply it, so
// exactly one candidate makes the problem solvable.
package arith

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/reasonlab/underspec/internal/dataset"
)

var actors = []string{"Sam", "Maya", "Leo", "Nina", "Omar", "Tess", "Raj", "Ivy"}

// quantity is one numeric slot in a template.
type quantity struct {
	key  string
	fact string // sentence form, with %s for actor and %d for value
}

// template instantiates to a word problem. render receives the actor, the
// values, and the key of the omitted quantity; it must not mention the
// omitted value. answer computes the ground truth from all values.
type template struct {
	name       string
	quantities []quantity
	irrelevant []string // distractor fact templates (%s actor, %d value)
	render     func(actor string, v map[string]int, omit string) string
	answer     func(v map[string]int) int
	sample     func(rng *rand.Rand, difficulty int) map[string]int
}

var templates = []template{
	{
		name: "shopping",
		quantities: []quantity{
			{key: "n1", fact: "%s buys %d apples."},
			{key: "p1", fact: "Each apple costs %d dollars."},
			{key: "n2", fact: "%s buys %d loaves of bread."},
			{key: "p2", fact: "Each loaf of bread costs %d dollars."},
		},
		irrelevant: []string{
			"The store is open for %d hours today.",
			"%s walked %d minutes to the store.",
			"The store has %d checkout lanes.",
			"%s's friend bought %d oranges yesterday.",
		},
		render: func(actor string, v map[string]int, omit string) string {
			part := func(key, known, unknown string) string {
				if key == omit {
					return unknown
				}
				return known
			}
			return fmt.Sprintf(
				"%s goes shopping. %s %s %s %s How many dollars does %s spend in total?",
				actor,
				part("n1", fmt.Sprintf("%s buys %d apples.", actor, v["n1"]),
					fmt.Sprintf("%s buys some apples.", actor)),
				part("p1", fmt.Sprintf("Each apple costs %d dollars.", v["p1"]),
					"Apples are sold at a fixed price."),
				part("n2", fmt.Sprintf("%s also buys %d loaves of bread.", actor, v["n2"]),
					fmt.Sprintf("%s also buys some loaves of bread.", actor)),
				part("p2", fmt.Sprintf("Each loaf of bread costs %d dollars.", v["p2"]),
					"Bread is sold at a fixed price."),
				actor,
			)
		},
		answer: func(v map[string]int) int {
			return v["n1"]*v["p1"] + v["n2"]*v["p2"]
		},
		sample: func(rng *rand.Rand, difficulty int) map[string]int {
			hi := 5 + 5*difficulty
			return map[string]int{
				"n1": 2 + rng.Intn(hi),
				"p1": 1 + rng.Intn(hi/2+1),
				"n2": 1 + rng.Intn(hi),
				"p2": 1 + rng.Intn(hi/2+1),
			}
		},
	},
	{
		name: "travel",
		quantities: []quantity{
			{key: "s1", fact: "%s drives at %d miles per hour on the highway."},
			{key: "h1", fact: "%s drives on the highway for %d hours."},
			{key: "s2", fact: "%s drives at %d miles per hour in town."},
			{key: "h2", fact: "%s drives in town for %d hours."},
		},
		irrelevant: []string{
			"%s's car was washed %d days ago.",
			"The trip includes %d rest stops.",
			"%s listens to %d podcasts on the way.",
			"Fuel costs %d dollars per gallon.",
		},
		render: func(actor string, v map[string]int, omit string) string {
			part := func(key, known, unknown string) string {
				if key == omit {
					return unknown
				}
				return known
			}
			return fmt.Sprintf(
				"%s takes a road trip in two legs. %s %s %s %s How many miles does %s travel in total?",
				actor,
				part("s1", fmt.Sprintf("On the highway, %s drives at %d miles per hour.", actor, v["s1"]),
					fmt.Sprintf("On the highway, %s drives at a steady speed.", actor)),
				part("h1", fmt.Sprintf("The highway leg takes %d hours.", v["h1"]),
					"The highway leg takes a while."),
				part("s2", fmt.Sprintf("In town, %s drives at %d miles per hour.", actor, v["s2"]),
					fmt.Sprintf("In town, %s drives at a steady speed.", actor)),
				part("h2", fmt.Sprintf("The town leg takes %d hours.", v["h2"]),
					"The town leg takes a while."),
				actor,
			)
		},
		answer: func(v map[string]int) int {
			return v["s1"]*v["h1"] + v["s2"]*v["h2"]
		},
		sample: func(rng *rand.Rand, difficulty int) map[string]int {
			return map[string]int{
				"s1": 50 + 5*rng.Intn(difficulty+3),
				"h1": 1 + rng.Intn(difficulty+2),
				"s2": 20 + 5*rng.Intn(difficulty+1),
				"h2": 1 + rng.Intn(difficulty+1),
			}
		},
	},
	{
		name: "inventory",
		quantities: []quantity{
			{key: "start", fact: "The warehouse starts the week with %d boxes."},
			{key: "in", fact: "A delivery adds %d boxes."},
			{key: "out", fact: "An order ships %d boxes out."},
		},
		irrelevant: []string{
			"The warehouse has %d loading docks.",
			"%s has worked there for %d years.",
			"Each box weighs %d pounds.",
			"The forklift was serviced %d weeks ago.",
		},
		render: func(actor string, v map[string]int, omit string) string {
			part := func(key, known, unknown string) string {
				if key == omit {
					return unknown
				}
				return known
			}
			return fmt.Sprintf(
				"%s manages a warehouse. %s %s %s How many boxes are in the warehouse at the end of the week?",
				actor,
				part("start", fmt.Sprintf("The warehouse starts the week with %d boxes.", v["start"]),
					"The warehouse starts the week with some boxes."),
				part("in", fmt.Sprintf("During the week, a delivery adds %d boxes.", v["in"]),
					"During the week, a delivery adds more boxes."),
				part("out", fmt.Sprintf("Later, an order ships %d boxes out.", v["out"]),
					"Later, an order ships boxes out."),
			)
		},
		answer: func(v map[string]int) int {
			return v["start"] + v["in"] - v["out"]
		},
		sample: func(rng *rand.Rand, difficulty int) map[string]int {
			start := 50 + rng.Intn(50*difficulty)
			in := 10 + rng.Intn(20*difficulty)
			return map[string]int{
				"start": start,
				"in":    in,
				"out":   1 + rng.Intn(start+in-1),
			}
		},
	},
}

// Generate produces n word problems, each omitting exactly one quantity
// needed to compute the answer. Difficulty scales
// the sampled magnitudes.
func Generate(n int, seed int64, difficulty int) ([]dataset.Problem, error) {
	if n <= 0 {
		return nil, fmt.Errorf("arith: size must be positive (got %d)", n)
	}
	if difficulty < 1 {
		difficulty = 1
	}

	rng := rand.New(rand.NewSource(seed))
	out := make([]dataset.Problem, 0, n)
	for i := 0; i < n; i++ {
		p, err := generateOne(rng, fmt.Sprintf("arith-%d", i+1), difficulty)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func generateOne(rng *rand.Rand, id string, difficulty int) (dataset.Problem, error) {
	tpl := templates[rng.Intn(len(templates))]
	actor := actors[rng.Intn(len(actors))]
	values := tpl.sample(rng, difficulty)

	omitted := tpl.quantities[rng.Intn(len(tpl.quantities))]
	statement := tpl.render(actor, values, omitted.key)

	missing := renderFact(omitted.fact, actor, values[omitted.key])
	if strings.Contains(statement, missing) {
		return dataset.Problem{}, fmt.Errorf("arith: %s: statement leaks the omitted quantity", id)
	}

	choices := []string{missing}
	choices = append(choices, makeDistractors(rng, tpl, actor, values, omitted.key, 3)...)
	rng.Shuffle(len(choices), func(i, j int) { choices[i], choices[j] = choices[j], choices[i] })

	answerIdx := -1
	for i, c := range choices {
		if c == missing {
			answerIdx = i
			break
		}
	}
	if answerIdx < 0 {
		return dataset.Problem{}, fmt.Errorf("arith: %s: missing fact lost while shuffling", id)
	}

	return dataset.Problem{
		ID:          id,
		Domain:      dataset.DomainArith,
		Difficulty:  difficulty,
		Statement:   statement,
		Choices:     choices,
		AnswerIndex: answerIdx,
		MissingFact: missing,
		Solution:    fmt.Sprintf("%d", tpl.answer(values)),
	}, nil
}

// makeDistractors never supplies the omitted quantity: candidates either
// restate a quantity the problem already gives, or state something
// irrelevant to the computation.
func makeDistractors(rng *rand.Rand, tpl template, actor string, values map[string]int, omit string, n int) []string {
	var pool []string
	for _, q := range tpl.quantities {
		if q.key == omit {
			continue
		}
		pool = append(pool, renderFact(q.fact, actor, values[q.key]))
	}
	for _, f := range tpl.irrelevant {
		pool = append(pool, renderFact(f, actor, 1+rng.Intn(9)))
	}

	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	seen := make(map[string]bool)
	out := make([]string, 0, n)
	for _, f := range pool {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
		if len(out) == n {
			break
		}
	}
	return out
}

// renderFact fills a fact template whose verbs may or may not take the
// actor name.
func renderFact(tmpl, actor string, value int) string {
	if strings.Contains(tmpl, "%s") {
		return fmt.Sprintf(tmpl, actor, value)
	}
	return fmt.Sprintf(tmpl, value)
}
