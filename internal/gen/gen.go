// Package gen dispatches dataset generation across the problem domains.
package gen

import (
	"fmt"
	"strings"

	"github.com/reasonlab/underspec/internal/dataset"
	"github.com/reasonlab/underspec/internal/gen/arith"
	"github.com/reasonlab/underspec/internal/gen/logic"
	"github.com/reasonlab/underspec/internal/gen/planning"
)

// Generate builds n problems for the named domain. Every returned problem
// passes dataset.Problem.Validate and the domain generator's own solvability
// checks: unsolvable as stated, solvable once the withheld fact is supplied.
func Generate(domain string, n int, seed int64, difficulty int) ([]dataset.Problem, error) {
	switch strings.ToLower(strings.TrimSpace(domain)) {
	case dataset.DomainLogic:
		return logic.Generate(n, seed, difficulty)
	case dataset.DomainPlanning:
		return planning.Generate(n, seed, difficulty)
	case dataset.DomainArith:
		return arith.Generate(n, seed, difficulty)
	default:
		return nil, fmt.Errorf("gen: unknown domain %q (expected %s)",
			domain, strings.Join(dataset.Domains(), "|"))
	}
}
